package common

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/xxh3"
)

// StableHash produces a deterministic hex digest of v. encoding/json sorts
// map[string]T keys alphabetically on Marshal, so two configs that are
// semantically identical but built with maps populated in a different order
// still hash identically. Used for the Workflow's config_hash, so that cached
// results only survive across runs when the effective configuration hasn't
// changed.
func StableHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Hashing must never fail the caller; hash the error text instead so
		// a bad config still produces *a* stable value distinct from any
		// valid one.
		raw = []byte(err.Error())
	}

	sum := xxh3.HashString128(string(raw)).Bytes()

	return hex.EncodeToString(sum[:])
}

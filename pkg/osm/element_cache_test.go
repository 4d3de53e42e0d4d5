package osm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementCacheStoreAndGet(t *testing.T) {
	dir := t.TempDir()
	c := NewElementCache(dir, log.NewNopLogger())

	n := &Element{ID: 1, Type: TypeNode, Lat: 48.0, Lon: 11.0}
	c.Store(n)

	got, ok := c.Get(TypeNode, 1)
	require.True(t, ok)
	assert.Equal(t, n, got)

	_, ok = c.Get(TypeWay, 1)
	assert.False(t, ok)
}

func TestElementCacheBulkStoreRejectsMismatchedType(t *testing.T) {
	c := NewElementCache(t.TempDir(), log.NewNopLogger())

	c.StoreBulk(TypeWay, []*Element{
		{ID: 1, Type: TypeWay},
		{ID: 2, Type: TypeNode}, // wrong type, must be skipped
	})

	_, ok := c.Get(TypeWay, 1)
	assert.True(t, ok)

	_, ok = c.Get(TypeWay, 2)
	assert.False(t, ok)
}

func TestElementCacheStorePlantsEmptyCountryIsNoop(t *testing.T) {
	c := NewElementCache(t.TempDir(), log.NewNopLogger())

	c.StorePlants("", []*Element{{ID: 1, Type: TypeNode}})

	_, ok := c.GetPlants("")
	assert.False(t, ok)
}

func TestElementCacheSaveAllOnlyWritesDirtyClasses(t *testing.T) {
	dir := t.TempDir()
	c := NewElementCache(dir, log.NewNopLogger())

	c.Store(&Element{ID: 1, Type: TypeNode})
	c.SaveAll(false)

	_, err := os.Stat(filepath.Join(dir, classFiles[classNodes]))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, classFiles[classWays]))
	assert.True(t, os.IsNotExist(err), "ways class was never dirtied and should not be written")
}

func TestElementCacheLoadCorruptFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, classFiles[classNodes]), []byte("{not json"), 0o644))

	c := NewElementCache(dir, log.NewNopLogger())
	c.LoadAll()

	_, ok := c.Get(TypeNode, 1)
	assert.False(t, ok)
}

func TestElementCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewElementCache(dir, log.NewNopLogger())

	c.StorePlants("DE", []*Element{{ID: 42, Type: TypeNode, Tags: Tags{"power": "plant"}}})
	c.SaveAll(true)

	c2 := NewElementCache(dir, log.NewNopLogger())
	c2.LoadAll()

	plants, ok := c2.GetPlants("DE")
	require.True(t, ok)
	require.Len(t, plants, 1)
	assert.Equal(t, int64(42), plants[0].ID)
}

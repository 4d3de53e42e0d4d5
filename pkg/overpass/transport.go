package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jpillora/backoff"
)

// apiRequest POSTs the Overpass QL query and decodes the JSON response into
// T, retrying transient failures with a fixed delay. Generalizes the
// teacher's apiRequest[T] (pkg/api/resource/openstack/request.go) from a
// bearer-token JSON API to Overpass's form-encoded query endpoint.
func apiRequest[T any](ctx context.Context, cfg Config, client *http.Client, logger log.Logger, query string) (T, error) {
	b := &backoff.Backoff{Min: cfg.RetryDelay, Max: cfg.RetryDelay, Factor: 1}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		data, err := doAPIRequest[T](ctx, cfg, client, query)
		if err == nil {
			return data, nil
		}

		lastErr = err

		level.Warn(logger).Log("msg", "overpass query failed, retrying", "attempt", attempt, "max_retries", cfg.MaxRetries, "err", err)

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return *new(T), ctx.Err()
			case <-time.After(b.Duration()):
			}
		}
	}

	return *new(T), lastErr
}

func doAPIRequest[T any](ctx context.Context, cfg Config, client *http.Client, query string) (T, error) {
	form := url.Values{"data": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return *new(T), err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return *new(T), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return *new(T), fmt.Errorf("overpass: request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return *new(T), err
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return *new(T), err
	}

	return data, nil
}

// Package overpass translates high-level requests ("plants in Germany",
// "everything in this bounding box") into Overpass QL queries, executes them
// with retries, and drives transitive dependency resolution so parsers never
// see a dangling node/way/relation reference.
package overpass

import "time"

const (
	defaultURL          = "https://overpass-api.de/api/interpreter"
	defaultTimeout      = 300 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 5 * time.Second
	defaultRecursionCap = 2
)

// Config is the overpass_api.* configuration surface.
type Config struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		URL:        defaultURL,
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
	}
}

// WithDefaults returns a copy of c with every unset field filled from
// the documented defaults.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = defaultURL
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}

	return c
}

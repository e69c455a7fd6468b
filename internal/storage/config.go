package storage

import (
	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

// defaultMaxFileSize is used when the caller does not set one explicitly.
const defaultMaxFileSize int64 = 16 * 1024 * 1024

// Config holds the storage engine's tunables, set via Option functions.
type Config struct {
	MaxFileSize int64
	MaxFiles    int
	Logger      log.Logger
	Registerer  prometheus.Registerer
}

func defaultConfig() Config {
	return Config{
		MaxFileSize: defaultMaxFileSize,
		MaxFiles:    0,
		Logger:      log.NewNopLogger(),
	}
}

// Option configures a storage Engine at construction time.
type Option func(*Config)

// WithMaxFileSize sets the size in bytes above which a write rotates to a
// fresh segment.
func WithMaxFileSize(n int64) Option {
	return func(c *Config) { c.MaxFileSize = n }
}

// WithMaxFiles caps the number of retained segments; zero means unlimited.
func WithMaxFiles(n int) Option {
	return func(c *Config) { c.MaxFiles = n }
}

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithRegisterer enables metrics registration against r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = r }
}

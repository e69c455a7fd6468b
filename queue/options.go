package queue

import (
	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ict-project/goqueue/internal/storage"
)

type config struct {
	storageOpts []storage.Option
	compress    bool
}

// Option configures a Queue at Open time.
type Option func(*config)

// WithMaxFileSize sets the size in bytes above which a write rotates to a
// fresh segment.
func WithMaxFileSize(n int64) Option {
	return func(c *config) { c.storageOpts = append(c.storageOpts, storage.WithMaxFileSize(n)) }
}

// WithMaxFiles caps the number of retained segments; zero means unlimited.
func WithMaxFiles(n int) Option {
	return func(c *config) { c.storageOpts = append(c.storageOpts, storage.WithMaxFiles(n)) }
}

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.storageOpts = append(c.storageOpts, storage.WithLogger(l)) }
}

// WithRegisterer enables metrics registration against r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *config) { c.storageOpts = append(c.storageOpts, storage.WithRegisterer(r)) }
}

// WithCompress transparently snappy-compresses payloads on Push and
// decompresses on Pop. The on-disk record header always reflects the
// compressed length, so the storage engine's protocol is unaffected.
func WithCompress(enabled bool) Option {
	return func(c *config) { c.compress = enabled }
}

// Package ratelimit throttles the public API per caller. The default
// MemoryLimiter is a per-key token bucket local to one process; swap in
// a shared Limiter when running more than one instance.
package ratelimit

import "context"

// Limiter decides whether the request identified by key proceeds. Keys
// are opaque to the limiter; the middleware builds them from the client
// IP. Implementations must be safe for concurrent use, and callers
// treat a non-nil error as fail-open rather than blocking traffic.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter admits everything. Used when throttling is turned off.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (NoopLimiter) Close() error { return nil }

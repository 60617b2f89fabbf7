package sekkei

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port             int
	databaseURL      string
	localDBPath      string
	provider         string
	sessionRetention time.Duration
	logger           *slog.Logger
	version          string
	backend          GenerationBackend
	eventHooks       []EventHook
}

// WithPort overrides the TCP port from config (SEKKEI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var). When set, transcripts and the project history
// are stored in Postgres instead of the local SQLite file.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLocalDBPath overrides the SQLite file path from config
// (SEKKEI_LOCAL_DB env var). Ignored when a database URL is configured.
func WithLocalDBPath(path string) Option {
	return func(o *resolvedOptions) { o.localDBPath = path }
}

// WithProvider overrides the generation backend selection from config
// (SEKKEI_PROVIDER env var): "simulated", "ollama", or "openai".
// Ignored when WithGenerationBackend supplies an implementation.
func WithProvider(provider string) Option {
	return func(o *resolvedOptions) { o.provider = provider }
}

// WithSessionRetention overrides how long finished sessions stay
// addressable (SEKKEI_SESSION_RETENTION env var).
func WithSessionRetention(d time.Duration) Option {
	return func(o *resolvedOptions) { o.sessionRetention = d }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithGenerationBackend replaces the auto-detected content backend
// (simulated/Ollama/OpenAI). Only the last call wins.
func WithGenerationBackend(b GenerationBackend) Option {
	return func(o *resolvedOptions) { o.backend = b }
}

// WithEventHook registers an event hook to receive session lifecycle
// notifications. Multiple hooks may be registered; all registered hooks
// receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// Package sekkei is the public API for embedding the Sekkei design
// generation server.
//
// Plugin and host-application consumers import this package to construct
// and extend the server without forking it:
//
//	app, err := sekkei.New(
//	    sekkei.WithVersion(version),
//	    sekkei.WithLogger(logger),
//	    sekkei.WithEventHook(myAuditHook{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: sekkei (root) imports
// internal/*, but internal/* never imports sekkei (root). Public types
// (SessionSnapshot, TaskResult, etc.) are standalone structs with no
// internal imports; the conversion helpers live here because this is the
// only file that sees both sides of the boundary.
package sekkei

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/sekkei/api"
	"github.com/ashita-ai/sekkei/internal/config"
	"github.com/ashita-ai/sekkei/internal/generate"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
	"github.com/ashita-ai/sekkei/internal/ratelimit"
	"github.com/ashita-ai/sekkei/internal/server"
	"github.com/ashita-ai/sekkei/internal/service/autosave"
	"github.com/ashita-ai/sekkei/internal/service/transcribe"
	"github.com/ashita-ai/sekkei/internal/storage"
	"github.com/ashita-ai/sekkei/internal/storage/local"
	"github.com/ashita-ai/sekkei/internal/telemetry"
	"github.com/ashita-ai/sekkei/migrations"
	"github.com/ashita-ai/sekkei/ui"
)

// shutdownPhaseTimeout bounds each phase of the graceful shutdown when
// the caller's context has no deadline of its own.
const shutdownPhaseTimeout = 15 * time.Second

// App is the Sekkei server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB  // nil when running on the local store
	localStore   *local.Store // nil when running on Postgres
	srv          *server.Server
	registry     *server.Registry
	limiter      ratelimit.Limiter // nil when rate limiting is disabled
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Sekkei server. It opens the configured store, runs
// migrations where applicable, wires all subsystems, and returns a
// ready-to-run App. It does NOT start any goroutines or accept HTTP
// connections; call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.localDBPath != "" {
		cfg.LocalDBPath = o.localDBPath
	}
	if o.provider != "" {
		cfg.Provider = o.provider
	}
	if o.sessionRetention > 0 {
		cfg.SessionRetention = o.sessionRetention
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("sekkei starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Open storage. DATABASE_URL selects Postgres with the full project
	// history; otherwise transcripts go to a local SQLite file and the
	// project auto-save path is disabled.
	var (
		db          *storage.DB
		localStore  *local.Store
		transcripts server.TranscriptStore
		projects    server.ProjectStore
		pinger      server.Pinger
		recorders   []pipeline.Recorder
	)
	if cfg.DatabaseURL != "" {
		db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
		transcripts = db
		projects = db
		pinger = db
		recorders = append(recorders, autosave.New(db, logger))
		logger.Info("storage: postgres")
	} else {
		localStore, err = local.Open(cfg.LocalDBPath)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		transcripts = localStore
		pinger = localStore
		logger.Info("storage: local sqlite", "path", cfg.LocalDBPath, "note", "project history disabled")
	}

	closeStore := func() {
		if db != nil {
			db.Close()
		}
		if localStore != nil {
			_ = localStore.Close()
		}
	}

	// Content backend. An external override takes priority over the
	// config-driven selection.
	var backend generate.Backend
	if o.backend != nil {
		backend = &backendAdapter{b: o.backend}
		logger.Info("generation backend: external", "name", backend.Name())
	} else {
		backend, err = generate.New(generate.Config{
			Provider:      cfg.Provider,
			OllamaBaseURL: cfg.OllamaURL,
			OllamaModel:   cfg.OllamaModel,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIModel:   cfg.OpenAIModel,
		})
		if err != nil {
			closeStore()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("generate: %w", err)
		}
		logger.Info("generation backend", "name", backend.Name())
	}

	// Transcript persister.
	persister := transcribe.New(transcripts, logger)

	// Adapt event hooks from public sekkei.EventHook to pipeline.Recorder.
	for _, h := range o.eventHooks {
		recorders = append(recorders, &eventHookAdapter{hook: h})
	}
	var recorder pipeline.Recorder
	switch len(recorders) {
	case 0:
	case 1:
		recorder = recorders[0]
	default:
		recorder = multiRecorder(recorders)
	}

	// Session registry.
	registry := server.NewRegistry(cfg.SessionRetention, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	// UI filesystem.
	uiFS, err := ui.DistFS()
	if err != nil {
		closeStore()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("ui: %w", err)
	}
	if uiFS != nil {
		logger.Info("ui: embedded SPA loaded")
	}

	// Create HTTP server.
	handlers := server.NewHandlers(server.HandlersDeps{
		Registry:            registry,
		Backend:             backend,
		Persister:           persister,
		Recorder:            recorder,
		Transcripts:         transcripts,
		Projects:            projects,
		Pinger:              pinger,
		Logger:              logger,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})
	srv := server.New(server.Config{
		Handlers:     handlers,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		UIFS:         uiFS,
		RateLimiter:  limiter,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		localStore:   localStore,
		srv:          srv,
		registry:     registry,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the registry sweeper and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. On return, Shutdown is
// called automatically; callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	go a.registry.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a two-phase graceful shutdown:
// (1) stop accepting HTTP requests and drain in-flight,
// (2) stop live sessions so partial transcripts are saved.
// It then closes the store and the OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("sekkei shutting down")

	// Phase 1: HTTP drain.
	httpCtx, httpCancel := contextWithFallbackTimeout(ctx, shutdownPhaseTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	// Phase 2: session drain.
	drainCtx, drainCancel := contextWithFallbackTimeout(ctx, shutdownPhaseTimeout)
	if err := a.registry.Drain(drainCtx); err != nil {
		a.logger.Error("session drain incomplete, unsaved sessions will be lost",
			"error", err, "live_sessions", a.registry.Len())
	}
	drainCancel()

	// Cleanup.
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	_ = a.otelShutdown(context.Background())
	if a.db != nil {
		a.db.Close()
	}
	if a.localStore != nil {
		if err := a.localStore.Close(); err != nil {
			a.logger.Error("local store close error", "error", err)
		}
	}

	a.logger.Info("sekkei stopped")
	return nil
}

// ── Adapters (defined here because this file imports both sides) ───────────────

// backendAdapter wraps a sekkei.GenerationBackend to satisfy
// generate.Backend. It converts internal model types to public sekkei
// types at the boundary.
type backendAdapter struct {
	b GenerationBackend
}

func (a *backendAdapter) Generate(ctx context.Context, prompt, databaseType string, tasks []model.TaskID, onProgress generate.ProgressFunc) ([]generate.StagedResult, error) {
	stages := make([]Stage, len(tasks))
	for i, t := range tasks {
		stages[i] = Stage(t)
	}
	var cb func(StageProgress)
	if onProgress != nil {
		cb = func(p StageProgress) {
			onProgress(generate.Progress{
				TaskID:    model.TaskID(p.Stage),
				Complete:  p.Complete,
				Reasoning: p.Reasoning,
			})
		}
	}
	results, err := a.b.Generate(ctx, prompt, databaseType, stages, cb)
	if err != nil {
		return nil, err
	}
	out := make([]generate.StagedResult, len(results))
	for i, r := range results {
		out[i] = generate.StagedResult{TaskID: model.TaskID(r.Stage), Content: r.Content}
	}
	return out, nil
}

func (a *backendAdapter) Name() string { return a.b.Name() }

// eventHookAdapter wraps a sekkei.EventHook to satisfy pipeline.Recorder.
type eventHookAdapter struct {
	hook EventHook
}

func (a *eventHookAdapter) OnSessionStarted(ctx context.Context, snap pipeline.Snapshot) error {
	return a.hook.OnSessionStarted(ctx, toPublicSnapshot(snap))
}

func (a *eventHookAdapter) OnTaskCompleted(ctx context.Context, sessionID uuid.UUID, seq int, task model.TaskSummary, content string) error {
	return a.hook.OnTaskCompleted(ctx, sessionID, seq, toPublicTask(task), content)
}

func (a *eventHookAdapter) OnSessionFinished(ctx context.Context, sessionID uuid.UUID, state pipeline.State) error {
	return a.hook.OnSessionFinished(ctx, sessionID, string(state))
}

// multiRecorder fans one Recorder callback out to several. Every
// recorder sees every event; errors are joined.
type multiRecorder []pipeline.Recorder

func (m multiRecorder) OnSessionStarted(ctx context.Context, snap pipeline.Snapshot) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.OnSessionStarted(ctx, snap))
	}
	return errors.Join(errs...)
}

func (m multiRecorder) OnTaskCompleted(ctx context.Context, sessionID uuid.UUID, seq int, task model.TaskSummary, content string) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.OnTaskCompleted(ctx, sessionID, seq, task, content))
	}
	return errors.Join(errs...)
}

func (m multiRecorder) OnSessionFinished(ctx context.Context, sessionID uuid.UUID, state pipeline.State) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.OnSessionFinished(ctx, sessionID, state))
	}
	return errors.Join(errs...)
}

// ── Type converters ────────────────────────────────────────────────────────────

// toPublicSnapshot converts an internal pipeline.Snapshot to the public
// sekkei.SessionSnapshot. Lives here because this is the only file that
// imports both sides of the boundary.
func toPublicSnapshot(s pipeline.Snapshot) SessionSnapshot {
	return SessionSnapshot{
		SessionID:    s.SessionID,
		State:        string(s.State),
		Prompt:       s.Prompt,
		DatabaseType: s.DatabaseType,
		Mode:         string(s.Mode),
		OwnerID:      s.OwnerID,
		Speed:        s.Speed,
		Overall:      s.Overall,
		StartedAt:    s.StartedAt,
	}
}

// toPublicTask converts an internal model.TaskSummary to the public
// sekkei.TaskResult.
func toPublicTask(t model.TaskSummary) TaskResult {
	return TaskResult{
		ID:       Stage(t.ID),
		Title:    t.Title,
		Agent:    t.Agent,
		Status:   string(t.Status),
		Progress: t.Progress,
	}
}

// contextWithFallbackTimeout applies timeout only when parent carries no
// deadline of its own.
func contextWithFallbackTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

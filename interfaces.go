package sekkei

import (
	"context"

	"github.com/google/uuid"
)

// GenerationBackend produces the staged design content for a session.
// When provided via WithGenerationBackend, it replaces the auto-detected
// simulated/Ollama/OpenAI backend. Generate is called once per session
// with the full stage list and must return one StagedContent per stage,
// in stage order. onProgress may be nil.
type GenerationBackend interface {
	Generate(ctx context.Context, prompt, databaseType string, stages []Stage, onProgress func(StageProgress)) ([]StagedContent, error)

	// Name identifies the backend in logs and transcript metadata.
	Name() string
}

// EventHook receives async notifications when session lifecycle events
// occur. Multiple hooks may be registered via multiple WithEventHook
// calls. Hook methods run in goroutines under a bounded timeout; they
// must not block indefinitely. Failures are logged but do not fail the
// session.
type EventHook interface {
	OnSessionStarted(ctx context.Context, snap SessionSnapshot) error
	OnTaskCompleted(ctx context.Context, sessionID uuid.UUID, sequence int, task TaskResult, content string) error
	OnSessionFinished(ctx context.Context, sessionID uuid.UUID, state string) error
}

package sekkei

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageRequirements   Stage = "requirements"
	StageSchema         Stage = "schema"
	StageImplementation Stage = "implementation"
	StageValidation     Stage = "validation"
	StageVisualization  Stage = "visualization"
)

// SessionSnapshot is the public view of a session at hook time.
// It is a curated view of internal pipeline state for use in extension
// interfaces, with no internal package imports, so it is safe to use
// from outside the module.
type SessionSnapshot struct {
	SessionID    uuid.UUID
	State        string
	Prompt       string
	DatabaseType string
	// Mode is "simulated" or "backend" depending on the content source.
	Mode      string
	OwnerID   *string
	Speed     int
	Overall   float64
	StartedAt time.Time
}

// TaskResult is the frozen record of one finished pipeline stage.
type TaskResult struct {
	ID       Stage
	Title    string
	Agent    string
	Status   string
	Progress float64
}

// StagedContent is one stage's full generated output.
type StagedContent struct {
	Stage   Stage
	Content string
}

// StageProgress reports intermediate backend state during generation.
// Reasoning is free-form status text surfaced as a session insight.
type StageProgress struct {
	Stage     Stage
	Complete  bool
	Reasoning string
}

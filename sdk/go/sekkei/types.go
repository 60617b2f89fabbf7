package sekkei

import (
	"time"

	"github.com/google/uuid"
)

// Task is one stage of the generation pipeline.
type Task struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Agent            string    `json:"agent"`
	Status           string    `json:"status"`
	Progress         float64   `json:"progress"`
	EstimatedSeconds int       `json:"estimated_seconds"`
	Subtasks         []Subtask `json:"subtasks"`
}

// Subtask is a cosmetic progress breakdown within a Task.
type Subtask struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// Insight is one agent commentary line emitted during a session.
type Insight struct {
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the full state of a session at one point in time.
type Snapshot struct {
	SessionID    uuid.UUID         `json:"session_id"`
	State        string            `json:"state"`
	Prompt       string            `json:"prompt"`
	DatabaseType string            `json:"database_type"`
	Mode         string            `json:"mode"`
	OwnerID      *string           `json:"owner_id,omitempty"`
	Playing      bool              `json:"playing"`
	Speed        int               `json:"speed"`
	TaskIndex    int               `json:"task_index"`
	Tasks        []Task            `json:"tasks"`
	Insights     []Insight         `json:"insights"`
	Displayed    map[string]string `json:"displayed"`
	Overall      float64           `json:"overall"`
	ETA          float64           `json:"eta_seconds"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// StartSessionRequest is the payload for StartSession.
type StartSessionRequest struct {
	Prompt               string `json:"prompt"`
	DatabaseType         string `json:"database_type,omitempty"`
	IncludeVisualization bool   `json:"include_visualization,omitempty"`
	Speed                int    `json:"speed,omitempty"`
}

// StartSessionResponse identifies the started session.
type StartSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	ProjectID uuid.UUID `json:"project_id,omitempty"`
	Tasks     []Task    `json:"tasks"`
}

// TranscriptMetadata carries run statistics alongside a transcript.
type TranscriptMetadata struct {
	DurationMS    int64  `json:"duration_ms"`
	ContentLength int    `json:"content_length"`
	InsightCount  int    `json:"insight_count"`
	Mode          string `json:"mode"`
	Partial       bool   `json:"partial"`
}

// Transcript is the persisted record of one finished session.
type Transcript struct {
	ID               uuid.UUID          `json:"id"`
	Prompt           string             `json:"prompt"`
	DatabaseType     string             `json:"database_type"`
	Title            string             `json:"title"`
	GeneratedContent map[string]string  `json:"generated_content"`
	Insights         []Insight          `json:"insights"`
	Tasks            []TaskSummary      `json:"tasks"`
	Status           string             `json:"status"`
	OwnerID          *string            `json:"owner_id,omitempty"`
	Metadata         TranscriptMetadata `json:"metadata"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TaskSummary is the frozen per-task record stored in a transcript.
type TaskSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Agent    string  `json:"agent"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// Project groups the sessions a user ran for one database design.
type Project struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      *string   `json:"owner_id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DatabaseType string    `json:"database_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionRecord is the durable mirror of one pipeline run.
type SessionRecord struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Prompt       string     `json:"prompt"`
	DatabaseType string     `json:"database_type"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ProjectDetail is a project with its recorded sessions.
type ProjectDetail struct {
	Project  Project         `json:"project"`
	Sessions []SessionRecord `json:"sessions"`
}

// HealthResponse reports server status.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int    `json:"uptime_seconds"`
	LiveSessions  int    `json:"live_sessions"`
}

// Event is one message from the session event stream.
// Type is "snapshot" for the initial catch-up event; Snapshot is set for
// that type and Kind payload fields are set for the rest.
type Event struct {
	Type string

	// Snapshot is populated when Type == "snapshot".
	Snapshot *Snapshot

	// The remaining fields mirror the server's pipeline event payload.
	SessionID uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`
	TaskID    string    `json:"task_id,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	Overall   float64   `json:"overall,omitempty"`
	ETA       float64   `json:"eta_seconds,omitempty"`
	Insight   *Insight  `json:"insight,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == "session_completed" || e.Type == "session_errored"
}

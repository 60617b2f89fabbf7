package model

import (
	"time"

	"github.com/google/uuid"
)

// GenerationMode records which content source drove a session.
type GenerationMode string

const (
	ModeSimulated GenerationMode = "simulated"
	ModeBackend   GenerationMode = "backend"
)

// TranscriptStatus is the terminal status of a saved transcript.
type TranscriptStatus string

const (
	TranscriptCompleted TranscriptStatus = "completed"
)

// TranscriptMetadata carries run statistics alongside a transcript.
// Partial is true when the session was stopped before all tasks finished
// (a user-requested early export).
type TranscriptMetadata struct {
	DurationMS    int64          `json:"duration_ms"`
	ContentLength int            `json:"content_length"`
	InsightCount  int            `json:"insight_count"`
	Mode          GenerationMode `json:"mode"`
	Partial       bool           `json:"partial"`
}

// Transcript is the persisted record of one completed (or early-stopped)
// generation session. Created exactly once by the persister; immutable
// afterwards except for explicit user edits performed through the store.
type Transcript struct {
	ID               uuid.UUID         `json:"id"`
	Prompt           string            `json:"prompt"`
	DatabaseType     string            `json:"database_type"`
	Title            string            `json:"title"`
	GeneratedContent map[TaskID]string `json:"generated_content"`
	Insights         []InsightEntry    `json:"insights"`
	Tasks            []TaskSummary     `json:"tasks"`
	Status           TranscriptStatus  `json:"status"`
	OwnerID          *string           `json:"owner_id,omitempty"`
	Metadata         TranscriptMetadata `json:"metadata"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ContentLength returns the total rune count across all generated content.
func (t Transcript) ContentLength() int {
	total := 0
	for _, c := range t.GeneratedContent {
		total += len([]rune(c))
	}
	return total
}

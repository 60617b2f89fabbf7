package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/model"
)

// EventKind discriminates pipeline events.
type EventKind string

const (
	EventTaskStarted      EventKind = "task_started"
	EventContentDelta     EventKind = "content_delta"
	EventTaskProgress     EventKind = "task_progress"
	EventTaskCompleted    EventKind = "task_completed"
	EventInsightAdded     EventKind = "insight_added"
	EventSessionPaused    EventKind = "session_paused"
	EventSessionResumed   EventKind = "session_resumed"
	EventSessionCompleted EventKind = "session_completed"
	EventSessionErrored   EventKind = "session_errored"
)

// Event is one pipeline lifecycle notification. Fields beyond Kind,
// SessionID, and At are populated per kind: Delta for content_delta,
// Insight for insight_added, Error for session_errored.
type Event struct {
	Kind      EventKind          `json:"kind"`
	SessionID uuid.UUID          `json:"session_id"`
	At        time.Time          `json:"at"`
	TaskID    model.TaskID       `json:"task_id,omitempty"`
	Delta     string             `json:"delta,omitempty"`
	Progress  float64            `json:"progress,omitempty"`
	Overall   float64            `json:"overall,omitempty"`
	ETA       float64            `json:"eta_seconds,omitempty"`
	Insight   *model.InsightEntry `json:"insight,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// State is the session-level state machine position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
)

// Snapshot is a read-only copy of session state for UIs. Produced under
// the session lock; safe to retain.
type Snapshot struct {
	SessionID    uuid.UUID            `json:"session_id"`
	State        State                `json:"state"`
	Prompt       string               `json:"prompt"`
	DatabaseType string               `json:"database_type"`
	Mode         model.GenerationMode `json:"mode"`
	OwnerID      *string              `json:"owner_id,omitempty"`
	Playing      bool                 `json:"playing"`
	Speed        int                  `json:"speed"`
	TaskIndex    int                  `json:"task_index"`
	Tasks        []model.Task         `json:"tasks"`
	Insights     []model.InsightEntry `json:"insights"`
	// Displayed maps each started task to its revealed content.
	Displayed map[model.TaskID]string `json:"displayed"`
	Overall   float64                 `json:"overall"`
	ETA       float64                 `json:"eta_seconds"`
	StartedAt time.Time               `json:"started_at,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// subscriber is one event fan-out channel. Slow subscribers with a full
// buffer have events dropped so one stalled reader cannot block the tick
// loop, matching the policy the SSE broker applies downstream.
type subscriber struct {
	id uuid.UUID
	ch chan Event
}

func (s *Session) emit(ev Event) {
	ev.SessionID = s.id
	ev.At = s.now()
	for _, sub := range s.subscribers {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribe registers an event channel with the given buffer size.
// The returned cancel function removes the subscription and closes the
// channel; it is safe to call more than once.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := subscriber{id: uuid.New(), ch: make(chan Event, buffer)}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subscribers {
			if existing.id == sub.id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				close(existing.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

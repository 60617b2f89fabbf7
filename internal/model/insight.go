package model

import "time"

// InsightEntry is one line of agent commentary shown to the user while a
// pipeline runs. The insight log is append-only: entries are never mutated
// or removed during a session, and ordering is insertion order.
type InsightEntry struct {
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectErrored   ProjectStatus = "error"
)

// Project groups the sessions a user ran for one database design.
// Created by the auto-save path when a pipeline starts.
type Project struct {
	ID           uuid.UUID     `json:"id"`
	OwnerID      *string       `json:"owner_id,omitempty"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	DatabaseType string        `json:"database_type"`
	Status       ProjectStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SessionStatus is the lifecycle state of a generation session row.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionErrored   SessionStatus = "error"
)

// SessionRecord is the durable mirror of one pipeline run.
type SessionRecord struct {
	ID           uuid.UUID     `json:"id"`
	ProjectID    uuid.UUID     `json:"project_id"`
	Prompt       string        `json:"prompt"`
	DatabaseType string        `json:"database_type"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Query is one task's generated output mirrored into durable storage as
// the pipeline runs, independent of the final transcript.
type Query struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	TaskID      TaskID    `json:"task_id"`
	SequenceNum int       `json:"sequence_num"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

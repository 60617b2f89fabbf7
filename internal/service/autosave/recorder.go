// Package autosave mirrors streaming output into durable project,
// session, and query records as a pipeline runs.
//
// This path is parallel to, and independent of, the final transcript:
// each completed task lands immediately, so a crash mid-run loses at most
// the task in flight. Failures here are reported to the pipeline's hook
// runner, which logs and continues.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
	"github.com/ashita-ai/sekkei/internal/title"
)

// Store is the slice of storage the recorder needs.
type Store interface {
	CreateProject(ctx context.Context, ownerID *string, name, description, databaseType string) (model.Project, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status model.ProjectStatus) error
	CreateSession(ctx context.Context, id, projectID uuid.UUID, prompt, databaseType string, startedAt time.Time) (model.SessionRecord, error)
	CompleteSession(ctx context.Context, id uuid.UUID, status model.SessionStatus) error
	CreateQuery(ctx context.Context, sessionID uuid.UUID, taskID model.TaskID, sequenceNum int, content string) (model.Query, error)
}

// Recorder implements pipeline.Recorder on top of the project store.
type Recorder struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	projects map[uuid.UUID]uuid.UUID // session id -> project id
}

// New creates a recorder.
func New(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		logger:   logger,
		projects: make(map[uuid.UUID]uuid.UUID),
	}
}

// OnSessionStarted creates the project and session records.
func (r *Recorder) OnSessionStarted(ctx context.Context, snap pipeline.Snapshot) error {
	name := title.Derive(snap.Prompt, snap.DatabaseType)
	project, err := r.store.CreateProject(ctx, snap.OwnerID, name, snap.Prompt, snap.DatabaseType)
	if err != nil {
		return fmt.Errorf("autosave: create project: %w", err)
	}

	if _, err := r.store.CreateSession(ctx, snap.SessionID, project.ID, snap.Prompt, snap.DatabaseType, snap.StartedAt); err != nil {
		return fmt.Errorf("autosave: create session: %w", err)
	}

	r.mu.Lock()
	r.projects[snap.SessionID] = project.ID
	r.mu.Unlock()
	return nil
}

// OnTaskCompleted stores one finished task's content as a query row.
func (r *Recorder) OnTaskCompleted(ctx context.Context, sessionID uuid.UUID, seq int, task model.TaskSummary, content string) error {
	if _, err := r.store.CreateQuery(ctx, sessionID, task.ID, seq, content); err != nil {
		return fmt.Errorf("autosave: create query: %w", err)
	}
	return nil
}

// OnSessionFinished closes out the session and project records.
func (r *Recorder) OnSessionFinished(ctx context.Context, sessionID uuid.UUID, state pipeline.State) error {
	sessionStatus := model.SessionCompleted
	projectStatus := model.ProjectCompleted
	if state == pipeline.StateErrored {
		sessionStatus = model.SessionErrored
		projectStatus = model.ProjectErrored
	}

	if err := r.store.CompleteSession(ctx, sessionID, sessionStatus); err != nil {
		return fmt.Errorf("autosave: complete session: %w", err)
	}

	r.mu.Lock()
	projectID, ok := r.projects[sessionID]
	delete(r.projects, sessionID)
	r.mu.Unlock()
	if !ok {
		r.logger.Warn("autosave: no project recorded for session", "session_id", sessionID)
		return nil
	}

	if err := r.store.UpdateProjectStatus(ctx, projectID, projectStatus); err != nil {
		return fmt.Errorf("autosave: update project: %w", err)
	}
	return nil
}

package autosave

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
)

type call struct {
	name string
	args []any
}

type fakeStore struct {
	calls     []call
	projectID uuid.UUID
	createErr error
	queryErr  error
	statusErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{projectID: uuid.New()}
}

func (s *fakeStore) CreateProject(_ context.Context, ownerID *string, name, description, databaseType string) (model.Project, error) {
	s.calls = append(s.calls, call{"CreateProject", []any{ownerID, name, description, databaseType}})
	if s.createErr != nil {
		return model.Project{}, s.createErr
	}
	return model.Project{ID: s.projectID, Name: name, DatabaseType: databaseType, Status: model.ProjectActive}, nil
}

func (s *fakeStore) UpdateProjectStatus(_ context.Context, id uuid.UUID, status model.ProjectStatus) error {
	s.calls = append(s.calls, call{"UpdateProjectStatus", []any{id, status}})
	return s.statusErr
}

func (s *fakeStore) CreateSession(_ context.Context, id, projectID uuid.UUID, prompt, databaseType string, startedAt time.Time) (model.SessionRecord, error) {
	s.calls = append(s.calls, call{"CreateSession", []any{id, projectID, prompt}})
	return model.SessionRecord{ID: id, ProjectID: projectID, Status: model.SessionRunning}, nil
}

func (s *fakeStore) CompleteSession(_ context.Context, id uuid.UUID, status model.SessionStatus) error {
	s.calls = append(s.calls, call{"CompleteSession", []any{id, status}})
	return nil
}

func (s *fakeStore) CreateQuery(_ context.Context, sessionID uuid.UUID, taskID model.TaskID, sequenceNum int, content string) (model.Query, error) {
	s.calls = append(s.calls, call{"CreateQuery", []any{sessionID, taskID, sequenceNum, content}})
	if s.queryErr != nil {
		return model.Query{}, s.queryErr
	}
	return model.Query{ID: uuid.New(), SessionID: sessionID, TaskID: taskID, SequenceNum: sequenceNum}, nil
}

func testSnapshot(sessionID uuid.UUID) pipeline.Snapshot {
	return pipeline.Snapshot{
		SessionID:    sessionID,
		State:        pipeline.StateRunning,
		Prompt:       "an online shop",
		DatabaseType: "PostgreSQL",
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOnSessionStarted_CreatesProjectAndSession(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())
	sessionID := uuid.New()

	require.NoError(t, rec.OnSessionStarted(context.Background(), testSnapshot(sessionID)))

	require.Len(t, store.calls, 2)
	assert.Equal(t, "CreateProject", store.calls[0].name)
	assert.Equal(t, "E-commerce Platform (PostgreSQL)", store.calls[0].args[1], "project name comes from title derivation")
	assert.Equal(t, "CreateSession", store.calls[1].name)
	assert.Equal(t, sessionID, store.calls[1].args[0])
	assert.Equal(t, store.projectID, store.calls[1].args[1])
}

func TestOnSessionStarted_ProjectFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	rec := New(store, slog.Default())

	err := rec.OnSessionStarted(context.Background(), testSnapshot(uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create project")
}

func TestOnTaskCompleted_StoresQueryRow(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())
	sessionID := uuid.New()

	task := model.TaskSummary{ID: model.TaskSchema, Title: "Schema Design", Status: model.TaskCompleted, Progress: 100}
	require.NoError(t, rec.OnTaskCompleted(context.Background(), sessionID, 1, task, "CREATE TABLE users ();"))

	require.Len(t, store.calls, 1)
	assert.Equal(t, "CreateQuery", store.calls[0].name)
	assert.Equal(t, model.TaskSchema, store.calls[0].args[1])
	assert.Equal(t, 1, store.calls[0].args[2])
	assert.Equal(t, "CREATE TABLE users ();", store.calls[0].args[3])
}

func TestOnSessionFinished_CompletedPath(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())
	sessionID := uuid.New()

	require.NoError(t, rec.OnSessionStarted(context.Background(), testSnapshot(sessionID)))
	store.calls = nil

	require.NoError(t, rec.OnSessionFinished(context.Background(), sessionID, pipeline.StateCompleted))

	require.Len(t, store.calls, 2)
	assert.Equal(t, "CompleteSession", store.calls[0].name)
	assert.Equal(t, model.SessionCompleted, store.calls[0].args[1])
	assert.Equal(t, "UpdateProjectStatus", store.calls[1].name)
	assert.Equal(t, store.projectID, store.calls[1].args[0])
	assert.Equal(t, model.ProjectCompleted, store.calls[1].args[1])
}

func TestOnSessionFinished_ErroredPath(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())
	sessionID := uuid.New()

	require.NoError(t, rec.OnSessionStarted(context.Background(), testSnapshot(sessionID)))
	store.calls = nil

	require.NoError(t, rec.OnSessionFinished(context.Background(), sessionID, pipeline.StateErrored))
	assert.Equal(t, model.SessionErrored, store.calls[0].args[1])
	assert.Equal(t, model.ProjectErrored, store.calls[1].args[1])
}

func TestOnSessionFinished_UnknownSessionIsTolerated(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())

	// No OnSessionStarted call: the project map has no entry. Closing the
	// session row still happens; the project update is skipped.
	require.NoError(t, rec.OnSessionFinished(context.Background(), uuid.New(), pipeline.StateCompleted))
	require.Len(t, store.calls, 1)
	assert.Equal(t, "CompleteSession", store.calls[0].name)
}

func TestOnSessionFinished_ForgetsProjectMapping(t *testing.T) {
	store := newFakeStore()
	rec := New(store, slog.Default())
	sessionID := uuid.New()

	require.NoError(t, rec.OnSessionStarted(context.Background(), testSnapshot(sessionID)))
	require.NoError(t, rec.OnSessionFinished(context.Background(), sessionID, pipeline.StateCompleted))
	store.calls = nil

	// A second finish finds no mapping and only closes the session row.
	require.NoError(t, rec.OnSessionFinished(context.Background(), sessionID, pipeline.StateCompleted))
	require.Len(t, store.calls, 1)
	assert.Equal(t, "CompleteSession", store.calls[0].name)
}

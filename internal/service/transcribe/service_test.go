package transcribe

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

type fakeStore struct {
	saved   []model.Transcript
	saveErr error
}

func (s *fakeStore) SaveTranscript(_ context.Context, t model.Transcript) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, t)
	return nil
}

func testInput() pipeline.FinalizeInput {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return pipeline.FinalizeInput{
		SessionID:    uuid.New(),
		Prompt:       "an online shop with a cart",
		DatabaseType: "PostgreSQL",
		Mode:         model.ModeSimulated,
		Content: map[model.TaskID]string{
			model.TaskRequirements: "reqs",
			model.TaskSchema:       "schema",
		},
		Insights: []model.InsightEntry{
			{Agent: "Coordinator", Message: "started", Timestamp: started},
		},
		Tasks: []model.TaskSummary{
			{ID: model.TaskRequirements, Title: "Requirements Analysis", Status: model.TaskCompleted, Progress: 100},
		},
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
	}
}

func TestAssemble_DerivesTitleAndMetadata(t *testing.T) {
	svc := New(&fakeStore{}, slog.Default())
	in := testInput()

	out := svc.Assemble(in)

	assert.Equal(t, in.SessionID, out.ID)
	assert.Equal(t, "E-commerce Platform (PostgreSQL)", out.Title)
	assert.Equal(t, model.TranscriptCompleted, out.Status)
	assert.Equal(t, in.Content, out.GeneratedContent)
	assert.Equal(t, int64(42_000), out.Metadata.DurationMS)
	assert.Equal(t, len("reqs")+len("schema"), out.Metadata.ContentLength)
	assert.Equal(t, 1, out.Metadata.InsightCount)
	assert.Equal(t, model.ModeSimulated, out.Metadata.Mode)
	assert.False(t, out.Metadata.Partial)
	assert.Equal(t, in.FinishedAt, out.CreatedAt)
}

func TestAssemble_IsPure(t *testing.T) {
	svc := New(&fakeStore{}, slog.Default())
	in := testInput()
	assert.Equal(t, svc.Assemble(in), svc.Assemble(in))
}

func TestAssemble_PartialFlagCarried(t *testing.T) {
	svc := New(&fakeStore{}, slog.Default())
	in := testInput()
	in.Partial = true
	assert.True(t, svc.Assemble(in).Metadata.Partial)
}

func TestSave_StoresTranscript(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, slog.Default())
	transcript := svc.Assemble(testInput())

	require.NoError(t, svc.Save(context.Background(), transcript))
	require.Len(t, store.saved, 1)
	assert.Equal(t, transcript.ID, store.saved[0].ID)
}

func TestSave_PropagatesStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := New(&fakeStore{saveErr: boom}, slog.Default())

	err := svc.Save(context.Background(), svc.Assemble(testInput()))
	assert.ErrorIs(t, err, boom)
}

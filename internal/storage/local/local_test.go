package local

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTranscript(title string, createdAt time.Time, ownerID *string) model.Transcript {
	return model.Transcript{
		ID:           uuid.New(),
		Prompt:       "design " + title,
		DatabaseType: "PostgreSQL",
		Title:        title,
		GeneratedContent: map[model.TaskID]string{
			model.TaskSchema: "CREATE TABLE things ();",
		},
		Insights: []model.InsightEntry{
			{Agent: "Coordinator", Message: "started", Timestamp: createdAt},
		},
		Tasks: []model.TaskSummary{
			{ID: model.TaskSchema, Title: "Schema Design", Status: model.TaskCompleted, Progress: 100},
		},
		Status:    model.TranscriptCompleted,
		OwnerID:   ownerID,
		Metadata:  model.TranscriptMetadata{Mode: model.ModeSimulated},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testTranscript("Library System", time.Now().UTC().Truncate(time.Second), nil)
	require.NoError(t, s.SaveTranscript(ctx, want))

	got, err := s.GetTranscript(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.GeneratedContent, got.GeneratedContent)
	assert.Equal(t, want.Insights[0].Message, got.Insights[0].Message)
	assert.Equal(t, want.Tasks, got.Tasks)
	assert.Nil(t, got.OwnerID)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTranscript(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := testTranscript("Before", time.Now().UTC(), nil)
	require.NoError(t, s.SaveTranscript(ctx, tr))

	tr.Title = "After"
	tr.UpdatedAt = tr.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.SaveTranscript(ctx, tr))

	got, err := s.GetTranscript(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)

	list, err := s.ListTranscripts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1, "upsert must not duplicate")
}

func TestListNewestFirstScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alice := "alice"

	require.NoError(t, s.SaveTranscript(ctx, testTranscript("Old", base, &alice)))
	require.NoError(t, s.SaveTranscript(ctx, testTranscript("New", base.Add(time.Hour), &alice)))
	require.NoError(t, s.SaveTranscript(ctx, testTranscript("Anon", base, nil)))

	list, err := s.ListTranscripts(ctx, &alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New", list[0].Title)
	assert.Equal(t, "Old", list[1].Title)

	anon, err := s.ListTranscripts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, anon, 1, "nil owner sees only ownerless transcripts")
	assert.Equal(t, "Anon", anon[0].Title)
}

func TestDeleteTranscript(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := testTranscript("Doomed", time.Now().UTC(), nil)
	require.NoError(t, s.SaveTranscript(ctx, tr))
	require.NoError(t, s.DeleteTranscript(ctx, tr.ID))

	_, err := s.GetTranscript(ctx, tr.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTranscript(ctx, tr.ID), storage.ErrNotFound)
}

func TestSearchMatchesTitleAndPrompt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveTranscript(ctx, testTranscript("Library System", now, nil)))
	require.NoError(t, s.SaveTranscript(ctx, testTranscript("Fitness Tracker", now.Add(time.Second), nil)))

	byTitle, err := s.SearchTranscripts(ctx, "LIBRARY", nil)
	require.NoError(t, err)
	require.Len(t, byTitle, 1, "matching is case-insensitive")
	assert.Equal(t, "Library System", byTitle[0].Title)

	// The prompt is "design Fitness Tracker".
	byPrompt, err := s.SearchTranscripts(ctx, "design fitness", nil)
	require.NoError(t, err)
	require.Len(t, byPrompt, 1)

	none, err := s.SearchTranscripts(ctx, "blockchain", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEvictionKeepsNewestHundredPerOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	owner := "hoarder"

	for i := 0; i < 105; i++ {
		tr := testTranscript(fmt.Sprintf("Design %03d", i), base.Add(time.Duration(i)*time.Minute), &owner)
		require.NoError(t, s.SaveTranscript(ctx, tr))
	}

	list, err := s.ListTranscripts(ctx, &owner)
	require.NoError(t, err)
	require.Len(t, list, 100, "retention cap is 100 per owner")
	assert.Equal(t, "Design 104", list[0].Title, "the newest survives")
	assert.Equal(t, "Design 005", list[99].Title, "the oldest five were evicted")
}

func TestEvictionIsPerOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	alice, bob := "alice", "bob"

	for i := 0; i < 101; i++ {
		require.NoError(t, s.SaveTranscript(ctx, testTranscript(fmt.Sprintf("A %03d", i), base.Add(time.Duration(i)*time.Minute), &alice)))
	}
	require.NoError(t, s.SaveTranscript(ctx, testTranscript("B 000", base, &bob)))

	aliceList, err := s.ListTranscripts(ctx, &alice)
	require.NoError(t, err)
	assert.Len(t, aliceList, 100)

	bobList, err := s.ListTranscripts(ctx, &bob)
	require.NoError(t, err)
	assert.Len(t, bobList, 1, "one owner's overflow must not evict another's")
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

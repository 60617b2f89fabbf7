package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/model"
)

// ---- Test doubles --------------------------------------------------------

// mapSource serves fixed content per task id.
type mapSource map[model.TaskID]string

func (s mapSource) ContentFor(_ context.Context, id model.TaskID, _, _ string) (string, error) {
	content, ok := s[id]
	if !ok {
		return "", fmt.Errorf("no content for %q", id)
	}
	return content, nil
}

// failSource fails synthesis for one task and delegates the rest.
type failSource struct {
	failID model.TaskID
	next   ContentSource
}

func (s failSource) ContentFor(ctx context.Context, id model.TaskID, prompt, dbType string) (string, error) {
	if id == s.failID {
		return "", errors.New("backend unavailable")
	}
	return s.next.ContentFor(ctx, id, prompt, dbType)
}

// memPersister assembles transcripts in memory and can fail the first N
// save attempts.
type memPersister struct {
	mu        sync.Mutex
	saved     []model.Transcript
	failSaves int
	attempts  int
}

func (p *memPersister) Assemble(in FinalizeInput) model.Transcript {
	return model.Transcript{
		ID:               in.SessionID,
		Prompt:           in.Prompt,
		DatabaseType:     in.DatabaseType,
		Title:            "Test Transcript",
		GeneratedContent: in.Content,
		Insights:         in.Insights,
		Tasks:            in.Tasks,
		Status:           model.TranscriptCompleted,
		OwnerID:          in.OwnerID,
		Metadata: model.TranscriptMetadata{
			DurationMS:   in.FinishedAt.Sub(in.StartedAt).Milliseconds(),
			InsightCount: len(in.Insights),
			Mode:         in.Mode,
			Partial:      in.Partial,
		},
		CreatedAt: in.FinishedAt,
		UpdatedAt: in.FinishedAt,
	}
}

func (p *memPersister) Save(_ context.Context, t model.Transcript) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failSaves {
		return errors.New("store offline")
	}
	p.saved = append(p.saved, t)
	return nil
}

func (p *memPersister) savedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

func (p *memPersister) lastSaved() model.Transcript {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved[len(p.saved)-1]
}

// chanRecorder forwards hook invocations to channels so tests can wait on
// the async recorder goroutines.
type chanRecorder struct {
	started  chan Snapshot
	tasks    chan model.TaskSummary
	finished chan State
}

func newChanRecorder() *chanRecorder {
	return &chanRecorder{
		started:  make(chan Snapshot, 8),
		tasks:    make(chan model.TaskSummary, 8),
		finished: make(chan State, 8),
	}
}

func (r *chanRecorder) OnSessionStarted(_ context.Context, snap Snapshot) error {
	r.started <- snap
	return nil
}

func (r *chanRecorder) OnTaskCompleted(_ context.Context, _ uuid.UUID, _ int, task model.TaskSummary, _ string) error {
	r.tasks <- task
	return nil
}

func (r *chanRecorder) OnSessionFinished(_ context.Context, _ uuid.UUID, state State) error {
	r.finished <- state
	return nil
}

// ---- Helpers -------------------------------------------------------------

var twoTaskDefs = []model.TaskDefinition{
	{ID: "alpha", Title: "Alpha Stage", Agent: "Analyst", EstimatedSeconds: 4},
	{ID: "beta", Title: "Beta Stage", Agent: "Architect", EstimatedSeconds: 6},
}

var twoTaskContent = mapSource{
	"alpha": strings.Repeat("a", 20),
	"beta":  strings.Repeat("b", 10),
}

// newTestSession builds a manually driven session: no internal ticker, a
// fixed clock, and speed 100 (five runes per step).
func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.Prompt == "" {
		cfg.Prompt = "design a library catalog"
	}
	if cfg.Tasks == nil {
		cfg.Tasks = twoTaskDefs
	}
	if cfg.Source == nil {
		cfg.Source = twoTaskContent
	}
	if cfg.Persister == nil {
		cfg.Persister = &memPersister{}
	}
	if cfg.Speed == 0 {
		cfg.Speed = MaxSpeed
	}
	cfg.TickInterval = -1
	if cfg.Now == nil {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		cfg.Now = func() time.Time { return base }
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s
}

// drive steps the session until it reaches a terminal state.
func drive(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		select {
		case <-s.Done():
			return
		default:
		}
		s.step(context.Background())
	}
	t.Fatal("session did not finish within the step limit")
}

func recvState(t *testing.T, ch chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recorder hook")
		return ""
	}
}

// ---- Lifecycle -----------------------------------------------------------

func TestSession_RunsToCompletion(t *testing.T) {
	p := &memPersister{}
	s := newTestSession(t, Config{Persister: p})

	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	snap := s.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 100.0, snap.Overall)
	assert.False(t, snap.Playing)

	require.Equal(t, 1, p.savedCount())
	saved := p.lastSaved()
	assert.Equal(t, strings.Repeat("a", 20), saved.GeneratedContent["alpha"])
	assert.Equal(t, strings.Repeat("b", 10), saved.GeneratedContent["beta"])
	assert.False(t, saved.Metadata.Partial)
	require.Len(t, saved.Tasks, 2)
	for _, ts := range saved.Tasks {
		assert.Equal(t, model.TaskCompleted, ts.Status)
	}
}

func TestSession_StartTwiceFails(t *testing.T) {
	s := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidTransition)
}

func TestSession_StopBeforeStartFails(t *testing.T) {
	s := newTestSession(t, Config{})
	assert.ErrorIs(t, s.Stop(context.Background()), ErrInvalidTransition)
}

func TestSession_DefaultsDatabaseTypeAndMode(t *testing.T) {
	s := newTestSession(t, Config{DatabaseType: "postgres"})
	snap := s.Snapshot()
	assert.Equal(t, "PostgreSQL", snap.DatabaseType)
	assert.Equal(t, model.ModeSimulated, snap.Mode)
	assert.Equal(t, StateIdle, snap.State)
}

func TestNewSession_RejectsBlankPrompt(t *testing.T) {
	_, err := NewSession(Config{
		Prompt:    "   ",
		Source:    twoTaskContent,
		Persister: &memPersister{},
	})
	require.Error(t, err)
}

// ---- Reveal semantics ----------------------------------------------------

func TestSession_DisplayedGrowsAsPrefix(t *testing.T) {
	s := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background()))

	prev := ""
	for {
		snap := s.Snapshot()
		if snap.State != StateRunning {
			break
		}
		displayed := snap.Displayed["alpha"] + snap.Displayed["beta"]
		require.True(t, strings.HasPrefix(displayed, prev),
			"revealed content must only grow, never rewrite")
		prev = displayed
		s.step(context.Background())
	}

	snap := s.Snapshot()
	assert.Equal(t, twoTaskContent["alpha"], snap.Displayed["alpha"])
	assert.Equal(t, twoTaskContent["beta"], snap.Displayed["beta"])
}

func TestSession_DeltasConcatenateToFullContent(t *testing.T) {
	s := newTestSession(t, Config{})
	events, cancel := s.Subscribe(1024)
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	got := make(map[model.TaskID]*strings.Builder)
	for _, ev := range drain(events) {
		if ev.Kind != EventContentDelta {
			continue
		}
		b, ok := got[ev.TaskID]
		if !ok {
			b = &strings.Builder{}
			got[ev.TaskID] = b
		}
		b.WriteString(ev.Delta)
	}
	assert.Equal(t, twoTaskContent["alpha"], got["alpha"].String())
	assert.Equal(t, twoTaskContent["beta"], got["beta"].String())
}

// drain collects buffered events until a terminal event or an empty channel.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
			if ev.Kind == EventSessionCompleted || ev.Kind == EventSessionErrored {
				return out
			}
		default:
			return out
		}
	}
}

func TestSession_OneActiveTaskAndDeclarationOrder(t *testing.T) {
	s := newTestSession(t, Config{})
	events, cancel := s.Subscribe(1024)
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	for {
		snap := s.Snapshot()
		if snap.State != StateRunning {
			break
		}
		active := 0
		for _, task := range snap.Tasks {
			if task.Status == model.TaskActive {
				active++
			}
		}
		require.LessOrEqual(t, active, 1, "at most one task may be active")
		s.step(context.Background())
	}

	// Lifecycle events interleave strictly: alpha starts and completes
	// before beta starts.
	var order []string
	for _, ev := range drain(events) {
		switch ev.Kind {
		case EventTaskStarted, EventTaskCompleted:
			order = append(order, fmt.Sprintf("%s:%s", ev.TaskID, ev.Kind))
		}
	}
	assert.Equal(t, []string{
		"alpha:task_started",
		"alpha:task_completed",
		"beta:task_started",
		"beta:task_completed",
	}, order)
}

// ---- Pause / resume / speed ----------------------------------------------

func TestSession_PauseFreezesPosition(t *testing.T) {
	s := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background()))

	s.step(context.Background())
	before := s.Snapshot().Displayed["alpha"]
	require.NotEmpty(t, before)

	s.Pause()
	for i := 0; i < 5; i++ {
		s.step(context.Background())
	}
	assert.Equal(t, before, s.Snapshot().Displayed["alpha"], "ticks while paused must not advance")

	s.Resume()
	s.step(context.Background())
	after := s.Snapshot().Displayed["alpha"]
	assert.True(t, strings.HasPrefix(after, before), "resume continues from the prior position")
	assert.Greater(t, len(after), len(before))

	drive(t, s)
	assert.Equal(t, twoTaskContent["alpha"], s.Snapshot().Displayed["alpha"],
		"no content is skipped or repeated across a pause")
}

func TestSession_PauseOutsideRunningIsNoop(t *testing.T) {
	s := newTestSession(t, Config{})
	s.Pause()
	assert.Equal(t, StateIdle, s.Snapshot().State)
	s.Resume()
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSession_SetSpeedClamps(t *testing.T) {
	s := newTestSession(t, Config{})
	assert.Equal(t, MaxSpeed, s.SetSpeed(500))
	assert.Equal(t, MinSpeed, s.SetSpeed(1))
	assert.Equal(t, DefaultSpeed, s.SetSpeed(0))
	assert.Equal(t, 55, s.SetSpeed(55))
}

// ---- Early stop ----------------------------------------------------------

func TestSession_StopExportsPartialPrefix(t *testing.T) {
	p := &memPersister{}
	s := newTestSession(t, Config{Persister: p})
	require.NoError(t, s.Start(context.Background()))

	// Two steps at speed 100 reveal ten of alpha's twenty runes.
	s.step(context.Background())
	s.step(context.Background())
	require.NoError(t, s.Stop(context.Background()))

	<-s.Done()
	require.Equal(t, 1, p.savedCount())
	saved := p.lastSaved()
	assert.True(t, saved.Metadata.Partial)
	assert.Equal(t, strings.Repeat("a", 10), saved.GeneratedContent["alpha"],
		"the active task contributes exactly its revealed prefix")
	_, hasBeta := saved.GeneratedContent["beta"]
	assert.False(t, hasBeta, "never-started tasks do not appear in the transcript")
}

func TestSession_StopAfterCompletionIsNoop(t *testing.T) {
	p := &memPersister{}
	s := newTestSession(t, Config{Persister: p})
	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, p.savedCount(), "stop on a finished session must not save again")
}

// ---- Failure paths -------------------------------------------------------

func TestSession_SynthesisFailureErrorsSession(t *testing.T) {
	s := newTestSession(t, Config{
		Source: failSource{failID: "beta", next: twoTaskContent},
	})
	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	snap := s.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Equal(t, model.TaskErrored, snap.Tasks[1].Status)
	assert.Equal(t, model.TaskCompleted, snap.Tasks[0].Status,
		"already finished tasks keep their state")

	var synthErr *SynthesisError
	require.ErrorAs(t, s.Err(), &synthErr)
	assert.Equal(t, model.TaskID("beta"), synthErr.TaskID)
}

func TestSession_SynthesisFailureOnFirstTask(t *testing.T) {
	s := newTestSession(t, Config{
		Source: failSource{failID: "alpha", next: twoTaskContent},
	})
	require.NoError(t, s.Start(context.Background()))

	<-s.Done()
	assert.Equal(t, StateErrored, s.Snapshot().State)
}

func TestSession_SaveFailureThenRetry(t *testing.T) {
	p := &memPersister{failSaves: 1}
	s := newTestSession(t, Config{Persister: p})
	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	// The first save attempt failed: the session is errored but the
	// transcript is retained in memory.
	require.Equal(t, StateErrored, s.Snapshot().State)
	var perr *PersistenceError
	require.ErrorAs(t, s.Err(), &perr)
	transcript, ok := s.Transcript()
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 20), transcript.GeneratedContent["alpha"])

	require.NoError(t, s.RetrySave(context.Background()))
	assert.Equal(t, StateCompleted, s.Snapshot().State)
	assert.Equal(t, 1, p.savedCount())
}

func TestSession_RetrySaveKeepsFailingStaysErrored(t *testing.T) {
	p := &memPersister{failSaves: 3}
	s := newTestSession(t, Config{Persister: p})
	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	var perr *PersistenceError
	require.ErrorAs(t, s.RetrySave(context.Background()), &perr)
	assert.Equal(t, StateErrored, s.Snapshot().State)
}

func TestSession_RetrySaveWithoutFailureFails(t *testing.T) {
	s := newTestSession(t, Config{})
	require.NoError(t, s.Start(context.Background()))
	drive(t, s)
	assert.ErrorIs(t, s.RetrySave(context.Background()), ErrInvalidTransition)
}

// ---- Insights ------------------------------------------------------------

func TestSession_InsightLogIsAppendOnlyAndOrdered(t *testing.T) {
	s := newTestSession(t, Config{Prompt: "design a shop"})
	require.NoError(t, s.Start(context.Background()))

	first := s.Snapshot().Insights
	require.NotEmpty(t, first)
	assert.Equal(t, "Coordinator", first[0].Agent)
	assert.Contains(t, first[0].Message, "design a shop")

	drive(t, s)
	final := s.Snapshot().Insights
	require.GreaterOrEqual(t, len(final), len(first))
	for i, entry := range first {
		assert.Equal(t, entry.Message, final[i].Message, "earlier entries never change")
	}
	assert.Contains(t, final[len(final)-1].Message, "saved")
}

// ---- Recorder hooks ------------------------------------------------------

func TestSession_RecorderSeesLifecycle(t *testing.T) {
	rec := newChanRecorder()
	s := newTestSession(t, Config{Recorder: rec})
	require.NoError(t, s.Start(context.Background()))

	select {
	case snap := <-rec.started:
		assert.Equal(t, StateRunning, snap.State)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session-started hook")
	}

	drive(t, s)

	var completed []model.TaskID
	for len(completed) < 2 {
		select {
		case task := <-rec.tasks:
			completed = append(completed, task.ID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for task hooks, got %v", completed)
		}
	}
	assert.Equal(t, []model.TaskID{"alpha", "beta"}, completed)
	assert.Equal(t, StateCompleted, recvState(t, rec.finished))
}

// ---- Subscriptions -------------------------------------------------------

func TestSession_SubscribeCancelIsIdempotent(t *testing.T) {
	s := newTestSession(t, Config{})
	_, cancel := s.Subscribe(4)
	cancel()
	cancel()
}

func TestSession_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := newTestSession(t, Config{})
	events, cancel := s.Subscribe(1)
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	drive(t, s)

	// The one-slot buffer overflowed long ago; the session still finished.
	assert.Equal(t, StateCompleted, s.Snapshot().State)
	assert.NotEmpty(t, drain(events))
}

// Package pipeline implements the staged streaming-generation engine.
//
// One Session owns the full run state for one pipeline: the task graph,
// the per-task content buffers, the insight log, and the event fan-out.
// Sessions are constructed per run and discarded on completion; there is
// no process-wide session state. All mutation is serialized through the
// session mutex; the tick loop is the only writer during a run, so ticks
// never overlap.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/model"
)

// ContentSource produces the full text for one task. The simulated source
// is pure and instantaneous; backend-driven sources may do network I/O and
// should be wrapped with a timeout by the caller.
type ContentSource interface {
	ContentFor(ctx context.Context, taskID model.TaskID, prompt, databaseType string) (string, error)
}

// FinalizeInput is everything the persister needs to build a transcript.
type FinalizeInput struct {
	SessionID    uuid.UUID
	Prompt       string
	DatabaseType string
	OwnerID      *string
	Mode         model.GenerationMode
	Content      map[model.TaskID]string
	Insights     []model.InsightEntry
	Tasks        []model.TaskSummary
	StartedAt    time.Time
	FinishedAt   time.Time
	Partial      bool
}

// Persister assembles and stores the final transcript. Assemble is pure so
// the save step alone can be retried after a store failure.
type Persister interface {
	Assemble(input FinalizeInput) model.Transcript
	Save(ctx context.Context, t model.Transcript) error
}

// Recorder mirrors streaming output into durable project/session/query
// records as the pipeline runs. This auto-save path is parallel to, and
// independent of, the final transcript: recorder failures are logged and
// never halt the pipeline. Methods run on hook goroutines with their own
// timeout and must not block indefinitely.
type Recorder interface {
	OnSessionStarted(ctx context.Context, snap Snapshot) error
	OnTaskCompleted(ctx context.Context, sessionID uuid.UUID, seq int, task model.TaskSummary, content string) error
	OnSessionFinished(ctx context.Context, sessionID uuid.UUID, state State) error
}

// recorderTimeout bounds each recorder hook invocation.
const recorderTimeout = 10 * time.Second

// Config holds everything needed to construct a Session.
type Config struct {
	SessionID    uuid.UUID
	Prompt       string
	DatabaseType string
	OwnerID      *string
	Mode         model.GenerationMode
	Tasks        []model.TaskDefinition
	Source       ContentSource
	Persister    Persister
	Recorder     Recorder // optional; nil disables the auto-save path
	Logger       *slog.Logger
	// Speed is the initial reveal rate in characters per second,
	// clamped to [MinSpeed, MaxSpeed]. Zero means DefaultSpeed.
	Speed int
	// TickInterval overrides the reveal period. Zero means TickInterval.
	// Negative disables the internal ticker; the owner drives step()
	// directly (used by tests).
	TickInterval time.Duration
	// Now overrides the clock (used by tests).
	Now func() time.Time
}

// Session is one pipeline run: Idle → Running → {Completed, Errored}.
type Session struct {
	id        uuid.UUID
	prompt    string
	dbType    string
	ownerID   *string
	mode      model.GenerationMode
	source    ContentSource
	persister Persister
	recorder  Recorder
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	graph       *Graph
	buffers     map[model.TaskID]*ContentBuffer
	taskIdx     int
	playing     bool
	speed       int
	insights    []model.InsightEntry
	subscribers []subscriber
	startedAt   time.Time
	runErr      error
	transcript  *model.Transcript
	saveErr     error

	stopLoop chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSession builds an idle session. Call Start to run it.
func NewSession(cfg Config) (*Session, error) {
	if err := model.ValidatePrompt(cfg.Prompt); err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("pipeline: content source is required")
	}
	if cfg.Persister == nil {
		return nil, fmt.Errorf("pipeline: persister is required")
	}
	defs := cfg.Tasks
	if len(defs) == 0 {
		defs = model.DefaultTaskDefinitions(false)
	}
	graph, err := NewGraph(defs)
	if err != nil {
		return nil, err
	}

	id := cfg.SessionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.TickInterval
	if interval == 0 {
		interval = TickInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	mode := cfg.Mode
	if mode == "" {
		mode = model.ModeSimulated
	}

	return &Session{
		id:        id,
		prompt:    cfg.Prompt,
		dbType:    model.NormalizeDatabaseType(cfg.DatabaseType),
		ownerID:   cfg.OwnerID,
		mode:      mode,
		source:    cfg.Source,
		persister: cfg.Persister,
		recorder:  cfg.Recorder,
		logger:    logger,
		interval:  interval,
		now:       now,
		state:     StateIdle,
		graph:     graph,
		buffers:   make(map[model.TaskID]*ContentBuffer),
		taskIdx:   -1,
		speed:     clampSpeed(cfg.Speed),
		stopLoop:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start transitions Idle → Running: activates the first task, synthesizes
// its content, and begins ticking. Fails with ErrInvalidTransition if the
// session has already started.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.state)
	}
	s.state = StateRunning
	s.playing = true
	s.startedAt = s.now()

	s.appendInsightLocked("Coordinator", fmt.Sprintf("Starting %s design for: %s", s.dbType, truncate(s.prompt, 120)))

	if err := s.activateLocked(ctx, 0); err != nil {
		// activateLocked already moved the session to Errored.
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hook(func(hctx context.Context) error {
		if s.recorder == nil {
			return nil
		}
		return s.recorder.OnSessionStarted(hctx, snap)
	}, "session started")

	if s.interval > 0 {
		go s.run(ctx)
	}
	return nil
}

// run is the tick loop. It exits when the session reaches a terminal
// state or ctx is cancelled; cancellation is treated as a user-requested
// early export so revealed content is not lost.
func (s *Session) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
			_ = s.Stop(saveCtx)
			cancel()
			return
		case <-s.stopLoop:
			return
		case <-ticker.C:
			s.step(ctx)
		}
	}
}

// step advances the active task's buffer by one tick's worth of runes and
// performs all follow-on bookkeeping: progress, subtasks, task completion,
// next-task activation, and finalization after the last task.
func (s *Session) step(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateRunning || !s.playing {
		s.mu.Unlock()
		return
	}

	task := s.graph.TaskAt(s.taskIdx)
	buf := s.buffers[task.ID]
	if buf == nil {
		s.mu.Unlock()
		return
	}

	if delta := buf.Advance(charsPerTick(s.speed)); delta != "" {
		s.emit(Event{Kind: EventContentDelta, TaskID: task.ID, Delta: delta, Progress: buf.Progress()})
	}
	if err := s.graph.AdvanceProgress(task.ID, buf.Progress()); err != nil {
		// Monotonic by construction; a failure here is an engine bug.
		s.logger.Error("pipeline: progress update rejected", "session_id", s.id, "task_id", task.ID, "error", err)
	}
	s.emit(Event{Kind: EventTaskProgress, TaskID: task.ID, Progress: buf.Progress(), Overall: s.overallLocked(), ETA: s.etaLocked()})

	if !buf.Exhausted() {
		s.mu.Unlock()
		return
	}

	// Buffer exhausted: completion bookkeeping happens here, exactly once,
	// not in the reveal path above.
	s.completeActiveLocked(ctx)
	s.mu.Unlock()
}

// completeActiveLocked marks the active task done, emits its insight,
// mirrors it to the recorder, and moves on to the next task or finalizes.
func (s *Session) completeActiveLocked(ctx context.Context) {
	task := s.graph.TaskAt(s.taskIdx)
	if err := s.graph.Complete(task.ID); err != nil {
		s.logger.Error("pipeline: complete rejected", "session_id", s.id, "task_id", task.ID, "error", err)
		return
	}
	seq := s.taskIdx
	s.appendInsightLocked(task.Agent, fmt.Sprintf("%s finished.", task.Title))
	s.emit(Event{Kind: EventTaskCompleted, TaskID: task.ID, Progress: 100, Overall: s.overallLocked()})

	summary := model.TaskSummary{ID: task.ID, Title: task.Title, Agent: task.Agent, Status: model.TaskCompleted, Progress: 100}
	content := s.buffers[task.ID].Full()
	s.hook(func(hctx context.Context) error {
		if s.recorder == nil {
			return nil
		}
		return s.recorder.OnTaskCompleted(hctx, s.id, seq, summary, content)
	}, "task completed")

	next := s.taskIdx + 1
	if next < s.graph.Len() {
		_ = s.activateLocked(ctx, next)
		return
	}
	s.finalizeLocked(ctx, false)
}

// activateLocked activates the task at index i and synthesizes its
// content. A synthesis failure moves the session to Errored.
func (s *Session) activateLocked(ctx context.Context, i int) error {
	task := s.graph.TaskAt(i)
	if err := s.graph.Activate(task.ID); err != nil {
		s.errorLocked(task.ID, err)
		return err
	}
	s.taskIdx = i

	content, err := s.source.ContentFor(ctx, task.ID, s.prompt, s.dbType)
	if err != nil {
		synthErr := &SynthesisError{TaskID: task.ID, Err: err}
		_ = s.graph.Fail(task.ID)
		s.errorLocked(task.ID, synthErr)
		return synthErr
	}
	s.buffers[task.ID] = NewContentBuffer(content)

	s.appendInsightLocked(task.Agent, fmt.Sprintf("%s started.", task.Title))
	s.emit(Event{Kind: EventTaskStarted, TaskID: task.ID, Overall: s.overallLocked(), ETA: s.etaLocked()})
	return nil
}

// finalizeLocked assembles the transcript and saves it. For an early stop,
// the still-active task contributes only its revealed prefix and the
// transcript is marked partial. A store failure moves the session to
// Errored with the transcript retained in memory for RetrySave.
func (s *Session) finalizeLocked(ctx context.Context, partial bool) {
	content := make(map[model.TaskID]string, len(s.buffers))
	for id, buf := range s.buffers {
		if partial {
			content[id] = buf.Displayed()
		} else {
			content[id] = buf.Full()
		}
	}

	insights := make([]model.InsightEntry, len(s.insights))
	copy(insights, s.insights)

	t := s.persister.Assemble(FinalizeInput{
		SessionID:    s.id,
		Prompt:       s.prompt,
		DatabaseType: s.dbType,
		OwnerID:      s.ownerID,
		Mode:         s.mode,
		Content:      content,
		Insights:     insights,
		Tasks:        s.graph.Summaries(),
		StartedAt:    s.startedAt,
		FinishedAt:   s.now(),
		Partial:      partial,
	})
	s.transcript = &t

	if err := s.persister.Save(ctx, t); err != nil {
		s.saveErr = &PersistenceError{Err: err}
		s.appendInsightLocked("Coordinator",
			"Saving the transcript failed. Your generated content is not lost; it is kept in memory and the save can be retried.")
		s.terminalLocked(StateErrored, s.saveErr)
		return
	}

	s.appendInsightLocked("Coordinator", fmt.Sprintf("Transcript %q saved.", t.Title))
	s.terminalLocked(StateCompleted, nil)
}

// errorLocked moves the session to the terminal Errored state.
func (s *Session) errorLocked(taskID model.TaskID, err error) {
	s.runErr = err
	s.appendInsightLocked("Coordinator", fmt.Sprintf("Generation failed during %s: %v", taskID, err))
	s.terminalLocked(StateErrored, err)
}

// terminalLocked performs the shared terminal-state transition.
func (s *Session) terminalLocked(state State, err error) {
	s.state = state
	s.playing = false
	switch state {
	case StateCompleted:
		s.emit(Event{Kind: EventSessionCompleted, Overall: 100})
	case StateErrored:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		s.emit(Event{Kind: EventSessionErrored, Error: msg})
	}

	s.hook(func(hctx context.Context) error {
		if s.recorder == nil {
			return nil
		}
		return s.recorder.OnSessionFinished(hctx, s.id, state)
	}, "session finished")

	s.stopOnce.Do(func() { close(s.stopLoop) })
	close(s.done)
}

// Pause stops advancement; buffers retain their position. Ticks are
// no-ops while paused.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || !s.playing {
		return
	}
	s.playing = false
	s.emit(Event{Kind: EventSessionPaused})
}

// Resume continues from the exact prior position; no content is
// re-synthesized or skipped.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.playing {
		return
	}
	s.playing = true
	s.emit(Event{Kind: EventSessionResumed})
}

// SetSpeed adjusts the reveal rate, taking effect on the next tick.
// Out-of-range values are clamped.
func (s *Session) SetSpeed(speed int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = clampSpeed(speed)
	return s.speed
}

// Stop forces an immediate early export: the transcript is persisted with
// whatever content has been revealed so far and marked partial. Both this
// path and normal completion converge on the persister.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCompleted, StateErrored:
		return nil
	case StateIdle:
		return fmt.Errorf("%w: session has not started", ErrInvalidTransition)
	}
	s.finalizeLocked(ctx, true)
	if s.saveErr != nil {
		return s.saveErr
	}
	return nil
}

// RetrySave retries the save step alone after a persistence failure.
// Generation state is untouched; on success the session moves to
// Completed.
func (s *Session) RetrySave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateErrored || s.transcript == nil || s.saveErr == nil {
		return fmt.Errorf("%w: no failed save to retry", ErrInvalidTransition)
	}
	if err := s.persister.Save(ctx, *s.transcript); err != nil {
		s.saveErr = &PersistenceError{Err: err}
		return s.saveErr
	}
	s.saveErr = nil
	s.state = StateCompleted
	s.appendInsightLocked("Coordinator", fmt.Sprintf("Transcript %q saved.", s.transcript.Title))
	s.emit(Event{Kind: EventSessionCompleted, Overall: 100})
	return nil
}

// Err returns the error that moved the session to Errored, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.runErr
}

// Transcript returns the assembled transcript once the session has
// finalized (including after a failed save).
func (s *Session) Transcript() (model.Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == nil {
		return model.Transcript{}, false
	}
	return *s.transcript, true
}

// Snapshot returns a read-only copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	displayed := make(map[model.TaskID]string, len(s.buffers))
	for id, buf := range s.buffers {
		displayed[id] = buf.Displayed()
	}
	insights := make([]model.InsightEntry, len(s.insights))
	copy(insights, s.insights)

	errMsg := ""
	if s.runErr != nil {
		errMsg = s.runErr.Error()
	} else if s.saveErr != nil {
		errMsg = s.saveErr.Error()
	}

	return Snapshot{
		SessionID:    s.id,
		State:        s.state,
		Prompt:       s.prompt,
		DatabaseType: s.dbType,
		Mode:         s.mode,
		OwnerID:      s.ownerID,
		Playing:      s.playing,
		Speed:        s.speed,
		TaskIndex:    s.taskIdx,
		Tasks:        s.graph.Tasks(),
		Insights:     insights,
		Displayed:    displayed,
		Overall:      s.overallLocked(),
		ETA:          s.etaLocked(),
		StartedAt:    s.startedAt,
		Error:        errMsg,
	}
}

// overallLocked is the whole-pipeline progress: each task contributes an
// equal share.
func (s *Session) overallLocked() float64 {
	n := s.graph.Len()
	total := 0.0
	for _, t := range s.graph.Tasks() {
		total += t.Progress
	}
	return total / float64(n)
}

// etaLocked estimates seconds remaining: the active buffer's unrevealed
// runes at the current speed, plus the planning hints for pending tasks.
// A hint, not a promise.
func (s *Session) etaLocked() float64 {
	eta := 0.0
	for _, t := range s.graph.Tasks() {
		switch t.Status {
		case model.TaskActive:
			if buf := s.buffers[t.ID]; buf != nil {
				eta += float64(buf.Remaining()) / float64(s.speed)
			}
		case model.TaskPending:
			eta += float64(t.EstimatedSeconds)
		}
	}
	return eta
}

func (s *Session) appendInsightLocked(agent, message string) {
	entry := model.InsightEntry{Agent: agent, Message: message, Timestamp: s.now()}
	s.insights = append(s.insights, entry)
	s.emit(Event{Kind: EventInsightAdded, Insight: &entry})
}

// hook runs a recorder callback on its own goroutine with a bounded
// timeout; failures are logged, never propagated to the pipeline.
func (s *Session) hook(fn func(context.Context) error, what string) {
	if s.recorder == nil {
		return
	}
	logger := s.logger
	id := s.id
	go func() {
		hctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		defer cancel()
		if err := fn(hctx); err != nil {
			logger.Warn("pipeline: recorder hook failed", "hook", what, "session_id", id, "error", err)
		}
	}()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/ashita-ai/sekkei/internal/model"
)

// ErrInvalidTransition is returned when an operation is attempted on a task
// or session in a state that does not permit it (e.g. activating a second
// task while one is active). This is a programming-error class: correct
// engine logic never triggers it, but the graph checks defensively.
var ErrInvalidTransition = errors.New("pipeline: invalid transition")

// ErrProgressRegression is returned when a task's progress is asked to move
// backward. Backward progress caused visible flicker in earlier UIs, so the
// graph rejects it.
var ErrProgressRegression = errors.New("pipeline: progress regression")

// ErrUnknownTask is returned for task ids not present in the graph.
var ErrUnknownTask = errors.New("pipeline: unknown task")

// SynthesisError reports that content generation failed for a task.
// The pipeline does not auto-retry: the session halts in the errored state
// and the failure is surfaced to the user.
type SynthesisError struct {
	TaskID model.TaskID
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("pipeline: synthesis failed for task %q: %v", e.TaskID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// PersistenceError reports that saving the final transcript failed.
// Generation succeeded: the assembled transcript is retained in memory and
// the save step alone can be retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("pipeline: transcript save failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

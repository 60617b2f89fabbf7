package pipeline

import (
	"fmt"

	"github.com/ashita-ai/sekkei/internal/model"
)

// Graph holds the ordered task list for one session and enforces the task
// state machine: pending → active → completed, with error reachable from
// active. At most one task is active at any time; tasks before it are
// completed, tasks after it are pending.
//
// Graph is not safe for concurrent use. The owning session serializes all
// mutation (see Session).
type Graph struct {
	tasks []model.Task
	index map[model.TaskID]int
	// active is the index of the active task, or -1.
	active int
}

// NewGraph builds a graph with all tasks pending, progress 0.
func NewGraph(defs []model.TaskDefinition) (*Graph, error) {
	if err := model.ValidateTaskDefinitions(defs); err != nil {
		return nil, err
	}

	g := &Graph{
		tasks:  make([]model.Task, len(defs)),
		index:  make(map[model.TaskID]int, len(defs)),
		active: -1,
	}
	for i, d := range defs {
		subtasks := make([]model.Subtask, len(d.Subtasks))
		for j, title := range d.Subtasks {
			subtasks[j] = model.Subtask{
				ID:     fmt.Sprintf("%s/%d", d.ID, j+1),
				Title:  title,
				Status: model.TaskPending,
			}
		}
		g.tasks[i] = model.Task{
			ID:               d.ID,
			Title:            d.Title,
			Agent:            d.Agent,
			Status:           model.TaskPending,
			EstimatedSeconds: d.EstimatedSeconds,
			Subtasks:         subtasks,
		}
		g.index[d.ID] = i
	}
	return g, nil
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Activate transitions the given pending task to active. Fails with
// ErrInvalidTransition if another task is already active or the task is
// not pending.
func (g *Graph) Activate(id model.TaskID) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	if g.active >= 0 {
		return fmt.Errorf("%w: task %q is already active", ErrInvalidTransition, g.tasks[g.active].ID)
	}
	if g.tasks[i].Status != model.TaskPending {
		return fmt.Errorf("%w: cannot activate task %q in status %q", ErrInvalidTransition, id, g.tasks[i].Status)
	}
	g.tasks[i].Status = model.TaskActive
	if len(g.tasks[i].Subtasks) > 0 {
		g.tasks[i].Subtasks[0].Status = model.TaskActive
	}
	g.active = i
	return nil
}

// AdvanceProgress sets the active task's progress, clamped to [0,100].
// Progress must be monotonically non-decreasing for a given task: backward
// movement fails with ErrProgressRegression. Subtasks complete as progress
// crosses their share of the task.
func (g *Graph) AdvanceProgress(id model.TaskID, percent float64) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	t := &g.tasks[i]
	if t.Status != model.TaskActive {
		return fmt.Errorf("%w: cannot advance task %q in status %q", ErrInvalidTransition, id, t.Status)
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < t.Progress {
		return fmt.Errorf("%w: task %q progress %.1f → %.1f", ErrProgressRegression, id, t.Progress, percent)
	}
	t.Progress = percent
	g.updateSubtasks(t)
	return nil
}

// updateSubtasks marks subtasks active/completed as the parent's progress
// crosses their thresholds. Subtask j of n completes at (j+1)/n * 100.
func (g *Graph) updateSubtasks(t *model.Task) {
	n := len(t.Subtasks)
	for j := range t.Subtasks {
		st := &t.Subtasks[j]
		lower := float64(j) / float64(n) * 100
		upper := float64(j+1) / float64(n) * 100
		switch {
		case t.Progress >= upper:
			st.Status = model.TaskCompleted
			st.Progress = 100
		case t.Progress > lower:
			st.Status = model.TaskActive
			st.Progress = (t.Progress - lower) / (upper - lower) * 100
		}
	}
}

// Complete transitions the active task to completed with progress 100.
// The task must currently be active.
func (g *Graph) Complete(id model.TaskID) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	if g.tasks[i].Status != model.TaskActive {
		return fmt.Errorf("%w: cannot complete task %q in status %q", ErrInvalidTransition, id, g.tasks[i].Status)
	}
	g.tasks[i].Status = model.TaskCompleted
	g.tasks[i].Progress = 100
	for j := range g.tasks[i].Subtasks {
		g.tasks[i].Subtasks[j].Status = model.TaskCompleted
		g.tasks[i].Subtasks[j].Progress = 100
	}
	g.active = -1
	return nil
}

// Fail transitions the active task to the terminal error state.
func (g *Graph) Fail(id model.TaskID) error {
	i, ok := g.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, id)
	}
	if g.tasks[i].Status != model.TaskActive {
		return fmt.Errorf("%w: cannot fail task %q in status %q", ErrInvalidTransition, id, g.tasks[i].Status)
	}
	g.tasks[i].Status = model.TaskErrored
	g.active = -1
	return nil
}

// Active returns the currently active task, if any.
func (g *Graph) Active() (model.Task, bool) {
	if g.active < 0 {
		return model.Task{}, false
	}
	return cloneTask(g.tasks[g.active]), true
}

// Task returns a copy of the task with the given id.
func (g *Graph) Task(id model.TaskID) (model.Task, bool) {
	i, ok := g.index[id]
	if !ok {
		return model.Task{}, false
	}
	return cloneTask(g.tasks[i]), true
}

// TaskAt returns a copy of the task at position i in declaration order.
func (g *Graph) TaskAt(i int) model.Task {
	return cloneTask(g.tasks[i])
}

// Tasks returns a deep copy of all tasks in declaration order.
func (g *Graph) Tasks() []model.Task {
	out := make([]model.Task, len(g.tasks))
	for i, t := range g.tasks {
		out[i] = cloneTask(t)
	}
	return out
}

// Summaries returns the frozen per-task records for a transcript.
func (g *Graph) Summaries() []model.TaskSummary {
	out := make([]model.TaskSummary, len(g.tasks))
	for i, t := range g.tasks {
		out[i] = model.TaskSummary{
			ID:       t.ID,
			Title:    t.Title,
			Agent:    t.Agent,
			Status:   t.Status,
			Progress: t.Progress,
		}
	}
	return out
}

func cloneTask(t model.Task) model.Task {
	out := t
	out.Subtasks = make([]model.Subtask, len(t.Subtasks))
	copy(out.Subtasks, t.Subtasks)
	return out
}

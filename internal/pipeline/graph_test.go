package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/model"
)

func testDefs() []model.TaskDefinition {
	return []model.TaskDefinition{
		{ID: "alpha", Title: "Alpha", Agent: "A", EstimatedSeconds: 5, Subtasks: []string{"one", "two"}},
		{ID: "beta", Title: "Beta", Agent: "B", EstimatedSeconds: 3},
	}
}

func TestNewGraph_AllTasksPending(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	for _, task := range g.Tasks() {
		assert.Equal(t, model.TaskPending, task.Status)
		assert.Equal(t, 0.0, task.Progress)
	}
	_, active := g.Active()
	assert.False(t, active)
}

func TestNewGraph_RejectsDuplicateIDs(t *testing.T) {
	defs := []model.TaskDefinition{
		{ID: "alpha", Title: "Alpha"},
		{ID: "alpha", Title: "Alpha Again"},
	}
	_, err := NewGraph(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestGraph_ActivateSecondTaskFails(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)

	require.NoError(t, g.Activate("alpha"))
	err = g.Activate("beta")
	require.ErrorIs(t, err, ErrInvalidTransition)

	active, ok := g.Active()
	require.True(t, ok)
	assert.Equal(t, model.TaskID("alpha"), active.ID)
}

func TestGraph_ActivateUnknownTask(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	assert.ErrorIs(t, g.Activate("gamma"), ErrUnknownTask)
}

func TestGraph_CompleteRequiresActive(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	assert.ErrorIs(t, g.Complete("alpha"), ErrInvalidTransition)
}

func TestGraph_CompleteClearsActiveSlot(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)

	require.NoError(t, g.Activate("alpha"))
	require.NoError(t, g.Complete("alpha"))

	task, ok := g.Task("alpha")
	require.True(t, ok)
	assert.Equal(t, model.TaskCompleted, task.Status)
	assert.Equal(t, 100.0, task.Progress)
	for _, st := range task.Subtasks {
		assert.Equal(t, model.TaskCompleted, st.Status)
	}

	// The slot is free again for the next task.
	require.NoError(t, g.Activate("beta"))
}

func TestGraph_ProgressRegressionRejected(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)

	require.NoError(t, g.Activate("alpha"))
	require.NoError(t, g.AdvanceProgress("alpha", 60))
	assert.ErrorIs(t, g.AdvanceProgress("alpha", 40), ErrProgressRegression)

	task, _ := g.Task("alpha")
	assert.Equal(t, 60.0, task.Progress, "rejected update must not touch progress")
}

func TestGraph_ProgressClamped(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)

	require.NoError(t, g.Activate("alpha"))
	require.NoError(t, g.AdvanceProgress("alpha", 150))
	task, _ := g.Task("alpha")
	assert.Equal(t, 100.0, task.Progress)
}

func TestGraph_SubtasksTrackParentProgress(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	require.NoError(t, g.Activate("alpha"))

	// Two subtasks: the first completes at 50%, the second at 100%.
	task, _ := g.Task("alpha")
	require.Len(t, task.Subtasks, 2)
	assert.Equal(t, model.TaskActive, task.Subtasks[0].Status)
	assert.Equal(t, model.TaskPending, task.Subtasks[1].Status)

	require.NoError(t, g.AdvanceProgress("alpha", 50))
	task, _ = g.Task("alpha")
	assert.Equal(t, model.TaskCompleted, task.Subtasks[0].Status)

	require.NoError(t, g.AdvanceProgress("alpha", 75))
	task, _ = g.Task("alpha")
	assert.Equal(t, model.TaskActive, task.Subtasks[1].Status)
	assert.InDelta(t, 50.0, task.Subtasks[1].Progress, 0.001)
}

func TestGraph_FailMarksErrored(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	require.NoError(t, g.Activate("alpha"))
	require.NoError(t, g.Fail("alpha"))

	task, _ := g.Task("alpha")
	assert.Equal(t, model.TaskErrored, task.Status)
	_, active := g.Active()
	assert.False(t, active)
}

func TestGraph_TasksReturnsCopies(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)

	tasks := g.Tasks()
	tasks[0].Status = model.TaskCompleted
	tasks[0].Subtasks[0].Status = model.TaskCompleted

	task, _ := g.Task("alpha")
	assert.Equal(t, model.TaskPending, task.Status, "mutating a copy must not leak into the graph")
	assert.Equal(t, model.TaskPending, task.Subtasks[0].Status)
}

func TestGraph_SummariesFreezeState(t *testing.T) {
	g, err := NewGraph(testDefs())
	require.NoError(t, err)
	require.NoError(t, g.Activate("alpha"))
	require.NoError(t, g.Complete("alpha"))

	sums := g.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, model.TaskID("alpha"), sums[0].ID)
	assert.Equal(t, model.TaskCompleted, sums[0].Status)
	assert.Equal(t, model.TaskPending, sums[1].Status)
}

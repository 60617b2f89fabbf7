package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/model"
)

// countingBackend records how often Generate runs.
type countingBackend struct {
	calls   int
	results []StagedResult
	err     error
}

func (b *countingBackend) Generate(_ context.Context, _, _ string, _ []model.TaskID, _ ProgressFunc) ([]StagedResult, error) {
	b.calls++
	return b.results, b.err
}

func (b *countingBackend) Name() string { return "counting" }

func TestSource_GeneratesOnceAndStages(t *testing.T) {
	backend := &countingBackend{results: []StagedResult{
		{TaskID: model.TaskRequirements, Content: "reqs"},
		{TaskID: model.TaskSchema, Content: "schema"},
	}}
	src := NewSource(backend, []model.TaskID{model.TaskRequirements, model.TaskSchema}, nil)

	first, err := src.ContentFor(context.Background(), model.TaskRequirements, "p", "PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, "reqs", first)

	second, err := src.ContentFor(context.Background(), model.TaskSchema, "p", "PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, "schema", second)

	assert.Equal(t, 1, backend.calls, "the backend runs exactly once per session")
}

func TestSource_BackendErrorIsSticky(t *testing.T) {
	boom := errors.New("model offline")
	backend := &countingBackend{err: boom}
	src := NewSource(backend, []model.TaskID{model.TaskRequirements}, nil)

	_, err := src.ContentFor(context.Background(), model.TaskRequirements, "p", "PostgreSQL")
	assert.ErrorIs(t, err, boom)

	// Later tasks see the same failure without re-invoking the backend.
	_, err = src.ContentFor(context.Background(), model.TaskSchema, "p", "PostgreSQL")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, backend.calls)
}

func TestSource_MissingTaskContentFails(t *testing.T) {
	backend := &countingBackend{results: []StagedResult{
		{TaskID: model.TaskRequirements, Content: "reqs"},
	}}
	src := NewSource(backend, []model.TaskID{model.TaskRequirements, model.TaskSchema}, nil)

	_, err := src.ContentFor(context.Background(), model.TaskSchema, "p", "PostgreSQL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestSimulated_GeneratesAllTasksWithProgress(t *testing.T) {
	tasks := []model.TaskID{model.TaskRequirements, model.TaskSchema, model.TaskValidation}
	var progressed []model.TaskID
	results, err := NewSimulated().Generate(context.Background(), "an online shop", "PostgreSQL", tasks,
		func(p Progress) {
			if p.Complete {
				progressed = append(progressed, p.TaskID)
			}
		})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, tasks[i], r.TaskID, "results come back in task order")
		assert.NotEmpty(t, r.Content)
	}
	assert.Equal(t, tasks, progressed)
}

func TestNew_ProviderSelection(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "simulated", b.Name(), "no configuration means simulated")

	b, err = New(Config{OllamaBaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	b, err = New(Config{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	// Explicit provider beats auto-detection.
	b, err = New(Config{Provider: "simulated", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "simulated", b.Name())
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	require.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

package generate

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashita-ai/sekkei/internal/model"
)

// Source adapts a Backend to the pipeline's per-task content interface.
// The backend is invoked exactly once, on the first task's request; later
// tasks are served from the staged results. One Source serves one
// session and must not be shared.
type Source struct {
	backend    Backend
	tasks      []model.TaskID
	onProgress ProgressFunc

	once   sync.Once
	staged map[model.TaskID]string
	genErr error
}

// NewSource creates a per-session content source for the given task
// order. onProgress may be nil.
func NewSource(backend Backend, tasks []model.TaskID, onProgress ProgressFunc) *Source {
	return &Source{
		backend:    backend,
		tasks:      tasks,
		onProgress: onProgress,
	}
}

// ContentFor returns the staged content for one task, generating the
// whole session's output on first use.
func (s *Source) ContentFor(ctx context.Context, taskID model.TaskID, prompt, databaseType string) (string, error) {
	s.once.Do(func() {
		results, err := s.backend.Generate(ctx, prompt, databaseType, s.tasks, s.onProgress)
		if err != nil {
			s.genErr = err
			return
		}
		s.staged = make(map[model.TaskID]string, len(results))
		for _, r := range results {
			s.staged[r.TaskID] = r.Content
		}
	})
	if s.genErr != nil {
		return "", s.genErr
	}
	content, ok := s.staged[taskID]
	if !ok {
		return "", fmt.Errorf("generate: backend %s returned no content for task %q", s.backend.Name(), taskID)
	}
	return content, nil
}

package generate

import (
	"context"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/synth"
)

// Simulated produces deterministic content with no network access. It is
// the default backend and the one exercised by tests.
type Simulated struct {
	synth *synth.Synthesizer
}

func NewSimulated() *Simulated {
	return &Simulated{synth: synth.New()}
}

func (s *Simulated) Name() string { return "simulated" }

// Generate synthesizes every task's content up front.
func (s *Simulated) Generate(ctx context.Context, prompt, databaseType string, tasks []model.TaskID, onProgress ProgressFunc) ([]StagedResult, error) {
	results := make([]StagedResult, 0, len(tasks))
	for _, id := range tasks {
		content, err := s.synth.ContentFor(ctx, id, prompt, databaseType)
		if err != nil {
			return nil, err
		}
		results = append(results, StagedResult{TaskID: id, Content: content})
		if onProgress != nil {
			onProgress(Progress{TaskID: id, Complete: true})
		}
	}
	return results, nil
}

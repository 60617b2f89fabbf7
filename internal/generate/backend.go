// Package generate abstracts the content-generation backend behind a
// single interface.
//
// The simulated backend is the default and needs no network; the Ollama
// and OpenAI backends produce real model output. The interface allows
// swapping backends without changing the pipeline.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/ashita-ai/sekkei/internal/model"
)

// StagedResult is one task's worth of generated content.
type StagedResult struct {
	TaskID  model.TaskID
	Content string
}

// Progress reports intermediate generation state to the caller.
type Progress struct {
	TaskID    model.TaskID
	Complete  bool
	Reasoning string
}

// ProgressFunc receives Progress callbacks during Generate. May be nil.
type ProgressFunc func(Progress)

// Backend produces the full staged output for one session in one call.
type Backend interface {
	// Generate returns one StagedResult per task, in task order.
	Generate(ctx context.Context, prompt, databaseType string, tasks []model.TaskID, onProgress ProgressFunc) ([]StagedResult, error)

	// Name identifies the backend in logs and transcript metadata.
	Name() string
}

// backendTimeout bounds a single external generation call. The pipeline
// itself imposes no timeout, so the backend layer must.
const backendTimeout = 2 * time.Minute

// Config selects and configures a backend.
type Config struct {
	// Provider is "simulated", "ollama", or "openai". Empty means
	// auto-detect: openai if an API key is set, else ollama if a base
	// URL is set, else simulated.
	Provider string

	OllamaBaseURL string
	OllamaModel   string

	OpenAIAPIKey string
	OpenAIModel  string
}

// New builds the configured backend.
func New(cfg Config) (Backend, error) {
	provider := cfg.Provider
	if provider == "" {
		switch {
		case cfg.OpenAIAPIKey != "":
			provider = "openai"
		case cfg.OllamaBaseURL != "":
			provider = "ollama"
		default:
			provider = "simulated"
		}
	}

	switch provider {
	case "simulated":
		return NewSimulated(), nil
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("generate: openai backend requires an API key")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	}
	return nil, fmt.Errorf("generate: unknown provider %q", provider)
}

// taskInstruction is the per-task instruction sent to real backends.
func taskInstruction(taskID model.TaskID, prompt, databaseType string) string {
	base := fmt.Sprintf("The user wants a %s database for the following request: %s\n\n", databaseType, prompt)
	switch taskID {
	case model.TaskRequirements:
		return base + "Write a concise requirements analysis: core entities, functional requirements, and non-functional requirements. Markdown."
	case model.TaskSchema:
		return base + fmt.Sprintf("Write the complete %s schema as DDL in a fenced code block, with primary keys, foreign keys, and indexes.", databaseType)
	case model.TaskImplementation:
		return base + "Write an implementation guide: migration strategy, access patterns, and example queries. Markdown."
	case model.TaskValidation:
		return base + "Write a validation report: integrity checks, normalization assessment, and recommendations. Markdown."
	case model.TaskVisualization:
		return base + "Write a mermaid erDiagram for the schema in a fenced code block."
	}
	return base + fmt.Sprintf("Produce the %s section of the database design. Markdown.", taskID)
}

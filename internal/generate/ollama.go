package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ashita-ai/sekkei/internal/model"
)

// Ollama generates content using a local Ollama server. Recommended for
// self-hosted deployments: no API costs and prompts never leave the
// network.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates a backend that calls Ollama's generate API. Model
// should be an instruct model like "llama3.1" or "qwen2.5-coder".
func NewOllama(baseURL, ollamaModel string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if ollamaModel == "" {
		ollamaModel = "llama3.1"
	}
	return &Ollama{
		baseURL: baseURL,
		model:   ollamaModel,
		httpClient: &http.Client{
			Timeout: backendTimeout,
		},
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate calls Ollama once per task, in task order.
func (o *Ollama) Generate(ctx context.Context, prompt, databaseType string, tasks []model.TaskID, onProgress ProgressFunc) ([]StagedResult, error) {
	results := make([]StagedResult, 0, len(tasks))
	for _, id := range tasks {
		content, err := o.generateOne(ctx, taskInstruction(id, prompt, databaseType))
		if err != nil {
			return nil, fmt.Errorf("ollama: task %s: %w", id, err)
		}
		results = append(results, StagedResult{TaskID: id, Content: content})
		if onProgress != nil {
			onProgress(Progress{TaskID: id, Complete: true})
		}
	}
	return results, nil
}

func (o *Ollama) generateOne(ctx context.Context, instruction string) (string, error) {
	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: instruction,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Response == "" {
		return "", fmt.Errorf("empty response returned")
	}
	return result.Response, nil
}

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

// OpenAI generates content using the OpenAI chat completions API.
type OpenAI struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a backend that calls the OpenAI API.
func NewOpenAI(apiKey, openaiModel string) *OpenAI {
	if openaiModel == "" {
		openaiModel = "gpt-4o-mini"
	}
	return &OpenAI{
		apiKey: apiKey,
		model:  openaiModel,
		httpClient: &http.Client{
			Timeout: backendTimeout,
		},
	}
}

func (o *OpenAI) Name() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate calls the chat API once per task, in task order.
func (o *OpenAI) Generate(ctx context.Context, prompt, databaseType string, tasks []model.TaskID, onProgress ProgressFunc) ([]StagedResult, error) {
	results := make([]StagedResult, 0, len(tasks))
	for _, id := range tasks {
		content, err := o.generateOne(ctx, taskInstruction(id, prompt, databaseType))
		if err != nil {
			return nil, fmt.Errorf("openai: task %s: %w", id, err)
		}
		results = append(results, StagedResult{TaskID: id, Content: content})
		if onProgress != nil {
			onProgress(Progress{TaskID: id, Complete: true})
		}
	}
	return results, nil
}

func (o *OpenAI) generateOne(ctx context.Context, instruction string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a senior database architect. Answer with the requested artifact only."},
			{Role: "user", Content: instruction},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("api error: %s: %s", result.Error.Type, result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return result.Choices[0].Message.Content, nil
}

package sekkei

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Sekkei server (e.g. "http://localhost:8080").
	BaseURL string

	// OwnerID scopes requests to one owner. Optional; when set it is
	// sent as the X-Owner-Id header on every request.
	OwnerID string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client with a 30-second timeout is used. Events uses a separate
	// client without a timeout, since SSE streams are long-lived.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Sekkei design generation API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL   string
	ownerID   string
	client    *http.Client
	sseClient *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sekkei: BaseURL is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   baseURL,
		ownerID:   cfg.OwnerID,
		client:    httpClient,
		sseClient: &http.Client{},
	}, nil
}

// StartSession begins a new generation session.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	var resp StartSessionResponse
	if err := c.post(ctx, "/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession retrieves the full session snapshot, including revealed
// content per task.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.get(ctx, "/v1/sessions/"+sessionID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause pauses content reveal. Already-paused sessions are unaffected.
func (c *Client) Pause(ctx context.Context, sessionID string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.post(ctx, "/v1/sessions/"+sessionID+"/pause", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume resumes content reveal.
func (c *Client) Resume(ctx context.Context, sessionID string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.post(ctx, "/v1/sessions/"+sessionID+"/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop finalizes the session early with whatever content has been
// revealed so far; a partial transcript is saved. Use IsSaveFailed on
// the returned error to detect a stop whose save can be retried.
func (c *Client) Stop(ctx context.Context, sessionID string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.post(ctx, "/v1/sessions/"+sessionID+"/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetSpeed changes the reveal speed. The server clamps out-of-range
// values and returns the applied speed.
func (c *Client) SetSpeed(ctx context.Context, sessionID string, speed int) (int, error) {
	body := map[string]int{"speed": speed}
	var resp struct {
		Speed int `json:"speed"`
	}
	if err := c.put(ctx, "/v1/sessions/"+sessionID+"/speed", body, &resp); err != nil {
		return 0, err
	}
	return resp.Speed, nil
}

// RetrySave retries the transcript save after a persistence failure.
func (c *Client) RetrySave(ctx context.Context, sessionID string) (*Snapshot, error) {
	var resp Snapshot
	if err := c.post(ctx, "/v1/sessions/"+sessionID+"/retry-save", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events subscribes to the session's event stream. Events are delivered
// on the returned channel until the session reaches a terminal state,
// the server closes the stream, or ctx is cancelled; the channel is then
// closed. The first event is always a full snapshot.
func (c *Client) Events(ctx context.Context, sessionID string) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+sessionID+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("sekkei: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setOwner(req)

	resp, err := c.sseClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sekkei: %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()
		readEvents(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// readEvents parses the SSE wire format: "event: <type>" and "data: <json>"
// lines separated by blank lines. Comment lines (heartbeats) are skipped.
func readEvents(ctx context.Context, r io.Reader, ch chan<- Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventType != "" && len(data) > 0 {
				ev, err := decodeEvent(eventType, data)
				if err == nil {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
					if ev.Terminal() {
						return
					}
				}
			}
			eventType = ""
			data = nil
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = []byte(strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, ":"):
			// Comment (heartbeat).
		}
	}
}

func decodeEvent(eventType string, data []byte) (Event, error) {
	if eventType == "snapshot" {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return Event{}, err
		}
		return Event{Type: eventType, Snapshot: &snap, SessionID: snap.SessionID}, nil
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	ev.Type = eventType
	return ev, nil
}

// ListTranscripts lists saved transcripts, newest first. A non-empty
// query performs a case-insensitive search over titles and prompts.
func (c *Client) ListTranscripts(ctx context.Context, query string) ([]Transcript, error) {
	path := "/v1/transcripts"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var resp []Transcript
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTranscript retrieves one transcript.
func (c *Client) GetTranscript(ctx context.Context, transcriptID string) (*Transcript, error) {
	var resp Transcript
	if err := c.get(ctx, "/v1/transcripts/"+transcriptID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTranscript deletes a transcript. Returns nil on success.
func (c *Client) DeleteTranscript(ctx context.Context, transcriptID string) error {
	return c.doDelete(ctx, "/v1/transcripts/"+transcriptID, nil)
}

// ListProjects lists projects, newest first. Requires a server running
// on the Postgres store.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	if err := c.get(ctx, "/v1/projects", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetProject retrieves one project with its recorded sessions.
func (c *Client) GetProject(ctx context.Context, projectID string) (*ProjectDetail, error) {
	var resp ProjectDetail
	if err := c.get(ctx, "/v1/projects/"+projectID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server's health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	return c.send(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) put(ctx context.Context, path string, body any, dest any) error {
	return c.send(ctx, http.MethodPut, path, body, dest)
}

func (c *Client) send(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sekkei: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		// Handlers decode request bodies strictly; send an empty object
		// rather than no body.
		reader = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("sekkei: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("sekkei: create request: %w", err)
	}
	return c.doRequest(req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("sekkei: create request: %w", err)
	}
	return c.doRequest(req, dest)
}

func (c *Client) setOwner(req *http.Request) {
	if c.ownerID != "" {
		req.Header.Set("X-Owner-Id", c.ownerID)
	}
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	c.setOwner(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sekkei: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sekkei: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// 204 No Content has nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("sekkei: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/generate"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
	"github.com/ashita-ai/sekkei/internal/service/transcribe"
	"github.com/ashita-ai/sekkei/internal/storage"
)

// TranscriptStore is the transcript storage surface handlers depend on.
// Both the Postgres and the local SQLite stores satisfy it.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, t model.Transcript) error
	GetTranscript(ctx context.Context, id uuid.UUID) (model.Transcript, error)
	ListTranscripts(ctx context.Context, ownerID *string) ([]model.Transcript, error)
	DeleteTranscript(ctx context.Context, id uuid.UUID) error
	SearchTranscripts(ctx context.Context, query string, ownerID *string) ([]model.Transcript, error)
}

// ProjectStore is the project/session read surface handlers depend on.
type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (model.Project, error)
	ListProjects(ctx context.Context, ownerID *string, limit, offset int) ([]model.Project, int, error)
	ListSessionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.SessionRecord, error)
}

// Pinger reports storage connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	registry    *Registry
	backend     generate.Backend
	persister   *transcribe.Service
	recorder    pipeline.Recorder
	transcripts TranscriptStore
	projects    ProjectStore
	pinger      Pinger
	logger      *slog.Logger

	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Recorder, Projects, Pinger, OpenAPISpec.
type HandlersDeps struct {
	Registry    *Registry
	Backend     generate.Backend
	Persister   *transcribe.Service
	Recorder    pipeline.Recorder
	Transcripts TranscriptStore
	Projects    ProjectStore
	Pinger      Pinger
	Logger      *slog.Logger

	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		registry:            d.Registry,
		backend:             d.Backend,
		persister:           d.Persister,
		recorder:            d.Recorder,
		transcripts:         d.Transcripts,
		projects:            d.Projects,
		pinger:              d.Pinger,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleStartSession handles POST /v1/sessions: validates the prompt,
// builds a pipeline session, and starts it ticking.
func (h *Handlers) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	defs := model.DefaultTaskDefinitions(req.IncludeVisualization)
	taskIDs := make([]model.TaskID, len(defs))
	for i, d := range defs {
		taskIDs[i] = d.ID
	}

	mode := model.ModeSimulated
	if h.backend.Name() != "simulated" {
		mode = model.ModeBackend
	}

	sess, err := pipeline.NewSession(pipeline.Config{
		Prompt:       req.Prompt,
		DatabaseType: req.DatabaseType,
		OwnerID:      OwnerFromContext(r.Context()),
		Mode:         mode,
		Tasks:        defs,
		Source:       generate.NewSource(h.backend, taskIDs, nil),
		Persister:    h.persister,
		Recorder:     h.recorder,
		Logger:       h.logger,
		Speed:        req.Speed,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	// The run loop must outlive this request; it stops on its own when
	// the session reaches a terminal state.
	if err := sess.Start(context.WithoutCancel(r.Context())); err != nil {
		h.writeInternalError(w, r, "failed to start session", err)
		return
	}
	h.registry.Add(sess)

	snap := sess.Snapshot()
	writeJSON(w, r, http.StatusCreated, model.StartSessionResponse{
		SessionID: sess.ID(),
		Tasks:     snap.Tasks,
	})
}

// HandleGetSession handles GET /v1/sessions/{session_id}: the full
// snapshot, including revealed content per task.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, sess.Snapshot())
}

// HandlePauseSession handles POST /v1/sessions/{session_id}/pause.
func (h *Handlers) HandlePauseSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	sess.Pause()
	writeJSON(w, r, http.StatusOK, sess.Snapshot())
}

// HandleResumeSession handles POST /v1/sessions/{session_id}/resume.
func (h *Handlers) HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	sess.Resume()
	writeJSON(w, r, http.StatusOK, sess.Snapshot())
}

// HandleStopSession handles POST /v1/sessions/{session_id}/stop: early
// export of whatever has been revealed so far.
func (h *Handlers) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := sess.Stop(r.Context()); err != nil {
		var pErr *pipeline.PersistenceError
		if errors.As(err, &pErr) {
			// Stopped, but the save failed; the transcript is retained
			// in memory and the save can be retried.
			writeError(w, r, http.StatusBadGateway, model.ErrCodeInternalError,
				"session stopped but saving failed; retry the save")
			return
		}
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, sess.Snapshot())
}

// HandleSetSpeed handles PUT /v1/sessions/{session_id}/speed.
func (h *Handlers) HandleSetSpeed(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	var req model.SetSpeedRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	applied := sess.SetSpeed(req.Speed)
	writeJSON(w, r, http.StatusOK, map[string]int{"speed": applied})
}

// HandleSessionEvents handles GET /v1/sessions/{session_id}/events as an
// SSE stream.
func (h *Handlers) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	h.streamSession(w, r, sess)
}

// HandleRetrySave handles POST /v1/sessions/{session_id}/retry-save:
// retries the transcript save after a persistence failure.
func (h *Handlers) HandleRetrySave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := sess.RetrySave(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrInvalidTransition) {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, model.ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, sess.Snapshot())
}

// HandleListTranscripts handles GET /v1/transcripts, with optional ?q=
// search.
func (h *Handlers) HandleListTranscripts(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFromContext(r.Context())
	var (
		transcripts []model.Transcript
		err         error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		transcripts, err = h.transcripts.SearchTranscripts(r.Context(), q, owner)
	} else {
		transcripts, err = h.transcripts.ListTranscripts(r.Context(), owner)
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to list transcripts", err)
		return
	}
	if transcripts == nil {
		transcripts = []model.Transcript{}
	}
	writeJSON(w, r, http.StatusOK, transcripts)
}

// HandleGetTranscript handles GET /v1/transcripts/{transcript_id}.
func (h *Handlers) HandleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDPath(w, r, "transcript_id")
	if !ok {
		return
	}
	t, err := h.transcripts.GetTranscript(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "transcript not found")
			return
		}
		h.writeInternalError(w, r, "failed to get transcript", err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// HandleDeleteTranscript handles DELETE /v1/transcripts/{transcript_id}.
func (h *Handlers) HandleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDPath(w, r, "transcript_id")
	if !ok {
		return
	}
	if err := h.transcripts.DeleteTranscript(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "transcript not found")
			return
		}
		h.writeInternalError(w, r, "failed to delete transcript", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListProjects handles GET /v1/projects.
func (h *Handlers) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project store not configured")
		return
	}
	projects, total, err := h.projects.ListProjects(r.Context(), OwnerFromContext(r.Context()), 50, 0)
	if err != nil {
		h.writeInternalError(w, r, "failed to list projects", err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"projects": projects, "total": total})
}

// HandleGetProject handles GET /v1/projects/{project_id}, including the
// project's sessions.
func (h *Handlers) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project store not configured")
		return
	}
	id, ok := parseUUIDPath(w, r, "project_id")
	if !ok {
		return
	}
	project, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "project not found")
			return
		}
		h.writeInternalError(w, r, "failed to get project", err)
		return
	}
	sessions, err := h.projects.ListSessionsByProject(r.Context(), id)
	if err != nil {
		h.writeInternalError(w, r, "failed to list project sessions", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"project": project, "sessions": sessions})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, r, code, map[string]any{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"live_sessions":  h.registry.Len(),
	})
}

// HandleOpenAPISpec handles GET /openapi.yaml.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.openapiSpec)
}

// sessionFromPath resolves {session_id} to a live session, writing the
// error response on failure.
func (h *Handlers) sessionFromPath(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	id, ok := parseUUIDPath(w, r, "session_id")
	if !ok {
		return nil, false
	}
	sess, found := h.registry.Get(id)
	if !found {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func parseUUIDPath(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

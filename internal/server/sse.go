package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/pipeline"
)

// sseBuffer sizes each subscriber channel. A full buffer means the
// client is too slow; events are dropped for that client rather than
// blocking the pipeline.
const sseBuffer = 256

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// streamSession writes a session's event feed as Server-Sent Events
// until the client disconnects or the session reaches a terminal state.
// The initial event is a full snapshot so late subscribers can catch up.
func (h *Handlers) streamSession(w http.ResponseWriter, r *http.Request, sess *pipeline.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming unsupported")
		return
	}

	events, cancel := sess.Subscribe(sseBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Snapshot first: a subscriber joining mid-run needs the state that
	// preceded its subscription.
	if err := writeSSE(w, "snapshot", sess.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, string(ev.Kind), ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Kind == pipeline.EventSessionCompleted || ev.Kind == pipeline.EventSessionErrored {
				return
			}
		}
	}
}

// writeSSE formats one Server-Sent Events message:
// "event: <type>\ndata: <json>\n\n".
func writeSSE(w http.ResponseWriter, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

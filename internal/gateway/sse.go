package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FabG/chainlit-ui/internal/event"
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	// ResponseController flushes reliably through middleware wrappers
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes one SSE event.
func (s *sseWriter) writeEvent(name string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, jsonData)
	if err != nil {
		return err
	}

	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events handles GET /events. With a sessionID query parameter the feed is
// filtered to that session's events, otherwise every event streams.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Small buffer keeps latency low; a stalled client drops events rather
	// than blocking the bus.
	events := make(chan event.Event, 10)

	unsub := s.registry.Bus().SubscribeAll(func(e event.Event) {
		if sessionID != "" && eventSessionID(e) != sessionID {
			return
		}
		select {
		case events <- e:
		default:
			s.log.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	// The subscription is live before headers flush, so a client that has
	// seen the stream open cannot miss events published after that point.
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	ticker := time.NewTicker(s.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", e); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// eventSessionID extracts the owning session id from an event payload, empty
// for events that belong to no single session.
func eventSessionID(e event.Event) string {
	switch data := e.Data.(type) {
	case event.SessionCreatedData:
		if data.Info != nil {
			return data.Info.ID
		}
	case event.SessionResumedData:
		if data.Info != nil {
			return data.Info.ID
		}
	case event.SessionStateData:
		return data.SessionID
	case event.SessionDestroyedData:
		return data.SessionID
	case event.MessageCreatedData:
		if data.Info != nil {
			return data.Info.SessionID
		}
	case event.StepStartedData:
		if data.Info != nil {
			return data.Info.SessionID
		}
	case event.StepUpdatedData:
		if data.Info != nil {
			return data.Info.SessionID
		}
	case event.StepClosedData:
		if data.Info != nil {
			return data.Info.SessionID
		}
	case event.ActionAttachedData:
		return data.SessionID
	case event.ActionRemovedData:
		return data.SessionID
	case event.TaskListUpdatedData:
		if data.Info != nil {
			return data.Info.SessionID
		}
	case event.StopRequestedData:
		return data.SessionID
	case event.HookFailedData:
		return data.SessionID
	}
	return ""
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Cross-origin UIs connect directly; auth rides the payload
	},
}

// ClientFrame is one inbound WebSocket frame. Type selects the operation:
// "message" carries Content/Metadata, "action" carries Action/Payload, "stop"
// needs only the session.
type ClientFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionID"`
	Content   string          `json:"content,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Action    string          `json:"action,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// errorFrame is an outbound error frame. Its type "error" never collides with
// bus event types, which are all dotted.
type errorFrame struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// websocket handles GET /ws. Inbound frames dispatch message, stop, and
// action operations; every bus event streams outbound. A sessionID query
// parameter filters the outbound feed to one session.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Single writer goroutine; gorilla connections do not allow concurrent
	// writers.
	outbound := make(chan any, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range outbound {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	send := func(frame any) {
		select {
		case outbound <- frame:
		case <-done:
		default:
			s.log.Warn().Msg("websocket frame dropped: channel full")
		}
	}

	unsub := s.registry.Bus().SubscribeAll(func(e event.Event) {
		if sessionID != "" && eventSessionID(e) != sessionID {
			return
		}
		send(e)
	})

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		if err := s.dispatchFrame(r, &frame); err != nil {
			_, detail := classifyError(err)
			if errors.Is(err, errUnknownFrameType) {
				detail.Code = ErrCodeInvalidRequest
			}
			send(errorFrame{Type: "error", Error: detail})
		}
	}

	unsub()
	close(outbound)
	<-done
}

var errUnknownFrameType = errors.New("unknown frame type")

// dispatchFrame routes one inbound frame to the runtime.
func (s *Server) dispatchFrame(r *http.Request, frame *ClientFrame) error {
	switch frame.Type {
	case "message", "stop", "action":
	default:
		return fmt.Errorf("%w %q", errUnknownFrameType, frame.Type)
	}

	sess, err := s.registry.Get(frame.SessionID)
	if err != nil {
		return err
	}

	switch frame.Type {
	case "message":
		_, err := sess.HandleMessage(r.Context(), frame.Content, frame.Metadata)
		return err
	case "stop":
		return sess.Stop(r.Context())
	default:
		var payload types.Value
		if len(frame.Payload) > 0 {
			payload = types.RawValue(frame.Payload)
		}
		return sess.HandleAction(r.Context(), frame.Action, payload)
	}
}

package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Envelope is one decoded event from the /events feed. Heartbeat comments
// surface as an Envelope with Type "heartbeat" and no data.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SSEClient consumes the gateway's /events stream for tests.
type SSEClient struct {
	BaseURL string

	events chan Envelope
	errs   chan error
	cancel context.CancelFunc
	body   io.ReadCloser
}

// NewSSEClient creates a new SSE test client
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		BaseURL: baseURL,
		events:  make(chan Envelope, 100),
		errs:    make(chan error, 1),
	}
}

// Connect opens the stream. A non-empty sessionID scopes the feed to that
// session. Connect returns once the stream headers have been accepted, so
// events published afterwards cannot be missed.
func (c *SSEClient) Connect(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	path := "/events"
	if sessionID != "" {
		path += "?sessionID=" + sessionID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No timeout for a stream that stays open
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return fmt.Errorf("unexpected content type: %s", ct)
	}

	c.body = resp.Body
	go c.readEvents(resp.Body)
	return nil
}

// Close tears down the stream.
func (c *SSEClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.body != nil {
		c.body.Close()
	}
}

// readEvents parses the wire format. Every event frame carries one JSON
// envelope in its data field.
func (c *SSEClient) readEvents(body io.Reader) {
	defer close(c.events)

	reader := bufio.NewReader(body)
	var data strings.Builder

	flush := func() {
		if data.Len() == 0 {
			return
		}
		var envelope Envelope
		if err := json.Unmarshal([]byte(data.String()), &envelope); err == nil {
			c.push(envelope)
		}
		data.Reset()
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				select {
				case c.errs <- err:
				default:
				}
			}
			flush()
			return
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			c.push(Envelope{Type: "heartbeat"})
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// "event:" lines are constant on this feed and carry no information
	}
}

func (c *SSEClient) push(envelope Envelope) {
	select {
	case c.events <- envelope:
	default:
		// Channel full, drop event
	}
}

// WaitFor waits for the next envelope of the given type.
func (c *SSEClient) WaitFor(eventType string, timeout time.Duration) (*Envelope, error) {
	deadline := time.After(timeout)
	for {
		select {
		case envelope, ok := <-c.events:
			if !ok {
				return nil, fmt.Errorf("connection closed")
			}
			if envelope.Type == eventType {
				return &envelope, nil
			}
		case err := <-c.errs:
			return nil, err
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event: %s", eventType)
		}
	}
}

// WaitForHeartbeat waits for a heartbeat comment.
func (c *SSEClient) WaitForHeartbeat(timeout time.Duration) error {
	_, err := c.WaitFor("heartbeat", timeout)
	return err
}

// Collect drains events for the given duration.
func (c *SSEClient) Collect(duration time.Duration) []Envelope {
	var collected []Envelope
	deadline := time.After(duration)
	for {
		select {
		case envelope, ok := <-c.events:
			if !ok {
				return collected
			}
			collected = append(collected, envelope)
		case <-deadline:
			return collected
		}
	}
}

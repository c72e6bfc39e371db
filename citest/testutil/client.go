package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FabG/chainlit-ui/internal/gateway"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// TestClient provides HTTP client utilities for testing
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewTestClient creates a new test HTTP client
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response wraps HTTP response with helpers
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals response body into v
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns response body as string
func (r *Response) String() string {
	return string(r.Body)
}

// IsSuccess returns true if status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorCode returns the error code of a failed response, empty when the body
// is not an error envelope.
func (r *Response) ErrorCode() string {
	var envelope gateway.ErrorResponse
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Code
}

// Get performs HTTP GET request
func (c *TestClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs HTTP POST request with JSON body
func (c *TestClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Delete performs HTTP DELETE request
func (c *TestClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs the actual HTTP request
func (c *TestClient) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// decode runs a request and unmarshals a successful response into out.
func (c *TestClient) decode(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, resp.String())
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

// CreateSession creates a session, optionally under a chat profile.
func (c *TestClient) CreateSession(ctx context.Context, profile *string) (*types.SessionInfo, error) {
	var info types.SessionInfo
	req := gateway.CreateSessionRequest{Profile: profile}
	if err := c.decode(ctx, http.MethodPost, "/session", req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetSession fetches one session.
func (c *TestClient) GetSession(ctx context.Context, id string) (*types.SessionInfo, error) {
	var info types.SessionInfo
	if err := c.decode(ctx, http.MethodGet, "/session/"+id, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListSessions fetches all live sessions.
func (c *TestClient) ListSessions(ctx context.Context) ([]*types.SessionInfo, error) {
	var infos []*types.SessionInfo
	if err := c.decode(ctx, http.MethodGet, "/session", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// DeleteSession destroys a session.
func (c *TestClient) DeleteSession(ctx context.Context, id string) error {
	return c.decode(ctx, http.MethodDelete, "/session/"+id, nil, nil)
}

// ResumeSession recreates a session from persisted history.
func (c *TestClient) ResumeSession(ctx context.Context, id string) (*types.SessionInfo, error) {
	var info types.SessionInfo
	if err := c.decode(ctx, http.MethodPost, "/session/"+id+"/resume", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SendMessage posts a user message and returns the recorded message.
func (c *TestClient) SendMessage(ctx context.Context, id, content string) (*types.Message, error) {
	var msg types.Message
	req := gateway.SendMessageRequest{Content: content}
	if err := c.decode(ctx, http.MethodPost, "/session/"+id+"/message", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages fetches a session's transcript.
func (c *TestClient) Messages(ctx context.Context, id string) ([]*types.Message, error) {
	var msgs []*types.Message
	if err := c.decode(ctx, http.MethodGet, "/session/"+id+"/message", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Steps fetches a session's step trace.
func (c *TestClient) Steps(ctx context.Context, id string) ([]*types.Step, error) {
	var steps []*types.Step
	if err := c.decode(ctx, http.MethodGet, "/session/"+id+"/steps", nil, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// StopSession signals the session to stop open work.
func (c *TestClient) StopSession(ctx context.Context, id string) error {
	return c.decode(ctx, http.MethodPost, "/session/"+id+"/stop", nil, nil)
}

// InvokeAction invokes a named action callback with a payload.
func (c *TestClient) InvokeAction(ctx context.Context, id, name string, payload any) error {
	return c.decode(ctx, http.MethodPost, "/session/"+id+"/action/"+name, payload, nil)
}

// Starters fetches the conversation starters.
func (c *TestClient) Starters(ctx context.Context) ([]types.Starter, error) {
	var starters []types.Starter
	if err := c.decode(ctx, http.MethodGet, "/starters", nil, &starters); err != nil {
		return nil, err
	}
	return starters, nil
}

// Profiles fetches the chat profiles.
func (c *TestClient) Profiles(ctx context.Context) ([]types.ChatProfile, error) {
	var profiles []types.ChatProfile
	if err := c.decode(ctx, http.MethodGet, "/profiles", nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Login authenticates against the auth callback.
func (c *TestClient) Login(ctx context.Context, username, password string) (*types.User, error) {
	var user types.User
	req := gateway.LoginRequest{Username: username, Password: password}
	if err := c.decode(ctx, http.MethodPost, "/auth/login", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Package testutil provides the server fixture and clients for the
// integration suites under citest/.
package testutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/FabG/chainlit-ui/internal/gateway"
	"github.com/FabG/chainlit-ui/internal/runtime"
	filestore "github.com/FabG/chainlit-ui/internal/store/file"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// TestServer runs the gateway over a real registry on a free port. Each
// suite gets its own temp directory for the file-backed history store.
type TestServer struct {
	Gateway  *gateway.Server
	Registry *runtime.Registry
	Hooks    *runtime.Hooks
	BaseURL  string
	TempDir  string
	port     int
}

// TestServerOption configures TestServer
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	envFile   string
	hooks     *runtime.Hooks
	heartbeat time.Duration
	runtime   types.RuntimeConfig
}

// WithEnvFile sets the .env file to load
func WithEnvFile(path string) TestServerOption {
	return func(c *testServerConfig) {
		c.envFile = path
	}
}

// WithHooks sets the application callbacks. Defaults to EchoHooks.
func WithHooks(h *runtime.Hooks) TestServerOption {
	return func(c *testServerConfig) {
		c.hooks = h
	}
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) TestServerOption {
	return func(c *testServerConfig) {
		c.heartbeat = d
	}
}

// WithRuntimeConfig sets the runtime core settings.
func WithRuntimeConfig(rc types.RuntimeConfig) TestServerOption {
	return func(c *testServerConfig) {
		c.runtime = rc
	}
}

// StartTestServer creates and starts a test server
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{heartbeat: time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	// Load environment variables
	if cfg.envFile != "" {
		_ = godotenv.Load(cfg.envFile)
	} else {
		// Try default locations
		_ = godotenv.Load("../../.env")
		_ = godotenv.Load("../.env")
		_ = godotenv.Load(".env")
	}

	// Create temp directory for history
	tempDir, err := os.MkdirTemp("", "chainlit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	history, err := filestore.New(filepath.Join(tempDir, "history"))
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}

	hooks := cfg.hooks
	if hooks == nil {
		hooks = EchoHooks()
	}

	reg := runtime.NewRegistry(hooks,
		runtime.WithHistory(history),
		runtime.WithRuntimeConfig(cfg.runtime),
	)

	// Find available port
	port, err := findAvailablePort()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.Host = "127.0.0.1"
	gwCfg.Port = port
	gwCfg.Heartbeat = cfg.heartbeat

	srv := gateway.New(gwCfg, reg)

	// Start server in background
	go func() {
		_ = srv.Start()
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Gateway:  srv,
		Registry: reg,
		Hooks:    hooks,
		BaseURL:  baseURL,
		TempDir:  tempDir,
		port:     port,
	}, nil
}

// Stop shuts down the test server and cleans up
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if ts.Gateway != nil {
		if err := ts.Gateway.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if ts.Registry != nil {
		if err := ts.Registry.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ts.TempDir != "" {
		os.RemoveAll(ts.TempDir)
	}
	return firstErr
}

// Client returns a new test client for this server
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// SSEClient returns a new SSE client for this server
func (ts *TestServer) SSEClient() *SSEClient {
	return NewSSEClient(ts.BaseURL)
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for the server to be ready
func waitForServer(baseURL string, timeout time.Duration) error {
	client := NewTestClient(baseURL)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(context.Background(), "/health")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

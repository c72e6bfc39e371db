package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FabG/chainlit-ui/internal/config"
	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/internal/gateway"
	"github.com/FabG/chainlit-ui/internal/logging"
	"github.com/FabG/chainlit-ui/internal/mcptool"
	"github.com/FabG/chainlit-ui/internal/metrics"
	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/internal/store"
	filestore "github.com/FabG/chainlit-ui/internal/store/file"
	redisstore "github.com/FabG/chainlit-ui/internal/store/redis"
	"github.com/FabG/chainlit-ui/internal/watcher"
	"github.com/FabG/chainlit-ui/pkg/types"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
	serveEnvFile  string
	serveDemo     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chainlit-ui server",
	Long: `Start the runtime behind its HTTP, SSE, and WebSocket gateway.

Without a linked application the server still exposes the full session,
message, and history API. Pass --demo to register the built-in echo
application, which answers every message through a traced step.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", "", "Env file to load before reading config")
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "Register the built-in demo application")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	// Env files feed {env:VAR} interpolation in the config, so they load
	// first. Missing files are fine.
	if serveEnvFile != "" {
		if err := godotenv.Load(serveEnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", serveEnvFile, err)
		}
	} else {
		_ = godotenv.Load(filepath.Join(workDir, ".env"))
	}

	// Load configuration
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	initLogging(cfg.Log)
	log := logging.Component("serve")

	// Initialize paths
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	// History store
	history, historyLabel, err := buildHistory(cfg, paths)
	if err != nil {
		return err
	}

	bus := event.NewBus()
	meter := metrics.New()

	// Application callbacks
	hooks := runtime.NewHooks()
	if cfg.ProfilesFile != "" {
		profiles, err := config.LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			return err
		}
		if err := registerProfiles(hooks, profiles); err != nil {
			return err
		}
	}
	if serveDemo {
		if err := registerDemo(hooks); err != nil {
			return err
		}
	}

	// MCP servers
	var adapter *mcptool.Adapter
	if len(cfg.MCP) > 0 {
		adapter = mcptool.New()
		for name, mc := range cfg.MCP {
			if err := adapter.AddServer(cmd.Context(), name, mc); err != nil {
				log.Warn().Err(err).Str("server", name).Msg("mcp server unavailable")
			}
		}
		if err := registerTools(hooks, adapter); err != nil {
			return err
		}
	}

	opts := []runtime.Option{
		runtime.WithBus(bus),
		runtime.WithMetrics(meter),
		runtime.WithRuntimeConfig(cfg.Runtime),
	}
	if history != nil {
		opts = append(opts, runtime.WithHistory(history))
	}
	reg := runtime.NewRegistry(hooks, opts...)

	// Dev-mode config watcher
	var configWatcher *watcher.Watcher
	if cfg.Watcher != nil && cfg.Watcher.Enabled {
		debounce := time.Duration(cfg.Watcher.DebounceMillis) * time.Millisecond
		configWatcher, err = watcher.New(bus, config.WatchPaths(workDir), debounce)
		if err != nil {
			log.Warn().Err(err).Msg("config watcher unavailable")
		} else if configWatcher != nil {
			configWatcher.Start()
		}
	}

	// Gateway
	gwCfg := gateway.ConfigFrom(cfg.Server)
	if cmd.Flags().Changed("port") || gwCfg.Port == 0 {
		gwCfg.Port = servePort
	}
	if cmd.Flags().Changed("hostname") {
		gwCfg.Host = serveHostname
	}
	srv := gateway.New(gwCfg, reg)

	printBanner(gwCfg, historyLabel, adapter)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown")
	}
	if err := reg.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("registry shutdown")
	}
	if configWatcher != nil {
		if err := configWatcher.Stop(); err != nil {
			log.Error().Err(err).Msg("config watcher stop")
		}
	}
	if adapter != nil {
		if err := adapter.Close(); err != nil {
			log.Error().Err(err).Msg("mcp close")
		}
	}
	if history != nil {
		if err := history.Close(); err != nil {
			log.Error().Err(err).Msg("history close")
		}
	}

	log.Info().Msg("server stopped")
	return nil
}

// initLogging applies the config, letting the global flags win.
func initLogging(lc types.LogConfig) {
	logCfg := logging.DefaultConfig()
	if lc.Level != "" {
		logCfg.Level = logging.ParseLevel(lc.Level)
	}
	if logLevel != "" {
		logCfg.Level = logging.ParseLevel(logLevel)
	}
	logCfg.Pretty = lc.Pretty || prettyLogs
	logging.Init(logCfg)
}

// buildHistory selects the history backend. A "none" backend returns a nil
// store, which leaves the runtime in memory-only mode.
func buildHistory(cfg *types.Config, paths *config.Paths) (store.History, string, error) {
	switch cfg.History.Backend {
	case "none":
		return nil, "none", nil
	case "redis":
		rc := cfg.History.Redis
		if rc.Addr == "" {
			return nil, "", fmt.Errorf("history.redis.addr is required for the redis backend")
		}
		var opts []redisstore.Option
		if rc.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(rc.Prefix))
		}
		if rc.TTLSeconds > 0 {
			opts = append(opts, redisstore.WithTTL(time.Duration(rc.TTLSeconds)*time.Second))
		}
		return redisstore.New(rc.Addr, rc.Password, rc.DB, opts...), "redis " + rc.Addr, nil
	case "", "file":
		dir := cfg.History.Dir
		if dir == "" {
			dir = paths.HistoryPath()
		}
		s, err := filestore.New(dir)
		if err != nil {
			return nil, "", err
		}
		return s, "file " + dir, nil
	default:
		return nil, "", fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

// registerProfiles installs static starter and profile providers from a
// profiles YAML file.
func registerProfiles(hooks *runtime.Hooks, p *config.Profiles) error {
	if len(p.Starters) > 0 {
		starters := p.Starters
		err := hooks.SetStarters(func(ctx context.Context) []types.Starter {
			return starters
		})
		if err != nil {
			return err
		}
	}
	if len(p.Profiles) > 0 {
		profiles := p.Profiles
		err := hooks.SetChatProfiles(func(ctx context.Context, user *types.User) []types.ChatProfile {
			return profiles
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// registerTools exposes every connected MCP tool as an action callback. The
// action payload carries the tool arguments; the result comes back as an
// assistant message, with the call itself traced as a tool step.
func registerTools(hooks *runtime.Hooks, adapter *mcptool.Adapter) error {
	for _, tool := range adapter.Bind() {
		invoke := tool.Invoke
		err := hooks.OnAction(tool.Name, func(ctx context.Context, s *runtime.Session, action *types.Action) error {
			args, _ := action.Payload.Map()
			out, err := invoke(ctx, args)
			if err != nil {
				return err
			}
			_, err = s.SendText(ctx, types.AuthorAssistant, out)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func printBanner(gwCfg *gateway.Config, historyLabel string, adapter *mcptool.Adapter) {
	name := color.New(color.FgCyan, color.Bold).Sprint("chainlit-ui")
	fmt.Fprintf(os.Stderr, "%s %s\n", name, Version)

	host := gwCfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	dim := color.New(color.FgHiBlack)
	fmt.Fprintln(os.Stderr, dim.Sprintf("  listening on http://%s:%d", host, gwCfg.Port))
	fmt.Fprintln(os.Stderr, dim.Sprintf("  history: %s", historyLabel))
	if adapter != nil {
		fmt.Fprintln(os.Stderr, dim.Sprintf("  mcp: %d/%d servers connected", adapter.ConnectedCount(), adapter.ServerCount()))
	}
	if serveDemo {
		fmt.Fprintln(os.Stderr, color.New(color.FgYellow).Sprint("  demo application registered"))
	}
}

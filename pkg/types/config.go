package types

// Config represents the chainlit-ui server configuration, loaded from
// chainlit.json/.jsonc with environment interpolation.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// HTTP/WebSocket gateway
	Server ServerConfig `json:"server,omitempty"`

	// Runtime core behavior
	Runtime RuntimeConfig `json:"runtime,omitempty"`

	// Logging
	Log LogConfig `json:"log,omitempty"`

	// Conversation history persistence
	History HistoryConfig `json:"history,omitempty"`

	// MCP server configs, keyed by server name
	MCP map[string]MCPConfig `json:"mcp,omitempty"`

	// Dev-mode config watcher
	Watcher *WatcherConfig `json:"watcher,omitempty"`

	// Optional YAML file providing default starters and chat profiles
	ProfilesFile string `json:"profilesFile,omitempty"`
}

// ServerConfig holds gateway listen and CORS settings.
type ServerConfig struct {
	Host             string   `json:"host,omitempty"`
	Port             int      `json:"port,omitempty"`
	AllowedOrigins   []string `json:"allowedOrigins,omitempty"`
	HeartbeatSeconds int      `json:"heartbeatSeconds,omitempty"` // SSE keepalive interval
}

// RuntimeConfig holds runtime core settings.
type RuntimeConfig struct {
	// Exclude messages whose attached action was removed from the
	// provider-format output. Off by default.
	SkipRemovedActionMessages bool `json:"skipRemovedActionMessages,omitempty"`

	Emitter EmitterConfig `json:"emitter,omitempty"`
}

// EmitterConfig controls step emission to the UI/persistence collaborators.
type EmitterConfig struct {
	// Hidden filters steps out of the UI feed by "type/name" glob,
	// e.g. "tool/internal-*" or "llm/**". Hidden steps still persist.
	Hidden []string `json:"hidden,omitempty"`

	// BufferSize bounds the emit queue. 0 means the default.
	BufferSize int `json:"bufferSize,omitempty"`

	// MaxRetrySeconds bounds delivery retries per step. 0 means the default.
	MaxRetrySeconds int `json:"maxRetrySeconds,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"` // "debug"|"info"|"warn"|"error"
	Pretty bool   `json:"pretty,omitempty"`
}

// HistoryConfig selects and configures the history store backend.
type HistoryConfig struct {
	Backend string      `json:"backend,omitempty"` // "file"|"redis"|"none"
	Dir     string      `json:"dir,omitempty"`     // file backend root
	Redis   RedisConfig `json:"redis,omitempty"`
}

// RedisConfig holds redis history store settings.
type RedisConfig struct {
	Addr       string `json:"addr,omitempty"`
	Password   string `json:"password,omitempty"` // supports {env:VAR}
	DB         int    `json:"db,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"` // 0 = no expiry
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"|"streamable"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"` // ms
}

// WatcherConfig holds dev-mode config watcher settings.
type WatcherConfig struct {
	Enabled        bool `json:"enabled,omitempty"`
	DebounceMillis int  `json:"debounceMillis,omitempty"`
}

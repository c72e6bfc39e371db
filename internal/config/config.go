package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/FabG/chainlit-ui/pkg/types"
	"github.com/tidwall/jsonc"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/chainlit/)
// 2. Project config (chainlit.json[c], .chainlit/config.json[c])
// 3. CHAINLIT_CONFIG file
// 4. CHAINLIT_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		MCP: make(map[string]types.MCPConfig),
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config (~/.config/chainlit/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "chainlit.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "chainlit.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".chainlit")
		loadOnce(filepath.Join(directory, "chainlit.json"), directory)
		loadOnce(filepath.Join(directory, "chainlit.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "config.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "config.jsonc"), projectConfigDir)
	}

	// 3. CHAINLIT_CONFIG file override
	if configPath := os.Getenv("CHAINLIT_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. CHAINLIT_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("CHAINLIT_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target. Scalars overwrite when set,
// maps merge by key, slices replace wholesale.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.ProfilesFile != "" {
		target.ProfilesFile = source.ProfilesFile
	}

	// Server
	if source.Server.Host != "" {
		target.Server.Host = source.Server.Host
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.AllowedOrigins != nil {
		target.Server.AllowedOrigins = source.Server.AllowedOrigins
	}
	if source.Server.HeartbeatSeconds != 0 {
		target.Server.HeartbeatSeconds = source.Server.HeartbeatSeconds
	}

	// Runtime
	if source.Runtime.SkipRemovedActionMessages {
		target.Runtime.SkipRemovedActionMessages = true
	}
	if source.Runtime.Emitter.Hidden != nil {
		target.Runtime.Emitter.Hidden = source.Runtime.Emitter.Hidden
	}
	if source.Runtime.Emitter.BufferSize != 0 {
		target.Runtime.Emitter.BufferSize = source.Runtime.Emitter.BufferSize
	}
	if source.Runtime.Emitter.MaxRetrySeconds != 0 {
		target.Runtime.Emitter.MaxRetrySeconds = source.Runtime.Emitter.MaxRetrySeconds
	}

	// Log
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}

	// History
	if source.History.Backend != "" {
		target.History.Backend = source.History.Backend
	}
	if source.History.Dir != "" {
		target.History.Dir = source.History.Dir
	}
	if source.History.Redis.Addr != "" {
		target.History.Redis.Addr = source.History.Redis.Addr
	}
	if source.History.Redis.Password != "" {
		target.History.Redis.Password = source.History.Redis.Password
	}
	if source.History.Redis.DB != 0 {
		target.History.Redis.DB = source.History.Redis.DB
	}
	if source.History.Redis.Prefix != "" {
		target.History.Redis.Prefix = source.History.Redis.Prefix
	}
	if source.History.Redis.TTLSeconds != 0 {
		target.History.Redis.TTLSeconds = source.History.Redis.TTLSeconds
	}

	// Merge MCP
	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}

	// Merge watcher config
	if source.Watcher != nil {
		target.Watcher = source.Watcher
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if host := os.Getenv("CHAINLIT_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("CHAINLIT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("CHAINLIT_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if backend := os.Getenv("CHAINLIT_HISTORY_BACKEND"); backend != "" {
		config.History.Backend = backend
	}
	if dir := os.Getenv("CHAINLIT_HISTORY_DIR"); dir != "" {
		config.History.Dir = dir
	}
	if addr := os.Getenv("CHAINLIT_REDIS_ADDR"); addr != "" {
		config.History.Redis.Addr = addr
	}
	if password := os.Getenv("CHAINLIT_REDIS_PASSWORD"); password != "" {
		config.History.Redis.Password = password
	}
	if profiles := os.Getenv("CHAINLIT_PROFILES_FILE"); profiles != "" {
		config.ProfilesFile = profiles
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers CHAINLIT_CONFIG_DIR, then ~/.config/chainlit.
func GetConfigDir() string {
	if dir := os.Getenv("CHAINLIT_CONFIG_DIR"); dir != "" {
		return dir
	}
	return GetPaths().Config
}

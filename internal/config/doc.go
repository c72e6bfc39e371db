// Package config provides configuration loading, merging, and path management
// for the chainlit-ui server.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.config/chainlit/chainlit.json[c])
//  2. Project config (chainlit.json[c], .chainlit/config.json[c])
//  3. CHAINLIT_CONFIG file
//  4. CHAINLIT_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// More specific configurations override more general ones; environment
// variables have the highest precedence.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with Comments) are supported; JSONC is processed
// using tidwall/jsonc.
//
// # Variable Interpolation
//
// Configuration files support two placeholder forms:
//   - {env:VAR_NAME} - expands to the environment variable's value
//   - {file:path} - expands to file contents (escaped for JSON); paths may be
//     absolute, relative to the config file's directory, or ~/-prefixed
//
// Example:
//
//	{
//	  "history": {
//	    "backend": "redis",
//	    "redis": {
//	      "addr": "localhost:6379",
//	      "password": "{env:REDIS_PASSWORD}"
//	    }
//	  }
//	}
//
// # Environment Variable Overrides
//
//   - CHAINLIT_HOST, CHAINLIT_PORT - gateway listen address
//   - CHAINLIT_LOG_LEVEL - log level
//   - CHAINLIT_HISTORY_BACKEND, CHAINLIT_HISTORY_DIR - history store
//   - CHAINLIT_REDIS_ADDR, CHAINLIT_REDIS_PASSWORD - redis history store
//   - CHAINLIT_PROFILES_FILE - starters/profiles YAML
//   - CHAINLIT_CONFIG - path to a specific config file
//   - CHAINLIT_CONFIG_CONTENT - inline JSON configuration
//   - CHAINLIT_CONFIG_DIR - override the config directory location
//
// # Starters and Chat Profiles
//
// LoadProfiles reads a YAML file declaring starter messages and chat
// profiles, validated at startup (labels and names required, at most one
// default profile). Deployments with dynamic needs register provider hooks
// on the runtime instead.
//
// # Path Management
//
// The Paths type follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/chainlit (XDG_DATA_HOME)
//   - Config: ~/.config/chainlit (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/chainlit (XDG_CACHE_HOME)
//   - State: ~/.local/state/chainlit (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
package config

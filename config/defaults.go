package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"gdrivechat/mcp"
	"gdrivechat/storage"
)

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		DataDirectory: GetDefaultDataDir(),
		LogLevel:      "info",
		HistoryLimit:  storage.DefaultHistoryLimit,
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            3000,
			UserHeader:      "X-User-ID",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		MCP: MCPConfig{
			Enabled:          true,
			Package:          mcp.DefaultPackage,
			HandshakeTimeout: Duration(mcp.DefaultHandshakeTimeout),
			CallTimeout:      Duration(mcp.DefaultCallTimeout),
		},
		Google: GoogleConfig{
			RequestTimeout: Duration(30 * time.Second),
		},
		Keys: DefaultKeybindings(),
	}
}

// LoadDotEnv loads a .env file into the environment. A missing file is not
// an error, and variables already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadSettings decodes settingsPath over the defaults. A missing file yields
// the defaults.
func LoadSettings(settingsPath string) (*Config, error) {
	cfg := Default()

	if !FileExists(settingsPath) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(settingsPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown settings: %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Validate checks field constraints and keybindings.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if ok, msg := cfg.Keys.Validate(); !ok {
		return fmt.Errorf("%w: keys: %s", ErrInvalidConfig, msg)
	}

	return nil
}

// CreateDefaultSettings writes the settings template unless a file already
// exists. It reports whether a file was written.
func CreateDefaultSettings(settingsPath string) (bool, error) {
	if FileExists(settingsPath) {
		return false, nil
	}

	if err := EnsureDir(filepath.Dir(settingsPath)); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(settingsPath, []byte(GenerateSettingsTemplate()), 0600); err != nil {
		return false, fmt.Errorf("failed to write settings: %w", err)
	}

	return true, nil
}

func GenerateSettingsTemplate() string {
	return `# gdrivechat configuration
# Location: ~/.config/gdrivechat/settings.toml
# This file uses TOML format: https://toml.io
# Every value can also be set from the environment (see comments).

# Directory for the launch history database and debug.log (GDRIVECHAT_DATA_DIR)
data_directory = "~/.local/share/gdrivechat"

# debug, info, warn or error (GDRIVECHAT_LOG_LEVEL)
log_level = "info"

# Turns kept per user (GDRIVECHAT_HISTORY_LIMIT)
history_limit = 50

[server]
host = "127.0.0.1"           # GDRIVECHAT_HOST
port = 3000                  # PORT or GDRIVECHAT_PORT
user_header = "X-User-ID"    # GDRIVECHAT_USER_HEADER
shutdown_timeout = "10s"

[mcp]
# Start the Drive tool server at startup (GDRIVECHAT_MCP_ENABLED)
enabled = true
package = "@isaacphi/mcp-gdrive"
# Where the tool server stores its OAuth token (GDRIVE_CREDS_DIR)
# creds_dir = "~/.config/gdrivechat/creds"
handshake_timeout = "5s"
call_timeout = "30s"

# Explicit launch commands, tried before the discovered ones.
# GDRIVECHAT_MCP_COMMAND="node /path/to/dist/index.js" adds one from the environment.
#
# [[mcp.launch]]
# name = "local build"
# command = "node"
# args = ["/opt/mcp-gdrive/dist/index.js"]

[google]
# OAuth client for the Direct API backend and the tool server
# (GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REFRESH_TOKEN)
client_id = ""
client_secret = ""
refresh_token = ""
# Service account key file or inline JSON (GOOGLE_SERVICE_ACCOUNT_KEY)
service_account_key = ""
request_timeout = "30s"

[keys.modifiers]
primary = "alt"          # Options: alt, ctrl, meta, super
secondary = "alt+shift"

[keys.actions]
# Per-action overrides, for example:
#   yank_last_response = "ctrl+y"
#   quit = "ctrl+shift+q"
`
}

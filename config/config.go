// Package config loads gdrivechat settings from settings.toml, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gdrivechat/drive"
	"gdrivechat/mcp"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a string ("5s") in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port" validate:"min=1,max=65535"`
	UserHeader      string   `toml:"user_header" validate:"required"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" validate:"gt=0"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LaunchConfig is an explicit way to start the Drive tool server. Configured
// launches are tried before discovered ones.
type LaunchConfig struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command" validate:"required"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

type MCPConfig struct {
	Enabled          bool           `toml:"enabled"`
	Package          string         `toml:"package" validate:"required"`
	CredsDir         string         `toml:"creds_dir"`
	HandshakeTimeout Duration       `toml:"handshake_timeout" validate:"gt=0"`
	CallTimeout      Duration       `toml:"call_timeout" validate:"gt=0"`
	Launch           []LaunchConfig `toml:"launch" validate:"dive"`
}

type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret" validate:"required_with=ClientID"`
	RefreshToken string `toml:"refresh_token"`
	// ServiceAccountKey is a path to a key file or the key JSON itself.
	ServiceAccountKey string   `toml:"service_account_key"`
	RequestTimeout    Duration `toml:"request_timeout" validate:"gt=0"`
}

type Config struct {
	DataDirectory string            `toml:"data_directory" validate:"required"`
	LogLevel      string            `toml:"log_level" validate:"oneof=debug info warn error"`
	HistoryLimit  int               `toml:"history_limit" validate:"min=1,max=1000"`
	Server        ServerConfig      `toml:"server"`
	MCP           MCPConfig         `toml:"mcp"`
	Google        GoogleConfig      `toml:"google"`
	Keys          KeyBindingsConfig `toml:"keys"`
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// CredsDir is where the tool server keeps its OAuth tokens. It defaults to
// the working directory.
func (c *Config) CredsDir() string {
	if c.MCP.CredsDir != "" {
		return ExpandPath(c.MCP.CredsDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// LaunchStrategies converts the configured launches.
func (c *Config) LaunchStrategies() []mcp.Strategy {
	out := make([]mcp.Strategy, 0, len(c.MCP.Launch))
	for _, l := range c.MCP.Launch {
		out = append(out, mcp.Strategy{
			Name:    l.Name,
			Command: l.Command,
			Args:    append([]string(nil), l.Args...),
			Env:     l.Env,
		})
	}
	return out
}

// DriveCredentials resolves the Direct backend credentials. A service
// account key that is not JSON is read as a file path.
func (c *Config) DriveCredentials() (drive.Credentials, error) {
	creds := drive.Credentials{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RefreshToken: c.Google.RefreshToken,
	}

	key := strings.TrimSpace(c.Google.ServiceAccountKey)
	switch {
	case key == "":
	case strings.HasPrefix(key, "{"):
		creds.ServiceAccountJSON = []byte(key)
	default:
		data, err := os.ReadFile(ExpandPath(key))
		if err != nil {
			return creds, fmt.Errorf("failed to read service account key: %w", err)
		}
		creds.ServiceAccountJSON = data
	}

	return creds, nil
}

func CheckDebug() bool {
	debug := os.Getenv("GDRIVECHAT_DEBUG")
	return debug == "true" || debug == "1"
}

type envOverride struct {
	key   string
	apply func(c *Config, v string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setDuration(dst func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		return dst(c).UnmarshalText([]byte(v))
	}
}

func setPort(c *Config, v string) error {
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid port %q", v)
	}
	c.Server.Port = port
	return nil
}

// envOverrides is applied in order, so GDRIVECHAT_PORT wins over PORT.
var envOverrides = []envOverride{
	{"GDRIVECHAT_DATA_DIR", setString(func(c *Config) *string { return &c.DataDirectory })},
	{"GDRIVECHAT_LOG_LEVEL", setString(func(c *Config) *string { return &c.LogLevel })},
	{"GDRIVECHAT_HOST", setString(func(c *Config) *string { return &c.Server.Host })},
	{"PORT", setPort},
	{"GDRIVECHAT_PORT", setPort},
	{"GDRIVECHAT_USER_HEADER", setString(func(c *Config) *string { return &c.Server.UserHeader })},
	{"GDRIVECHAT_HISTORY_LIMIT", func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid history limit %q", v)
		}
		c.HistoryLimit = n
		return nil
	}},
	{"GDRIVECHAT_MCP_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		c.MCP.Enabled = b
		return nil
	}},
	{"GDRIVECHAT_MCP_PACKAGE", setString(func(c *Config) *string { return &c.MCP.Package })},
	{"GDRIVECHAT_MCP_COMMAND", func(c *Config, v string) error {
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		c.MCP.Launch = append([]LaunchConfig{{Name: "env", Command: fields[0], Args: fields[1:]}}, c.MCP.Launch...)
		return nil
	}},
	{"GDRIVECHAT_HANDSHAKE_TIMEOUT", setDuration(func(c *Config) *Duration { return &c.MCP.HandshakeTimeout })},
	{"GDRIVECHAT_CALL_TIMEOUT", setDuration(func(c *Config) *Duration { return &c.MCP.CallTimeout })},
	{"GDRIVE_CREDS_DIR", setString(func(c *Config) *string { return &c.MCP.CredsDir })},
	{"GOOGLE_CLIENT_ID", setString(func(c *Config) *string { return &c.Google.ClientID })},
	{"GOOGLE_CLIENT_SECRET", setString(func(c *Config) *string { return &c.Google.ClientSecret })},
	{"GOOGLE_REFRESH_TOKEN", setString(func(c *Config) *string { return &c.Google.RefreshToken })},
	{"GOOGLE_SERVICE_ACCOUNT_KEY", setString(func(c *Config) *string { return &c.Google.ServiceAccountKey })},
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.key, err))
		}
	}
	return errors.Join(errs...)
}

// Load reads settingsPath (GetSettingsFilePath when empty), loads .env from
// the working directory, applies environment overrides, validates, and
// creates the data directory.
func Load(settingsPath string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	if settingsPath == "" {
		settingsPath = GetSettingsFilePath()
	}

	cfg, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

// Package config loads statuscard settings from an optional YAML file and
// STATUSCARD_* environment variables. Environment values win over the file;
// defaults fill whatever is still empty.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "STATUSCARD_"

const (
	BackendZap     = "zap"
	BackendZerolog = "zerolog"

	FormatConsole = "console"
	FormatJSON    = "json"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Discord DiscordConfig `yaml:"discord" envPrefix:"DISCORD_"`
	GitHub  GitHubConfig  `yaml:"github" envPrefix:"GITHUB_"`
	HTTP    HTTPConfig    `yaml:"http" envPrefix:"HTTP_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Serve   ServeConfig   `yaml:"serve" envPrefix:"SERVE_"`
}

type DiscordConfig struct {
	UserID         string `yaml:"user_id" env:"USER_ID"`
	LanyardBaseURL string `yaml:"lanyard_base_url" env:"LANYARD_BASE_URL"`
	SocketURL      string `yaml:"socket_url" env:"SOCKET_URL"`
	// Reconnect turns on the channel's backoff supervisor.
	Reconnect bool `yaml:"reconnect" env:"RECONNECT"`
}

type GitHubConfig struct {
	Login   string `yaml:"login" env:"LOGIN"`
	Token   string `yaml:"token" env:"TOKEN"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	UserAgent  string        `yaml:"user_agent" env:"USER_AGENT"`
}

type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Backend string `yaml:"backend" env:"BACKEND"`
	Format  string `yaml:"format" env:"FORMAT"`
}

type ServeConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Load reads path (skipped when empty), overlays the environment and applies
// defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Discord.LanyardBaseURL == "" {
		c.Discord.LanyardBaseURL = "https://api.lanyard.rest"
	}

	if c.Discord.SocketURL == "" {
		c.Discord.SocketURL = "wss://api.lanyard.rest/socket"
	}

	if c.GitHub.BaseURL == "" {
		c.GitHub.BaseURL = "https://api.github.com"
	}

	c.GitHub.Login = strings.TrimPrefix(strings.TrimSpace(c.GitHub.Login), "@")

	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 10 * time.Second
	}

	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "statuscard/1.0"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Backend == "" {
		c.Log.Backend = BackendZap
	}

	if c.Log.Format == "" {
		c.Log.Format = FormatConsole
	}

	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
}

func (c Config) Validate() error {
	switch c.Log.Backend {
	case BackendZap, BackendZerolog:
	default:
		return fmt.Errorf("%w: log backend %q", ErrInvalid, c.Log.Backend)
	}

	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}

	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("%w: http max retries must not be negative", ErrInvalid)
	}

	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath = "MOVIEBOT_CONFIG"

	DefaultTMDBBaseURL     = "https://api.themoviedb.org/3"
	DefaultImageBaseURL    = "https://image.tmdb.org/t/p/w500"
	DefaultDownloadBaseURL = "https://newzbysms.com/"
	DefaultGatewayHost     = "0.0.0.0"
	DefaultGatewayPort     = 18790
)

// Config is the root runtime configuration. It is built from an optional
// config file with environment variables layered on top.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	TMDB     TMDBConfig     `json:"tmdb" yaml:"tmdb"`
	Links    LinksConfig    `json:"links" yaml:"links"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Disabled  bool     `json:"disabled" yaml:"disabled"`
	Token     string   `json:"token" yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from" env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
}

// TMDBConfig configures the movie metadata client.
type TMDBConfig struct {
	APIKey                string `json:"api_key" yaml:"api_key" env:"TMDB_API_KEY"`
	BaseURL               string `json:"base_url" yaml:"base_url" env:"TMDB_BASE_URL"`
	ImageBaseURL          string `json:"image_base_url" yaml:"image_base_url"`
	Language              string `json:"language,omitempty" yaml:"language,omitempty"`
	IncludeAdult          bool   `json:"include_adult,omitempty" yaml:"include_adult,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
}

// LinksConfig holds the external hosts used when building reply links.
type LinksConfig struct {
	DownloadBaseURL string `json:"download_base_url" yaml:"download_base_url"`
}

// GatewayConfig configures the status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host" env:"MOVIEBOT_GATEWAY_HOST"`
	Port int    `json:"port" yaml:"port" env:"MOVIEBOT_GATEWAY_PORT"`
}

// LoadConfig resolves the config file when one exists, unmarshals it, and
// applies environment overrides and defaults.
//
// A missing config file is not an error: the bot can run from environment
// variables alone.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(configPath, content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// decode picks the file format from its extension; anything that is not
// YAML is treated as JSON.
func decode(path string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	default:
		return json.Unmarshal(content, cfg)
	}
}

// applyEnvOverrides injects env-driven settings on top of file config.
// Unset variables leave file values untouched.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	cfg.Channels.Telegram.Token = strings.TrimSpace(cfg.Channels.Telegram.Token)
	cfg.TMDB.APIKey = strings.TrimSpace(cfg.TMDB.APIKey)
	cfg.Channels.Telegram.AllowFrom = compact(cfg.Channels.Telegram.AllowFrom)

	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.TMDB.BaseURL) == "" {
		cfg.TMDB.BaseURL = DefaultTMDBBaseURL
	}
	if strings.TrimSpace(cfg.TMDB.ImageBaseURL) == "" {
		cfg.TMDB.ImageBaseURL = DefaultImageBaseURL
	}
	if strings.TrimSpace(cfg.Links.DownloadBaseURL) == "" {
		cfg.Links.DownloadBaseURL = DefaultDownloadBaseURL
	}
	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		cfg.Gateway.Host = DefaultGatewayHost
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
}

// compact trims values and drops empty entries.
func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	if len(clean) == 0 {
		return nil
	}

	return clean
}

// findConfigPath resolves the active config file location.
//
// Precedence is MOVIEBOT_CONFIG first, then cwd-local fallback paths. An
// empty path with a nil error means no file was found.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}

	return "", nil
}

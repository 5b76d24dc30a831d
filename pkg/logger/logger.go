package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"moviebot/pkg/config"
)

const (
	envLogFormat    = "MOVIEBOT_LOG_FORMAT"
	envLogLevel     = "MOVIEBOT_LOG_LEVEL"
	envLogAddSource = "MOVIEBOT_LOG_ADD_SOURCE"

	previewLimit = 240
)

// settings is the resolved logging configuration after env overrides.
type settings struct {
	json      bool
	level     slog.Level
	addSource bool
}

// New builds the process logger writing to stderr.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

// Component returns a child logger tagged with the component name. A nil
// base falls back to slog.Default.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}

// Preview returns a bounded, log-safe preview of user supplied text.
func Preview(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > previewLimit {
		return trimmed[:previewLimit] + "..."
	}
	return trimmed
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	if s.json {
		return slog.New(newJSONHandler(w, s.level, s.addSource)), nil
	}

	// charm levels share slog's numeric scale.
	return slog.New(charmLog.NewWithOptions(w, charmLog.Options{
		Level:           charmLog.Level(s.level),
		ReportTimestamp: true,
		ReportCaller:    s.addSource,
		Formatter:       charmLog.TextFormatter,
	})), nil
}

// resolve applies MOVIEBOT_LOG_* overrides on top of the file settings.
func resolve(cfg config.LoggingConfig) (settings, error) {
	var s settings

	switch format := override(envLogFormat, cfg.Format); format {
	case "", "text":
	case "json":
		s.json = true
	default:
		return settings{}, fmt.Errorf("unsupported log format %q", format)
	}

	level, err := parseLevel(override(envLogLevel, cfg.Level))
	if err != nil {
		return settings{}, err
	}
	s.level = level

	s.addSource = cfg.AddSource
	if raw := override(envLogAddSource, ""); raw != "" {
		s.addSource = raw == "1" || raw == "true" || raw == "yes" || raw == "on"
	}

	return s, nil
}

// override returns the normalized env value for key, or fallback when unset.
func override(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		fallback = v
	}
	return strings.ToLower(strings.TrimSpace(fallback))
}

func parseLevel(text string) (slog.Level, error) {
	switch text {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", text)
	}
	return level, nil
}

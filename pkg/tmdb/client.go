package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"moviebot/pkg/config"
	"moviebot/pkg/logger"
)

const (
	searchMoviePath   = "/search/movie"
	configurationPath = "/configuration"
)

// Client queries the TMDB v3 API.
type Client struct {
	http         *resty.Client
	apiKey       string
	language     string
	includeAdult bool
	log          *slog.Logger
}

// NewClient builds a client from config. A missing API key is not rejected
// here; TMDB answers 401 and lookups degrade to a service error.
func NewClient(cfg config.TMDBConfig, log *slog.Logger) *Client {
	log = logger.Component(log, "tmdb.client")

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultTMDBBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{log: log})
	if cfg.RequestTimeoutSeconds > 0 {
		httpClient.SetTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second)
	}

	return &Client{
		http:         httpClient,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		language:     strings.TrimSpace(cfg.Language),
		includeAdult: cfg.IncludeAdult,
		log:          log,
	}
}

// SearchMovie runs one /search/movie request and returns the first match.
//
// The query is forwarded as-is, empty strings included. Transport failures,
// non-2xx statuses and undecodable bodies all become ServiceError.
func (c *Client) SearchMovie(ctx context.Context, query string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	log := c.log.With("operation", "search_movie")
	startedAt := time.Now()
	log.Debug("tmdb request started", "query", logger.Preview(query))

	params := map[string]string{
		"api_key": c.apiKey,
		"query":   query,
	}
	if c.language != "" {
		params["language"] = c.language
	}
	if c.includeAdult {
		params["include_adult"] = strconv.FormatBool(true)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(searchMoviePath)
	if err != nil {
		log.Debug("tmdb request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return ServiceError(fmt.Errorf("search movie: %w", err))
	}
	if !resp.IsSuccess() {
		statusErr := &StatusError{Code: resp.StatusCode(), Body: resp.String()}
		log.Debug("tmdb request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", resp.StatusCode())
		return ServiceError(fmt.Errorf("search movie: %w", statusErr))
	}

	var payload searchResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		log.Debug("tmdb response undecodable", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return ServiceError(fmt.Errorf("decode search response: %w", err))
	}

	log.Debug("tmdb request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "results", len(payload.Results))
	if len(payload.Results) == 0 {
		return NotFound()
	}

	return Found(payload.Results[0].movie())
}

// Health checks that TMDB is reachable and accepts the configured key.
func (c *Client) Health(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		Get(configurationPath)
	if err != nil {
		return fmt.Errorf("tmdb health check: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("tmdb health check: %w", &StatusError{Code: resp.StatusCode(), Body: resp.String()})
	}

	return nil
}

// restyLogger routes resty's internal warnings through slog.
type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

package tmdb

import (
	"fmt"
	"strings"
)

const (
	DefaultTitle    = "No Title"
	DefaultOverview = "No Description Available."
)

// Movie is the normalized first search match.
type Movie struct {
	ID          int
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate string
}

// HasPoster reports whether TMDB returned a poster path for the movie.
func (m Movie) HasPoster() bool {
	return strings.TrimSpace(m.PosterPath) != ""
}

// Status tags the result of one lookup.
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
	StatusServiceError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusServiceError:
		return "service_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the tagged result of SearchMovie. Movie is only meaningful
// for StatusFound and Err only for StatusServiceError.
type Outcome struct {
	Status Status
	Movie  Movie
	Err    error
}

func Found(movie Movie) Outcome {
	return Outcome{Status: StatusFound, Movie: movie}
}

func NotFound() Outcome {
	return Outcome{Status: StatusNotFound}
}

func ServiceError(err error) Outcome {
	return Outcome{Status: StatusServiceError, Err: err}
}

// StatusError is returned for non-2xx answers from the TMDB API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("tmdb returned status %d", e.Code)
	}

	return fmt.Sprintf("tmdb returned status %d: %s", e.Code, body)
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []searchRecord `json:"results"`
	TotalResults int            `json:"total_results"`
}

// searchRecord mirrors one entry of /search/movie. Pointer fields separate
// a missing or null value from an empty string.
type searchRecord struct {
	ID          int     `json:"id"`
	Title       *string `json:"title"`
	Overview    *string `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
}

func (r searchRecord) movie() Movie {
	movie := Movie{
		ID:          r.ID,
		Title:       DefaultTitle,
		Overview:    DefaultOverview,
		ReleaseDate: r.ReleaseDate,
	}
	if r.Title != nil {
		movie.Title = *r.Title
	}
	if r.Overview != nil {
		movie.Overview = *r.Overview
	}
	if r.PosterPath != nil {
		movie.PosterPath = *r.PosterPath
	}

	return movie
}

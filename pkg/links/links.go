// Package links builds the outbound URLs attached to movie replies.
package links

import (
	"net/url"
	"strings"
)

// downloadQueryKey is the search parameter understood by the download host.
const downloadQueryKey = "s"

// DownloadLink returns the download-search URL for title on base.
//
// Whitespace runs in the title collapse to single separators and the value
// is query-encoded, so spaces become "+" and reserved characters are escaped.
// Existing query parameters on base are preserved.
func DownloadLink(base string, title string) string {
	joined := strings.Join(strings.Fields(title), " ")

	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return strings.TrimSpace(base) + "?" + url.Values{downloadQueryKey: {joined}}.Encode()
	}

	query := u.Query()
	query.Set(downloadQueryKey, joined)
	u.RawQuery = query.Encode()

	return u.String()
}

// PosterURL joins the image host base with a poster path. An empty path means
// the movie has no poster and yields an empty URL.
func PosterURL(base string, posterPath string) string {
	path := strings.TrimSpace(posterPath)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

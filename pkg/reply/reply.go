// Package reply turns lookup outcomes into chat replies.
package reply

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"moviebot/pkg/config"
	"moviebot/pkg/links"
	"moviebot/pkg/tmdb"
)

const (
	WelcomeText  = "🎬 Welcome! Send me a movie name and I’ll get the info + download link."
	NotFoundText = "😔 Sorry, movie not found."
	ButtonLabel  = "🔗 Download from Newzbysms"
	linkLabel    = "Download Here"

	// ParseModeMarkdown selects Telegram's legacy Markdown dialect.
	ParseModeMarkdown = "Markdown"

	// maxCaptionLength is Telegram's photo caption limit in characters.
	maxCaptionLength = 1024
)

type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindPhoto
	KindText
	KindWelcome
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindText:
		return "text"
	case KindNotFound:
		return "not_found"
	case KindWelcome:
		return "welcome"
	case KindNone:
		return "none"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Button is an inline link shown under a photo reply.
type Button struct {
	Label string
	URL   string
}

// Reply is one outbound message. For KindPhoto, Text is the caption. The
// zero Reply (KindNone) means nothing is sent.
type Reply struct {
	Kind      Kind
	PhotoURL  string
	Text      string
	ParseMode string
	Button    *Button
}

// Composer renders replies using fixed image and download hosts.
type Composer struct {
	ImageBaseURL    string
	DownloadBaseURL string
}

// NewComposer builds a composer from config, falling back to the default hosts.
func NewComposer(tmdbCfg config.TMDBConfig, linksCfg config.LinksConfig) *Composer {
	c := &Composer{
		ImageBaseURL:    strings.TrimSpace(tmdbCfg.ImageBaseURL),
		DownloadBaseURL: strings.TrimSpace(linksCfg.DownloadBaseURL),
	}
	if c.ImageBaseURL == "" {
		c.ImageBaseURL = config.DefaultImageBaseURL
	}
	if c.DownloadBaseURL == "" {
		c.DownloadBaseURL = config.DefaultDownloadBaseURL
	}

	return c
}

// Welcome is the fixed reply to /start.
func Welcome() Reply {
	return Reply{Kind: KindWelcome, Text: WelcomeText}
}

// NotFound is the fixed apology. Service errors share it.
func NotFound() Reply {
	return Reply{Kind: KindNotFound, Text: NotFoundText}
}

// Compose maps a lookup outcome to exactly one reply.
func (c *Composer) Compose(outcome tmdb.Outcome) Reply {
	if outcome.Status != tmdb.StatusFound {
		return NotFound()
	}

	movie := outcome.Movie
	downloadLink := links.DownloadLink(c.DownloadBaseURL, movie.Title)

	if !movie.HasPoster() {
		return Reply{
			Kind:      KindText,
			Text:      Caption(movie.Title, movie.Overview, downloadLink, 0),
			ParseMode: ParseModeMarkdown,
		}
	}

	return Reply{
		Kind:      KindPhoto,
		PhotoURL:  links.PosterURL(c.ImageBaseURL, movie.PosterPath),
		Text:      Caption(movie.Title, movie.Overview, downloadLink, maxCaptionLength),
		ParseMode: ParseModeMarkdown,
		Button:    &Button{Label: ButtonLabel, URL: downloadLink},
	}
}

// Caption formats the movie caption in legacy Markdown. When limit is
// positive the overview is shortened so the rendered caption fits.
func Caption(title string, overview string, downloadLink string, limit int) string {
	head := "🎬 " + BoldTitle(title) + "\n\n📝 "
	tail := "\n\n🔗 [" + linkLabel + "](" + downloadLink + ")"
	body := EscapeMarkdown(overview)

	if limit > 0 {
		budget := limit - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
		body = truncateRunes(body, budget)
	}

	return head + body + tail
}

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// BoldTitle renders title in bold. Legacy Markdown reads an entity
// verbatim up to its closing delimiter, so only '*' needs handling: each one
// closes the bold run, is emitted as an escaped literal and the run reopens.
func BoldTitle(title string) string {
	var b strings.Builder
	for i, part := range strings.Split(title, "*") {
		if i > 0 {
			b.WriteString(`\*`)
		}
		if part != "" {
			b.WriteString("*" + part + "*")
		}
	}

	return b.String()
}

// EscapeMarkdown escapes the characters legacy Markdown treats as entity
// delimiters. Only valid for text outside an entity.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// truncateRunes shortens text to at most limit runes, ending with an
// ellipsis, without cutting an escape sequence in half.
func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 1 {
		return ""
	}

	runes := []rune(text)[:limit-1]
	if n := len(runes); n > 0 && runes[n-1] == '\\' {
		runes = runes[:n-1]
	}

	return strings.TrimRight(string(runes), " \n") + "…"
}

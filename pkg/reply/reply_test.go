package reply

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"moviebot/pkg/config"
	"moviebot/pkg/tmdb"
)

func newTestComposer() *Composer {
	return NewComposer(config.TMDBConfig{}, config.LinksConfig{})
}

func TestComposeFoundWithPoster(t *testing.T) {
	t.Parallel()

	got := newTestComposer().Compose(tmdb.Found(tmdb.Movie{
		Title:      "Inception",
		Overview:   "A thief...",
		PosterPath: "/abc.jpg",
	}))

	if got.Kind != KindPhoto {
		t.Fatalf("kind = %s, want %s", got.Kind, KindPhoto)
	}
	if got.PhotoURL != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Fatalf("photo url = %q", got.PhotoURL)
	}
	if !strings.HasSuffix(got.PhotoURL, "/abc.jpg") {
		t.Fatalf("photo url = %q, want suffix /abc.jpg", got.PhotoURL)
	}

	want := "🎬 *Inception*\n\n📝 A thief...\n\n🔗 [Download Here](https://newzbysms.com/?s=Inception)"
	if got.Text != want {
		t.Fatalf("caption = %q, want %q", got.Text, want)
	}
	if got.ParseMode != ParseModeMarkdown {
		t.Fatalf("parse mode = %q, want %q", got.ParseMode, ParseModeMarkdown)
	}
	if got.Button == nil {
		t.Fatal("expected download button")
	}
	if got.Button.Label != ButtonLabel || got.Button.URL != "https://newzbysms.com/?s=Inception" {
		t.Fatalf("button = %+v", *got.Button)
	}
}

func TestComposeFoundWithoutPoster(t *testing.T) {
	t.Parallel()

	got := newTestComposer().Compose(tmdb.Found(tmdb.Movie{Title: "The Dark Knight", Overview: "Batman."}))

	if got.Kind != KindText {
		t.Fatalf("kind = %s, want %s", got.Kind, KindText)
	}
	if got.PhotoURL != "" {
		t.Fatalf("photo url = %q, want empty", got.PhotoURL)
	}
	if got.Button != nil {
		t.Fatalf("button = %+v, want nil", *got.Button)
	}
	if !strings.Contains(got.Text, "*The Dark Knight*") || !strings.Contains(got.Text, "Batman.") {
		t.Fatalf("caption = %q, want title and overview", got.Text)
	}
	if !strings.Contains(got.Text, "(https://newzbysms.com/?s=The+Dark+Knight)") {
		t.Fatalf("caption = %q, want joined download link", got.Text)
	}
}

func TestComposeNotFoundAndServiceErrorShareApology(t *testing.T) {
	t.Parallel()

	composer := newTestComposer()
	for _, outcome := range []tmdb.Outcome{tmdb.NotFound(), tmdb.ServiceError(errors.New("tmdb down"))} {
		got := composer.Compose(outcome)
		if got.Kind != KindNotFound {
			t.Fatalf("kind = %s, want %s", got.Kind, KindNotFound)
		}
		if got.Text != NotFoundText {
			t.Fatalf("text = %q, want %q", got.Text, NotFoundText)
		}
		if got.ParseMode != "" || got.PhotoURL != "" || got.Button != nil {
			t.Fatalf("reply = %+v, want plain apology", got)
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	t.Parallel()

	composer := newTestComposer()
	outcome := tmdb.Found(tmdb.Movie{Title: "Up", Overview: "Balloons.", PosterPath: "/up.jpg"})

	first := composer.Compose(outcome)
	second := composer.Compose(outcome)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replies differ: %+v vs %+v", first, second)
	}
}

func TestComposeUsesConfiguredHosts(t *testing.T) {
	t.Parallel()

	composer := NewComposer(
		config.TMDBConfig{ImageBaseURL: "https://img.example/t/p/original"},
		config.LinksConfig{DownloadBaseURL: "https://dl.example/"},
	)
	got := composer.Compose(tmdb.Found(tmdb.Movie{Title: "Up", Overview: "x", PosterPath: "/up.jpg"}))

	if got.PhotoURL != "https://img.example/t/p/original/up.jpg" {
		t.Fatalf("photo url = %q", got.PhotoURL)
	}
	if got.Button == nil || got.Button.URL != "https://dl.example/?s=Up" {
		t.Fatalf("button = %+v", got.Button)
	}
}

func TestCaptionParsesAsLegacyMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title    string
		overview string
	}{
		{title: "M*A*S*H", overview: "Korean War surgeons."},
		{title: "*batteries not included", overview: "Tiny aliens."},
		{title: "Kill_Bill", overview: "Revenge."},
		{title: "Lock_Stock *2*", overview: "Uses `code` and [brackets] and *stars*_"},
		{title: "[REC]", overview: "Found footage."},
		{title: "`quoted`", overview: "x_y"},
	}

	composer := NewComposer(config.TMDBConfig{}, config.LinksConfig{})
	for _, tt := range tests {
		got := composer.Compose(tmdb.Found(tmdb.Movie{Title: tt.title, Overview: tt.overview, PosterPath: "/p.jpg"}))

		rendered, ok := renderLegacyMarkdown(got.Text)
		if !ok {
			t.Fatalf("caption for %q does not parse: %q", tt.title, got.Text)
		}
		lines := strings.Split(rendered, "\n")
		if lines[0] != "🎬 "+tt.title {
			t.Fatalf("rendered title = %q, want %q", lines[0], "🎬 "+tt.title)
		}
		if lines[2] != "📝 "+tt.overview {
			t.Fatalf("rendered overview = %q, want %q", lines[2], "📝 "+tt.overview)
		}
	}
}

func TestBoldTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Inception":               "*Inception*",
		"Kill_Bill":               "*Kill_Bill*",
		"M*A*S*H":                 `*M*\**A*\**S*\**H*`,
		"*batteries not included": `\**batteries not included*`,
		"*":                       `\*`,
	}
	for title, want := range tests {
		if got := BoldTitle(title); got != want {
			t.Fatalf("BoldTitle(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	t.Parallel()

	got := EscapeMarkdown("Uses `code` and [brackets] *2*_")
	if got != "Uses \\`code\\` and \\[brackets] \\*2\\*\\_" {
		t.Fatalf("EscapeMarkdown = %q", got)
	}
}

// renderLegacyMarkdown follows Telegram's legacy Markdown rules: outside an
// entity a backslash escapes one of _*`[, inside an entity text is taken
// verbatim up to the closing delimiter, and an unclosed entity is an error.
// It returns the visible text.
func renderLegacyMarkdown(text string) (string, bool) {
	runes := []rune(text)
	var b strings.Builder

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 < len(runes) && strings.ContainsRune("_*`[", runes[i+1]) {
				b.WriteRune(runes[i+1])
				i++
				continue
			}
			b.WriteRune(c)
		case '_', '*', '`':
			end := indexRune(runes, i+1, c)
			if end < 0 {
				return "", false
			}
			b.WriteString(string(runes[i+1 : end]))
			i = end
		case '[':
			end := indexRune(runes, i+1, ']')
			if end < 0 {
				return "", false
			}
			b.WriteString(string(runes[i+1 : end]))
			i = end
			if i+1 < len(runes) && runes[i+1] == '(' {
				urlEnd := indexRune(runes, i+2, ')')
				if urlEnd < 0 {
					return "", false
				}
				i = urlEnd
			}
		default:
			b.WriteRune(c)
		}
	}

	return b.String(), true
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}

	return -1
}

func TestCaptionTruncatesToLimit(t *testing.T) {
	t.Parallel()

	overview := strings.Repeat("word ", 400)
	got := Caption("Long", overview, "https://newzbysms.com/?s=Long", maxCaptionLength)

	if n := utf8.RuneCountInString(got); n > maxCaptionLength {
		t.Fatalf("caption length = %d, want <= %d", n, maxCaptionLength)
	}
	if !strings.Contains(got, "…") {
		t.Fatal("expected ellipsis in truncated caption")
	}
	if !strings.HasSuffix(got, "(https://newzbysms.com/?s=Long)") {
		t.Fatalf("caption = %q, want download link kept", got[len(got)-60:])
	}
}

func TestTruncateRunesDoesNotSplitEscape(t *testing.T) {
	t.Parallel()

	if got := truncateRunes(`abc\_def`, 5); got != "abc…" {
		t.Fatalf("truncateRunes = %q, want %q", got, "abc…")
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("truncateRunes = %q, want unchanged", got)
	}
}

func TestWelcome(t *testing.T) {
	t.Parallel()

	got := Welcome()
	if got.Kind != KindWelcome || got.Text != WelcomeText {
		t.Fatalf("welcome = %+v", got)
	}
}

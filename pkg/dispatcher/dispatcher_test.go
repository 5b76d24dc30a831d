package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"moviebot/pkg/bus"
	"moviebot/pkg/config"
	"moviebot/pkg/reply"
	"moviebot/pkg/tmdb"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	outcome tmdb.Outcome
}

func (s *fakeSearcher) SearchMovie(_ context.Context, query string) tmdb.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.outcome
}

func (s *fakeSearcher) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event bus.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return true
}

func (p *recordingPublisher) types() []bus.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bus.EventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

func newTestDispatcher(t *testing.T, outcome tmdb.Outcome) (*Dispatcher, *fakeSearcher, *recordingPublisher) {
	t.Helper()

	searcher := &fakeSearcher{outcome: outcome}
	events := &recordingPublisher{}
	d, err := New(
		searcher,
		reply.NewComposer(config.TMDBConfig{}, config.LinksConfig{}),
		events,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	return d, searcher, events
}

func inboundText(text string) bus.InboundMessage {
	return bus.InboundMessage{Channel: "telegram", ChatID: "42", SenderID: "7", SessionKey: "telegram:42", Content: text}
}

func TestHandleFoundWithPoster(t *testing.T) {
	t.Parallel()

	d, searcher, events := newTestDispatcher(t, tmdb.Found(tmdb.Movie{
		Title:      "Inception",
		Overview:   "A thief...",
		PosterPath: "/abc.jpg",
	}))

	out, err := d.Handle(context.Background(), inboundText("Inception"))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	if got := searcher.calls(); !reflect.DeepEqual(got, []string{"Inception"}) {
		t.Fatalf("queries = %v, want [Inception]", got)
	}
	if out.ChatID != "42" || out.Channel != "telegram" {
		t.Fatalf("outbound routing = %s/%s, want telegram/42", out.Channel, out.ChatID)
	}
	if !strings.HasSuffix(out.PhotoURL, "/abc.jpg") {
		t.Fatalf("photo url = %q, want suffix /abc.jpg", out.PhotoURL)
	}
	if !strings.Contains(out.Content, "Inception") || !strings.Contains(out.Content, "A thief...") {
		t.Fatalf("caption = %q, want title and overview", out.Content)
	}
	if !strings.Contains(out.Content, "https://newzbysms.com/?s=Inception") {
		t.Fatalf("caption = %q, want download link", out.Content)
	}
	if len(out.Buttons) != 1 || out.Buttons[0].URL != "https://newzbysms.com/?s=Inception" {
		t.Fatalf("buttons = %+v, want one download button", out.Buttons)
	}
	if out.ParseMode != reply.ParseModeMarkdown {
		t.Fatalf("parse mode = %q, want %q", out.ParseMode, reply.ParseModeMarkdown)
	}
	if out.Metadata[bus.PayloadReplyKind] != "photo" {
		t.Fatalf("reply kind = %q, want photo", out.Metadata[bus.PayloadReplyKind])
	}
	if out.Metadata["request_id"] == "" {
		t.Fatal("expected request id metadata")
	}

	want := []bus.EventType{bus.EventMessageReceived, bus.EventLookupCompleted}
	if got := events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestHandleFoundWithoutPosterHasNoImage(t *testing.T) {
	t.Parallel()

	d, _, _ := newTestDispatcher(t, tmdb.Found(tmdb.Movie{Title: "Obscure", Overview: "Rare."}))

	out, err := d.Handle(context.Background(), inboundText("Obscure"))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if out.HasPhoto() {
		t.Fatalf("photo url = %q, want none", out.PhotoURL)
	}
	if len(out.Buttons) != 0 {
		t.Fatalf("buttons = %+v, want none", out.Buttons)
	}
	if !strings.Contains(out.Content, "Obscure") {
		t.Fatalf("content = %q, want title", out.Content)
	}
}

func TestHandleNotFoundAndServiceErrorReplyWithApology(t *testing.T) {
	t.Parallel()

	for _, outcome := range []tmdb.Outcome{tmdb.NotFound(), tmdb.ServiceError(errors.New("status 503"))} {
		d, _, events := newTestDispatcher(t, outcome)

		out, err := d.Handle(context.Background(), inboundText("Zzzznotamovie123"))
		if err != nil {
			t.Fatalf("Handle error: %v", err)
		}
		if out.Content != reply.NotFoundText {
			t.Fatalf("content = %q, want %q", out.Content, reply.NotFoundText)
		}
		if out.HasPhoto() || out.ParseMode != "" {
			t.Fatalf("outbound = %+v, want plain apology", out)
		}

		var lookup bus.Event
		for _, event := range events.events {
			if event.Type == bus.EventLookupCompleted {
				lookup = event
			}
		}
		if lookup.Payload[bus.PayloadOutcome] != outcome.Status.String() {
			t.Fatalf("outcome payload = %q, want %q", lookup.Payload[bus.PayloadOutcome], outcome.Status.String())
		}
	}
}

func TestHandleStartCommandSkipsLookup(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"/start", "/start please", "/start@MovieBot", "  /START  deep-link"} {
		d, searcher, events := newTestDispatcher(t, tmdb.Found(tmdb.Movie{Title: "x"}))

		out, err := d.Handle(context.Background(), inboundText(text))
		if err != nil {
			t.Fatalf("Handle(%q) error: %v", text, err)
		}
		if out.Content != reply.WelcomeText {
			t.Fatalf("Handle(%q) content = %q, want welcome", text, out.Content)
		}
		if calls := searcher.calls(); len(calls) != 0 {
			t.Fatalf("Handle(%q) performed lookup %v", text, calls)
		}
		want := []bus.EventType{bus.EventMessageReceived, bus.EventCommandHandled}
		if got := events.types(); !reflect.DeepEqual(got, want) {
			t.Fatalf("Handle(%q) events = %v, want %v", text, got, want)
		}
	}
}

func TestHandleOtherCommandsAreIgnored(t *testing.T) {
	t.Parallel()

	d, searcher, events := newTestDispatcher(t, tmdb.NotFound())

	out, err := d.Handle(context.Background(), inboundText("/help"))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !out.Empty() {
		t.Fatalf("outbound = %+v, want empty", out)
	}
	if calls := searcher.calls(); len(calls) != 0 {
		t.Fatalf("performed lookup %v", calls)
	}
	want := []bus.EventType{bus.EventMessageReceived, bus.EventCommandIgnored}
	if got := events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestHandleSameQueryTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	d, _, _ := newTestDispatcher(t, tmdb.Found(tmdb.Movie{Title: "Up", Overview: "Balloons.", PosterPath: "/up.jpg"}))

	first, err := d.Handle(context.Background(), inboundText("Up"))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	second, err := d.Handle(context.Background(), inboundText("Up"))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	delete(first.Metadata, "request_id")
	delete(second.Metadata, "request_id")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replies differ:\n%+v\n%+v", first, second)
	}
}

func TestHandleConcurrentMessages(t *testing.T) {
	t.Parallel()

	d, searcher, _ := newTestDispatcher(t, tmdb.NotFound())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := d.Handle(context.Background(), inboundText("movie"))
			if err != nil || out.Content != reply.NotFoundText {
				t.Errorf("Handle = %+v, %v", out, err)
			}
		}()
	}
	wg.Wait()

	if got := len(searcher.calls()); got != 20 {
		t.Fatalf("lookups = %d, want 20", got)
	}
}

func TestHandleWithoutPublisher(t *testing.T) {
	t.Parallel()

	d, err := New(&fakeSearcher{outcome: tmdb.NotFound()}, reply.NewComposer(config.TMDBConfig{}, config.LinksConfig{}), nil, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if out, _ := d.Handle(context.Background(), inboundText("x")); out.Content != reply.NotFoundText {
		t.Fatalf("content = %q, want apology", out.Content)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	composer := reply.NewComposer(config.TMDBConfig{}, config.LinksConfig{})
	if _, err := New(nil, composer, nil, nil); err == nil {
		t.Fatal("expected error without searcher")
	}
	if _, err := New(&fakeSearcher{}, nil, nil, nil); err == nil {
		t.Fatal("expected error without composer")
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantCmd bool
	}{
		{input: "/start", want: "start", wantCmd: true},
		{input: "/start arg one", want: "start", wantCmd: true},
		{input: "/Start@MovieBot", want: "start", wantCmd: true},
		{input: " /help ", want: "help", wantCmd: true},
		{input: "Inception", wantCmd: false},
		{input: "/", wantCmd: false},
		{input: "", wantCmd: false},
		{input: "start", wantCmd: false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.input)
		if ok != tt.wantCmd || got != tt.want {
			t.Fatalf("ParseCommand(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantCmd)
		}
	}
}

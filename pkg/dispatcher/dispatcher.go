// Package dispatcher maps inbound chat messages to movie replies.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"moviebot/pkg/bus"
	"moviebot/pkg/logger"
	"moviebot/pkg/reply"
	"moviebot/pkg/tmdb"
)

const startCommand = "start"

// Searcher is the metadata lookup used for every non-command message.
type Searcher interface {
	SearchMovie(ctx context.Context, query string) tmdb.Outcome
}

// EventPublisher receives request lifecycle events. *bus.Bus satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event bus.Event) bool
}

// Dispatcher handles each message independently and keeps no state between
// calls, so Handle is safe for concurrent use.
type Dispatcher struct {
	searcher Searcher
	composer *reply.Composer
	events   EventPublisher
	log      *slog.Logger
}

func New(searcher Searcher, composer *reply.Composer, events EventPublisher, log *slog.Logger) (*Dispatcher, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if composer == nil {
		return nil, errors.New("composer is required")
	}

	return &Dispatcher{
		searcher: searcher,
		composer: composer,
		events:   events,
		log:      logger.Component(log, "dispatcher"),
	}, nil
}

// Handle produces the reply for one inbound message. It matches
// channel.Handler.
//
// /start yields the welcome text without a lookup, other commands yield an
// empty outbound message (nothing is sent), and any other text is looked up.
func (d *Dispatcher) Handle(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	requestID := uuid.NewString()
	log := d.log.With("request_id", requestID, "chat_id", inbound.ChatID)

	d.publish(ctx, inbound, requestID, bus.EventMessageReceived, nil)

	if command, ok := ParseCommand(inbound.Content); ok {
		if command != startCommand {
			log.Debug("Ignoring unsupported command", "command", command)
			d.publish(ctx, inbound, requestID, bus.EventCommandIgnored, map[string]string{bus.PayloadCommand: command})
			return outbound(inbound, requestID, reply.Reply{}), nil
		}

		d.publish(ctx, inbound, requestID, bus.EventCommandHandled, map[string]string{bus.PayloadCommand: command})
		return outbound(inbound, requestID, reply.Welcome()), nil
	}

	result := d.Lookup(ctx, inbound.Content, requestID)
	d.publish(ctx, inbound, requestID, bus.EventLookupCompleted, map[string]string{
		bus.PayloadOutcome:    result.Outcome.Status.String(),
		bus.PayloadDurationMS: strconv.FormatInt(result.Duration.Milliseconds(), 10),
	})

	return outbound(inbound, requestID, result.Reply), nil
}

// LookupResult is a composed reply plus the outcome it was built from.
type LookupResult struct {
	Outcome  tmdb.Outcome
	Reply    reply.Reply
	Duration time.Duration
}

// Lookup searches for query and composes the reply. Service errors are
// logged here and collapse into the not-found reply.
func (d *Dispatcher) Lookup(ctx context.Context, query string, requestID string) LookupResult {
	log := d.log.With("request_id", requestID)

	startedAt := time.Now()
	outcome := d.searcher.SearchMovie(ctx, query)
	duration := time.Since(startedAt)

	switch outcome.Status {
	case tmdb.StatusFound:
		log.Info("Movie found", "query", logger.Preview(query), "title", outcome.Movie.Title, "duration_ms", duration.Milliseconds())
	case tmdb.StatusServiceError:
		log.Warn("Movie lookup failed", "query", logger.Preview(query), "error", outcome.Err, "duration_ms", duration.Milliseconds())
	default:
		log.Info("Movie not found", "query", logger.Preview(query), "duration_ms", duration.Milliseconds())
	}

	return LookupResult{
		Outcome:  outcome,
		Reply:    d.composer.Compose(outcome),
		Duration: duration,
	}
}

func (d *Dispatcher) publish(ctx context.Context, inbound bus.InboundMessage, requestID string, eventType bus.EventType, payload map[string]string) {
	if d.events == nil {
		return
	}

	d.events.PublishEvent(ctx, bus.Event{
		Type:       eventType,
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		RequestID:  requestID,
		Payload:    payload,
	})
}

// ParseCommand reports whether text is a bot command and returns its
// lower-cased name without the leading slash or @botname suffix.
func ParseCommand(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}

	head := trimmed[1:]
	if idx := strings.IndexAny(head, " \t\n"); idx >= 0 {
		head = head[:idx]
	}
	if idx := strings.Index(head, "@"); idx >= 0 {
		head = head[:idx]
	}
	if head == "" {
		return "", false
	}

	return strings.ToLower(head), true
}

func outbound(inbound bus.InboundMessage, requestID string, r reply.Reply) bus.OutboundMessage {
	out := bus.OutboundMessage{
		Channel:    inbound.Channel,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		Content:    r.Text,
		PhotoURL:   r.PhotoURL,
		ParseMode:  r.ParseMode,
		Metadata: map[string]string{
			"request_id":        requestID,
			bus.PayloadReplyKind: r.Kind.String(),
		},
	}
	if r.Button != nil {
		out.Buttons = []bus.Button{{Label: r.Button.Label, URL: r.Button.URL}}
	}

	return out
}

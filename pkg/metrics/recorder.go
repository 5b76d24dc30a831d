package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"moviebot/pkg/bus"
	"moviebot/pkg/logger"
)

// Recorder turns bus events into metric updates.
type Recorder struct {
	log *slog.Logger
}

func NewRecorder(log *slog.Logger) *Recorder {
	return &Recorder{log: logger.Component(log, "metrics")}
}

// Run consumes events until ctx is canceled or the channel closes.
func (r *Recorder) Run(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.Observe(event)
		}
	}
}

// Observe records a single event. Unknown event types are ignored.
func (r *Recorder) Observe(event bus.Event) {
	switch event.Type {
	case bus.EventMessageReceived:
		IncMessageReceived(event.Channel)
	case bus.EventCommandHandled:
		IncCommand(event.Payload[bus.PayloadCommand], true)
	case bus.EventCommandIgnored:
		IncCommand(event.Payload[bus.PayloadCommand], false)
	case bus.EventLookupCompleted:
		ms, err := strconv.ParseInt(event.Payload[bus.PayloadDurationMS], 10, 64)
		if err != nil {
			r.log.Debug("Lookup event without duration", "request_id", event.RequestID, "error", err)
			ms = 0
		}
		ObserveLookup(event.Payload[bus.PayloadOutcome], time.Duration(ms)*time.Millisecond)
	case bus.EventReplySent:
		IncReply(event.Payload[bus.PayloadReplyKind], true)
	case bus.EventReplyFailed:
		IncReply(event.Payload[bus.PayloadReplyKind], false)
	}
}

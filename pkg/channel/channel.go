package channel

import (
	"context"

	"moviebot/pkg/bus"
)

// Handler processes one inbound channel message and returns the reply to
// send. An empty outbound message means nothing is sent.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external chat transport into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"moviebot/pkg/bus"
	"moviebot/pkg/channel"
	"moviebot/pkg/config"
	"moviebot/pkg/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const typingRefreshInterval = 4 * time.Second

const fallbackErrorText = "😔 Sorry, something went wrong. Please try again."

// EventPublisher receives delivery events. *bus.Bus satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event bus.Event) bool
}

// sender is the subset of *telego.Bot used to deliver replies.
type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error
}

// Adapter bridges Telegram updates into inbound/outbound bot messages.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	events    EventPublisher
	log       *slog.Logger

	inflight sync.WaitGroup
}

// NewAdapter validates Telegram configuration and constructs an adapter
// instance. events may be nil.
func NewAdapter(cfg config.TelegramConfig, events EventPublisher, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required (set TELEGRAM_BOT_TOKEN)")
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		events:    events,
		log:       logger.Component(log, "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and hands every text message to handler
// on its own goroutine. It returns after in-flight messages finish.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	defer a.inflight.Wait()

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, chatID, ok := a.inboundFromUpdate(update)
			if !ok {
				continue
			}

			a.inflight.Add(1)
			go func() {
				defer a.inflight.Done()
				a.handleMessage(ctx, bot, handler, inbound, chatID)
			}()
		}
	}
}

// inboundFromUpdate extracts a text message from an update. Updates without
// a text message or from senders outside allow_from are skipped.
func (a *Adapter) inboundFromUpdate(update telego.Update) (bus.InboundMessage, int64, bool) {
	message := update.Message
	if message == nil {
		return bus.InboundMessage{}, 0, false
	}

	if strings.TrimSpace(message.Text) == "" {
		// Photos, stickers and other non-text updates are not queries.
		return bus.InboundMessage{}, 0, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundMessage{}, 0, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundMessage{}, 0, false
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	return bus.InboundMessage{
		Channel:    channelName,
		SenderID:   senderID,
		ChatID:     chatID,
		SessionKey: sessionKey(chatID),
		Content:    message.Text,
		Metadata: map[string]string{
			"update_id":  strconv.Itoa(update.UpdateID),
			"message_id": strconv.Itoa(message.MessageID),
		},
	}, message.Chat.ID, true
}

func (a *Adapter) handleMessage(ctx context.Context, bot sender, handler channel.Handler, inbound bus.InboundMessage, chatID int64) {
	a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", logger.Preview(inbound.Content))

	stopTyping := a.startTypingIndicator(ctx, bot, chatID)
	outbound, err := handler(ctx, inbound)
	stopTyping()
	if err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
		outbound = bus.OutboundMessage{Channel: inbound.Channel, ChatID: inbound.ChatID, Content: fallbackErrorText, Error: err.Error()}
	}

	if outbound.Empty() {
		return
	}

	a.log.Info("Sending message", "chat_id", inbound.ChatID, "photo", outbound.HasPhoto(), "content", logger.Preview(outbound.Content))

	kind, err := a.deliver(ctx, bot, chatID, outbound)
	event := bus.Event{
		Type:       bus.EventReplySent,
		Channel:    channelName,
		ChatID:     inbound.ChatID,
		SessionKey: inbound.SessionKey,
		RequestID:  outbound.Metadata["request_id"],
		Payload:    map[string]string{bus.PayloadReplyKind: kind},
	}
	if err != nil {
		a.log.Error("Failed to send telegram message", "chat_id", inbound.ChatID, "error", err)
		event.Type = bus.EventReplyFailed
		event.Error = err.Error()
	}
	if a.events != nil {
		a.events.PublishEvent(ctx, event)
	}
}

// deliver sends one outbound message and returns how it was delivered.
//
// A rejected photo (bad poster URL, caption markup) falls back to a text
// message, and rejected Markdown falls back to plain text, so every reply
// reaches the chat in some form.
func (a *Adapter) deliver(ctx context.Context, bot sender, chatID int64, out bus.OutboundMessage) (string, error) {
	markup := inlineKeyboard(out.Buttons)

	if out.HasPhoto() {
		params := tu.Photo(tu.ID(chatID), tu.FileFromURL(out.PhotoURL)).WithCaption(out.Content)
		if out.ParseMode != "" {
			params = params.WithParseMode(out.ParseMode)
		}
		if markup != nil {
			params = params.WithReplyMarkup(markup)
		}

		_, err := bot.SendPhoto(ctx, params)
		if err == nil {
			return "photo", nil
		}
		a.log.Warn("Photo reply rejected, falling back to text", "chat_id", chatID, "error", err)
	}

	text := out.Content
	if text == "" {
		text = out.PhotoURL
	}

	if out.ParseMode != "" {
		_, err := bot.SendMessage(ctx, textParams(chatID, text, markup).WithParseMode(out.ParseMode))
		if err == nil {
			return "text", nil
		}
		a.log.Warn("Formatted reply rejected, falling back to plain text", "chat_id", chatID, "error", err)
	}

	kind := "text"
	if out.ParseMode != "" {
		kind = "plain"
	}
	if _, err := bot.SendMessage(ctx, textParams(chatID, text, markup)); err != nil {
		return kind, err
	}

	return kind, nil
}

func textParams(chatID int64, text string, markup *telego.InlineKeyboardMarkup) *telego.SendMessageParams {
	params := tu.Message(tu.ID(chatID), text)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}

	return params
}

// inlineKeyboard renders one URL button per row.
func inlineKeyboard(buttons []bus.Button) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		if strings.TrimSpace(button.URL) == "" {
			continue
		}
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(button.Label).WithURL(button.URL)))
	}
	if len(rows) == 0 {
		return nil
	}

	return tu.InlineKeyboard(rows...)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// sessionKey tags every message from one chat with the same key.
func sessionKey(chatID string) string {
	return "telegram:" + strings.TrimSpace(chatID)
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// startTypingIndicator sends an initial typing action and refreshes it
// periodically until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot sender, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}

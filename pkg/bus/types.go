package bus

// InboundMessage is one text message received from a chat channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the reply a channel sends back to the originating chat.
//
// When PhotoURL is set, Content is the photo caption. An outbound message
// with neither Content nor PhotoURL is not sent.
type OutboundMessage struct {
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	SessionKey string            `json:"session_key,omitempty"`
	Content    string            `json:"content"`
	PhotoURL   string            `json:"photo_url,omitempty"`
	ParseMode  string            `json:"parse_mode,omitempty"`
	Buttons    []Button          `json:"buttons,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Button is an inline link attached below a reply.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Empty reports whether there is nothing to deliver.
func (m OutboundMessage) Empty() bool {
	return m.Content == "" && m.PhotoURL == ""
}

// HasPhoto reports whether the reply should be sent as a photo.
func (m OutboundMessage) HasPhoto() bool {
	return m.PhotoURL != ""
}

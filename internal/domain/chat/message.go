package chat

import (
	"errors"
	"strings"
	"time"
)

// MessageKind classifies a message by its populated payload.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindAudio MessageKind = "audio"
)

// Message is one immutable event within a conversation. At least one of
// Text, ImageURL, AudioURL is populated. Once appended it is never mutated;
// ordering is by Timestamp ascending and the store is the ordering authority.
type Message struct {
	// CorrelationID is a client-generated id round-tripped through the store
	// so that optimistic local echoes reconcile exactly against the
	// authoritative snapshot.
	CorrelationID string
	Text          string
	ImageURL      string
	AudioURL      string
	Timestamp     time.Time
	UserID        string
}

// Kind reports the message payload type, preferring media over text when
// both are present.
func (m Message) Kind() MessageKind {
	switch {
	case m.AudioURL != "":
		return KindAudio
	case m.ImageURL != "":
		return KindImage
	default:
		return KindText
	}
}

// Validate checks the structural invariants of a message before it is
// handed to the store.
func (m Message) Validate() error {
	if m.UserID == "" {
		return errors.New("chat: message sender required")
	}
	if strings.TrimSpace(m.Text) == "" && m.ImageURL == "" && m.AudioURL == "" {
		return errors.New("chat: message payload required")
	}
	return nil
}

// Snippet returns the text trimmed to max runes for use as a conversation
// summary. Media-only messages summarize as their kind.
func (m Message) Snippet(max int) string {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		switch m.Kind() {
		case KindImage:
			return "[image]"
		case KindAudio:
			return "[audio]"
		}
	}
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// Same reports whether other is the same logical message. Correlation ids
// match exactly; entries without one fall back to sender+timestamp+content.
func (m Message) Same(other Message) bool {
	if m.CorrelationID != "" && other.CorrelationID != "" {
		return m.CorrelationID == other.CorrelationID
	}
	return m.UserID == other.UserID &&
		m.Timestamp.Equal(other.Timestamp) &&
		m.Text == other.Text &&
		m.ImageURL == other.ImageURL &&
		m.AudioURL == other.AudioURL
}

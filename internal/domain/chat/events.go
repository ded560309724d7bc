package chat

import "time"

// DomainEvent is implemented by chat activity events published after
// successful store writes.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type MessageAppended struct {
	ConversationID ConversationID
	CorrelationID  string
	SenderID       string
	Kind           MessageKind
	At             time.Time
}

func (e MessageAppended) EventName() string     { return "chat.message_appended" }
func (e MessageAppended) AggregateID() string   { return string(e.ConversationID) }
func (e MessageAppended) OccurredAt() time.Time { return e.At }

type ConversationDeleted struct {
	ConversationID ConversationID
	OwnerID        string
	At             time.Time
}

func (e ConversationDeleted) EventName() string     { return "chat.conversation_deleted" }
func (e ConversationDeleted) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationDeleted) OccurredAt() time.Time { return e.At }

package chat

import (
	"errors"
	"time"
)

// ConversationID identifies a chat thread. Ids are assigned by the store.
type ConversationID string

// Conversation is a chat thread tied to a pet listing and an owner, carrying
// denormalized display fields so the list screen renders without joins.
type Conversation struct {
	ID              ConversationID
	OwnerID         string
	PetOwnerName    string
	PetOwnerPicture string
	LastMessage     string
	LastMessageTime time.Time
}

// Validate checks structural fields. Uniqueness per (pet, user) pair is
// intentionally not enforced at this level; the store keeps no such index.
func (c Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("chat: conversation id required")
	}
	if c.OwnerID == "" {
		return errors.New("chat: conversation owner required")
	}
	return nil
}

// LastActivity returns the recency timestamp used for list ordering.
// A conversation that never received a message sorts last (epoch zero).
func (c Conversation) LastActivity() time.Time {
	return c.LastMessageTime
}

// SummaryUpdate carries the partial conversation fields merged into the
// store after a send. Only non-zero fields are written; the merge never
// clobbers fields it does not name.
type SummaryUpdate struct {
	LastMessage     string
	LastMessageTime time.Time
	PetOwnerName    string
	PetOwnerPicture string
	OwnerID         string
}

package policies

import (
	"context"

	domainchat "adopet/internal/domain/chat"
)

// SnapshotFunc receives the full recomputed ordered message list on every
// change. The store delivers whole lists, not deltas; callers must not
// re-sort beyond what the store returns. err is non-nil when the live
// query breaks after establishment; no further snapshots follow it.
type SnapshotFunc func(messages []domainchat.Message, err error)

// ConversationsFunc receives the full conversation list on every change,
// in arbitrary store order. err is non-nil when the live query breaks.
type ConversationsFunc func(conversations []domainchat.Conversation, err error)

// Unsubscribe tears down a live query. After it returns no further
// callbacks fire. Idempotent.
type Unsubscribe func()

// MessageStore is the narrow contract with the external document store.
// It is the sole authority over conversations and their messages.
type MessageStore interface {
	// Subscribe opens a live ordered stream of messages for the
	// conversation, ascending by timestamp. The initial snapshot (possibly
	// empty) is delivered before Subscribe returns.
	Subscribe(ctx context.Context, id domainchat.ConversationID, onUpdate SnapshotFunc) (Unsubscribe, error)

	// Append durably stores a new message.
	Append(ctx context.Context, id domainchat.ConversationID, msg domainchat.Message) error

	// UpsertConversationSummary merges only the non-zero fields of update
	// into the conversation document. Unspecified fields are never
	// clobbered; concurrent writers resolve per-field last-write-wins.
	UpsertConversationSummary(ctx context.Context, id domainchat.ConversationID, update domainchat.SummaryUpdate) error

	// ListConversations opens a live stream of all conversations the user
	// is a party to, in arbitrary order.
	ListConversations(ctx context.Context, userID string, onUpdate ConversationsFunc) (Unsubscribe, error)

	// DeleteConversation removes the conversation and all its messages,
	// messages first so partial reads never see an orphaned thread head.
	DeleteConversation(ctx context.Context, id domainchat.ConversationID) error
}

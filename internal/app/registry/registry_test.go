package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
	"adopet/internal/infra/storage/memory"
)

func newTestRegistry(t *testing.T, store *memory.ChatStore) *Registry {
	t.Helper()
	r, err := New(Options{
		Store:    store,
		Identity: policies.StaticIdentity("user-1"),
	})
	require.NoError(t, err)
	return r
}

func seed(store *memory.ChatStore, id, owner string, last time.Time) {
	store.SeedConversation(domainchat.Conversation{
		ID:              domainchat.ConversationID(id),
		OwnerID:         owner,
		LastMessageTime: last,
	})
}

func TestSnapshotSortedByRecency(t *testing.T) {
	store := memory.NewChatStore()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(store, "older", "user-1", day.Add(9*time.Hour))
	seed(store, "newer", "user-1", day.Add(10*time.Hour+5*time.Minute))
	seed(store, "foreign", "user-2", day.Add(23*time.Hour))

	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2, "only the user's own conversations are listed")
	assert.Equal(t, domainchat.ConversationID("newer"), snapshot[0].ID)
	assert.Equal(t, domainchat.ConversationID("older"), snapshot[1].ID)
	assert.Equal(t, StateReady, r.State())
}

func TestMissingTimestampSortsLast(t *testing.T) {
	store := memory.NewChatStore()
	seed(store, "silent", "user-1", time.Time{})
	seed(store, "active", "user-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, domainchat.ConversationID("active"), snapshot[0].ID)
	assert.Equal(t, domainchat.ConversationID("silent"), snapshot[1].ID)
}

func TestZeroConversationsIsReadyNotError(t *testing.T) {
	store := memory.NewChatStore()
	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	assert.Equal(t, StateReady, r.State())
	assert.Empty(t, r.Snapshot())
	assert.NoError(t, r.Err())
}

func TestSubscriptionFailureIsDistinctErrorState(t *testing.T) {
	store := memory.NewChatStore()
	store.FailSubscribe = domainchat.ErrStoreUnavailable

	r := newTestRegistry(t, store)
	err := r.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domainchat.ErrSubscriptionFailed)
	assert.Equal(t, StateError, r.State())
}

func TestLiveQueryErrorFlipsToErrorState(t *testing.T) {
	store := memory.NewChatStore()
	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()
	require.Equal(t, StateReady, r.State())

	store.FailList(domainchat.ErrStoreUnavailable)
	assert.Equal(t, StateError, r.State())
	assert.ErrorIs(t, r.Err(), domainchat.ErrStoreUnavailable)
}

func TestOpenWithoutUserFails(t *testing.T) {
	store := memory.NewChatStore()
	r, err := New(Options{Store: store, Identity: policies.StaticIdentity("")})
	require.NoError(t, err)

	err = r.Open(context.Background())
	assert.ErrorIs(t, err, domainchat.ErrNotSignedIn)
	assert.Equal(t, StateError, r.State())
}

func TestDeleteRemovesConversationAndMessages(t *testing.T) {
	store := memory.NewChatStore()
	id := domainchat.ConversationID("pet-7")
	seed(store, string(id), "user-1", time.Now())
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(context.Background(), id, domainchat.Message{
			UserID: "user-1", Text: "msg", Timestamp: time.Now(),
		}))
	}

	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()
	require.Len(t, r.Snapshot(), 1)

	require.NoError(t, r.Delete(context.Background(), id))
	assert.Empty(t, r.Snapshot(), "deleted conversation disappears from the list")

	// A fresh subscription on the deleted id yields an empty-forever
	// stream; the messages never resurrect.
	var got []domainchat.Message
	cancel, err := store.Subscribe(context.Background(), id, func(messages []domainchat.Message, _ error) {
		got = messages
	})
	require.NoError(t, err)
	defer cancel()
	assert.Empty(t, got)
}

func TestDeleteFailureKeepsItemListed(t *testing.T) {
	store := memory.NewChatStore()
	id := domainchat.ConversationID("pet-9")
	seed(store, string(id), "user-1", time.Now())

	r := newTestRegistry(t, store)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	store.FailDelete = domainchat.ErrStoreUnavailable
	err := r.Delete(context.Background(), id)
	assert.ErrorIs(t, err, domainchat.ErrStoreUnavailable)
	assert.Len(t, r.Snapshot(), 1, "no optimistic removal before store confirmation")
}

func TestDeletePublishesActivityEvent(t *testing.T) {
	store := memory.NewChatStore()
	id := domainchat.ConversationID("pet-11")
	seed(store, string(id), "user-1", time.Now())
	publisher := &capturePublisher{}

	r, err := New(Options{
		Store:     store,
		Identity:  policies.StaticIdentity("user-1"),
		Publisher: publisher,
	})
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background()))
	defer r.Close()

	require.NoError(t, r.Delete(context.Background(), id))
	require.Len(t, publisher.events, 1)
	deleted, ok := publisher.events[0].(domainchat.ConversationDeleted)
	require.True(t, ok)
	assert.Equal(t, id, deleted.ConversationID)
	assert.Equal(t, "user-1", deleted.OwnerID)
}

func TestCloseStopsUpdates(t *testing.T) {
	store := memory.NewChatStore()
	updates := 0
	r, err := New(Options{
		Store:    store,
		Identity: policies.StaticIdentity("user-1"),
		OnUpdate: func([]domainchat.Conversation) { updates++ },
	})
	require.NoError(t, err)
	require.NoError(t, r.Open(context.Background()))

	r.Close()
	seen := updates
	seed(store, "after-close", "user-1", time.Now())
	assert.Equal(t, seen, updates, "no callbacks after Close")
	r.Close() // idempotent
}

type capturePublisher struct {
	events []domainchat.DomainEvent
	fail   error
}

func (p *capturePublisher) Publish(_ context.Context, event domainchat.DomainEvent) error {
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

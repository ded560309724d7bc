// Package registry maintains the per-user conversation list ordered by
// most recent activity, with explicit empty and error states.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

// State describes what the list screen should render. Zero conversations
// is Ready with an empty snapshot, never an error.
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
	StateReady   State = "READY"
	StateError   State = "ERROR"
)

// UpdateFunc receives the re-sorted conversation list on every change.
type UpdateFunc func(conversations []domainchat.Conversation)

// Options configures a Registry. Store and Identity are required.
type Options struct {
	Store     policies.MessageStore
	Identity  policies.Identity
	Publisher policies.ActivityPublisher
	Logger    *slog.Logger
	OnUpdate  UpdateFunc
	Now       func() time.Time
}

// Registry subscribes to the user's conversations and keeps them sorted
// descending by last activity.
type Registry struct {
	store     policies.MessageStore
	identity  policies.Identity
	publisher policies.ActivityPublisher
	logger    *slog.Logger
	onUpdate  UpdateFunc
	now       func() time.Time

	mu            sync.Mutex
	state         State
	conversations []domainchat.Conversation
	unsubscribe   policies.Unsubscribe
	lastErr       error
}

// New builds an idle registry.
func New(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("registry: message store is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("registry: identity provider is required")
	}
	if opts.Publisher == nil {
		opts.Publisher = policies.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		store:     opts.Store,
		identity:  opts.Identity,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		onUpdate:  opts.OnUpdate,
		now:       opts.Now,
		state:     StateIdle,
	}, nil
}

// Open establishes the live conversation query for the current user.
func (r *Registry) Open(ctx context.Context) error {
	userID := r.identity.CurrentUserID()
	if userID == "" {
		r.mu.Lock()
		r.state = StateError
		r.lastErr = domainchat.ErrNotSignedIn
		r.mu.Unlock()
		return domainchat.ErrNotSignedIn
	}

	r.mu.Lock()
	if r.state == StateLoading || r.state == StateReady {
		r.mu.Unlock()
		return fmt.Errorf("registry: already open")
	}
	r.state = StateLoading
	r.lastErr = nil
	r.mu.Unlock()

	unsubscribe, err := r.store.ListConversations(ctx, userID, r.apply)
	if err != nil {
		r.mu.Lock()
		r.state = StateError
		r.lastErr = fmt.Errorf("%w: %v", domainchat.ErrSubscriptionFailed, err)
		err = r.lastErr
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	return nil
}

// Snapshot returns the current sorted list.
func (r *Registry) Snapshot() []domainchat.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domainchat.Conversation, len(r.conversations))
	copy(out, r.conversations)
	return out
}

// State returns the rendering state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error behind StateError, if any.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Delete removes the conversation and all its messages. There is no
// optimistic removal: on failure the item stays listed so a deleted-looking
// entry never reappears on the next sync.
func (r *Registry) Delete(ctx context.Context, id domainchat.ConversationID) error {
	userID := r.identity.CurrentUserID()
	if userID == "" {
		return domainchat.ErrNotSignedIn
	}
	if err := r.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	event := domainchat.ConversationDeleted{
		ConversationID: id,
		OwnerID:        userID,
		At:             r.now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil && r.logger != nil {
		r.logger.Warn("activity publish failed", "event", event.EventName(), "error", err)
	}
	return nil
}

// Close tears down the subscription. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.onUpdate = nil
	r.state = StateIdle
	r.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// apply re-sorts the unordered store stream descending by last activity.
// Conversations that never received a message carry a zero timestamp and
// sort last.
func (r *Registry) apply(conversations []domainchat.Conversation, err error) {
	r.mu.Lock()
	if r.unsubscribe == nil && r.state != StateLoading {
		// Closed; late callbacks are dropped.
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.state = StateError
		r.lastErr = err
		r.mu.Unlock()
		return
	}
	sorted := make([]domainchat.Conversation, len(conversations))
	copy(sorted, conversations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastActivity().After(sorted[j].LastActivity())
	})
	r.conversations = sorted
	r.state = StateReady
	r.lastErr = nil
	view := make([]domainchat.Conversation, len(sorted))
	copy(view, sorted)
	emit := r.onUpdate
	r.mu.Unlock()
	if emit != nil {
		emit(view)
	}
}

// Package session holds the per-open-chat state machine: it subscribes to
// the message stream, merges incoming snapshots with locally pending
// optimistic sends, and exposes the send API for text, image and audio.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

// State enumerates the session lifecycle.
type State string

const (
	StateIdle        State = "IDLE"
	StateSubscribing State = "SUBSCRIBING"
	StateLive        State = "LIVE"
	StateSending     State = "SENDING"
	StateClosed      State = "CLOSED"
)

const summarySnippetMax = 500

// ViewFunc receives the merged message view (confirmed snapshot plus
// still-pending optimistic entries) whenever it changes.
type ViewFunc func(messages []domainchat.Message)

// Profile carries the denormalized display fields merged into the
// conversation summary on every send.
type Profile struct {
	PetOwnerName    string
	PetOwnerPicture string
}

// Options configures a Session. Store and Identity are required.
type Options struct {
	Store     policies.MessageStore
	Uploader  policies.Uploader
	Identity  policies.Identity
	Publisher policies.ActivityPublisher
	Logger    *slog.Logger
	Profile   Profile
	OnUpdate  ViewFunc
	Now       func() time.Time
}

// Session is the per-open-chat state machine:
// Idle → Subscribing → Live ⇄ Sending → Closed.
type Session struct {
	store     policies.MessageStore
	uploader  policies.Uploader
	identity  policies.Identity
	publisher policies.ActivityPublisher
	logger    *slog.Logger
	profile   Profile
	onUpdate  ViewFunc
	now       func() time.Time

	mu             sync.Mutex
	state          State
	conversationID domainchat.ConversationID
	confirmed      []domainchat.Message
	pending        []domainchat.Message
	unsubscribe    policies.Unsubscribe
	lastErr        error
}

// New builds an idle session.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session: message store is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("session: identity provider is required")
	}
	if opts.Publisher == nil {
		opts.Publisher = policies.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		store:     opts.Store,
		uploader:  opts.Uploader,
		identity:  opts.Identity,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		profile:   opts.Profile,
		onUpdate:  opts.OnUpdate,
		now:       opts.Now,
		state:     StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that left the session idle, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Messages returns the current merged view.
func (s *Session) Messages() []domainchat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergedLocked()
}

// Open binds the session to a conversation and establishes the live
// subscription. A failed subscribe leaves the session Idle with the error
// retained; Open may then be retried.
func (s *Session) Open(ctx context.Context, id domainchat.ConversationID) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return domainchat.ErrSessionClosed
	case StateIdle:
	default:
		s.mu.Unlock()
		return fmt.Errorf("session: already open for %q", s.conversationID)
	}
	s.state = StateSubscribing
	s.conversationID = id
	s.lastErr = nil
	s.mu.Unlock()

	unsubscribe, err := s.store.Subscribe(ctx, id, s.applySnapshot)
	s.mu.Lock()
	if err != nil {
		s.state = StateIdle
		s.lastErr = fmt.Errorf("%w: %v", domainchat.ErrSubscriptionFailed, err)
		err = s.lastErr
		s.mu.Unlock()
		return err
	}
	if s.state == StateClosed {
		// Closed while the subscription was being established.
		s.mu.Unlock()
		unsubscribe()
		return domainchat.ErrSessionClosed
	}
	if s.state == StateIdle {
		// The stream died before establishment finished.
		err := s.lastErr
		s.mu.Unlock()
		unsubscribe()
		return err
	}
	s.unsubscribe = unsubscribe
	s.state = StateLive
	s.mu.Unlock()
	return nil
}

// SendText appends a text message. Empty or whitespace-only bodies are a
// no-op, not an error. The message write is strict; the follow-up summary
// merge is best-effort and a stale summary never fails the send.
func (s *Session) SendText(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	msg, err := s.newMessage()
	if err != nil {
		return err
	}
	msg.Text = body
	return s.send(ctx, msg)
}

// SendImage uploads the blob to object storage and appends an image
// message pointing at the durable URL. A failed upload aborts the send
// before any store write.
func (s *Session) SendImage(ctx context.Context, filename string, content io.Reader) error {
	msg, err := s.newMessage()
	if err != nil {
		return err
	}
	url, err := s.upload(ctx, "images", filename, content, "image/jpeg")
	if err != nil {
		return err
	}
	msg.ImageURL = url
	return s.send(ctx, msg)
}

// SendAudio uploads the blob and appends an audio message.
func (s *Session) SendAudio(ctx context.Context, filename string, content io.Reader) error {
	msg, err := s.newMessage()
	if err != nil {
		return err
	}
	url, err := s.upload(ctx, "audio", filename, content, "audio/mp4")
	if err != nil {
		return err
	}
	msg.AudioURL = url
	return s.send(ctx, msg)
}

// Close tears down the subscription. Idempotent; after it returns no
// further view callbacks fire. Sends already in flight complete, their
// side effects are external and not meaningfully cancellable.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.onUpdate = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// applySnapshot replaces the confirmed list wholesale and reconciles
// pending optimistic entries against it. The store is the ordering
// authority; the list is never re-sorted here. A terminal stream error
// drops the session back to Idle with the error retained, so Open may be
// retried.
func (s *Session) applySnapshot(messages []domainchat.Message, err error) {
	if err != nil {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return
		}
		s.state = StateIdle
		s.lastErr = fmt.Errorf("%w: %v", domainchat.ErrSubscriptionFailed, err)
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()
		if unsubscribe != nil {
			// This callback may run on the stream's own goroutine, which
			// the teardown waits for; release it from a fresh one.
			go unsubscribe()
		}
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.confirmed = messages
	if len(s.pending) > 0 {
		remaining := s.pending[:0]
		for _, p := range s.pending {
			if !containsMessage(messages, p) {
				remaining = append(remaining, p)
			}
		}
		s.pending = remaining
	}
	view := s.mergedLocked()
	emit := s.onUpdate
	s.mu.Unlock()
	if emit != nil {
		emit(view)
	}
}

func (s *Session) newMessage() (domainchat.Message, error) {
	userID := s.identity.CurrentUserID()
	if userID == "" {
		return domainchat.Message{}, domainchat.ErrNotSignedIn
	}
	return domainchat.Message{
		CorrelationID: uuid.NewString(),
		Timestamp:     s.now().UTC(),
		UserID:        userID,
	}, nil
}

func (s *Session) send(ctx context.Context, msg domainchat.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return domainchat.ErrSessionClosed
	}
	if s.state != StateLive && s.state != StateSending {
		s.mu.Unlock()
		return errors.New("session: not open")
	}
	id := s.conversationID
	s.state = StateSending
	s.pending = append(s.pending, msg)
	view := s.mergedLocked()
	emit := s.onUpdate
	s.mu.Unlock()
	if emit != nil {
		emit(view)
	}

	if err := s.store.Append(ctx, id, msg); err != nil {
		s.dropPending(msg)
		return err
	}

	s.mu.Lock()
	if s.state == StateSending {
		s.state = StateLive
	}
	s.mu.Unlock()

	// Summary merge is at-least-once best-effort: the message is already
	// delivered, a failure here only leaves the list snippet stale.
	update := domainchat.SummaryUpdate{
		LastMessage:     msg.Snippet(summarySnippetMax),
		LastMessageTime: msg.Timestamp,
		PetOwnerName:    s.profile.PetOwnerName,
		PetOwnerPicture: s.profile.PetOwnerPicture,
		OwnerID:         msg.UserID,
	}
	if err := s.store.UpsertConversationSummary(ctx, id, update); err != nil && s.logger != nil {
		s.logger.Warn("conversation summary update failed", "conversation_id", id, "error", err)
	}

	event := domainchat.MessageAppended{
		ConversationID: id,
		CorrelationID:  msg.CorrelationID,
		SenderID:       msg.UserID,
		Kind:           msg.Kind(),
		At:             msg.Timestamp,
	}
	if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("activity publish failed", "event", event.EventName(), "error", err)
	}
	return nil
}

func (s *Session) upload(ctx context.Context, prefix, filename string, content io.Reader, fallbackType string) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: no uploader configured", domainchat.ErrUploadFailed)
	}
	key := objectKey(prefix, filename, s.now())
	url, err := s.uploader.Upload(ctx, key, content, contentTypeFor(filename, fallbackType))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainchat.ErrUploadFailed, err)
	}
	return url, nil
}

func (s *Session) dropPending(msg domainchat.Message) {
	s.mu.Lock()
	remaining := s.pending[:0]
	for _, p := range s.pending {
		if !p.Same(msg) {
			remaining = append(remaining, p)
		}
	}
	s.pending = remaining
	if s.state == StateSending {
		s.state = StateLive
	}
	view := s.mergedLocked()
	emit := s.onUpdate
	s.mu.Unlock()
	if emit != nil {
		emit(view)
	}
}

func (s *Session) mergedLocked() []domainchat.Message {
	out := make([]domainchat.Message, 0, len(s.confirmed)+len(s.pending))
	out = append(out, s.confirmed...)
	out = append(out, s.pending...)
	return out
}

func containsMessage(list []domainchat.Message, target domainchat.Message) bool {
	for _, m := range list {
		if m.Same(target) {
			return true
		}
	}
	return false
}

// objectKey embeds a timestamp and a random component so concurrent
// uploads never collide.
func objectKey(prefix, filename string, now time.Time) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%d_%s%s", prefix, now.UnixMilli(), uuid.NewString()[:8], ext)
}

func contentTypeFor(filename, fallback string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	}
	return fallback
}

// Package memory provides in-memory implementations of the chat ports for
// tests and local demos. Subscriptions deliver callbacks synchronously on
// every mutation, mirroring the live-query contract of the real store.
package memory

import (
	"context"
	"sort"
	"sync"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

type messageSub struct {
	conversationID domainchat.ConversationID
	fn             policies.SnapshotFunc
}

type listSub struct {
	userID string
	fn     policies.ConversationsFunc
}

// ChatStore is an in-memory message store with live subscriptions.
type ChatStore struct {
	mu            sync.Mutex
	conversations map[domainchat.ConversationID]domainchat.Conversation
	messages      map[domainchat.ConversationID][]domainchat.Message

	nextSubID   int
	messageSubs map[int]messageSub
	listSubs    map[int]listSub

	// Failure injection for tests. A non-nil error makes the matching
	// operation fail without mutating state.
	FailAppend    error
	FailSummary   error
	FailDelete    error
	FailSubscribe error
}

// NewChatStore builds an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]domainchat.Conversation),
		messages:      make(map[domainchat.ConversationID][]domainchat.Message),
		messageSubs:   make(map[int]messageSub),
		listSubs:      make(map[int]listSub),
	}
}

// Subscribe delivers the initial (possibly empty) ordered snapshot before
// returning, then the full recomputed list on every append or delete.
func (s *ChatStore) Subscribe(ctx context.Context, id domainchat.ConversationID, onUpdate policies.SnapshotFunc) (policies.Unsubscribe, error) {
	s.mu.Lock()
	if s.FailSubscribe != nil {
		err := s.FailSubscribe
		s.mu.Unlock()
		return nil, err
	}
	subID := s.nextSubID
	s.nextSubID++
	s.messageSubs[subID] = messageSub{conversationID: id, fn: onUpdate}
	snapshot := s.orderedLocked(id)
	s.mu.Unlock()

	onUpdate(snapshot, nil)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.messageSubs, subID)
			s.mu.Unlock()
		})
	}, nil
}

// Append stores the message and fans the new snapshot out to subscribers.
func (s *ChatStore) Append(ctx context.Context, id domainchat.ConversationID, msg domainchat.Message) error {
	s.mu.Lock()
	if s.FailAppend != nil {
		err := s.FailAppend
		s.mu.Unlock()
		return err
	}
	s.messages[id] = append(s.messages[id], msg)
	subs, snapshot := s.messageFanoutLocked(id)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot, nil)
	}
	return nil
}

// UpsertConversationSummary merges only the non-zero fields of update,
// creating the conversation document when absent.
func (s *ChatStore) UpsertConversationSummary(ctx context.Context, id domainchat.ConversationID, update domainchat.SummaryUpdate) error {
	s.mu.Lock()
	if s.FailSummary != nil {
		err := s.FailSummary
		s.mu.Unlock()
		return err
	}
	conv := s.conversations[id]
	conv.ID = id
	if update.LastMessage != "" {
		conv.LastMessage = update.LastMessage
	}
	if !update.LastMessageTime.IsZero() {
		conv.LastMessageTime = update.LastMessageTime
	}
	if update.PetOwnerName != "" {
		conv.PetOwnerName = update.PetOwnerName
	}
	if update.PetOwnerPicture != "" {
		conv.PetOwnerPicture = update.PetOwnerPicture
	}
	if update.OwnerID != "" {
		conv.OwnerID = update.OwnerID
	}
	s.conversations[id] = conv
	notify := s.listFanoutLocked()
	s.mu.Unlock()

	for _, n := range notify {
		n.fn(n.list, nil)
	}
	return nil
}

// ListConversations delivers the initial list before returning, then on
// every conversation mutation. Order is unspecified; callers re-sort.
func (s *ChatStore) ListConversations(ctx context.Context, userID string, onUpdate policies.ConversationsFunc) (policies.Unsubscribe, error) {
	s.mu.Lock()
	if s.FailSubscribe != nil {
		err := s.FailSubscribe
		s.mu.Unlock()
		return nil, err
	}
	subID := s.nextSubID
	s.nextSubID++
	s.listSubs[subID] = listSub{userID: userID, fn: onUpdate}
	list := s.conversationsLocked(userID)
	s.mu.Unlock()

	onUpdate(list, nil)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listSubs, subID)
			s.mu.Unlock()
		})
	}, nil
}

// DeleteConversation removes messages first, then the conversation, and
// notifies both kinds of subscribers.
func (s *ChatStore) DeleteConversation(ctx context.Context, id domainchat.ConversationID) error {
	s.mu.Lock()
	if s.FailDelete != nil {
		err := s.FailDelete
		s.mu.Unlock()
		return err
	}
	delete(s.messages, id)
	delete(s.conversations, id)
	msgSubs, snapshot := s.messageFanoutLocked(id)
	notify := s.listFanoutLocked()
	s.mu.Unlock()

	for _, fn := range msgSubs {
		fn(snapshot, nil)
	}
	for _, n := range notify {
		n.fn(n.list, nil)
	}
	return nil
}

// FailStream pushes a terminal error to every message subscriber,
// simulating a live query that died after establishment.
func (s *ChatStore) FailStream(err error) {
	s.mu.Lock()
	subs := make([]policies.SnapshotFunc, 0, len(s.messageSubs))
	for _, sub := range s.messageSubs {
		subs = append(subs, sub.fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(nil, err)
	}
}

// FailList pushes an error to every list subscriber, simulating a broken
// live query.
func (s *ChatStore) FailList(err error) {
	s.mu.Lock()
	subs := make([]policies.ConversationsFunc, 0, len(s.listSubs))
	for _, sub := range s.listSubs {
		subs = append(subs, sub.fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(nil, err)
	}
}

// SeedConversation inserts a conversation document directly.
func (s *ChatStore) SeedConversation(conv domainchat.Conversation) {
	s.mu.Lock()
	s.conversations[conv.ID] = conv
	notify := s.listFanoutLocked()
	s.mu.Unlock()
	for _, n := range notify {
		n.fn(n.list, nil)
	}
}

// Messages returns the ordered message list for direct assertions.
func (s *ChatStore) Messages(id domainchat.ConversationID) []domainchat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked(id)
}

// Conversation returns the stored conversation document, if present.
func (s *ChatStore) Conversation(id domainchat.ConversationID) (domainchat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

func (s *ChatStore) orderedLocked(id domainchat.ConversationID) []domainchat.Message {
	list := make([]domainchat.Message, len(s.messages[id]))
	copy(list, s.messages[id])
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
	return list
}

func (s *ChatStore) conversationsLocked(userID string) []domainchat.Conversation {
	list := make([]domainchat.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.OwnerID == userID {
			list = append(list, conv)
		}
	}
	return list
}

func (s *ChatStore) messageFanoutLocked(id domainchat.ConversationID) ([]policies.SnapshotFunc, []domainchat.Message) {
	snapshot := s.orderedLocked(id)
	fns := make([]policies.SnapshotFunc, 0, len(s.messageSubs))
	for _, sub := range s.messageSubs {
		if sub.conversationID == id {
			fns = append(fns, sub.fn)
		}
	}
	return fns, snapshot
}

type listNotification struct {
	fn   policies.ConversationsFunc
	list []domainchat.Conversation
}

func (s *ChatStore) listFanoutLocked() []listNotification {
	out := make([]listNotification, 0, len(s.listSubs))
	for _, sub := range s.listSubs {
		out = append(out, listNotification{fn: sub.fn, list: s.conversationsLocked(sub.userID)})
	}
	return out
}

var _ policies.MessageStore = (*ChatStore)(nil)

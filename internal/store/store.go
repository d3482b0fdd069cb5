// Package store holds the authoritative in-memory conversation state.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

// IDFunc generates conversation identifiers.
type IDFunc func() string

// Store owns the conversation list and the active conversation id.
//
// Every mutation either fully applies or is a no-op. Readers always get
// deep copies.
type Store struct {
	mu            sync.RWMutex
	conversations []model.Conversation
	activeID      string
	hasActive     bool
	newID         IDFunc
}

// Option configures a Store.
type Option func(*Store)

// WithIDFunc overrides conversation id generation.
func WithIDFunc(fn IDFunc) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		conversations: []model.Conversation{},
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the conversation list with convs, typically the result
// of a persistence load. The newest conversation becomes active; an empty
// list leaves nothing active.
func (s *Store) Hydrate(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = model.CloneAll(convs)
	s.hasActive = false
	s.activeID = ""
	if len(s.conversations) > 0 {
		s.activeID = s.conversations[0].ID
		s.hasActive = true
	}
}

// CreateConversation prepends a conversation seeded with the greeting and
// makes it active.
func (s *Store) CreateConversation() string {
	conv := model.Conversation{
		ID:    s.newID(),
		Title: model.DefaultTitle,
		Messages: []model.Message{
			model.NewAssistantMessage(model.Greeting, nil),
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = append([]model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.hasActive = true
	return conv.ID
}

// SetActive sets the active conversation id without checking that it exists.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	s.hasActive = true
}

// ActiveID returns the active conversation id, if one is set.
func (s *Store) ActiveID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID, s.hasActive
}

// AppendMessage appends msg to the conversation with id. It reports whether
// a conversation was found.
func (s *Store) AppendMessage(id string, msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.conversations[i].Messages = append(s.conversations[i].Messages, msg.Clone())
	return true
}

// RenameConversation replaces the title of the conversation with id. It
// reports whether a conversation was found.
func (s *Store) RenameConversation(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.conversations[i].Title = title
	return true
}

// GetActive returns the active conversation. It returns false when nothing
// is active or the active id does not match any conversation.
func (s *Store) GetActive() (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasActive {
		return model.Conversation{}, false
	}
	i := s.indexOf(s.activeID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i].Clone(), true
}

// Get returns the conversation with id.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.conversations[i].Clone(), true
}

// Conversations returns a snapshot of all conversations, newest first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.CloneAll(s.conversations)
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conversations)
}

func (s *Store) indexOf(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

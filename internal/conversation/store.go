package conversation

import (
	"context"
	"sync"
	"time"
)

// Store persists conversations and their transcripts.
type Store interface {
	// FindActiveByPhone returns nil, nil when the number has no ACTIVE conversation.
	FindActiveByPhone(ctx context.Context, phone string) (*Conversation, error)
	// FindByID returns ErrConversationNotFound for unknown ids.
	FindByID(ctx context.Context, id int64, withMessages bool) (*Conversation, error)
	// Save inserts the conversation when ID is zero and otherwise updates its
	// status and state.
	Save(ctx context.Context, c *Conversation) error
	// AppendMessage assigns ID and Timestamp. Timestamps never decrease
	// within a conversation.
	AppendMessage(ctx context.Context, m *Message) error
}

// MemoryStore is an in-process Store for tests and single-instance runs.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[int64]Conversation
	messages      map[int64][]Message
	nextConvID    int64
	nextMsgID     int64
	now           func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[int64]Conversation),
		messages:      make(map[int64][]Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FindActiveByPhone(ctx context.Context, phone string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Conversation
	for _, c := range s.conversations {
		if c.PhoneNumber != phone || c.Status != StatusActive {
			continue
		}
		if found == nil || c.ID > found.ID {
			cp := c
			found = &cp
		}
	}
	return found, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64, withMessages bool) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if withMessages {
		c.Messages = append([]Message(nil), s.messages[id]...)
	}
	return &c, nil
}

func (s *MemoryStore) Save(ctx context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if c.ID == 0 {
		if c.Status == "" {
			c.Status = StatusActive
		}
		if c.Status == StatusActive {
			for _, existing := range s.conversations {
				if existing.PhoneNumber == c.PhoneNumber && existing.Status == StatusActive {
					return ErrActiveConversationExists
				}
			}
		}
		s.nextConvID++
		c.ID = s.nextConvID
		c.CreatedAt = now
		c.UpdatedAt = now
		stored := *c
		stored.Messages = nil
		s.conversations[c.ID] = stored
		return nil
	}
	existing, ok := s.conversations[c.ID]
	if !ok {
		return ErrConversationNotFound
	}
	existing.Status = c.Status
	existing.State = c.State
	existing.UpdatedAt = now
	c.UpdatedAt = now
	s.conversations[c.ID] = existing
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return ErrConversationNotFound
	}
	ts := s.now()
	if existing := s.messages[m.ConversationID]; len(existing) > 0 {
		if last := existing[len(existing)-1].Timestamp; ts.Before(last) {
			ts = last
		}
	}
	s.nextMsgID++
	m.ID = s.nextMsgID
	m.Timestamp = ts
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], *m)
	return nil
}

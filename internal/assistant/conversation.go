package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielolaszy/prism/pkg/models"
)

// GeneralContext is the conversation used when nothing is selected.
const GeneralContext = "general"

// maxHistory bounds how many messages are kept per conversation.
const maxHistory = 100

// ContextKey names the conversation for a selection. A story wins over an epic.
func ContextKey(storyKey, epicKey string) string {
	switch {
	case storyKey != "":
		return "story:" + storyKey
	case epicKey != "":
		return "epic:" + epicKey
	default:
		return GeneralContext
	}
}

// Store keeps chat conversations by context key.
type Store struct {
	mu            sync.Mutex
	conversations map[string][]models.Message
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string][]models.Message),
		now:           time.Now,
	}
}

// Append adds a message to the conversation for key and returns it.
func (s *Store) Append(key string, role models.Role, content string) models.Message {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := append(s.conversations[key], msg)
	if len(conv) > maxHistory {
		conv = append([]models.Message(nil), conv[len(conv)-maxHistory:]...)
	}
	s.conversations[key] = conv
	return msg
}

// History returns a copy of the conversation for key.
func (s *Store) History(key string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.conversations[key]...)
}

// MarkExported flags the message so its items are not offered again.
func (s *Store) MarkExported(key, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conversations[key]
	for i := range conv {
		if conv[i].ID == messageID {
			conv[i].Exported = true
			return true
		}
	}
	return false
}

// Clear drops the conversation for key.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, key)
}

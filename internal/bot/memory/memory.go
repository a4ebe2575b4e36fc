// Package memory keeps the short-lived per-user conversation state: a
// length-bounded history of turns and an optional system prompt override.
package memory

import (
	"sync"

	"github.com/cloudwego/eino/schema"
)

type session struct {
	history      []*schema.Message
	systemPrompt string
}

// Store holds one session per user identity. All methods are safe for
// concurrent use.
type Store struct {
	mu            sync.RWMutex
	defaultPrompt string
	maxMessages   int
	sessions      map[string]*session
}

// New creates a Store with the process-wide default system prompt and the
// retention bound, counted in {role, content} units.
func New(defaultPrompt string, maxMessages int) *Store {
	return &Store{
		defaultPrompt: defaultPrompt,
		maxMessages:   maxMessages,
		sessions:      make(map[string]*session),
	}
}

func (s *Store) session(userID string) *session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	return sess
}

// SetSystemPrompt overrides the default system prompt for the user without
// touching existing history.
func (s *Store) SetSystemPrompt(userID, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(userID).systemPrompt = prompt
}

// Append adds a turn to the user's history, evicting the oldest turns once
// the retention bound is exceeded. The system prompt does not count against
// the bound.
func (s *Store) Append(userID string, msg *schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(userID)
	sess.history = append(sess.history, msg)
	if len(sess.history) > s.maxMessages {
		sess.history = trimTail(sess.history, s.maxMessages)
	}
}

// Clear drops the user's history and system prompt override. Clearing an
// unknown user is a no-op.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Compose returns the active system prompt followed by the retained history
// in chronological order, ready for submission to the completion capability.
func (s *Store) Compose(userID string) []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompt := s.defaultPrompt
	var history []*schema.Message
	if sess, ok := s.sessions[userID]; ok {
		if sess.systemPrompt != "" {
			prompt = sess.systemPrompt
		}
		history = sess.history
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(prompt))
	messages = append(messages, history...)
	return messages
}

func trimTail(messages []*schema.Message, max int) []*schema.Message {
	if len(messages) <= max {
		return messages
	}
	source := messages[len(messages)-max:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}

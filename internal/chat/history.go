// Package chat holds the conversation state a caller keeps between questions.
// The answering service itself is stateless; whatever a caller wants the
// model to see of earlier turns travels in a History.
package chat

import (
	"strings"
	"sync"

	"github.com/mwiater/manara/internal/rag"
)

// History is an append-only list of user and assistant turns, bounded to
// the most recent Limit messages. It is safe for concurrent use.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []rag.Message
}

// NewHistory returns a History keeping at most limit messages. A limit of
// zero or less keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append records one turn. Blank content and roles other than user and
// assistant are ignored.
func (h *History) Append(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if role != rag.RoleUser && role != rag.RoleAssistant {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, rag.Message{Role: role, Content: content})
	if h.limit > 0 && len(h.messages) > h.limit {
		h.messages = append([]rag.Message(nil), h.messages[len(h.messages)-h.limit:]...)
	}
}

// AppendExchange records a question and the reply it received.
func (h *History) AppendExchange(question, answer string) {
	h.Append(rag.RoleUser, question)
	h.Append(rag.RoleAssistant, answer)
}

// Messages returns a copy of the recorded turns, oldest first.
func (h *History) Messages() []rag.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return nil
	}
	return append([]rag.Message(nil), h.messages...)
}

// Len reports the number of recorded turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear forgets the conversation.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

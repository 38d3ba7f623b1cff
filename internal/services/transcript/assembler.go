package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medicman/assist/internal/domain/chat"
)

// Assembler merges an ordered stream of text fragments into a chat
// transcript. Consecutive fragments for the same role continue the last
// message until a terminal sentinel closes the reply; a role change always
// starts a new message. Fragments are applied strictly in arrival order.
type Assembler struct {
	mu       sync.Mutex
	messages []chat.Message
	closed   bool
	typing   bool
	lastErr  error
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Append applies one streamed fragment to the transcript.
func (a *Assembler) Append(role chat.Role, fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastErr = nil
	a.typing = role == chat.RoleAssistant

	if n := len(a.messages); n > 0 && a.messages[n-1].Role == role && !a.closed {
		a.messages[n-1].Content += fragment
		return
	}

	a.messages = append(a.messages, chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   fragment,
		CreatedAt: time.Now().UTC(),
	})
	a.closed = false
}

// CloseReply marks the in-progress message as finished. The next fragment
// starts a new message even when its role matches, which is what separates
// two back-to-back replies from one continuous stream.
func (a *Assembler) CloseReply() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.typing = false
}

// Fail records a channel-level error. The typing indicator stops and the
// error is retryable; content already appended is preserved.
func (a *Assembler) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastErr = err
	a.typing = false
	a.closed = true
}

// Messages returns a copy of the assembled transcript.
func (a *Assembler) Messages() []chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]chat.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Typing reports whether an assistant reply is currently streaming.
func (a *Assembler) Typing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.typing
}

// Err returns the last channel error, if any.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

package transcript

import (
	"errors"
	"testing"

	"github.com/medicman/assist/internal/domain/chat"
)

func TestAssemblerMergesContinuousFragments(t *testing.T) {
	a := NewAssembler()

	a.Append(chat.RoleAssistant, "Hel")
	a.Append(chat.RoleAssistant, "lo")

	messages := a.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Content != "Hello" {
		t.Errorf("expected content %q, got %q", "Hello", messages[0].Content)
	}
	if !a.Typing() {
		t.Error("typing indicator should be on mid-stream")
	}
}

func TestAssemblerClosedReplyStartsNewMessage(t *testing.T) {
	a := NewAssembler()

	a.Append(chat.RoleAssistant, "Hel")
	a.Append(chat.RoleAssistant, "lo")
	a.CloseReply()
	a.Append(chat.RoleAssistant, "World")

	messages := a.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "Hello" {
		t.Errorf("first message content = %q, want %q", messages[0].Content, "Hello")
	}
	if messages[1].Content != "World" {
		t.Errorf("second message content = %q, want %q", messages[1].Content, "World")
	}
}

func TestAssemblerRoleChangeStartsNewMessage(t *testing.T) {
	a := NewAssembler()

	a.Append(chat.RoleAssistant, "A")
	a.Append(chat.RoleUser, "B")
	a.Append(chat.RoleAssistant, "C")

	messages := a.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	want := []struct {
		role    chat.Role
		content string
	}{
		{chat.RoleAssistant, "A"},
		{chat.RoleUser, "B"},
		{chat.RoleAssistant, "C"},
	}
	for i, w := range want {
		if messages[i].Role != w.role || messages[i].Content != w.content {
			t.Errorf("message %d = {%s %q}, want {%s %q}",
				i, messages[i].Role, messages[i].Content, w.role, w.content)
		}
	}
}

func TestAssemblerTypingStopsOnClose(t *testing.T) {
	a := NewAssembler()

	a.Append(chat.RoleAssistant, "partial")
	a.CloseReply()

	if a.Typing() {
		t.Error("typing indicator should stop after terminal sentinel")
	}
}

func TestAssemblerFailPreservesPartialContent(t *testing.T) {
	a := NewAssembler()

	a.Append(chat.RoleAssistant, "partial answ")
	a.Fail(errors.New("connection lost"))

	if a.Typing() {
		t.Error("typing indicator should stop on error")
	}
	if a.Err() == nil {
		t.Error("error should be surfaced")
	}

	messages := a.Messages()
	if len(messages) != 1 || messages[0].Content != "partial answ" {
		t.Errorf("partial content should be preserved, got %v", messages)
	}

	// A retry after the error starts a fresh message.
	a.Append(chat.RoleAssistant, "full answer")
	messages = a.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after retry, got %d", len(messages))
	}
	if a.Err() != nil {
		t.Error("new fragment should clear the error state")
	}
}

func TestAssemblerMessagesReturnsCopy(t *testing.T) {
	a := NewAssembler()
	a.Append(chat.RoleUser, "hi")

	messages := a.Messages()
	messages[0].Content = "mutated"

	if got := a.Messages()[0].Content; got != "hi" {
		t.Errorf("internal transcript mutated through copy: %q", got)
	}
}

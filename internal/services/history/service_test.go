package history

import (
	"context"
	"errors"
	"testing"

	"github.com/medicman/assist/internal/domain/chat"
)

func TestThreadLifecycle(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	t.Run("initial thread is created on first ask", func(t *testing.T) {
		thread, err := svc.InitialThread(ctx, "patient-1")
		if err != nil {
			t.Fatalf("InitialThread: %v", err)
		}
		if thread.ID == "" {
			t.Fatal("thread should have an ID")
		}

		// Asking again returns the same thread, not a new one.
		again, err := svc.InitialThread(ctx, "patient-1")
		if err != nil {
			t.Fatalf("InitialThread: %v", err)
		}
		if again.ID != thread.ID {
			t.Errorf("second InitialThread returned %q, want %q", again.ID, thread.ID)
		}
	})

	t.Run("owners do not share threads", func(t *testing.T) {
		a, _ := svc.InitialThread(ctx, "patient-a")
		b, _ := svc.InitialThread(ctx, "patient-b")
		if a.ID == b.ID {
			t.Error("different owners should get different threads")
		}
	})
}

func TestSaveMessageAndTranscript(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	thread, _ := svc.CreateThread(ctx, "patient-1")

	if _, err := svc.SaveMessage(ctx, thread.ID, chat.RoleUser, "I have a headache"); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := svc.SaveMessage(ctx, thread.ID, chat.RoleAssistant, "How long has it lasted?"); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	transcript, err := svc.Transcript(ctx, thread.ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Sender != chat.RoleUser || transcript[1].Sender != chat.RoleAssistant {
		t.Errorf("transcript order wrong: %v", transcript)
	}

	t.Run("empty content rejected", func(t *testing.T) {
		if _, err := svc.SaveMessage(ctx, thread.ID, chat.RoleUser, "  "); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("err = %v, want ErrEmptyMessage", err)
		}
	})

	t.Run("unknown thread rejected", func(t *testing.T) {
		if _, err := svc.SaveMessage(ctx, "missing", chat.RoleUser, "hi"); !errors.Is(err, ErrThreadNotFound) {
			t.Errorf("err = %v, want ErrThreadNotFound", err)
		}
	})
}

func TestSidebarListsLatestUserMessagePerThread(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	first, _ := svc.CreateThread(ctx, "patient-1")
	svc.SaveMessage(ctx, first.ID, chat.RoleUser, "old question")
	svc.SaveMessage(ctx, first.ID, chat.RoleAssistant, "old answer")
	svc.SaveMessage(ctx, first.ID, chat.RoleUser, "newer question")

	second, _ := svc.CreateThread(ctx, "patient-1")
	svc.SaveMessage(ctx, second.ID, chat.RoleUser, "other thread question")

	other, _ := svc.CreateThread(ctx, "patient-2")
	svc.SaveMessage(ctx, other.ID, chat.RoleUser, "not mine")

	sidebar, err := svc.Sidebar(ctx, "patient-1")
	if err != nil {
		t.Fatalf("Sidebar: %v", err)
	}
	if len(sidebar) != 2 {
		t.Fatalf("sidebar length = %d, want 2", len(sidebar))
	}

	seen := map[string]string{}
	for _, m := range sidebar {
		seen[m.ThreadID] = m.Content
	}
	if seen[first.ID] != "newer question" {
		t.Errorf("first thread sidebar entry = %q, want latest user message", seen[first.ID])
	}
	if seen[second.ID] != "other thread question" {
		t.Errorf("second thread sidebar entry = %q", seen[second.ID])
	}
}

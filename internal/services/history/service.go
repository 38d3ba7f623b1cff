package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medicman/assist/internal/domain/chat"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrEmptyMessage   = errors.New("message content must not be empty")
)

// Thread groups the messages of one conversation.
type Thread struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one persisted chat turn.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Sender    chat.Role `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists threads and messages.
type Store interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	InitialThread(ctx context.Context, owner string) (*Thread, error)
	SaveMessage(ctx context.Context, m *Message) error
	MessagesByThread(ctx context.Context, threadID string) ([]Message, error)
	LatestUserMessages(ctx context.Context, owner string) ([]Message, error)
}

// Service owns the chat history surface: thread lifecycle, transcripts and
// the sidebar listing (the most recent user message of every thread).
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateThread provisions a new conversation for the owner.
func (s *Service) CreateThread(ctx context.Context, owner string) (*Thread, error) {
	thread := &Thread{
		ID:        uuid.NewString(),
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// InitialThread returns the owner's oldest thread, creating one when none
// exists yet so a first-time client always has somewhere to write.
func (s *Service) InitialThread(ctx context.Context, owner string) (*Thread, error) {
	thread, err := s.store.InitialThread(ctx, owner)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, ErrThreadNotFound) {
		return nil, err
	}
	return s.CreateThread(ctx, owner)
}

// SaveMessage appends a message to a thread.
func (s *Service) SaveMessage(ctx context.Context, threadID string, sender chat.Role, content string) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("unknown sender role %q", sender)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	message := &Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// Transcript returns a thread's messages in chronological order.
func (s *Service) Transcript(ctx context.Context, threadID string) ([]Message, error) {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return s.store.MessagesByThread(ctx, threadID)
}

// Sidebar returns the most recent user message per thread, newest first.
func (s *Service) Sidebar(ctx context.Context, owner string) ([]Message, error) {
	return s.store.LatestUserMessages(ctx, owner)
}

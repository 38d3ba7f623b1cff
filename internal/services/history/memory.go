package history

import (
	"context"
	"sort"
	"sync"

	"github.com/medicman/assist/internal/domain/chat"
)

// MemoryStore keeps threads and messages in process memory. Used when
// Postgres is unconfigured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	threads  map[string]Thread
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:  make(map[string]Thread),
		messages: make(map[string][]Message),
	}
}

func (ms *MemoryStore) CreateThread(ctx context.Context, t *Thread) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.threads[t.ID] = *t
	return nil
}

func (ms *MemoryStore) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	t, exists := ms.threads[threadID]
	if !exists {
		return nil, ErrThreadNotFound
	}
	return &t, nil
}

func (ms *MemoryStore) InitialThread(ctx context.Context, owner string) (*Thread, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var oldest *Thread
	for id := range ms.threads {
		t := ms.threads[id]
		if t.Owner != owner {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) {
			copied := t
			oldest = &copied
		}
	}
	if oldest == nil {
		return nil, ErrThreadNotFound
	}
	return oldest, nil
}

func (ms *MemoryStore) SaveMessage(ctx context.Context, m *Message) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.threads[m.ThreadID]; !exists {
		return ErrThreadNotFound
	}
	ms.messages[m.ThreadID] = append(ms.messages[m.ThreadID], *m)
	return nil
}

func (ms *MemoryStore) MessagesByThread(ctx context.Context, threadID string) ([]Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	messages := ms.messages[threadID]
	out := make([]Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (ms *MemoryStore) LatestUserMessages(ctx context.Context, owner string) ([]Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var latest []Message
	for threadID, messages := range ms.messages {
		thread, exists := ms.threads[threadID]
		if !exists || thread.Owner != owner {
			continue
		}
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Sender == chat.RoleUser {
				latest = append(latest, messages[i])
				break
			}
		}
	}

	sort.Slice(latest, func(i, j int) bool {
		return latest[i].CreatedAt.After(latest[j].CreatedAt)
	})
	return latest, nil
}

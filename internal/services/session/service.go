package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medicman/assist/internal/domain/diagnosis"
	"github.com/medicman/assist/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionLifetime  = 24 * time.Hour
	sessionKeyPrefix = "session:"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrStaleSession      = errors.New("session superseded by a newer one")
	ErrQuestionsSet      = errors.New("follow-up questions already set")
	ErrNoQuestions       = errors.New("no follow-up questions on session")
	ErrAnswerSetMismatch = errors.New("answers do not match the question list")
	ErrEmptySymptoms     = errors.New("symptom description must not be empty")
)

// Session is one end-to-end symptom-to-diagnosis interaction.
type Session struct {
	ID                string             `json:"id"`
	Symptoms          string             `json:"symptoms"`
	PersonalInfo      string             `json:"personalInfo,omitempty"`
	FollowupQuestions []string           `json:"followupQuestions,omitempty"`
	Answers           map[string]string  `json:"answers,omitempty"`
	FinalPrompt       string             `json:"finalPrompt,omitempty"`
	Diagnosis         *diagnosis.Record  `json:"diagnosis,omitempty"`
	Superseded        bool               `json:"superseded,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// SessionStore persists sessions by identifier.
type SessionStore interface {
	Set(ctx context.Context, sessionID string, s *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	redisService *redis.Service
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Service is the single source of truth for session state. Mutations are
// limited to the pipeline stages; the stale-session guard keeps late
// responses from older sessions out of newer ones.
type Service struct {
	store SessionStore
}

func NewService(redisService *redis.Service) *Service {
	var store SessionStore
	if redisService != nil {
		if err := redisService.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, session state held in memory")
			store = newMemoryStore()
		} else {
			store = &RedisStore{redisService: redisService}
		}
	} else {
		store = newMemoryStore()
	}

	return &Service{store: store}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Redis store implementation
func (rs *RedisStore) Set(ctx context.Context, sessionID string, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return rs.redisService.Set(ctx, sessionKeyPrefix+sessionID, string(data), sessionLifetime)
}

func (rs *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := rs.redisService.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if data == "" {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (rs *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return rs.redisService.Delete(ctx, sessionKeyPrefix+sessionID)
}

// Memory store implementation
func (ms *MemoryStore) Set(ctx context.Context, sessionID string, s *Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	copied := *s
	ms.sessions[sessionID] = &copied
	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	s, exists := ms.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, sessionID)
	return nil
}

// StartSession creates a new session from the reported symptoms. When the
// caller carries a previous session ID, that session is marked superseded so
// in-flight responses for it can no longer mutate state.
func (s *Service) StartSession(ctx context.Context, previousID, symptoms string) (*Session, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return nil, ErrEmptySymptoms
	}

	if previousID != "" {
		if prev, err := s.store.Get(ctx, previousID); err == nil && prev != nil {
			prev.Superseded = true
			prev.UpdatedAt = time.Now().UTC()
			if err := s.store.Set(ctx, prev.ID, prev); err != nil {
				log.Warn().Err(err).Str("session_id", prev.ID).Msg("Failed to mark previous session superseded")
			}
		}
	}

	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.NewString(),
		Symptoms:  symptoms,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Set(ctx, session.ID, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	log.Info().Str("session_id", session.ID).Msg("Session started")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// SetPersonalInfo records the patient's free-text personal details.
func (s *Service) SetPersonalInfo(ctx context.Context, sessionID, info string) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		session.PersonalInfo = strings.TrimSpace(info)
		return nil
	})
}

// SetFollowUps stores the server-assigned question list. The list is
// immutable once received.
func (s *Service) SetFollowUps(ctx context.Context, sessionID string, questions []string) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		if len(session.FollowupQuestions) > 0 {
			return ErrQuestionsSet
		}
		session.FollowupQuestions = questions
		return nil
	})
}

// SetAnswers stores the completed answer map. The key set must exactly equal
// the question list: every question answered, no extra keys.
func (s *Service) SetAnswers(ctx context.Context, sessionID string, answers map[string]string) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		if len(session.FollowupQuestions) == 0 {
			return ErrNoQuestions
		}
		if len(answers) != len(session.FollowupQuestions) {
			return ErrAnswerSetMismatch
		}
		for _, q := range session.FollowupQuestions {
			if strings.TrimSpace(answers[q]) == "" {
				return fmt.Errorf("%w: missing answer for %q", ErrAnswerSetMismatch, q)
			}
		}
		session.Answers = answers
		return nil
	})
}

// SetFinalPrompt stores the synthesized prompt.
func (s *Service) SetFinalPrompt(ctx context.Context, sessionID, prompt string) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		session.FinalPrompt = prompt
		return nil
	})
}

// SetDiagnosis replaces the diagnosis wholesale. Responses carrying a stale
// session identifier are discarded.
func (s *Service) SetDiagnosis(ctx context.Context, sessionID string, record *diagnosis.Record) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		session.Diagnosis = record
		return nil
	})
}

// MergeDiagnosisChunk applies a streamed partial record, overwriting only the
// fields the chunk carries. Subject to the same stale-session guard.
func (s *Service) MergeDiagnosisChunk(ctx context.Context, sessionID string, chunk diagnosis.Chunk) (*Session, error) {
	return s.update(ctx, sessionID, func(session *Session) error {
		if session.Diagnosis == nil {
			session.Diagnosis = &diagnosis.Record{}
		}
		session.Diagnosis.Merge(chunk)
		return nil
	})
}

// update loads, guards, mutates and persists a session.
func (s *Service) update(ctx context.Context, sessionID string, mutate func(*Session) error) (*Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Superseded {
		return nil, ErrStaleSession
	}

	if err := mutate(session); err != nil {
		return nil, err
	}

	session.UpdatedAt = time.Now().UTC()
	if err := s.store.Set(ctx, session.ID, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}

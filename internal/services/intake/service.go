package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/medicman/assist/internal/domain/diagnosis"
	"github.com/medicman/assist/internal/services/session"
	"github.com/medicman/assist/internal/services/wizard"
	"github.com/rs/zerolog/log"
)

var (
	ErrAnalyzerUnavailable = errors.New("analyzer is not configured")
	ErrNoFinalPrompt       = errors.New("session has no final prompt yet")
	ErrNoWizard            = errors.New("no follow-up wizard for session")
)

// Analyzer produces the LLM-backed pieces of the pipeline. Satisfied by the
// OpenAI infrastructure service; tests substitute fakes.
type Analyzer interface {
	GenerateFollowUps(ctx context.Context, symptoms string) ([]string, error)
	GenerateDiagnosis(ctx context.Context, finalPrompt string) (*diagnosis.Record, error)
}

// Service drives the symptom-to-diagnosis pipeline: start a session, generate
// follow-up questions, collect answers through a per-session wizard, build the
// final prompt and obtain the diagnosis.
type Service struct {
	sessions *session.Service
	analyzer Analyzer

	mu      sync.Mutex
	wizards map[string]*wizard.Controller
}

func NewService(sessions *session.Service, analyzer Analyzer) *Service {
	return &Service{
		sessions: sessions,
		analyzer: analyzer,
		wizards:  make(map[string]*wizard.Controller),
	}
}

// Init starts a new session from a symptom description. A previous session
// identifier, when given, is marked superseded so its late responses are
// rejected.
func (s *Service) Init(ctx context.Context, previousID, symptoms string) (*session.Session, error) {
	sess, err := s.sessions.StartSession(ctx, previousID, symptoms)
	if err != nil {
		return nil, err
	}

	if previousID != "" {
		s.mu.Lock()
		delete(s.wizards, previousID)
		s.mu.Unlock()
	}

	log.Info().Str("session_id", sess.ID).Msg("Intake session started")
	return sess, nil
}

// SetPersonalInfo records free-form personal details on the session.
func (s *Service) SetPersonalInfo(ctx context.Context, sessionID, info string) (*session.Session, error) {
	return s.sessions.SetPersonalInfo(ctx, sessionID, info)
}

// GenerateFollowUps asks the analyzer for clarifying questions, stores them on
// the session and provisions the wizard that will walk through them.
func (s *Service) GenerateFollowUps(ctx context.Context, sessionID string) ([]string, error) {
	if s.analyzer == nil {
		return nil, ErrAnalyzerUnavailable
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.FollowupQuestions) > 0 {
		return sess.FollowupQuestions, nil
	}

	questions, err := s.analyzer.GenerateFollowUps(ctx, sess.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("generating follow-up questions: %w", err)
	}

	if _, err := s.sessions.SetFollowUps(ctx, sessionID, questions); err != nil {
		return nil, err
	}

	controller := wizard.NewController(func(ctx context.Context, answers map[string]string) error {
		return s.submitAnswers(ctx, sessionID, answers)
	})
	if err := controller.LoadQuestions(questions); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.wizards[sessionID] = controller
	s.mu.Unlock()

	return questions, nil
}

// Wizard returns the follow-up wizard for a session.
func (s *Service) Wizard(sessionID string) (*wizard.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	controller, exists := s.wizards[sessionID]
	if !exists {
		return nil, ErrNoWizard
	}
	return controller, nil
}

// SetAnswers records a complete answer set directly, for clients that collect
// answers without the wizard.
func (s *Service) SetAnswers(ctx context.Context, sessionID string, answers map[string]string) (*session.Session, error) {
	return s.sessions.SetAnswers(ctx, sessionID, answers)
}

// submitAnswers is the wizard's submission target: it persists the answer set
// and builds the final prompt from it.
func (s *Service) submitAnswers(ctx context.Context, sessionID string, answers map[string]string) error {
	if _, err := s.sessions.SetAnswers(ctx, sessionID, answers); err != nil {
		return err
	}
	_, err := s.BuildFinalPrompt(ctx, sessionID)
	return err
}

// BuildFinalPrompt synthesizes the diagnosis prompt from the session's
// symptoms and collected answers. Built locally, no LLM call.
func (s *Service) BuildFinalPrompt(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	lines := []string{
		"User reported the following symptoms:",
		sess.Symptoms + ".",
	}
	if sess.PersonalInfo != "" {
		lines = append(lines, "Personal information: "+sess.PersonalInfo)
	}
	if len(sess.Answers) > 0 {
		lines = append(lines, "Follow-up questions and user's answers:")
		for _, q := range sess.FollowupQuestions {
			if a, answered := sess.Answers[q]; answered {
				lines = append(lines, "Q: "+q+"\nA: "+a)
			}
		}
	}
	lines = append(lines, "\nBased on the above information, provide a detailed medical analysis, "+
		"possible diagnoses, and recommended next steps. Be clear and concise.")

	prompt := strings.Join(lines, "\n")
	if _, err := s.sessions.SetFinalPrompt(ctx, sessionID, prompt); err != nil {
		return "", err
	}
	return prompt, nil
}

// Diagnose runs the final prompt through the analyzer and stores the full
// diagnosis record on the session, replacing any earlier one wholesale.
func (s *Service) Diagnose(ctx context.Context, sessionID string) (*diagnosis.Record, error) {
	if s.analyzer == nil {
		return nil, ErrAnalyzerUnavailable
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sess.FinalPrompt) == "" {
		return nil, ErrNoFinalPrompt
	}

	record, err := s.analyzer.GenerateDiagnosis(ctx, sess.FinalPrompt)
	if err != nil {
		return nil, fmt.Errorf("generating diagnosis: %w", err)
	}

	if _, err := s.sessions.SetDiagnosis(ctx, sessionID, record); err != nil {
		return nil, err
	}
	return record, nil
}

// StreamDiagnosis produces the diagnosis and delivers it as a series of
// single-field chunks, each merged into the session as it is emitted. The
// consumer sees the record build up field by field; a mid-stream failure
// leaves the fields merged so far intact.
func (s *Service) StreamDiagnosis(ctx context.Context, sessionID, finalPrompt string, emit func(diagnosis.Chunk) error) error {
	if s.analyzer == nil {
		return ErrAnalyzerUnavailable
	}

	if strings.TrimSpace(finalPrompt) != "" {
		if _, err := s.sessions.SetFinalPrompt(ctx, sessionID, finalPrompt); err != nil {
			return err
		}
	} else {
		sess, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(sess.FinalPrompt) == "" {
			return ErrNoFinalPrompt
		}
		finalPrompt = sess.FinalPrompt
	}

	record, err := s.analyzer.GenerateDiagnosis(ctx, finalPrompt)
	if err != nil {
		return fmt.Errorf("generating diagnosis: %w", err)
	}

	for _, chunk := range splitRecord(record) {
		if _, err := s.sessions.MergeDiagnosisChunk(ctx, sessionID, chunk); err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitRecord decomposes a record into per-field chunks, skipping fields the
// analyzer left empty.
func splitRecord(r *diagnosis.Record) []diagnosis.Chunk {
	var chunks []diagnosis.Chunk
	if r.DiseaseName != "" {
		chunks = append(chunks, diagnosis.Chunk{DiseaseName: &r.DiseaseName})
	}
	if r.DiseaseSummary != "" {
		chunks = append(chunks, diagnosis.Chunk{DiseaseSummary: &r.DiseaseSummary})
	}
	if r.WhyYouHaveThis != "" {
		chunks = append(chunks, diagnosis.Chunk{WhyYouHaveThis: &r.WhyYouHaveThis})
	}
	if r.WhatToDoFirst != "" {
		chunks = append(chunks, diagnosis.Chunk{WhatToDoFirst: &r.WhatToDoFirst})
	}
	if len(r.DangerSigns) > 0 {
		chunks = append(chunks, diagnosis.Chunk{DangerSigns: r.DangerSigns})
	}
	if len(r.LifestyleChanges) > 0 {
		chunks = append(chunks, diagnosis.Chunk{LifestyleChanges: r.LifestyleChanges})
	}
	if len(r.Medicines) > 0 {
		chunks = append(chunks, diagnosis.Chunk{Medicines: r.Medicines})
	}
	return chunks
}

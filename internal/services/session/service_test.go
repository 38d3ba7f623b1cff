package session

import (
	"context"
	"errors"
	"testing"

	"github.com/medicman/assist/internal/domain/diagnosis"
)

func strptr(s string) *string { return &s }

func TestStartSession(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	t.Run("normalizes symptoms and persists", func(t *testing.T) {
		session, err := svc.StartSession(ctx, "", "  fever and cough  ")
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		if session.Symptoms != "fever and cough" {
			t.Errorf("symptoms = %q, want trimmed", session.Symptoms)
		}

		got, err := svc.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.ID != session.ID {
			t.Errorf("ID = %q, want %q", got.ID, session.ID)
		}
	})

	t.Run("rejects empty symptoms", func(t *testing.T) {
		if _, err := svc.StartSession(ctx, "", "   "); !errors.Is(err, ErrEmptySymptoms) {
			t.Errorf("err = %v, want ErrEmptySymptoms", err)
		}
	})

	t.Run("supersedes the previous session", func(t *testing.T) {
		old, _ := svc.StartSession(ctx, "", "headache")
		if _, err := svc.StartSession(ctx, old.ID, "sore throat"); err != nil {
			t.Fatalf("StartSession: %v", err)
		}

		_, err := svc.SetDiagnosis(ctx, old.ID, &diagnosis.Record{DiseaseName: "Migraine"})
		if !errors.Is(err, ErrStaleSession) {
			t.Errorf("mutation of superseded session err = %v, want ErrStaleSession", err)
		}
	})
}

func TestFollowUpsImmutableOnceSet(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()
	session, _ := svc.StartSession(ctx, "", "fever")

	if _, err := svc.SetFollowUps(ctx, session.ID, []string{"How long?"}); err != nil {
		t.Fatalf("SetFollowUps: %v", err)
	}
	if _, err := svc.SetFollowUps(ctx, session.ID, []string{"Other?"}); !errors.Is(err, ErrQuestionsSet) {
		t.Errorf("second SetFollowUps err = %v, want ErrQuestionsSet", err)
	}
}

func TestSetAnswersValidatesKeySet(t *testing.T) {
	ctx := context.Background()
	questions := []string{"How long?", "Severity 1-10?"}

	newSession := func(t *testing.T) (*Service, string) {
		svc := NewService(nil)
		s, err := svc.StartSession(ctx, "", "fever and cough")
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		if _, err := svc.SetFollowUps(ctx, s.ID, questions); err != nil {
			t.Fatalf("SetFollowUps: %v", err)
		}
		return svc, s.ID
	}

	t.Run("complete answer set accepted", func(t *testing.T) {
		svc, id := newSession(t)
		answers := map[string]string{"How long?": "3 days", "Severity 1-10?": "6"}

		session, err := svc.SetAnswers(ctx, id, answers)
		if err != nil {
			t.Fatalf("SetAnswers: %v", err)
		}
		if session.Answers["How long?"] != "3 days" {
			t.Errorf("answers not stored: %v", session.Answers)
		}
	})

	t.Run("missing answer rejected", func(t *testing.T) {
		svc, id := newSession(t)
		if _, err := svc.SetAnswers(ctx, id, map[string]string{"How long?": "3 days"}); !errors.Is(err, ErrAnswerSetMismatch) {
			t.Errorf("err = %v, want ErrAnswerSetMismatch", err)
		}
	})

	t.Run("extra key rejected", func(t *testing.T) {
		svc, id := newSession(t)
		answers := map[string]string{"How long?": "3 days", "Unasked?": "n/a"}
		if _, err := svc.SetAnswers(ctx, id, answers); !errors.Is(err, ErrAnswerSetMismatch) {
			t.Errorf("err = %v, want ErrAnswerSetMismatch", err)
		}
	})

	t.Run("blank answer rejected", func(t *testing.T) {
		svc, id := newSession(t)
		answers := map[string]string{"How long?": "3 days", "Severity 1-10?": "  "}
		if _, err := svc.SetAnswers(ctx, id, answers); !errors.Is(err, ErrAnswerSetMismatch) {
			t.Errorf("err = %v, want ErrAnswerSetMismatch", err)
		}
	})

	t.Run("answers before questions rejected", func(t *testing.T) {
		svc := NewService(nil)
		s, _ := svc.StartSession(ctx, "", "fever")
		if _, err := svc.SetAnswers(ctx, s.ID, map[string]string{"Q": "A"}); !errors.Is(err, ErrNoQuestions) {
			t.Errorf("err = %v, want ErrNoQuestions", err)
		}
	})
}

func TestDiagnosisMutations(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	t.Run("wholesale replacement", func(t *testing.T) {
		session, _ := svc.StartSession(ctx, "", "fever")

		first := &diagnosis.Record{DiseaseName: "Cold", DangerSigns: []string{"none"}}
		if _, err := svc.SetDiagnosis(ctx, session.ID, first); err != nil {
			t.Fatalf("SetDiagnosis: %v", err)
		}

		second := &diagnosis.Record{DiseaseName: "Influenza"}
		updated, err := svc.SetDiagnosis(ctx, session.ID, second)
		if err != nil {
			t.Fatalf("SetDiagnosis: %v", err)
		}
		if updated.Diagnosis.DiseaseName != "Influenza" {
			t.Errorf("DiseaseName = %q", updated.Diagnosis.DiseaseName)
		}
		if updated.Diagnosis.DangerSigns != nil {
			t.Error("wholesale replacement must not merge old fields")
		}
	})

	t.Run("chunk-wise merge preserves earlier fields", func(t *testing.T) {
		session, _ := svc.StartSession(ctx, "", "fever")

		if _, err := svc.MergeDiagnosisChunk(ctx, session.ID, diagnosis.Chunk{DiseaseName: strptr("Influenza")}); err != nil {
			t.Fatalf("MergeDiagnosisChunk: %v", err)
		}
		updated, err := svc.MergeDiagnosisChunk(ctx, session.ID, diagnosis.Chunk{WhatToDoFirst: strptr("Rest")})
		if err != nil {
			t.Fatalf("MergeDiagnosisChunk: %v", err)
		}

		if updated.Diagnosis.DiseaseName != "Influenza" {
			t.Errorf("DiseaseName lost during merge: %q", updated.Diagnosis.DiseaseName)
		}
		if updated.Diagnosis.WhatToDoFirst != "Rest" {
			t.Errorf("WhatToDoFirst = %q", updated.Diagnosis.WhatToDoFirst)
		}
	})

	t.Run("unknown session discarded", func(t *testing.T) {
		if _, err := svc.SetDiagnosis(ctx, "no-such-session", &diagnosis.Record{}); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})
}

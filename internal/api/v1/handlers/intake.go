package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/medicman/assist/internal/services/intake"
	"github.com/medicman/assist/internal/services/session"
	"github.com/medicman/assist/pkg/httpext"
	"github.com/rs/zerolog/log"
)

type initRequest struct {
	Symptoms          string `json:"symptoms" validate:"required"`
	PreviousSessionID string `json:"previousSessionId,omitempty"`
}

type personalInfoRequest struct {
	SessionID    string `json:"sessionId" validate:"required"`
	PersonalInfo string `json:"personalInfo" validate:"required"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type answersRequest struct {
	SessionID string            `json:"sessionId" validate:"required"`
	Answers   map[string]string `json:"answers" validate:"required"`
}

type followUpsResponse struct {
	SessionID string   `json:"sessionId"`
	Questions []string `json:"questions"`
}

type finalPromptResponse struct {
	SessionID   string `json:"sessionId"`
	FinalPrompt string `json:"finalPrompt"`
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return false
	}

	// use a single instance of Validate, it caches struct info
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(req); err != nil {
		log.Warn().Err(err).Msg("Request validation failed")
		httpext.JsonError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		httpext.JsonError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrStaleSession):
		httpext.JsonError(w, "Session superseded by a newer one", http.StatusConflict)
	case errors.Is(err, session.ErrQuestionsSet):
		httpext.JsonError(w, "Follow-up questions already generated", http.StatusConflict)
	case errors.Is(err, session.ErrEmptySymptoms),
		errors.Is(err, session.ErrNoQuestions),
		errors.Is(err, session.ErrAnswerSetMismatch):
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, intake.ErrNoFinalPrompt):
		httpext.JsonError(w, "Final prompt not built yet", http.StatusBadRequest)
	case errors.Is(err, intake.ErrAnalyzerUnavailable):
		httpext.JsonError(w, "Analysis backend unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Intake operation failed")
		httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleInit starts a new intake session from a symptom description.
func HandleInit(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sess, err := intakeService.Init(r.Context(), req.PreviousSessionID, req.Symptoms)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, sess, http.StatusCreated)
}

// HandlePersonalInfo attaches personal details to a session.
func HandlePersonalInfo(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req personalInfoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sess, err := intakeService.SetPersonalInfo(r.Context(), req.SessionID, req.PersonalInfo)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, sess, http.StatusOK)
}

// HandleFollowUps generates the clarifying questions for a session.
func HandleFollowUps(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	questions, err := intakeService.GenerateFollowUps(r.Context(), req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, followUpsResponse{
		SessionID: req.SessionID,
		Questions: questions,
	}, http.StatusOK)
}

// HandleAnswers records the complete follow-up answer set.
func HandleAnswers(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sess, err := intakeService.SetAnswers(r.Context(), req.SessionID, req.Answers)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, sess, http.StatusOK)
}

// HandleFinalPrompt builds the diagnosis prompt from the session's collected
// answers.
func HandleFinalPrompt(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	prompt, err := intakeService.BuildFinalPrompt(r.Context(), req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, finalPromptResponse{
		SessionID:   req.SessionID,
		FinalPrompt: prompt,
	}, http.StatusOK)
}

// HandleDiagnosis produces the structured diagnosis for a session.
func HandleDiagnosis(intakeService *intake.Service, w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := intakeService.Diagnose(r.Context(), req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	httpext.JsonResponse(w, record, http.StatusOK)
}

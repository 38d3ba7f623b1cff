package handlers

import (
	"errors"
	"net/http"

	"github.com/medicman/assist/internal/api/v1/middleware"
	"github.com/medicman/assist/internal/services/history"
	"github.com/medicman/assist/pkg/httpext"
	"github.com/rs/zerolog/log"
)

func requestOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	validation := middleware.GetTokenValidation(r)
	if validation == nil {
		log.Error().Str("path", r.URL.Path).Msg("Missing token validation context")
		httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	}
	return validation.Subject, true
}

func writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, history.ErrThreadNotFound):
		httpext.JsonError(w, "Thread not found", http.StatusNotFound)
	case errors.Is(err, history.ErrEmptyMessage):
		httpext.JsonError(w, "Message content must not be empty", http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("History operation failed")
		httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleCreateThread provisions a new conversation thread for the caller.
func HandleCreateThread(historyService *history.Service, w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	thread, err := historyService.CreateThread(r.Context(), owner)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	httpext.JsonResponse(w, thread, http.StatusCreated)
}

// HandleInitialThread returns the caller's first thread, creating one when
// they have none.
func HandleInitialThread(historyService *history.Service, w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	thread, err := historyService.InitialThread(r.Context(), owner)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	httpext.JsonResponse(w, thread, http.StatusOK)
}

// HandleTranscript returns a thread's messages in chronological order.
func HandleTranscript(historyService *history.Service, w http.ResponseWriter, r *http.Request) {
	if _, ok := requestOwner(w, r); !ok {
		return
	}

	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		httpext.JsonError(w, "threadId query parameter is required", http.StatusBadRequest)
		return
	}

	messages, err := historyService.Transcript(r.Context(), threadID)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	httpext.JsonResponse(w, messages, http.StatusOK)
}

// HandleSidebar lists the most recent user message of each of the caller's
// threads, newest first.
func HandleSidebar(historyService *history.Service, w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	messages, err := historyService.Sidebar(r.Context(), owner)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	httpext.JsonResponse(w, messages, http.StatusOK)
}

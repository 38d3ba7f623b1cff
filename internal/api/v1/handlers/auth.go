package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medicman/assist/internal/services/auth"
	"github.com/medicman/assist/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// HandleToken issues channel tokens for the anonymous and refresh grants.
func HandleToken(authService *auth.Service, w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	resp, err := authService.IssueToken(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownGrantType):
			httpext.JsonError(w, "Unsupported grant type", http.StatusBadRequest)
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			httpext.JsonError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			log.Error().Err(err).Msg("Token issuance failed")
			httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	httpext.JsonResponse(w, resp, http.StatusOK)
}

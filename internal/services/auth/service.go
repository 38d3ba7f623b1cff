package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medicman/assist/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	GrantTypeAnonymous = "anonymous"
	GrantTypeRefresh   = "refresh_token"

	refreshLifetime = 24 * time.Hour
)

var (
	ErrUnknownGrantType    = errors.New("unsupported grant type")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// TokenRequest is the body of a token grant call.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenResponse carries an issued channel token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// CustomClaims are the JWT claims on a channel token. Subject identifies the
// client and doubles as the chat history owner.
type CustomClaims struct {
	jwt.RegisteredClaims
	GrantType string `json:"gty"`
}

// TokenValidationResult is the outcome of validating a channel token.
type TokenValidationResult struct {
	Valid     bool
	Subject   string
	GrantType string
	ExpiresAt time.Time
}

type refreshSession struct {
	subject   string
	expiresAt time.Time
}

// Service issues and validates channel tokens. Clients start anonymous and
// hold on to the refresh token to keep the same identity across reconnects.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]refreshSession
}

func NewService() *Service {
	return &Service{sessions: make(map[string]refreshSession)}
}

// IssueToken handles both grant types: anonymous mints a fresh identity,
// refresh_token re-issues for an existing one and rotates the refresh token.
func (s *Service) IssueToken(req TokenRequest) (*TokenResponse, error) {
	var subject string

	switch req.GrantType {
	case GrantTypeAnonymous:
		subject = uuid.NewString()
	case GrantTypeRefresh:
		s.mu.Lock()
		sess, exists := s.sessions[req.RefreshToken]
		if !exists || time.Now().After(sess.expiresAt) {
			s.mu.Unlock()
			return nil, ErrInvalidRefreshToken
		}
		delete(s.sessions, req.RefreshToken)
		s.mu.Unlock()
		subject = sess.subject
	default:
		return nil, ErrUnknownGrantType
	}

	lifetime := config.GetTokenLifetime()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		GrantType: req.GrantType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(config.GetJWTSecret())
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.sessions[refreshToken] = refreshSession{
		subject:   subject,
		expiresAt: time.Now().Add(refreshLifetime),
	}
	s.mu.Unlock()

	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    "Bearer",
		ExpiresIn:    int(lifetime.Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

// ValidateToken parses and verifies a channel token.
func (s *Service) ValidateToken(tokenString string) TokenValidationResult {
	result := TokenValidationResult{Valid: false}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return config.GetJWTSecret(), nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Token parse failed")
		return result
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return result
	}
	if claims.Subject == "" {
		log.Warn().Msg("Token missing subject claim")
		return result
	}

	result.Valid = true
	result.Subject = claims.Subject
	result.GrantType = claims.GrantType
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the access_token query parameter for WebSocket clients that cannot
// set headers.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

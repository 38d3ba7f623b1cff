package services

import (
	"context"
	"sync"

	"github.com/medicman/assist/internal/infrastructure/openai"
	"github.com/medicman/assist/internal/infrastructure/postgres"
	"github.com/medicman/assist/internal/infrastructure/redis"
	"github.com/medicman/assist/internal/services/auth"
	"github.com/medicman/assist/internal/services/history"
	"github.com/medicman/assist/internal/services/intake"
	"github.com/medicman/assist/internal/services/media"
	"github.com/medicman/assist/internal/services/session"
	"github.com/rs/zerolog/log"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	openAIService   *openai.Service
	redisService    *redis.Service
	postgresService *postgres.Service
	authService     *auth.Service
	sessionService  *session.Service
	historyService  *history.Service
	intakeService   *intake.Service
	mediaService    *media.Service
}

// InitializeServices wires up the full service graph. Redis and Postgres are
// optional and fall back to in-memory stores; OpenAI is required.
func InitializeServices(ctx context.Context) (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Optional infrastructure
	redisService := redis.NewService()
	postgresService := postgres.NewService(ctx)

	// Initialize OpenAI service (required)
	openAIService := openai.NewService()
	if openAIService == nil {
		log.Fatal().Msg("Failed to initialize OpenAI service - service is required for core functionality")
	}

	authService := auth.NewService()

	sessionService := session.NewService(redisService)
	log.Info().Msg("Initializing session service")

	var historyStore history.Store
	if postgresService != nil {
		historyStore = history.NewPostgresStore(postgresService.DB())
	} else {
		log.Warn().Msg("Postgres unavailable, chat history held in memory")
		historyStore = history.NewMemoryStore()
	}
	historyService := history.NewService(historyStore)

	intakeService := intake.NewService(sessionService, openAIService)
	mediaService := media.NewService(openAIService)

	log.Info().Msg("All services initialized successfully")

	return &Services{
		openAIService:   openAIService,
		redisService:    redisService,
		postgresService: postgresService,
		authService:     authService,
		sessionService:  sessionService,
		historyService:  historyService,
		intakeService:   intakeService,
		mediaService:    mediaService,
	}, nil
}

// Close releases infrastructure connections.
func (s *Services) Close() {
	if s.postgresService != nil {
		if err := s.postgresService.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing Postgres connection")
		}
	}
	if s.redisService != nil {
		if err := s.redisService.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing Redis connection")
		}
	}
}

// GetAuthService returns the auth service
func (s *Services) GetAuthService() *auth.Service {
	return s.authService
}

// GetSessionService returns the session service
func (s *Services) GetSessionService() *session.Service {
	return s.sessionService
}

// GetHistoryService returns the chat history service
func (s *Services) GetHistoryService() *history.Service {
	return s.historyService
}

// GetIntakeService returns the intake pipeline service
func (s *Services) GetIntakeService() *intake.Service {
	return s.intakeService
}

// GetMediaService returns the media analysis service
func (s *Services) GetMediaService() *media.Service {
	return s.mediaService
}

// GetOpenAIService returns the OpenAI infrastructure service
func (s *Services) GetOpenAIService() *openai.Service {
	return s.openAIService
}

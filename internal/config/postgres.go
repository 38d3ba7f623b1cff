package config

import (
	"github.com/rs/zerolog/log"
)

// GetDatabaseURL returns the Postgres connection string for chat history.
func GetDatabaseURL() string {
	value := GetEnvOrDefault("DATABASE_URL", "")
	if value == "" {
		log.Warn().Msg("DATABASE_URL not set - chat history falls back to in-memory storage")
	}
	return value
}

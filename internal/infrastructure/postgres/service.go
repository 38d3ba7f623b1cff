package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	_ "github.com/lib/pq"
	"github.com/medicman/assist/internal/config"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

type Service struct {
	db *sql.DB
}

// NewService opens the chat-history database and applies the schema.
// Returns nil when Postgres is unconfigured or unreachable; callers fall
// back to in-memory storage.
func NewService(ctx context.Context) *Service {
	url := config.GetDatabaseURL()

	if url == "" {
		log.Warn().Msg("Postgres not configured - service will be unavailable")
		return nil
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open Postgres connection")
		return nil
	}

	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to establish Postgres connection")
		return nil
	}

	if err := migrate(ctx, db); err != nil {
		log.Error().Err(err).Msg("Failed to apply chat history schema")
		return nil
	}

	return &Service{db: db}
}

// DB exposes the underlying connection pool.
func (s *Service) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// migrate executes the embedded schema. Statements are written to be
// idempotent so startup is safe to repeat.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

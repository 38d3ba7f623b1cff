package history

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists threads and messages in Postgres. The schema is
// applied by the postgres infrastructure service at startup.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateThread(ctx context.Context, t *Thread) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_threads (id, owner, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Owner, t.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	err := p.db.QueryRowContext(ctx,
		`SELECT id, owner, created_at FROM chat_threads WHERE id = $1`,
		threadID,
	).Scan(&t.ID, &t.Owner, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) InitialThread(ctx context.Context, owner string) (*Thread, error) {
	var t Thread
	err := p.db.QueryRowContext(ctx,
		`SELECT id, owner, created_at FROM chat_threads
         WHERE owner = $1
         ORDER BY created_at ASC
         LIMIT 1`, owner,
	).Scan(&t.ID, &t.Owner, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) SaveMessage(ctx context.Context, m *Message) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, thread_id, sender, content, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ThreadID, m.Sender, m.Content, m.CreatedAt,
	)
	return err
}

func (p *PostgresStore) MessagesByThread(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, thread_id, sender, content, created_at
         FROM chat_messages
         WHERE thread_id = $1
         ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (p *PostgresStore) LatestUserMessages(ctx context.Context, owner string) ([]Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, thread_id, sender, content, created_at FROM (
             SELECT m.id, m.thread_id, m.sender, m.content, m.created_at,
                    ROW_NUMBER() OVER (PARTITION BY m.thread_id ORDER BY m.created_at DESC) AS row_num
             FROM chat_messages m
             JOIN chat_threads t ON t.id = m.thread_id
             WHERE m.sender = 'user' AND t.owner = $1
         ) ranked
         WHERE row_num = 1
         ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

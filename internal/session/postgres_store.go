package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

const createSessionsTable = `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);
`

// PostgresStore keeps sessions in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the sessions table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Create stores a new session.
func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, user_id, payload, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = p.pool.Exec(ctx, query, s.ID, s.User.ID, payload, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get loads a session that has not expired.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT payload
		FROM sessions
		WHERE id = $1 AND expires_at > now()
	`

	var payload []byte
	if err := p.pool.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.Trips == nil {
		s.Trips = []Trip{}
	}
	return &s, nil
}

// Update replaces the payload of an existing session.
func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	c := s.Clone()
	c.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	query := `
		UPDATE sessions
		SET payload = $2, updated_at = $3
		WHERE id = $1 AND expires_at > now()
	`
	tag, err := p.pool.Exec(ctx, query, c.ID, payload, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Mutate applies fn inside a transaction holding the session row lock.
func (p *PostgresStore) Mutate(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning session transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		SELECT payload
		FROM sessions
		WHERE id = $1 AND expires_at > now()
		FOR UPDATE
	`
	var payload []byte
	if err := tx.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.Trips == nil {
		s.Trips = []Trip{}
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	s.ID = id
	s.UpdatedAt = time.Now().UTC()

	payload, err = json.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE sessions SET payload = $2, updated_at = $3 WHERE id = $1`, id, payload, s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return &s, nil
}

// Delete removes a session.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired purges expired sessions.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

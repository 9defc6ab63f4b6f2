package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// LoadSession returns the encoded blob for a live session.
// Missing and expired sessions both return apperror.ErrNotFound.
func (db *DB) LoadSession(ctx context.Context, id string) (string, error) {
	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().Unix(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("session", id)
		}
		return "", fmt.Errorf("sqlite: loading session: %w", err)
	}
	return data, nil
}

// SaveSession inserts or replaces the session row.
func (db *DB) SaveSession(ctx context.Context, id, data string, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		id, data, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving session: %w", err)
	}
	return nil
}

// DeleteSession removes the row. Deleting a missing session is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

func (db *DB) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

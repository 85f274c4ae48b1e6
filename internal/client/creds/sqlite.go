package creds

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkartavenko/taskhub/internal/dbx"
)

// SQLiteStore keeps the credential pair in a local SQLite key-value table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context) (Pair, error) {
	var p Pair

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Pair{}, fmt.Errorf("failed to scan credential row: %w", err)
		}
		switch key {
		case KeyAccessToken:
			p.AccessToken = value
		case KeyRefreshToken:
			p.RefreshToken = value
		}
	}

	if err := rows.Err(); err != nil {
		return Pair{}, fmt.Errorf("failed to iterate credential rows: %w", err)
	}
	return p, nil
}

// Set writes both tokens in a single transaction so a crash mid-write can
// never leave half a pair behind.
func (s *SQLiteStore) Set(ctx context.Context, pair Pair) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := upsert(ctx, tx, KeyAccessToken, pair.AccessToken); err != nil {
			return err
		}
		return upsert(ctx, tx, KeyRefreshToken, pair.RefreshToken)
	})
}

func (s *SQLiteStore) SetAccessToken(ctx context.Context, token string) error {
	return upsert(ctx, s.db, KeyAccessToken, token)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set credentials[%s]: %w", key, err)
	}
	return nil
}

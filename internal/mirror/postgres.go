package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpulse/paper-engine/internal/model"
)

// PostgresStore implements Store on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE simulated_snapshots (
//	    user_id    TEXT PRIMARY KEY,
//	    snapshot   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed mirror.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (*model.SimulatedAccount, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM simulated_snapshots WHERE user_id = $1`, userID).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mirror load %s: %w", userID, err)
	}

	account, err := decode(data)
	if err != nil {
		return nil, false, nil
	}
	return account, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID string, account *model.SimulatedAccount) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO simulated_snapshots (user_id, snapshot, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		     snapshot = EXCLUDED.snapshot,
		     updated_at = EXCLUDED.updated_at`,
		userID, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mirror save %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM simulated_snapshots WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mirror clear %s: %w", userID, err)
	}
	return nil
}

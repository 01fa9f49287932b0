package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDurable persists per-principal history records in the
// history_records table as jsonb documents.
type PostgresDurable struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresDurable creates a Postgres-backed durable history store.
func NewPostgresDurable(log *slog.Logger, pool *pgxpool.Pool) *PostgresDurable {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresDurable{
		pool:   pool,
		logger: log.With(slog.String("service", "history_durable")),
	}
}

// Read loads a principal's record. The second return is false when no record
// exists yet.
func (p *PostgresDurable) Read(ctx context.Context, principalID string) (Record, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT chat FROM history_records WHERE principal_id = $1`,
		principalID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode history record: %w", err)
	}
	return record, true, nil
}

// Write upserts a principal's record.
func (p *PostgresDurable) Write(ctx context.Context, principalID string, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO history_records (principal_id, chat, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (principal_id)
		 DO UPDATE SET chat = EXCLUDED.chat, updated_at = now()`,
		principalID, raw,
	)
	return err
}

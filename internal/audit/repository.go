package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository appends audit records.
type Repository interface {
	Append(ctx context.Context, rec Record) error
}

// PostgresRepository stores records in the auth_logs table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed audit repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one record.
func (r *PostgresRepository) Append(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `INSERT INTO auth_logs
        (id, identity, intent, device_id, challenge_id, request_id, outcome, error_kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Identity, rec.Intent, rec.DeviceID, rec.ChallengeID, rec.RequestID,
		rec.Outcome, nullable(rec.ErrorKind), rec.CreatedAt.UTC())
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

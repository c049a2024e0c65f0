// Package audit persists one record per mediation decision, completed or
// rejected. Writes are best-effort: a failure is logged by the caller and
// never alters the request outcome.
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teasru/Secure-LLM-Gateway/internal/models"
)

// Recorder is the capability the orchestrator depends on.
type Recorder interface {
	Record(ctx context.Context, rec *models.AuditRecord) error
}

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Record(ctx context.Context, rec *models.AuditRecord) error {
	query := `
        INSERT INTO audit_log (request_id, subject, role, decision, reason, provider, cache_hit, latency_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	_, err := s.Pool.Exec(ctx, query,
		rec.RequestID,
		rec.Subject,
		rec.Role,
		rec.Decision,
		rec.Reason,
		rec.Provider,
		rec.CacheHit,
		rec.LatencySeconds,
	)

	return err
}

func (s *Store) RecentRecords(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	query := `
        SELECT id, request_id, subject, role, decision, reason, provider, cache_hit, latency_seconds, timestamp
        FROM audit_log
        ORDER BY timestamp DESC
        LIMIT $1
    `

	rows, err := s.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Subject,
			&rec.Role,
			&rec.Decision,
			&rec.Reason,
			&rec.Provider,
			&rec.CacheHit,
			&rec.LatencySeconds,
			&rec.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *Store) Close() {
	s.Pool.Close()
}

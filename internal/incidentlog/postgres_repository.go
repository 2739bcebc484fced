package incidentlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository. It expects
// an incident_history table with id as primary key, text[] columns for
// services and features and a jsonb column for updates.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL incident history repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert stores the latest state of an incident.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) error {
	updates, err := json.Marshal(rec.Updates)
	if err != nil {
		return fmt.Errorf("marshal updates: %w", err)
	}

	query := `
		INSERT INTO incident_history (id, title, description, severity, status, services, features, started_at, resolved_at, updates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			services = EXCLUDED.services,
			features = EXCLUDED.features,
			resolved_at = EXCLUDED.resolved_at,
			updates = EXCLUDED.updates,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.Title,
		rec.Description,
		rec.Severity,
		rec.Status,
		rec.Services,
		rec.Features,
		rec.StartedAt,
		rec.ResolvedAt,
		string(updates),
		rec.UpdatedAt,
	)
	return err
}

// Get retrieves one incident by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, title, description, severity, status, services, features, started_at, resolved_at, updates, updated_at
		FROM incident_history
		WHERE id = $1
	`

	rec, err := r.scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return rec, nil
}

// List retrieves incidents ordered by start time, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	fetchLimit := limit + 1

	query := `
		SELECT id, title, description, severity, status, services, features, started_at, resolved_at, updates, updated_at
		FROM incident_history
		WHERE ($1::text = '' OR (started_at, id) < (SELECT started_at, id FROM incident_history WHERE id = $1))
		  AND (NOT $2::bool OR resolved_at IS NOT NULL)
		ORDER BY started_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, opts.Cursor, opts.OnlyResolved, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: records,
	}

	if len(records) > limit {
		result.Items = records[:limit]
		result.NextCursor = records[limit-1].ID
	}

	return result, nil
}

// scanRecord scans a single record from a row.
func (r *PostgresRepository) scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		updates []byte
	)

	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.Severity,
		&rec.Status,
		&rec.Services,
		&rec.Features,
		&rec.StartedAt,
		&rec.ResolvedAt,
		&updates,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(updates, &rec.Updates); err != nil {
		return nil, fmt.Errorf("unmarshal updates: %w", err)
	}

	return &rec, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

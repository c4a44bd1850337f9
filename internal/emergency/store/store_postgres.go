package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

// PostgresStore persists emergency records as JSONB rows. A serial position
// column carries the insertion order the contract requires; upserts keep the
// original position.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS emergencies (
    id        UUID PRIMARY KEY,
    log_id    UUID,
    position  BIGSERIAL,
    record    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS emergencies_log_id_idx ON emergencies (log_id);
`

// NewPostgres constructs a Postgres-backed store and ensures its schema.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "ensure emergencies schema")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, em *models.Emergency) error {
	if em == nil || em.ID.IsNil() {
		return apperrors.New(apperrors.CodeInvalidInput, "emergency with a valid id is required")
	}
	body, err := json.Marshal(em)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "encode emergency")
	}

	var logID *string
	if em.RelatedLogID != nil {
		v := em.RelatedLogID.String()
		logID = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO emergencies (id, log_id, record)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, log_id = EXCLUDED.log_id`,
		em.ID.String(), logID, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistence, "save emergency")
	}
	return nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]*models.Emergency, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM emergencies ORDER BY position`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list emergencies")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) GetByLogID(ctx context.Context, logID domain.LogID) ([]*models.Emergency, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM emergencies WHERE log_id = $1 ORDER BY position`, logID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "list emergencies by log")
	}
	defer rows.Close()
	return scanRecords(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows pgRows) ([]*models.Emergency, error) {
	var out []*models.Emergency
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodePersistence, "scan emergency row")
		}
		var em models.Emergency
		if err := json.Unmarshal(body, &em); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodePersistence, "decode emergency row")
		}
		out = append(out, &em)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "iterate emergencies")
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mealcard/internal/roster/models"
	"mealcard/pkg/platform/sentinel"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same store code serves
// standalone calls and transaction-scoped calls from the tx runner.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresCardStore persists card records in PostgreSQL. Pure I/O; the
// reconciler owns classification and cascade decisions.
type PostgresCardStore struct {
	db dbtx
}

// NewPostgresCardStore constructs a card store over a database handle.
func NewPostgresCardStore(db *sql.DB) *PostgresCardStore {
	return &PostgresCardStore{db: db}
}

func newPostgresCardStoreTx(tx *sql.Tx) *PostgresCardStore {
	return &PostgresCardStore{db: tx}
}

func (s *PostgresCardStore) FindByNaturalKey(ctx context.Context, key models.NaturalKey) (*models.CardRecord, error) {
	query := `
		SELECT surrogate_id, full_name, group_name, status, updated_at
		FROM cards
		WHERE full_name = $1 AND group_name = $2
	`
	card, err := scanCard(s.db.QueryRowContext(ctx, query, key.FullName, key.Group))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find card by natural key: %w", err)
	}
	return card, nil
}

func (s *PostgresCardStore) Insert(ctx context.Context, card models.CardRecord) error {
	query := `
		INSERT INTO cards (surrogate_id, full_name, group_name, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		card.SurrogateID,
		card.NaturalKey.FullName,
		card.NaturalKey.Group,
		card.Status,
		card.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert card %s: %w", card.SurrogateID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresCardStore) Refresh(ctx context.Context, surrogateID string, at time.Time) error {
	query := `
		UPDATE cards
		SET status = 'active', updated_at = $2
		WHERE surrogate_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, surrogateID, at); err != nil {
		return fmt.Errorf("refresh card: %w", err)
	}
	return nil
}

func (s *PostgresCardStore) Rename(ctx context.Context, oldSurrogateID, newSurrogateID string, at time.Time) error {
	query := `
		UPDATE cards
		SET surrogate_id = $2, status = 'active', updated_at = $3
		WHERE surrogate_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, oldSurrogateID, newSurrogateID, at)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rename card %s to %s: %w", oldSurrogateID, newSurrogateID, sentinel.ErrConflict)
		}
		return fmt.Errorf("rename card: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename card rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rename card %s: %w", oldSurrogateID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresCardStore) UpsertByNaturalKey(ctx context.Context, card models.CardRecord) error {
	query := `
		INSERT INTO cards (surrogate_id, full_name, group_name, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (full_name, group_name) DO UPDATE SET
			surrogate_id = EXCLUDED.surrogate_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		card.SurrogateID,
		card.NaturalKey.FullName,
		card.NaturalKey.Group,
		card.Status,
		card.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("upsert card %s: %w", card.SurrogateID, sentinel.ErrConflict)
		}
		return fmt.Errorf("upsert card: %w", err)
	}
	return nil
}

func (s *PostgresCardStore) DeactivateNotIn(ctx context.Context, surrogateIDs []string, at time.Time) ([]string, error) {
	query := `
		UPDATE cards
		SET status = 'inactive', updated_at = $2
		WHERE status = 'active' AND NOT (surrogate_id = ANY($1))
		RETURNING surrogate_id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(surrogateIDs), at)
	if err != nil {
		return nil, fmt.Errorf("deactivate cards: %w", err)
	}
	defer rows.Close()

	var swept []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deactivated card: %w", err)
		}
		swept = append(swept, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deactivate cards rows: %w", err)
	}
	return swept, nil
}

type cardRow interface {
	Scan(dest ...any) error
}

func scanCard(row cardRow) (*models.CardRecord, error) {
	var card models.CardRecord
	var status string
	if err := row.Scan(
		&card.SurrogateID,
		&card.NaturalKey.FullName,
		&card.NaturalKey.Group,
		&status,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	card.Status = models.CardStatus(status)
	return &card, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

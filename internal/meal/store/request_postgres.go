package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mealcard/internal/meal/models"
	"mealcard/pkg/platform/sentinel"
)

// PostgresRequestStore persists entitlement requests in PostgreSQL.
type PostgresRequestStore struct {
	db *sql.DB
}

func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

func (s *PostgresRequestStore) Get(ctx context.Context, personID int64, date time.Time) (*models.EntitlementRequest, error) {
	query := `
		SELECT person_id, request_date, breakfast, lunch, snack, dinner, finalized
		FROM meal_requests
		WHERE person_id = $1 AND request_date = $2
	`
	var req models.EntitlementRequest
	err := s.db.QueryRowContext(ctx, query, personID, models.DateOnly(date)).Scan(
		&req.PersonID,
		&req.Date,
		&req.Selections.Breakfast,
		&req.Selections.Lunch,
		&req.Selections.Snack,
		&req.Selections.Dinner,
		&req.Finalized,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get meal request: %w", err)
	}
	req.Date = models.DateOnly(req.Date)
	return &req, nil
}

// Upsert inserts or overwrites the row for (person, date). The finalized
// guard sits inside the conflict clause so the immutability check and the
// write are one atomic statement: zero rows affected means the row exists
// and is finalized.
func (s *PostgresRequestStore) Upsert(ctx context.Context, req models.EntitlementRequest) error {
	query := `
		INSERT INTO meal_requests (person_id, request_date, breakfast, lunch, snack, dinner)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (person_id, request_date) DO UPDATE SET
			breakfast = EXCLUDED.breakfast,
			lunch = EXCLUDED.lunch,
			snack = EXCLUDED.snack,
			dinner = EXCLUDED.dinner
		WHERE meal_requests.finalized = FALSE
	`
	result, err := s.db.ExecContext(ctx, query,
		req.PersonID,
		models.DateOnly(req.Date),
		req.Selections.Breakfast,
		req.Selections.Lunch,
		req.Selections.Snack,
		req.Selections.Dinner,
	)
	if err != nil {
		return fmt.Errorf("upsert meal request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert meal request rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("meal request for person %d on %s: %w",
			req.PersonID, models.DateOnly(req.Date).Format("2006-01-02"), sentinel.ErrFinalized)
	}
	return nil
}

func (s *PostgresRequestStore) DeleteFutureUnfinalized(ctx context.Context, personID int64, after time.Time) (int64, error) {
	query := `
		DELETE FROM meal_requests
		WHERE person_id = $1 AND request_date > $2 AND finalized = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, personID, models.DateOnly(after))
	if err != nil {
		return 0, fmt.Errorf("delete future meal requests: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete future meal requests rows affected: %w", err)
	}
	return rows, nil
}

// FinalizeUpTo is one atomic statement: either every eligible row transitions
// or none do.
func (s *PostgresRequestStore) FinalizeUpTo(ctx context.Context, day time.Time) (int64, error) {
	query := `
		UPDATE meal_requests
		SET finalized = TRUE
		WHERE request_date <= $1 AND finalized = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, models.DateOnly(day))
	if err != nil {
		return 0, fmt.Errorf("finalize meal requests: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("finalize meal requests rows affected: %w", err)
	}
	return rows, nil
}

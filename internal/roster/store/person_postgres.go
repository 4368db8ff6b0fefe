package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"mealcard/internal/roster/models"
)

// PostgresPersonStore persists holder records in PostgreSQL.
type PostgresPersonStore struct {
	db dbtx
}

func NewPostgresPersonStore(db *sql.DB) *PostgresPersonStore {
	return &PostgresPersonStore{db: db}
}

func newPostgresPersonStoreTx(tx *sql.Tx) *PostgresPersonStore {
	return &PostgresPersonStore{db: tx}
}

func (s *PostgresPersonStore) FindBySurrogateIDs(ctx context.Context, surrogateIDs []string) ([]models.Person, error) {
	if len(surrogateIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, full_name, group_name, card_surrogate_id, expelled
		FROM persons
		WHERE card_surrogate_id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(surrogateIDs))
	if err != nil {
		return nil, fmt.Errorf("find persons by surrogate ids: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.NaturalKey.FullName, &p.NaturalKey.Group, &p.SurrogateIDRef, &p.Expelled); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find persons rows: %w", err)
	}
	return persons, nil
}

func (s *PostgresPersonStore) ReassignSurrogateID(ctx context.Context, oldSurrogateID, newSurrogateID string) (int64, error) {
	query := `
		UPDATE persons
		SET card_surrogate_id = $2
		WHERE card_surrogate_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, oldSurrogateID, newSurrogateID)
	if err != nil {
		return 0, fmt.Errorf("reassign person surrogate id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign person rows affected: %w", err)
	}
	return rows, nil
}

func (s *PostgresPersonStore) SetExpelled(ctx context.Context, personID int64) error {
	query := `
		UPDATE persons
		SET expelled = TRUE
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, personID); err != nil {
		return fmt.Errorf("set person expelled: %w", err)
	}
	return nil
}

func (s *PostgresPersonStore) CorrectSurrogateIDByNaturalKey(ctx context.Context, key models.NaturalKey, surrogateID string) (int64, error) {
	query := `
		UPDATE persons
		SET card_surrogate_id = $3
		WHERE full_name = $1 AND group_name = $2 AND card_surrogate_id <> $3
	`
	result, err := s.db.ExecContext(ctx, query, key.FullName, key.Group, surrogateID)
	if err != nil {
		return 0, fmt.Errorf("correct person surrogate id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("correct person rows affected: %w", err)
	}
	return rows, nil
}

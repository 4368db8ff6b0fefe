package store

import (
	"context"
	"database/sql"
	"fmt"

	"mealcard/internal/roster/models"
)

// PostgresResponsibleStore persists the responsible-party identity class.
type PostgresResponsibleStore struct {
	db dbtx
}

func NewPostgresResponsibleStore(db *sql.DB) *PostgresResponsibleStore {
	return &PostgresResponsibleStore{db: db}
}

func newPostgresResponsibleStoreTx(tx *sql.Tx) *PostgresResponsibleStore {
	return &PostgresResponsibleStore{db: tx}
}

func (s *PostgresResponsibleStore) Upsert(ctx context.Context, party models.ResponsibleParty) error {
	query := `
		INSERT INTO responsible_parties (full_name, group_name, card_surrogate_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (full_name, group_name) DO UPDATE SET
			card_surrogate_id = EXCLUDED.card_surrogate_id
	`
	_, err := s.db.ExecContext(ctx, query,
		party.NaturalKey.FullName,
		party.NaturalKey.Group,
		party.SurrogateIDRef,
	)
	if err != nil {
		return fmt.Errorf("upsert responsible party: %w", err)
	}
	return nil
}

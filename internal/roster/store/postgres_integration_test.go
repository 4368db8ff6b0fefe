//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/db"
	"mealcard/internal/roster/models"
	"mealcard/internal/roster/ports"
	"mealcard/internal/roster/store"
	"mealcard/pkg/platform/sentinel"
	"mealcard/pkg/testutil/containers"
)

// =============================================================================
// Roster Store Integration Tests
// =============================================================================
// Justification: the deferred foreign key behavior during a card rename is a
// real-database property the in-memory stores cannot exercise.

type RosterStoreSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	cards   *store.PostgresCardStore
	persons *store.PostgresPersonStore
	tx      *store.PostgresTxRunner
	now     time.Time
}

func TestRosterStoreSuite(t *testing.T) {
	suite.Run(t, new(RosterStoreSuite))
}

func (s *RosterStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(db.RunMigrations(s.pg.DB))
	s.cards = store.NewPostgresCardStore(s.pg.DB)
	s.persons = store.NewPostgresPersonStore(s.pg.DB)
	s.tx = store.NewPostgresTxRunner(s.pg.DB)
	s.now = time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
}

func (s *RosterStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *RosterStoreSuite) insertCard(surrogateID, name, group string) {
	s.Require().NoError(s.cards.Insert(context.Background(), models.CardRecord{
		SurrogateID: surrogateID,
		NaturalKey:  models.NaturalKey{FullName: name, Group: group},
		Status:      models.CardStatusActive,
		UpdatedAt:   s.now,
	}))
}

func (s *RosterStoreSuite) insertPerson(name, group, surrogateID string) int64 {
	var id int64
	err := s.pg.DB.QueryRowContext(context.Background(),
		`INSERT INTO persons (full_name, group_name, card_surrogate_id) VALUES ($1, $2, $3) RETURNING id`,
		name, group, surrogateID,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *RosterStoreSuite) personSurrogate(id int64) string {
	var ref string
	err := s.pg.DB.QueryRowContext(context.Background(),
		`SELECT card_surrogate_id FROM persons WHERE id = $1`, id).Scan(&ref)
	s.Require().NoError(err)
	return ref
}

func (s *RosterStoreSuite) TestRenameRepointsPersonInOneTransaction() {
	ctx := context.Background()
	s.insertCard("050", "Ivanov I.I.", "G1")
	personID := s.insertPerson("Ivanov I.I.", "G1", "050")

	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		if err := stores.Cards.Rename(ctx, "050", "100", s.now); err != nil {
			return err
		}
		_, err := stores.Persons.ReassignSurrogateID(ctx, "050", "100")
		return err
	})
	s.Require().NoError(err)

	card, err := s.cards.FindByNaturalKey(ctx, models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"})
	s.Require().NoError(err)
	s.Require().NotNil(card)
	s.Equal("100", card.SurrogateID)
	s.Equal("100", s.personSurrogate(personID))
}

func (s *RosterStoreSuite) TestRenameWithoutReassignFailsAtCommit() {
	ctx := context.Background()
	s.insertCard("050", "Ivanov I.I.", "G1")
	personID := s.insertPerson("Ivanov I.I.", "G1", "050")

	// The deferred foreign key lets the rename through mid-transaction but
	// must reject the commit while the person still points at "050".
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		return stores.Cards.Rename(ctx, "050", "100", s.now)
	})
	s.Error(err)

	s.Equal("050", s.personSurrogate(personID), "the failed transaction left nothing behind")
	card, err := s.cards.FindByNaturalKey(ctx, models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"})
	s.Require().NoError(err)
	s.Equal("050", card.SurrogateID)
}

func (s *RosterStoreSuite) TestInsertDuplicateSurrogateConflicts() {
	s.insertCard("100", "Ivanov I.I.", "G1")
	err := s.cards.Insert(context.Background(), models.CardRecord{
		SurrogateID: "100",
		NaturalKey:  models.NaturalKey{FullName: "Petrov P.P.", Group: "G2"},
		Status:      models.CardStatusActive,
		UpdatedAt:   s.now,
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *RosterStoreSuite) TestDeactivateNotIn() {
	ctx := context.Background()
	s.insertCard("100", "Ivanov I.I.", "G1")
	s.insertCard("200", "Petrov P.P.", "G2")
	s.insertCard("300", "Sidorov S.S.", "G3")

	swept, err := s.cards.DeactivateNotIn(ctx, []string{"100"}, s.now)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"200", "300"}, swept)

	kept, err := s.cards.FindByNaturalKey(ctx, models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"})
	s.Require().NoError(err)
	s.Equal(models.CardStatusActive, kept.Status)

	// A second sweep finds nothing active to deactivate.
	swept, err = s.cards.DeactivateNotIn(ctx, []string{"100"}, s.now)
	s.Require().NoError(err)
	s.Empty(swept)
}

func (s *RosterStoreSuite) TestUpsertByNaturalKeyReplacesSurrogate() {
	ctx := context.Background()
	s.insertCard("050", "Ivanov I.I.", "G1")

	err := s.cards.UpsertByNaturalKey(ctx, models.CardRecord{
		SurrogateID: "100",
		NaturalKey:  models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"},
		Status:      models.CardStatusActive,
		UpdatedAt:   s.now,
	})
	s.Require().NoError(err)

	card, err := s.cards.FindByNaturalKey(ctx, models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"})
	s.Require().NoError(err)
	s.Equal("100", card.SurrogateID)
}

func (s *RosterStoreSuite) TestCorrectSurrogateCountsOnlyChanges() {
	ctx := context.Background()
	s.insertCard("100", "Ivanov I.I.", "G1")
	s.insertPerson("Ivanov I.I.", "G1", "100")

	rows, err := s.persons.CorrectSurrogateIDByNaturalKey(ctx,
		models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"}, "100")
	s.Require().NoError(err)
	s.Zero(rows, "an already-correct person is not rewritten")
}

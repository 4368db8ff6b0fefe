//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/db"
	"mealcard/internal/meal/models"
	"mealcard/internal/meal/store"
	"mealcard/pkg/platform/sentinel"
	"mealcard/pkg/testutil/containers"
)

// =============================================================================
// Request Store Integration Tests
// =============================================================================
// Justification: the finalized guard lives inside the upsert's conflict
// clause; only a real database proves the check and the write are one
// statement.

type RequestStoreSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	store    *store.PostgresRequestStore
	personID int64
	today    time.Time
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(db.RunMigrations(s.pg.DB))
	s.store = store.NewPostgresRequestStore(s.pg.DB)
	s.today = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
}

func (s *RequestStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateAll(ctx))

	_, err := s.pg.DB.ExecContext(ctx,
		`INSERT INTO cards (surrogate_id, full_name, group_name) VALUES ('100', 'Ivanov I.I.', 'G1')`)
	s.Require().NoError(err)
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx,
		`INSERT INTO persons (full_name, group_name, card_surrogate_id) VALUES ('Ivanov I.I.', 'G1', '100') RETURNING id`,
	).Scan(&s.personID))
}

func (s *RequestStoreSuite) upsert(date time.Time, sel models.Selections) error {
	return s.store.Upsert(context.Background(), models.EntitlementRequest{
		PersonID:   s.personID,
		Date:       date,
		Selections: sel,
	})
}

func (s *RequestStoreSuite) TestUpsertAndGet() {
	ctx := context.Background()
	s.Require().NoError(s.upsert(s.today, models.Selections{Breakfast: true, Dinner: true}))

	req, err := s.store.Get(ctx, s.personID, s.today)
	s.Require().NoError(err)
	s.Require().NotNil(req)
	s.True(req.Selections.Breakfast)
	s.True(req.Selections.Dinner)
	s.False(req.Finalized)

	s.Require().NoError(s.upsert(s.today, models.Selections{Lunch: true}))
	req, err = s.store.Get(ctx, s.personID, s.today)
	s.Require().NoError(err)
	s.False(req.Selections.Breakfast)
	s.True(req.Selections.Lunch)
}

func (s *RequestStoreSuite) TestGetAbsentReturnsNil() {
	req, err := s.store.Get(context.Background(), s.personID, s.today)
	s.NoError(err)
	s.Nil(req)
}

func (s *RequestStoreSuite) TestUpsertRejectedOnceFinalized() {
	ctx := context.Background()
	s.Require().NoError(s.upsert(s.today, models.Selections{Breakfast: true}))

	count, err := s.store.FinalizeUpTo(ctx, s.today)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	err = s.upsert(s.today, models.Selections{Dinner: true})
	s.ErrorIs(err, sentinel.ErrFinalized)

	req, err := s.store.Get(ctx, s.personID, s.today)
	s.Require().NoError(err)
	s.True(req.Selections.Breakfast, "the finalized row keeps its original selections")
	s.False(req.Selections.Dinner)
}

func (s *RequestStoreSuite) TestFinalizeLeavesFutureAlone() {
	ctx := context.Background()
	s.Require().NoError(s.upsert(s.today, models.Selections{Lunch: true}))
	s.Require().NoError(s.upsert(s.today.AddDate(0, 0, 1), models.Selections{Lunch: true}))

	count, err := s.store.FinalizeUpTo(ctx, s.today)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	future, err := s.store.Get(ctx, s.personID, s.today.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.False(future.Finalized)
}

func (s *RequestStoreSuite) TestDeleteFutureUnfinalized() {
	ctx := context.Background()
	s.Require().NoError(s.upsert(s.today.AddDate(0, 0, -1), models.Selections{Lunch: true}))
	s.Require().NoError(s.upsert(s.today.AddDate(0, 0, 1), models.Selections{Lunch: true}))
	s.Require().NoError(s.upsert(s.today.AddDate(0, 0, 3), models.Selections{Snack: true}))

	deleted, err := s.store.DeleteFutureUnfinalized(ctx, s.personID, s.today)
	s.Require().NoError(err)
	s.Equal(int64(2), deleted)

	past, err := s.store.Get(ctx, s.personID, s.today.AddDate(0, 0, -1))
	s.Require().NoError(err)
	s.NotNil(past)
}

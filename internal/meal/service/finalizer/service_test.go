package finalizer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/meal/models"
	"mealcard/internal/meal/store"
	"mealcard/pkg/platform/audit"
)

// =============================================================================
// Finalizer Test Suite
// =============================================================================

type FinalizerSuite struct {
	suite.Suite
	svc   *Service
	store *store.MemoryRequestStore
	trail *audit.MemoryPublisher
	now   time.Time
}

func TestFinalizerSuite(t *testing.T) {
	suite.Run(t, new(FinalizerSuite))
}

func (s *FinalizerSuite) SetupTest() {
	s.store = store.NewMemoryRequestStore()
	s.trail = audit.NewMemoryPublisher()
	s.now = time.Date(2026, 3, 16, 23, 0, 0, 0, time.UTC)

	var err error
	s.svc, err = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.trail),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
}

func (s *FinalizerSuite) upsert(personID int64, date time.Time) {
	s.Require().NoError(s.store.Upsert(context.Background(), models.EntitlementRequest{
		PersonID:   personID,
		Date:       date,
		Selections: models.Selections{Breakfast: true},
	}))
}

func (s *FinalizerSuite) TestFinalizesPastAndTodayOnly() {
	ctx := context.Background()
	s.upsert(1, s.now.AddDate(0, 0, -2))
	s.upsert(1, s.now)
	s.upsert(1, s.now.AddDate(0, 0, 1))

	count, err := s.svc.Run(ctx)
	s.NoError(err)
	s.Equal(int64(2), count)

	past, _ := s.store.Request(1, s.now.AddDate(0, 0, -2))
	s.True(past.Finalized)
	today, _ := s.store.Request(1, s.now)
	s.True(today.Finalized)
	future, _ := s.store.Request(1, s.now.AddDate(0, 0, 1))
	s.False(future.Finalized)

	events := s.trail.ByAction(audit.ActionRequestsFinalized)
	s.Require().Len(events, 1)
	s.Equal(int64(2), events[0].Count)
}

func (s *FinalizerSuite) TestRerunIsIdempotent() {
	ctx := context.Background()
	s.upsert(1, s.now)

	_, err := s.svc.Run(ctx)
	s.Require().NoError(err)
	count, err := s.svc.Run(ctx)
	s.NoError(err)
	s.Zero(count)
	s.Len(s.trail.ByAction(audit.ActionRequestsFinalized), 1, "no event when nothing transitioned")
}

func (s *FinalizerSuite) TestFinalizedRowsRejectLaterWrites() {
	ctx := context.Background()
	s.upsert(1, s.now)

	_, err := s.svc.Run(ctx)
	s.Require().NoError(err)

	err = s.store.Upsert(ctx, models.EntitlementRequest{
		PersonID:   1,
		Date:       s.now,
		Selections: models.Selections{Dinner: true},
	})
	s.Error(err)

	req, _ := s.store.Request(1, s.now)
	s.True(req.Selections.Breakfast)
	s.False(req.Selections.Dinner)
}

func (s *FinalizerSuite) TestEmptyStoreNoEvent() {
	count, err := s.svc.Run(context.Background())
	s.NoError(err)
	s.Zero(count)
	s.Empty(s.trail.Events())
}

package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/meal/models"
	"mealcard/internal/meal/store"
	dErrors "mealcard/pkg/domain-errors"
)

// =============================================================================
// Meal Service Test Suite
// =============================================================================

type MealServiceSuite struct {
	suite.Suite
	svc   *Service
	store *store.MemoryRequestStore
	date  time.Time
}

func TestMealServiceSuite(t *testing.T) {
	suite.Run(t, new(MealServiceSuite))
}

func (s *MealServiceSuite) SetupTest() {
	s.store = store.NewMemoryRequestStore()
	s.date = time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)

	var err error
	s.svc, err = New(s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
}

func (s *MealServiceSuite) TestSubmitAndRead() {
	ctx := context.Background()
	err := s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotBreakfast, models.SlotDinner})
	s.NoError(err)

	slots, err := s.svc.Selections(ctx, 7, s.date)
	s.NoError(err)
	s.Equal([]models.MealSlot{models.SlotBreakfast, models.SlotDinner}, slots)
}

func (s *MealServiceSuite) TestResubmitOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotBreakfast}))
	s.Require().NoError(s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotLunch, models.SlotSnack}))

	slots, err := s.svc.Selections(ctx, 7, s.date)
	s.NoError(err)
	s.Equal([]models.MealSlot{models.SlotLunch, models.SlotSnack}, slots)
	s.Equal(1, s.store.Len(), "resubmission replaces the row, never duplicates it")
}

func (s *MealServiceSuite) TestSubmitEmptySelectionClearsMeals() {
	ctx := context.Background()
	s.Require().NoError(s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotLunch}))
	s.Require().NoError(s.svc.Submit(ctx, 7, s.date, nil))

	slots, err := s.svc.Selections(ctx, 7, s.date)
	s.NoError(err)
	s.Empty(slots)
}

func (s *MealServiceSuite) TestSubmitRejectsFinalized() {
	ctx := context.Background()
	s.Require().NoError(s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotLunch}))
	_, err := s.store.FinalizeUpTo(ctx, s.date)
	s.Require().NoError(err)

	err = s.svc.Submit(ctx, 7, s.date, []models.MealSlot{models.SlotDinner})
	s.Error(err)
	s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))

	slots, err := s.svc.Selections(ctx, 7, s.date)
	s.NoError(err)
	s.Equal([]models.MealSlot{models.SlotLunch}, slots, "finalized selections stay as they were")
}

func (s *MealServiceSuite) TestSubmitValidation() {
	ctx := context.Background()

	s.Run("unknown slot", func() {
		err := s.svc.Submit(ctx, 7, s.date, []models.MealSlot{"brunch"})
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})

	s.Run("missing person", func() {
		err := s.svc.Submit(ctx, 0, s.date, []models.MealSlot{models.SlotLunch})
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})

	s.Run("zero date", func() {
		err := s.svc.Submit(ctx, 7, time.Time{}, []models.MealSlot{models.SlotLunch})
		s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
	})
}

func (s *MealServiceSuite) TestSelectionsEmptyWhenAbsent() {
	slots, err := s.svc.Selections(context.Background(), 7, s.date)
	s.NoError(err)
	s.NotNil(slots)
	s.Empty(slots)
}

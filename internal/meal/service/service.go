// Package service exposes the entitlement request operations callers see:
// idempotent per-person-per-date upsert of meal selections, and reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mealcard/internal/meal/models"
	"mealcard/internal/meal/ports"
	dErrors "mealcard/pkg/domain-errors"
	"mealcard/pkg/platform/sentinel"
)

type Service struct {
	store  ports.RequestStore
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store ports.RequestStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("request store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit upserts the person's selections for the date. A finalized request
// rejects the write with CodeConflict so callers can tell the user it is too
// late to change, rather than failing silently.
func (s *Service) Submit(ctx context.Context, personID int64, date time.Time, slots []models.MealSlot) error {
	if personID <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "person id is required")
	}
	if date.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "date is required")
	}
	selections, err := models.SelectionsFromSlots(slots)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid meal selection")
	}

	err = s.store.Upsert(ctx, models.EntitlementRequest{
		PersonID:   personID,
		Date:       models.DateOnly(date),
		Selections: selections,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrFinalized) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "request is finalized and can no longer be changed")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "save meal request")
	}
	return nil
}

// Selections returns the requested slots for the date; an empty slice when
// no request exists.
func (s *Service) Selections(ctx context.Context, personID int64, date time.Time) ([]models.MealSlot, error) {
	if personID <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "person id is required")
	}
	req, err := s.store.Get(ctx, personID, date)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load meal request")
	}
	if req == nil {
		return []models.MealSlot{}, nil
	}
	return req.Selections.Slots(), nil
}

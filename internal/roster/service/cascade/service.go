// Package cascade propagates a card deactivation to its dependent persons:
// the expelled flag goes up and future unfinalized meal requests go away.
// Requests dated today or earlier, or already finalized, are untouched so the
// historical record survives expulsion.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mealmodels "mealcard/internal/meal/models"
	"mealcard/internal/roster/models"
	"mealcard/pkg/platform/audit"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// PersonStore is the slice of the person store the cascade needs.
type PersonStore interface {
	SetExpelled(ctx context.Context, personID int64) error
}

// RequestPurger deletes a person's future unfinalized entitlement requests.
type RequestPurger interface {
	DeleteFutureUnfinalized(ctx context.Context, personID int64, after time.Time) (int64, error)
}

type Service struct {
	persons   PersonStore
	requests  RequestPurger
	publisher audit.Publisher
	logger    *slog.Logger
	clock     Clock
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(persons PersonStore, requests RequestPurger, opts ...Option) (*Service, error) {
	if persons == nil {
		return nil, fmt.Errorf("person store is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request purger is required")
	}
	svc := &Service{
		persons:   persons,
		requests:  requests,
		publisher: audit.NopPublisher{},
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Expel raises the expelled flag for every person and purges their future
// unfinalized requests. One-way: nothing ever lowers the flag again, even if
// the card reappears. Failures for one person do not stop the others; the
// next reconciliation run converges whatever was left behind.
func (s *Service) Expel(ctx context.Context, persons []models.Person) (int, int64, error) {
	today := mealmodels.DateOnly(s.clock())

	var expelled int
	var purged int64
	var errs []error
	for _, p := range persons {
		if err := s.persons.SetExpelled(ctx, p.ID); err != nil {
			s.logger.Error("expel person failed",
				"person_id", p.ID,
				"full_name", p.NaturalKey.FullName,
				"group", p.NaturalKey.Group,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("expel person %d: %w", p.ID, err))
			continue
		}
		expelled++

		removed, err := s.requests.DeleteFutureUnfinalized(ctx, p.ID, today)
		if err != nil {
			s.logger.Error("purge future requests failed", "person_id", p.ID, "error", err)
			errs = append(errs, fmt.Errorf("purge requests for person %d: %w", p.ID, err))
			continue
		}
		purged += removed

		s.logger.Info("person expelled",
			"person_id", p.ID,
			"full_name", p.NaturalKey.FullName,
			"group", p.NaturalKey.Group,
			"requests_purged", removed,
		)
		s.emit(ctx, audit.Event{
			Action:   audit.ActionPersonExpelled,
			FullName: p.NaturalKey.FullName,
			Group:    p.NaturalKey.Group,
			PersonID: p.ID,
			Count:    removed,
		})
	}
	return expelled, purged, errors.Join(errs...)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = s.clock()
	event.Job = "cascade"
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

// Package finalizer implements the daily finalization barrier: a scheduled,
// idempotent sweep that locks every request dated today or earlier. The
// transition is one-directional; nothing exposes a path back.
package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mealcard/internal/meal/models"
	"mealcard/internal/meal/ports"
	dErrors "mealcard/pkg/domain-errors"
	"mealcard/pkg/platform/audit"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

type Service struct {
	store     ports.RequestStore
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

func New(store ports.RequestStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("request store is required")
	}
	svc := &Service{
		store:     store,
		publisher: audit.NopPublisher{},
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Run finalizes every unfinalized request dated on or before today, as one
// atomic statement: all eligible rows transition or none do. Safe to run any
// number of times per day; future-dated rows are never touched.
func (s *Service) Run(ctx context.Context) (int64, error) {
	runID := uuid.NewString()
	today := models.DateOnly(s.clock())

	count, err := s.store.FinalizeUpTo(ctx, today)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "finalize requests")
	}

	s.logger.Info("finalization barrier ran",
		"job", "finalize",
		"run_id", runID,
		"up_to", today.Format("2006-01-02"),
		"finalized", count,
	)
	if count > 0 {
		event := audit.Event{
			Timestamp: s.clock(),
			RunID:     runID,
			Job:       "finalize",
			Action:    audit.ActionRequestsFinalized,
			Count:     count,
		}
		if err := s.publisher.Emit(ctx, event); err != nil {
			s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
		}
	}
	return count, nil
}

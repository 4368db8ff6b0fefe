// Package secondary implements the merge-only sync against the second card
// registry. It upserts cards by natural key and best-effort corrects person
// linkage, but performs no rename cascade and no deactivation sweep: it is
// strictly additive/corrective, and it backs off from a person correction
// when the primary reconciler already handled that natural key this epoch.
package secondary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mealcard/internal/roster/models"
	"mealcard/internal/roster/ports"
	dErrors "mealcard/pkg/domain-errors"
	"mealcard/pkg/platform/audit"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// Report summarizes one sync run.
type Report struct {
	Processed int
	Failed    int
	Corrected int
}

type Service struct {
	snapshots ports.SnapshotReader
	tx        ports.TxRunner
	guard     ports.EpochGuard
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

func New(snapshots ports.SnapshotReader, tx ports.TxRunner, guard ports.EpochGuard, opts ...Option) (*Service, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot reader is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("epoch guard is required")
	}
	svc := &Service{
		snapshots: snapshots,
		tx:        tx,
		guard:     guard,
		publisher: audit.NopPublisher{},
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Run merges the secondary snapshot into the registry, one record per
// transaction. If a card's surrogate id changes while its person still
// references the old one and the correction is suppressed by the epoch
// guard, the commit fails the foreign key check; that is a per-record
// failure the primary reconciler converges on its next run.
func (s *Service) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	log := s.logger.With("job", "secondary_sync", "run_id", runID)

	records, err := s.snapshots.Read(ctx)
	if err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "read registry snapshot")
	}
	log.Info("secondary sync started", "records", len(records))

	var report Report
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, dErrors.Wrap(err, dErrors.CodeTimeout, "secondary sync aborted")
		}
		if err := rec.Validate(); err != nil {
			report.Failed++
			log.Error("malformed registry record skipped", "error", err)
			continue
		}

		corrected, err := s.mergeRecord(ctx, rec)
		if err != nil {
			report.Failed++
			log.Error("record merge failed",
				"full_name", rec.NaturalKey.FullName,
				"group", rec.NaturalKey.Group,
				"surrogate_id", rec.SurrogateID,
				"error", err,
			)
			continue
		}
		report.Processed++
		if corrected {
			report.Corrected++
			s.emit(ctx, audit.Event{
				RunID:       runID,
				Action:      audit.ActionCardCorrected,
				FullName:    rec.NaturalKey.FullName,
				Group:       rec.NaturalKey.Group,
				SurrogateID: rec.SurrogateID,
			})
		}
	}

	log.Info("secondary sync finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"corrected", report.Corrected,
	)
	return report, nil
}

func (s *Service) mergeRecord(ctx context.Context, rec models.ExternalRosterRecord) (bool, error) {
	reconciled, err := s.guard.Reconciled(ctx, rec.NaturalKey)
	if err != nil {
		// Guard trouble must not stall the merge; fall back to correcting,
		// matching the guard-less behavior.
		s.logger.Warn("epoch guard check failed", "full_name", rec.NaturalKey.FullName, "error", err)
		reconciled = false
	}

	corrected := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		if err := stores.Cards.UpsertByNaturalKey(ctx, models.CardRecord{
			SurrogateID: rec.SurrogateID,
			NaturalKey:  rec.NaturalKey,
			Status:      models.CardStatusActive,
			UpdatedAt:   s.clock(),
		}); err != nil {
			return err
		}

		if reconciled {
			return nil
		}
		rows, err := stores.Persons.CorrectSurrogateIDByNaturalKey(ctx, rec.NaturalKey, rec.SurrogateID)
		if err != nil {
			return err
		}
		corrected = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return corrected, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = s.clock()
	event.Job = "secondary_sync"
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

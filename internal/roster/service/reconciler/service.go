// Package reconciler implements the primary roster reconciliation: it diffs a
// full directory snapshot against the internal card registry, classifies each
// record, applies insert/reactivate/rename transactionally per record, and
// sweeps cards that disappeared from the snapshot into the expulsion cascade.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mealcard/internal/roster/models"
	"mealcard/internal/roster/ports"
	dErrors "mealcard/pkg/domain-errors"
	"mealcard/pkg/platform/audit"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// recordAction classifies what one snapshot record did to the registry.
type recordAction int

const (
	actionNone recordAction = iota
	actionRegistered
	actionReactivated
	actionRenamed
)

// Report summarizes one reconciliation run for logging and metrics.
type Report struct {
	Processed      int
	Failed         int
	Registered     int
	Reactivated    int
	Renamed        int
	Deactivated    int
	Expelled       int
	PurgedRequests int64
}

type Service struct {
	snapshots ports.SnapshotReader
	tx        ports.TxRunner
	cards     ports.CardStore
	persons   ports.PersonStore
	expeller  ports.Expeller
	guard     ports.EpochGuard
	marker    string
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

func WithEpochGuard(guard ports.EpochGuard) Option {
	return func(s *Service) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithResponsibleMarker overrides the directory category that feeds the
// responsible-party table.
func WithResponsibleMarker(marker string) Option {
	return func(s *Service) { s.marker = marker }
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(snapshots ports.SnapshotReader, tx ports.TxRunner, cards ports.CardStore, persons ports.PersonStore, expeller ports.Expeller, opts ...Option) (*Service, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot reader is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if cards == nil {
		return nil, fmt.Errorf("card store is required")
	}
	if persons == nil {
		return nil, fmt.Errorf("person store is required")
	}
	if expeller == nil {
		return nil, fmt.Errorf("expeller is required")
	}
	svc := &Service{
		snapshots: snapshots,
		tx:        tx,
		cards:     cards,
		persons:   persons,
		expeller:  expeller,
		guard:     nil,
		marker:    "",
		publisher: audit.NopPublisher{},
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Run executes one reconciliation against a fresh snapshot. Each record is
// processed in its own transaction: a per-record failure rolls back that
// record only and the run continues. The deactivation sweep and the main loop
// are not one transaction; a run that aborts partway leaves state the next
// scheduled run converges. Running twice on the same snapshot is a no-op the
// second time.
func (s *Service) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	log := s.logger.With("job", "reconcile", "run_id", runID)

	records, err := s.snapshots.Read(ctx)
	if err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "read directory snapshot")
	}
	log.Info("reconciliation started", "records", len(records))

	var report Report
	valid := make([]string, 0, len(records))
	for _, rec := range records {
		// A cancelled context is a fatal abort; committed records stay
		// committed and the next run picks up from scratch.
		if err := ctx.Err(); err != nil {
			return report, dErrors.Wrap(err, dErrors.CodeTimeout, "reconciliation aborted")
		}
		if err := rec.Validate(); err != nil {
			report.Failed++
			// The surrogate id still counts as present in the snapshot: a
			// malformed row is skipped, not treated as a disappearance, so
			// the sweep must not deactivate its card.
			if strings.TrimSpace(rec.SurrogateID) != "" {
				valid = append(valid, rec.SurrogateID)
			}
			log.Error("malformed directory record skipped", "error", err)
			continue
		}
		valid = append(valid, rec.SurrogateID)

		action, oldID, err := s.reconcileRecord(ctx, rec)
		if err != nil {
			report.Failed++
			log.Error("record reconciliation failed",
				"full_name", rec.NaturalKey.FullName,
				"group", rec.NaturalKey.Group,
				"surrogate_id", rec.SurrogateID,
				"error", err,
			)
			continue
		}
		report.Processed++
		s.recordOutcome(ctx, runID, rec, action, oldID, &report)

		if s.guard != nil {
			if err := s.guard.MarkReconciled(ctx, rec.NaturalKey); err != nil {
				log.Warn("epoch mark failed", "full_name", rec.NaturalKey.FullName, "error", err)
			}
		}
	}

	if err := s.sweep(ctx, runID, valid, &report); err != nil {
		return report, err
	}

	log.Info("reconciliation finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"registered", report.Registered,
		"reactivated", report.Reactivated,
		"renamed", report.Renamed,
		"deactivated", report.Deactivated,
		"expelled", report.Expelled,
		"requests_purged", report.PurgedRequests,
	)
	return report, nil
}

// reconcileRecord classifies one snapshot record against the registry and
// applies the result inside a single transaction. A rename updates the card
// and repoints its persons in that one transaction, relying on the runner's
// deferred foreign key so neither side dangles mid-flight.
func (s *Service) reconcileRecord(ctx context.Context, rec models.ExternalRosterRecord) (recordAction, string, error) {
	action := actionNone
	oldID := ""

	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		existing, err := stores.Cards.FindByNaturalKey(ctx, rec.NaturalKey)
		if err != nil {
			return err
		}
		now := s.clock()

		switch {
		case existing == nil:
			if err := stores.Cards.Insert(ctx, models.CardRecord{
				SurrogateID: rec.SurrogateID,
				NaturalKey:  rec.NaturalKey,
				Status:      models.CardStatusActive,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			action = actionRegistered

		case existing.SurrogateID != rec.SurrogateID:
			oldID = existing.SurrogateID
			if err := stores.Cards.Rename(ctx, oldID, rec.SurrogateID, now); err != nil {
				return err
			}
			if _, err := stores.Persons.ReassignSurrogateID(ctx, oldID, rec.SurrogateID); err != nil {
				return err
			}
			action = actionRenamed

		default:
			if err := stores.Cards.Refresh(ctx, rec.SurrogateID, now); err != nil {
				return err
			}
			if existing.Status == models.CardStatusInactive {
				action = actionReactivated
			}
		}

		if s.marker != "" && rec.Category == s.marker {
			if err := stores.Responsible.Upsert(ctx, models.ResponsibleParty{
				NaturalKey:     rec.NaturalKey,
				SurrogateIDRef: rec.SurrogateID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return actionNone, "", err
	}
	return action, oldID, nil
}

// recordOutcome counts the committed action and emits its audit event.
func (s *Service) recordOutcome(ctx context.Context, runID string, rec models.ExternalRosterRecord, action recordAction, oldID string, report *Report) {
	event := audit.Event{
		RunID:       runID,
		FullName:    rec.NaturalKey.FullName,
		Group:       rec.NaturalKey.Group,
		SurrogateID: rec.SurrogateID,
	}
	switch action {
	case actionRegistered:
		report.Registered++
		event.Action = audit.ActionCardRegistered
	case actionReactivated:
		report.Reactivated++
		event.Action = audit.ActionCardReactivated
	case actionRenamed:
		report.Renamed++
		event.Action = audit.ActionCardRenamed
		event.OldSurrogateID = oldID
	default:
		return
	}
	s.emit(ctx, event)
}

// sweep deactivates every card absent from the snapshot and hands affected
// persons to the cascade. An empty snapshot skips the sweep: deactivating the
// whole registry is far more likely a broken feed than a real mass exit.
func (s *Service) sweep(ctx context.Context, runID string, valid []string, report *Report) error {
	if len(valid) == 0 {
		s.logger.Warn("snapshot yielded no valid records, skipping deactivation sweep", "run_id", runID)
		return nil
	}

	swept, err := s.cards.DeactivateNotIn(ctx, valid, s.clock())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deactivation sweep")
	}
	if len(swept) == 0 {
		return nil
	}
	report.Deactivated = len(swept)
	s.emit(ctx, audit.Event{
		RunID:  runID,
		Action: audit.ActionCardsDeactivated,
		Count:  int64(len(swept)),
	})

	persons, err := s.persons.FindBySurrogateIDs(ctx, swept)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "find persons for swept cards")
	}
	if len(persons) == 0 {
		return nil
	}

	expelled, purged, err := s.expeller.Expel(ctx, persons)
	report.Expelled = expelled
	report.PurgedRequests = purged
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "expulsion cascade")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = s.clock()
	event.Job = "reconcile"
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

// Package ports defines shared interfaces for the roster module. Interfaces
// live here when consumed by more than one service to avoid duplication.
package ports

import (
	"context"
	"time"

	"mealcard/internal/roster/models"
)

// SnapshotReader yields the full current external roster. Order is
// irrelevant; the reconciler fully replaces its view of valid surrogate ids
// from each snapshot.
type SnapshotReader interface {
	Read(ctx context.Context) ([]models.ExternalRosterRecord, error)
}

// CardStore persists card records. Pure I/O; classification and cascade
// decisions belong to the services.
type CardStore interface {
	// FindByNaturalKey returns nil, nil when no card exists for the key.
	FindByNaturalKey(ctx context.Context, key models.NaturalKey) (*models.CardRecord, error)

	// Insert creates a new card. Returns sentinel.ErrConflict (wrapped) when
	// the surrogate id is already taken.
	Insert(ctx context.Context, card models.CardRecord) error

	// Refresh marks the card active and bumps its update time. Handles
	// reactivation of a previously deactivated but still present card.
	Refresh(ctx context.Context, surrogateID string, at time.Time) error

	// Rename swaps the card's surrogate id in place. Callers must run it in
	// the same transaction as the matching person reassignment.
	Rename(ctx context.Context, oldSurrogateID, newSurrogateID string, at time.Time) error

	// UpsertByNaturalKey is the secondary sync's merge: update surrogate
	// id/status/updatedAt on natural-key match, insert otherwise.
	UpsertByNaturalKey(ctx context.Context, card models.CardRecord) error

	// DeactivateNotIn flips every card whose surrogate id is absent from the
	// given set to inactive and returns the swept surrogate ids.
	DeactivateNotIn(ctx context.Context, surrogateIDs []string, at time.Time) ([]string, error)
}

// PersonStore persists holder records.
type PersonStore interface {
	// FindBySurrogateIDs returns all persons referencing any of the ids.
	FindBySurrogateIDs(ctx context.Context, surrogateIDs []string) ([]models.Person, error)

	// ReassignSurrogateID repoints every person from the old card number to
	// the new one, returning the number of rows touched.
	ReassignSurrogateID(ctx context.Context, oldSurrogateID, newSurrogateID string) (int64, error)

	// SetExpelled raises the one-way expelled flag.
	SetExpelled(ctx context.Context, personID int64) error

	// CorrectSurrogateIDByNaturalKey is the secondary sync's best-effort
	// linkage fix for a matching natural key.
	CorrectSurrogateIDByNaturalKey(ctx context.Context, key models.NaturalKey, surrogateID string) (int64, error)
}

// ResponsibleStore persists the responsible-party identity class.
type ResponsibleStore interface {
	Upsert(ctx context.Context, party models.ResponsibleParty) error
}

// TxStores bundles the stores scoped to one transaction.
type TxStores struct {
	Cards       CardStore
	Persons     PersonStore
	Responsible ResponsibleStore
}

// TxRunner executes fn within one transaction. The Postgres implementation
// defers the person→card foreign key for the duration of the transaction so
// a rename can update both sides without an intermediate orphan; the
// constraint is re-validated at commit.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

// EpochGuard tracks which natural keys the primary reconciler has already
// handled in the current epoch, so the secondary sync backs off from its
// best-effort person correction instead of racing the cascade.
type EpochGuard interface {
	MarkReconciled(ctx context.Context, key models.NaturalKey) error
	Reconciled(ctx context.Context, key models.NaturalKey) (bool, error)
}

// Expeller receives persons that just lost their active card. Implemented by
// the cascade propagator; returns how many persons were actually expelled and
// how many future requests were purged, so partial failures are not
// over-counted.
type Expeller interface {
	Expel(ctx context.Context, persons []models.Person) (expelled int, purgedRequests int64, err error)
}

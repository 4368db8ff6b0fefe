// Package ports defines shared interfaces for the meal module.
package ports

import (
	"context"
	"time"

	"mealcard/internal/meal/models"
)

// RequestStore persists entitlement requests. Pure I/O; the finalized-row
// immutability rule is enforced by Upsert's conditional write so the check
// and the write are one atomic statement.
type RequestStore interface {
	// Get returns nil, nil when no request exists for (personID, date).
	Get(ctx context.Context, personID int64, date time.Time) (*models.EntitlementRequest, error)

	// Upsert inserts or overwrites the selections for (personID, date).
	// Returns sentinel.ErrFinalized (wrapped) when the row exists and is
	// finalized; the row is left untouched.
	Upsert(ctx context.Context, req models.EntitlementRequest) error

	// DeleteFutureUnfinalized removes the person's requests dated strictly
	// after the given day and not finalized, returning the rows removed.
	DeleteFutureUnfinalized(ctx context.Context, personID int64, after time.Time) (int64, error)

	// FinalizeUpTo flips finalized on every request dated on or before the
	// given day, in one statement, returning the rows flipped.
	FinalizeUpTo(ctx context.Context, day time.Time) (int64, error)
}

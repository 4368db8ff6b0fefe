package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mealcard/internal/roster/ports"
	dErrors "mealcard/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTxRunner runs reconciliation writes in one transaction with the
// person→card foreign key deferred, so a rename can update the card and
// repoint its persons without an intermediate orphan on either side. The
// constraint is re-validated when the transaction commits; it is never left
// relaxed outside the transaction boundary.
type PostgresTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

func (r *PostgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS fk_persons_card DEFERRED`); err != nil {
		return fmt.Errorf("defer persons fk: %w", err)
	}

	stores := ports.TxStores{
		Cards:       newPostgresCardStoreTx(tx),
		Persons:     newPostgresPersonStoreTx(tx),
		Responsible: newPostgresResponsibleStoreTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

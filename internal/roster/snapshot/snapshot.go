// Package snapshot provides Directory Snapshot Readers: sources that yield
// the full current external roster. Readers are stateless; the reconciler
// fully replaces its view from each read.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"mealcard/internal/roster/models"
)

// SQLReader reads the roster from an external relational source. The source
// table must expose surrogate_id, full_name, group_name and (optionally)
// category columns; the directory and the secondary registry both do.
type SQLReader struct {
	db    *sql.DB
	table string
}

func NewSQLReader(db *sql.DB, table string) *SQLReader {
	return &SQLReader{db: db, table: table}
}

func (r *SQLReader) Read(ctx context.Context) ([]models.ExternalRosterRecord, error) {
	query := fmt.Sprintf(
		`SELECT surrogate_id, full_name, group_name, COALESCE(category, '') FROM %s`,
		pq.QuoteIdentifier(r.table),
	)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read roster snapshot: %w", err)
	}
	defer rows.Close()

	var records []models.ExternalRosterRecord
	for rows.Next() {
		var rec models.ExternalRosterRecord
		if err := rows.Scan(&rec.SurrogateID, &rec.NaturalKey.FullName, &rec.NaturalKey.Group, &rec.Category); err != nil {
			return nil, fmt.Errorf("scan roster record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roster snapshot rows: %w", err)
	}
	return records, nil
}

// StaticReader serves a fixed snapshot. Used in tests and for replaying an
// exported roster through the manual trigger path.
type StaticReader struct {
	records []models.ExternalRosterRecord
	err     error
}

func NewStaticReader(records []models.ExternalRosterRecord) *StaticReader {
	return &StaticReader{records: records}
}

// NewFailingReader serves the given error; tests use it for the fatal-abort path.
func NewFailingReader(err error) *StaticReader {
	return &StaticReader{err: err}
}

func (r *StaticReader) Read(context.Context) ([]models.ExternalRosterRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.ExternalRosterRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

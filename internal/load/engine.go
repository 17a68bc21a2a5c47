// Package load implements the warehouse-load stage: it reads the transform
// manifest, fetches each star-schema table's Parquet output and upserts its
// rows into the warehouse with conflict-tolerant inserts.
package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/datasquid/etl/internal/colfmt"
	"github.com/datasquid/etl/internal/manifest"
	"github.com/datasquid/etl/internal/objectstore"
	"github.com/datasquid/etl/internal/snapshot"
	"github.com/datasquid/etl/internal/transform"
	"github.com/datasquid/etl/internal/watermark"
	"github.com/datasquid/etl/pkg/logger"
)

var warehouseTableSet = func() map[string]bool {
	set := make(map[string]bool, len(transform.StarTables))
	for _, t := range transform.StarTables {
		set[t] = true
	}
	return set
}()

// Engine loads star-schema tables into the warehouse. Failure isolation is
// the opposite of extraction's: a bad row is logged and skipped, a bad table
// is logged and skipped, and the run keeps going.
type Engine struct {
	db     *sql.DB
	store  objectstore.Store
	bucket string
	marks  *watermark.Tracker
}

// NewEngine wires a load engine over an open warehouse connection and the
// transform bucket.
func NewEngine(db *sql.DB, store objectstore.Store, bucket string) *Engine {
	return &Engine{
		db:     db,
		store:  store,
		bucket: bucket,
		marks:  watermark.NewTracker(store, bucket, watermark.TransformMarker),
	}
}

// Run loads every known star-schema table named by the triggering manifest.
// Names outside the star schema are ignored, not errors.
func (e *Engine) Run(ctx context.Context, trigger *manifest.TriggerEvent) (*manifest.Response, error) {
	report, err := manifest.ReadReport(ctx, e.store, trigger.Bucket, trigger.Key)
	if err != nil {
		return nil, err
	}

	var loaded []string
	for _, table := range report.TransformedTables {
		if !warehouseTableSet[table] {
			logger.Debug("ignoring unknown table in manifest", "table", table)
			continue
		}
		snap, err := e.fetchTable(ctx, table)
		if err != nil {
			logger.Warn("skipping table, parquet unavailable", "table", table, "error", err)
			continue
		}
		if err := e.loadTable(ctx, snap); err != nil {
			logger.Warn("skipping table, load failed", "table", table, "error", err)
			continue
		}
		loaded = append(loaded, table)
	}

	if len(loaded) == 0 {
		return &manifest.Response{
			Result:  manifest.ResultNoData,
			Message: "No tables to load",
		}, nil
	}
	return &manifest.Response{
		Result:  manifest.ResultSuccess,
		Message: fmt.Sprintf("Tables loaded - %v", loaded),
	}, nil
}

// fetchTable locates a table's current Parquet output through its transform
// watermark and decodes it.
func (e *Engine) fetchTable(ctx context.Context, table string) (*snapshot.Snapshot, error) {
	raw, err := e.marks.ReadRaw(ctx, table)
	if err != nil {
		return nil, err
	}
	data, err := e.store.GetObject(ctx, e.bucket, fmt.Sprintf("%s/%s.pqt", table, raw))
	if err != nil {
		return nil, err
	}
	return colfmt.Read(data, table)
}

// loadTable upserts every row inside one transaction, committed after all
// rows were attempted. The table's first column is its natural key, so the
// insert carries ON CONFLICT ... DO NOTHING; a conflicting row changes
// nothing and raises no error. Row failures roll back to a savepoint and the
// loop continues.
func (e *Engine) loadTable(ctx context.Context, snap *snapshot.Snapshot) error {
	if len(snap.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", snap.Table)
	}
	if !warehouseTableSet[snap.Table] {
		return fmt.Errorf("table %q is not in the warehouse catalog", snap.Table)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := insertStatement(snap.Table, snap.Columns)
	var inserted, skipped int
	for i, row := range snap.Rows {
		args := make([]any, len(snap.Columns))
		for j, col := range snap.Columns {
			args[j] = row[col]
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT load_row"); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			logger.Warn("row insert failed, skipping", "table", snap.Table, "row", i, "error", err)
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT load_row"); rbErr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			skipped++
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Info("table loaded", "table", snap.Table, "rows", inserted, "skipped", skipped)
	return nil
}

// insertStatement builds the conflict-tolerant insert for a table, keyed on
// its first column. The table name was validated against the fixed warehouse
// catalog; column identifiers are quoted.
func insertStatement(table string, cols []string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		table,
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		quoted[0],
	)
}

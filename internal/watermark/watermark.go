// Package watermark tracks the per-table "last processed" markers that drive
// Initial vs Continuous extraction and locate the current run's objects.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datasquid/etl/internal/objectstore"
)

const (
	// ExtractMarker is the marker object written next to extraction snapshots.
	ExtractMarker = "last_extracted.txt"
	// TransformMarker is the marker object written next to transform outputs.
	TransformMarker = "last_transformed.txt"

	// Layout is the marker timestamp format. It doubles as the stamp segment
	// of snapshot and parquet object keys.
	Layout = "2006/01/02/15:04"
)

// ErrNotFound signals a table that has never been processed.
var ErrNotFound = errors.New("watermark not found")

// Tracker reads and writes per-table watermarks in one bucket.
type Tracker struct {
	store  objectstore.Store
	bucket string
	marker string
}

// NewTracker creates a tracker over bucket using the given marker object name.
func NewTracker(store objectstore.Store, bucket, marker string) *Tracker {
	return &Tracker{store: store, bucket: bucket, marker: marker}
}

// Bucket returns the bucket this tracker operates on.
func (t *Tracker) Bucket() string { return t.bucket }

// Format renders a timestamp in marker form, minute precision.
func Format(ts time.Time) string {
	return ts.Format(Layout)
}

// Parse reads a marker string back into a timestamp.
func Parse(raw string) (time.Time, error) {
	ts, err := time.Parse(Layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed watermark %q: %w", raw, err)
	}
	return ts, nil
}

// HasPriorData reports whether the bucket already holds at least one object.
// Checked once per run: an empty bucket selects Initial mode for every table.
func (t *Tracker) HasPriorData(ctx context.Context) (bool, error) {
	keys, err := t.store.ListPrefix(ctx, t.bucket, "")
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// ReadRaw fetches the stored marker string for a table.
func (t *Tracker) ReadRaw(ctx context.Context, table string) (string, error) {
	data, err := t.store.GetObject(ctx, t.bucket, t.markerKey(table))
	if err != nil {
		if objectstore.IsNotFound(err) {
			return "", fmt.Errorf("table %s: %w", table, ErrNotFound)
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Read fetches and parses the watermark for a table. Returns ErrNotFound
// (wrapped) if the table has never been processed.
func (t *Tracker) Read(ctx context.Context, table string) (time.Time, error) {
	raw, err := t.ReadRaw(ctx, table)
	if err != nil {
		return time.Time{}, err
	}
	return Parse(raw)
}

// Write persists the marker for a table. Callers must only invoke this after
// the corresponding data object was durably written; a watermark may never
// advance past data that does not exist. Write also refuses to move a
// watermark backwards, keeping the per-table sequence monotonic.
func (t *Tracker) Write(ctx context.Context, table string, ts time.Time) error {
	existing, err := t.Read(ctx, table)
	switch {
	case err == nil:
		if ts.Before(existing) {
			return fmt.Errorf("table %s: watermark %s would regress behind %s",
				table, Format(ts), Format(existing))
		}
	case errors.Is(err, ErrNotFound):
		// First write for this table.
	default:
		return err
	}
	return t.store.PutObject(ctx, t.bucket, t.markerKey(table), []byte(Format(ts)))
}

func (t *Tracker) markerKey(table string) string {
	return table + "/" + t.marker
}

package watermark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datasquid/etl/internal/objectstore"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	store := objectstore.NewLocalStore(t.TempDir())
	if err := store.EnsureBucket(context.Background(), "ingest"); err != nil {
		t.Fatalf("EnsureBucket error: %v", err)
	}
	return NewTracker(store, "ingest", ExtractMarker)
}

func TestReadMissingWatermark(t *testing.T) {
	tracker := newTestTracker(t)
	_, err := tracker.Read(context.Background(), "address")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	if err := tracker.Write(ctx, "address", ts); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := tracker.Read(ctx, "address")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	// Minute precision on the marker.
	if !got.Equal(ts) {
		t.Errorf("Expected %v, got %v", ts, got)
	}

	raw, err := tracker.ReadRaw(ctx, "address")
	if err != nil {
		t.Fatalf("ReadRaw error: %v", err)
	}
	if raw != "2024/03/15/10:30" {
		t.Errorf("Unexpected marker form: %s", raw)
	}
}

func TestWriteRefusesRegression(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	if err := tracker.Write(ctx, "address", ts); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := tracker.Write(ctx, "address", ts.Add(-time.Minute)); err == nil {
		t.Error("Expected error writing an older watermark")
	}
	// Re-writing the same value is allowed, a re-run must be able to land.
	if err := tracker.Write(ctx, "address", ts); err != nil {
		t.Errorf("Expected equal watermark to succeed, got %v", err)
	}
	if err := tracker.Write(ctx, "address", ts.Add(time.Minute)); err != nil {
		t.Errorf("Expected advancing watermark to succeed, got %v", err)
	}
}

func TestWatermarksAreIndependentPerTable(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	if err := tracker.Write(ctx, "address", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if _, err := tracker.Read(ctx, "staff"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for untouched table, got %v", err)
	}
}

func TestHasPriorData(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	prior, err := tracker.HasPriorData(ctx)
	if err != nil {
		t.Fatalf("HasPriorData error: %v", err)
	}
	if prior {
		t.Error("Expected empty bucket to report no prior data")
	}

	if err := tracker.Write(ctx, "address", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	prior, err = tracker.HasPriorData(ctx)
	if err != nil {
		t.Fatalf("HasPriorData error: %v", err)
	}
	if !prior {
		t.Error("Expected non-empty bucket to report prior data")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("yesterday"); err == nil {
		t.Error("Expected error parsing malformed watermark")
	}
	ts, err := Parse(" 2024/03/15/10:30\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if Format(ts) != "2024/03/15/10:30" {
		t.Errorf("Unexpected round-trip: %s", Format(ts))
	}
}

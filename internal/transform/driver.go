package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/datasquid/etl/internal/colfmt"
	"github.com/datasquid/etl/internal/extract"
	"github.com/datasquid/etl/internal/manifest"
	"github.com/datasquid/etl/internal/objectstore"
	"github.com/datasquid/etl/internal/snapshot"
	"github.com/datasquid/etl/internal/watermark"
	"github.com/datasquid/etl/pkg/logger"
)

// singleTransforms maps a source table to its one-input transform. Join
// inputs (address/counterparty, staff/department) are handled separately
// because they need both sides from the same manifest.
var singleTransforms = map[string]struct {
	output string
	fn     func(*snapshot.Snapshot) (*snapshot.Snapshot, error)
}{
	"design":      {DimDesignTable, DimDesign},
	"address":     {DimLocationTable, DimLocation},
	"currency":    {DimCurrencyTable, DimCurrency},
	"sales_order": {FactSalesOrderTable, FactSalesOrder},
}

// joinParticipants are manifest tables cached for the two-input transforms.
var joinParticipants = map[string]bool{
	"address":      true,
	"counterparty": true,
	"staff":        true,
	"department":   true,
}

// OutputList accumulates produced star-schema tables with the documented
// ordering contract: dimensions in production order, the fact table always
// listed last. Downstream consumers rely on dimensions-before-fact ordering.
type OutputList struct {
	dims []string
	fact bool
}

func (l *OutputList) AddDimension(name string) { l.dims = append(l.dims, name) }
func (l *OutputList) MarkFact()                { l.fact = true }
func (l *OutputList) Empty() bool              { return len(l.dims) == 0 && !l.fact }

// Tables returns the ordered output list.
func (l *OutputList) Tables() []string {
	out := make([]string, 0, len(l.dims)+1)
	out = append(out, l.dims...)
	if l.fact {
		out = append(out, FactSalesOrderTable)
	}
	return out
}

// Driver reads the extraction manifest, runs the applicable transforms and
// writes Parquet outputs plus its own manifest. A single table's conversion
// failure is logged and skipped; the run carries on with the rest.
type Driver struct {
	store           objectstore.Store
	ingestBucket    string
	transformBucket string
	ingestMarks     *watermark.Tracker
	outputMarks     *watermark.Tracker
	now             func() time.Time
}

// NewDriver wires a transform driver over the ingest and transform buckets.
// It validates the transform registry against the fixed source catalog so a
// misregistered table name fails at startup, not mid-run.
func NewDriver(store objectstore.Store, ingestBucket, transformBucket string) (*Driver, error) {
	for table := range singleTransforms {
		if err := extract.ValidateTable(table); err != nil {
			return nil, fmt.Errorf("transform registry: %w", err)
		}
	}
	for table := range joinParticipants {
		if err := extract.ValidateTable(table); err != nil {
			return nil, fmt.Errorf("transform registry: %w", err)
		}
	}
	return &Driver{
		store:           store,
		ingestBucket:    ingestBucket,
		transformBucket: transformBucket,
		ingestMarks:     watermark.NewTracker(store, ingestBucket, watermark.ExtractMarker),
		outputMarks:     watermark.NewTracker(store, transformBucket, watermark.TransformMarker),
		now:             time.Now,
	}, nil
}

// WithClock overrides the driver clock for tests.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// Run executes one transform pass for the manifest named by the trigger.
func (d *Driver) Run(ctx context.Context, trigger *manifest.TriggerEvent) (*manifest.Response, error) {
	report, err := manifest.ReadReport(ctx, d.store, trigger.Bucket, trigger.Key)
	if err != nil {
		return nil, err
	}

	runTime := d.now()
	stamp := watermark.Format(runTime)
	outputs := &OutputList{}

	// The date dimension covers a fixed calendar range; it is generated once,
	// when the transform bucket is still empty, and never regenerated.
	hasPrior, err := d.outputMarks.HasPriorData(ctx)
	if err != nil {
		return nil, fmt.Errorf("check transform bucket: %w", err)
	}
	if !hasPrior {
		dimDate, err := GenerateDimDate("", "")
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", DimDateTable, err)
		}
		if err := d.writeOutput(ctx, dimDate, stamp, runTime); err != nil {
			return nil, err
		}
		outputs.AddDimension(DimDateTable)
		logger.Info("date dimension generated", "rows", len(dimDate.Rows))
	}

	fetched := make(map[string]*snapshot.Snapshot)
	for _, table := range report.UpdatedTables {
		single, hasSingle := singleTransforms[table]
		if !hasSingle && !joinParticipants[table] {
			logger.Debug("no transform for table", "table", table)
			continue
		}

		snap, err := d.fetchSnapshot(ctx, table)
		if err != nil {
			logger.Warn("skipping table, snapshot unavailable", "table", table, "error", err)
			continue
		}
		fetched[table] = snap

		if !hasSingle {
			continue
		}
		out, err := single.fn(snap)
		if err != nil {
			logger.Warn("transform failed, skipping table", "table", table, "error", err)
			continue
		}
		if err := d.writeOutput(ctx, out, stamp, runTime); err != nil {
			return nil, err
		}
		if single.output == FactSalesOrderTable {
			outputs.MarkFact()
		} else {
			outputs.AddDimension(single.output)
		}
		logger.Info("table transformed", "source", table, "output", single.output, "rows", len(out.Rows))
	}

	// Two-input transforms need both sides from this run's manifest.
	if err := d.runJoin(ctx, outputs, stamp, runTime, DimCounterpartyTable, fetched["address"], fetched["counterparty"], DimCounterparty); err != nil {
		return nil, err
	}
	if err := d.runJoin(ctx, outputs, stamp, runTime, DimStaffTable, fetched["staff"], fetched["department"], DimStaff); err != nil {
		return nil, err
	}

	if outputs.Empty() {
		return &manifest.Response{
			Result:  manifest.ResultNoData,
			Message: "No tables to transform",
		}, nil
	}

	outReport := &manifest.Report{
		Status:            manifest.StatusSuccess,
		TransformedTables: outputs.Tables(),
	}
	reportKey, err := manifest.WriteReport(ctx, d.store, d.transformBucket, outReport, runTime)
	if err != nil {
		return nil, err
	}

	return &manifest.Response{
		Result:     manifest.ResultSuccess,
		Message:    fmt.Sprintf("Tables transformed - %v", outputs.Tables()),
		ReportFile: fmt.Sprintf("s3://%s/%s", d.transformBucket, reportKey),
	}, nil
}

func (d *Driver) runJoin(
	ctx context.Context,
	outputs *OutputList,
	stamp string,
	runTime time.Time,
	output string,
	left, right *snapshot.Snapshot,
	fn func(a, b *snapshot.Snapshot) (*snapshot.Snapshot, error),
) error {
	if left == nil || right == nil {
		// Only one side appeared in this manifest: skip rather than join
		// against a stale copy of the missing side.
		return nil
	}
	out, err := fn(left, right)
	if err != nil {
		logger.Warn("join transform failed, skipping", "output", output, "error", err)
		return nil
	}
	if err := d.writeOutput(ctx, out, stamp, runTime); err != nil {
		return err
	}
	outputs.AddDimension(output)
	logger.Info("join transformed", "output", output, "rows", len(out.Rows))
	return nil
}

// fetchSnapshot locates a table's current snapshot through its extraction
// watermark and deserializes it.
func (d *Driver) fetchSnapshot(ctx context.Context, table string) (*snapshot.Snapshot, error) {
	raw, err := d.ingestMarks.ReadRaw(ctx, table)
	if err != nil {
		return nil, err
	}
	data, err := d.store.GetObject(ctx, d.ingestBucket, fmt.Sprintf("%s/%s.json", table, raw))
	if err != nil {
		return nil, err
	}
	return snapshot.Unmarshal(data, table)
}

// writeOutput stores one star-schema table as Parquet, then advances its
// transform watermark. Marker follows data, never precedes it.
func (d *Driver) writeOutput(ctx context.Context, out *snapshot.Snapshot, stamp string, runTime time.Time) error {
	data, err := colfmt.Write(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", out.Table, err)
	}
	key := fmt.Sprintf("%s/%s.pqt", out.Table, stamp)
	if err := d.store.PutObject(ctx, d.transformBucket, key, data); err != nil {
		return fmt.Errorf("upload %s: %w", out.Table, err)
	}
	if err := d.outputMarks.Write(ctx, out.Table, runTime); err != nil {
		return fmt.Errorf("advance watermark for %s: %w", out.Table, err)
	}
	return nil
}

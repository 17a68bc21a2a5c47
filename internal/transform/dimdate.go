package transform

import (
	"fmt"
	"time"

	"github.com/datasquid/etl/internal/snapshot"
)

// Default calendar bounds for the date dimension, inclusive.
const (
	DefaultDimDateStart = "2022-11-03"
	DefaultDimDateEnd   = "2025-12-31"
)

// GenerateDimDate produces one row per calendar day in the inclusive range.
// It is a pure function of its bounds; the driver guards it so the dimension
// is generated exactly once over the system's lifetime.
func GenerateDimDate(start, end string) (*snapshot.Snapshot, error) {
	if start == "" {
		start = DefaultDimDateStart
	}
	if end == "" {
		end = DefaultDimDateEnd
	}
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	out := snapshot.New(DimDateTable, []string{
		"date_id", "year", "month", "day", "day_of_week", "day_name", "month_name", "quarter",
	})
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		out.Append(snapshot.Row{
			"date_id":     day.Format("2006-01-02"),
			"year":        int64(day.Year()),
			"month":       int64(day.Month()),
			"day":         int64(day.Day()),
			"day_of_week": mondayIndexed(day.Weekday()),
			"day_name":    day.Weekday().String(),
			"month_name":  day.Month().String(),
			"quarter":     int64((int(day.Month())-1)/3 + 1),
		})
	}
	return out, nil
}

// mondayIndexed maps Go's Sunday=0 weekday to the Monday=0 convention the
// warehouse consumers expect.
func mondayIndexed(d time.Weekday) int64 {
	return int64((int(d) + 6) % 7)
}

// Package manifest defines the run reports exchanged between pipeline stages,
// the trigger payload a stage is invoked with, and the structured response a
// stage returns to its caller.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datasquid/etl/internal/objectstore"
)

// StatusSuccess is the only status a written report ever carries; failed runs
// do not produce reports.
const StatusSuccess = "Success"

// Report records one run's outcome. Extraction runs fill UpdatedTables and
// ExtractionType; transform runs fill TransformedTables.
type Report struct {
	Status            string   `json:"status"`
	ExtractionType    string   `json:"extraction_type,omitempty"`
	UpdatedTables     []string `json:"updated_tables,omitempty"`
	TransformedTables []string `json:"transformed_tables,omitempty"`
}

// ReportKey names a report object for a run completing at ts.
func ReportKey(ts time.Time) string {
	return fmt.Sprintf("reports/%s_success.json", ts.Format("2006-01-02T15:04:05.999999"))
}

// WriteReport persists the report and returns its object key.
func WriteReport(ctx context.Context, store objectstore.Store, bucket string, report *Report, ts time.Time) (string, error) {
	body, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := ReportKey(ts)
	if err := store.PutObject(ctx, bucket, key, body); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return key, nil
}

// ReadReport fetches and decodes a report object.
func ReadReport(ctx context.Context, store objectstore.Store, bucket, key string) (*Report, error) {
	data, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", key, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", key, err)
	}
	return &report, nil
}

// ErrMalformedTrigger marks a trigger payload missing its expected fields.
var ErrMalformedTrigger = errors.New("malformed trigger payload")

// TriggerEvent identifies the newly written report object that caused a
// stage invocation.
type TriggerEvent struct {
	Bucket string
	Key    string
}

// ParseTrigger extracts the bucket and object key from an object-storage
// notification payload.
func ParseTrigger(data []byte) (*TriggerEvent, error) {
	var payload struct {
		Records []struct {
			S3 struct {
				Bucket struct {
					Name string `json:"name"`
				} `json:"bucket"`
				Object struct {
					Key string `json:"key"`
				} `json:"object"`
			} `json:"s3"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}
	if len(payload.Records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformedTrigger)
	}
	rec := payload.Records[0]
	if rec.S3.Bucket.Name == "" || rec.S3.Object.Key == "" {
		return nil, fmt.Errorf("%w: missing bucket name or object key", ErrMalformedTrigger)
	}
	return &TriggerEvent{Bucket: rec.S3.Bucket.Name, Key: rec.S3.Object.Key}, nil
}

// Result classifies a stage outcome.
type Result string

const (
	ResultSuccess           Result = "Success"
	ResultNoData            Result = "NoData"
	ResultValidationFailure Result = "ValidationFailure"
	ResultFailure           Result = "Failure"
)

// Response is the structured result a stage hands back to its invoker.
type Response struct {
	Result     Result `json:"result"`
	Message    string `json:"message"`
	ReportFile string `json:"report_file,omitempty"`
}

// ExitCode maps the response to a process exit code. "Nothing to do" is a
// success, validation failures are distinguished from unexpected failures.
func (r *Response) ExitCode() int {
	switch r.Result {
	case ResultSuccess, ResultNoData:
		return 0
	case ResultValidationFailure:
		return 2
	default:
		return 1
	}
}

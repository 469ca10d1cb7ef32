package executor

import (
	"fmt"
	"time"

	"github.com/bruin-data/historian/pkg/metrics"
	"github.com/bruin-data/historian/pkg/scd2"
)

type Status int

const (
	Pending Status = iota
	Running
	Failed
	UpstreamFailed
	Succeeded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case UpstreamFailed:
		return "upstream_failed"
	case Succeeded:
		return "succeeded"
	}
	return "unknown"
}

// Result summarizes one entity run.
type Result struct {
	Entity string
	Table  string
	Status Status

	// Read counts the records the source produced, Skipped the rows the source could not turn into records.
	Read    int
	Skipped int
	Padded  int
	// Rejected counts records failing validation, in the merger, the derivations or the historization engine.
	Rejected   int
	Stale      int
	Duplicates int
	Selected   int

	VersionsOpened     int
	VersionsClosed     int
	Unchanged          int
	RowsUpserted       int
	OrderingViolations []*scd2.OrderingViolation

	OldWatermark time.Time
	NewWatermark time.Time

	Attempts int
	Duration time.Duration
	Err      error
}

func (r *Result) RunStats() metrics.RunStats {
	return metrics.RunStats{
		Entity:             r.Entity,
		Status:             r.Status.String(),
		Read:               r.Read,
		Rejected:           r.Rejected,
		Stale:              r.Stale,
		VersionsOpened:     r.VersionsOpened,
		VersionsClosed:     r.VersionsClosed,
		RowsUpserted:       r.RowsUpserted,
		OrderingViolations: len(r.OrderingViolations),
		Watermark:          r.NewWatermark,
		Duration:           r.Duration,
	}
}

// TransactionError is a store failure inside an entity run. The batch was rolled back and can be retried.
type TransactionError struct {
	Entity string
	Op     string
	Err    error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("entity '%s': transaction failed during %s: %v", e.Entity, e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

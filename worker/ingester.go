package worker

import (
	"context"
	"time"

	"github.com/batchingest/batchingest/scheduler"
	"github.com/juju/clock"
)

// Ingester is implemented by types that perform the actual ingestion work for
// a batch.
type Ingester interface {
	// Ingest processes the identifiers of a dispatched batch job. A non-nil
	// error indicates that the batch could not be ingested.
	Ingest(ctx context.Context, job scheduler.Job) error
}

// IngesterFunc is an adapter to allow the use of plain functions as Ingester
// instances. If f is a function with the appropriate signature,
// IngesterFunc(f) is an Ingester that calls f.
type IngesterFunc func(context.Context, scheduler.Job) error

// Ingest calls f(ctx, job).
func (f IngesterFunc) Ingest(ctx context.Context, job scheduler.Job) error {
	return f(ctx, job)
}

// Simulated is an Ingester that stands in for a real ingestion sink by
// waiting for a fixed amount of time.
type Simulated struct {
	// A clock instance for waiting. If not specified, the default
	// wall-clock will be used instead.
	Clock clock.Clock

	// The time it takes to ingest each batch.
	Duration time.Duration
}

// Ingest implements Ingester. It returns ctx.Err() if the context expires
// before the simulated work completes.
func (s Simulated) Ingest(ctx context.Context, _ scheduler.Job) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	select {
	case <-clk.After(s.Duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

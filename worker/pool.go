package worker

import (
	"context"
	"io/ioutil"
	"sync"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/batchingest/batchingest/metrics"
	"github.com/batchingest/batchingest/scheduler"
	"github.com/batchingest/batchingest/tracing"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/batchingest/batchingest/worker Dispatcher,StatusUpdater,Ingester

// Dispatcher defines the API for fetching jobs that are ready to be
// processed.
type Dispatcher interface {
	// Dispatch blocks until a job is available.
	Dispatch(ctx context.Context) (scheduler.Job, error)

	// Close releases any callers blocked in Dispatch.
	Close() error
}

// StatusUpdater defines a set of API methods for recording batch progress.
type StatusUpdater interface {
	MarkInProgress(batchID uuid.UUID) error
	MarkCompleted(batchID uuid.UUID) error
}

// Config encapsulates the settings for configuring the worker pool.
type Config struct {
	// The source of jobs to process.
	Dispatcher Dispatcher

	// An API for recording batch status transitions.
	Store StatusUpdater

	// The operation that ingests each batch.
	Ingester Ingester

	// The number of batches that can be processed concurrently.
	Workers int

	// A clock instance for measuring ingestion times. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The tracer for batch ingestion spans. If not specified, a no-op
	// tracer will be used instead.
	Tracer opentracing.Tracer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Dispatcher == nil {
		err = multierror.Append(err, xerrors.Errorf("dispatcher has not been provided"))
	}
	if cfg.Store == nil {
		err = multierror.Append(err, xerrors.Errorf("status store has not been provided"))
	}
	if cfg.Ingester == nil {
		err = multierror.Append(err, xerrors.Errorf("ingester has not been provided"))
	}
	if cfg.Workers <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for worker count"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Tracer == nil {
		cfg.Tracer = opentracing.NoopTracer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Pool runs a fixed number of workers that pull jobs from a Dispatcher and
// ingest them.
type Pool struct {
	cfg Config
}

// NewPool creates a new worker pool with the specified config.
func NewPool(cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("worker pool: config validation failed: %w", err)
	}
	return &Pool{cfg: cfg}, nil
}

// Name implements service.Service
func (p *Pool) Name() string { return "worker-pool" }

// Run implements service.Service. It starts the workers and blocks until
// the context gets cancelled or the dispatcher is closed. Cancelling the
// context closes the dispatcher.
func (p *Pool) Run(ctx context.Context) error {
	p.cfg.Logger.WithField("workers", p.cfg.Workers).Info("starting service")
	defer p.cfg.Logger.Info("stopped service")

	runCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	// Unblock any worker waiting for a job once we are asked to stop.
	closerDoneCh := make(chan struct{})
	go func() {
		defer close(closerDoneCh)
		<-runCtx.Done()
		_ = p.cfg.Dispatcher.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(runCtx, p.cfg.Logger.WithField("worker", workerID))
		}(i)
	}

	wg.Wait()
	cancelFn()
	<-closerDoneCh
	return nil
}

func (p *Pool) runWorker(ctx context.Context, logger *logrus.Entry) {
	for {
		job, err := p.cfg.Dispatcher.Dispatch(ctx)
		if err != nil {
			if !xerrors.Is(err, scheduler.ErrClosed) && ctx.Err() == nil {
				logger.WithField("err", err).Error("unable to dispatch job; stopping worker")
			}
			return
		}

		p.process(ctx, job, logger.WithFields(logrus.Fields{
			"batch_id":     job.BatchID,
			"ingestion_id": job.IngestionID,
			"priority":     job.Priority,
		}))
	}
}

// process runs a single job. Failures are logged and never stop the worker.
// A job received after ctx is done is left pending.
func (p *Pool) process(ctx context.Context, job scheduler.Job, logger *logrus.Entry) {
	if ctx.Err() != nil {
		logger.Warn("shutting down; batch left pending")
		return
	}

	priority := string(job.Priority)
	metrics.BatchesDispatched.WithLabelValues(priority).Inc()

	var opts []opentracing.StartSpanOption
	if job.SpanContext != nil {
		opts = append(opts, opentracing.FollowsFrom(job.SpanContext))
	}
	span := p.cfg.Tracer.StartSpan(tracing.IngestOperation, opts...)
	span.SetTag("batch_id", job.BatchID.String())
	span.SetTag("ingestion_id", job.IngestionID.String())
	span.SetTag("priority", priority)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	if err := p.cfg.Store.MarkInProgress(job.BatchID); err != nil {
		ext.Error.Set(span, true)
		logger.WithField("err", err).Error("could not mark batch as in progress; skipping batch")
		return
	}

	startAt := p.cfg.Clock.Now()
	if err := p.ingest(ctx, job); err != nil {
		ext.Error.Set(span, true)
		if ctx.Err() != nil {
			logger.WithField("err", err).Warn("batch ingestion interrupted by shutdown; batch remains in progress")
			return
		}
		metrics.BatchesFailed.WithLabelValues(priority).Inc()
		logger.WithField("err", err).Error("batch ingestion failed; batch remains in progress")
		return
	}
	elapsed := p.cfg.Clock.Now().Sub(startAt)
	metrics.BatchDuration.Observe(elapsed.Seconds())

	if err := p.cfg.Store.MarkCompleted(job.BatchID); err != nil {
		ext.Error.Set(span, true)
		logger.WithField("err", err).Error("could not mark batch as completed")
		return
	}

	metrics.BatchesCompleted.WithLabelValues(priority).Inc()
	logger.WithFields(logrus.Fields{
		"ids":          len(job.MemberIDs),
		"elapsed_time": elapsed.String(),
	}).Debug("batch ingested")
}

// ingest invokes the configured Ingester and converts both returned errors
// and panics into ErrExternalOperation errors.
func (p *Pool) ingest(ctx context.Context, job scheduler.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("ingest batch %s: recovered from panic %v: %w", job.BatchID, r, ingestion.ErrExternalOperation)
		}
	}()

	if ingestErr := p.cfg.Ingester.Ingest(ctx, job); ingestErr != nil {
		return xerrors.Errorf("ingest batch %s: %v: %w", job.BatchID, ingestErr, ingestion.ErrExternalOperation)
	}
	return nil
}

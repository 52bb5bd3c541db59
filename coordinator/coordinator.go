package coordinator

import (
	"context"
	"io/ioutil"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/batchingest/batchingest/metrics"
	"github.com/batchingest/batchingest/tracing"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/batchingest/batchingest/coordinator Enqueuer
//go:generate mockgen -package mocks -destination mocks/mock_store.go github.com/batchingest/batchingest/ingestion Store

// Enqueuer is implemented by objects that can schedule the batches of an
// ingestion request for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, ingestionID uuid.UUID, priority ingestion.Priority, batches []*ingestion.Batch) error
}

// Config encapsulates the settings for configuring the ingestion coordinator.
type Config struct {
	// The store that keeps track of ingestion requests.
	Store ingestion.Store

	// The scheduler that batches are handed to.
	Scheduler Enqueuer

	// The maximum number of identifiers in each batch.
	BatchSize int

	// The tracer for submission spans. If not specified, a no-op tracer
	// will be used instead.
	Tracer opentracing.Tracer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Store == nil {
		err = multierror.Append(err, xerrors.Errorf("ingestion store has not been provided"))
	}
	if cfg.Scheduler == nil {
		err = multierror.Append(err, xerrors.Errorf("scheduler has not been provided"))
	}
	if cfg.BatchSize <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for batch size"))
	}
	if cfg.Tracer == nil {
		cfg.Tracer = opentracing.NoopTracer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Coordinator accepts ingestion requests, records them in the store and
// schedules their batches.
type Coordinator struct {
	cfg Config
}

// New returns a new Coordinator instance with the specified config.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("coordinator: config validation failed: %w", err)
	}
	return &Coordinator{cfg: cfg}, nil
}

// Submit validates an ingestion request, splits ids into batches, stores the
// request and schedules every batch in order. It returns the id of the new
// ingestion without waiting for any batch to be processed.
func (c *Coordinator) Submit(ids []string, priority string) (id uuid.UUID, err error) {
	span := c.cfg.Tracer.StartSpan(tracing.SubmitOperation)
	span.SetTag("priority", priority)
	span.SetTag("ids", len(ids))
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.SetTag("err", err.Error())
		}
		span.Finish()
	}()

	if len(ids) == 0 {
		return uuid.Nil, xerrors.Errorf("at least one id must be specified: %w", ingestion.ErrInvalidInput)
	}
	prio, err := ingestion.ParsePriority(priority)
	if err != nil {
		return uuid.Nil, err
	}

	groups, err := ingestion.Split(ids, c.cfg.BatchSize)
	if err != nil {
		return uuid.Nil, err
	}

	in, err := c.cfg.Store.CreateIngestion(prio, groups)
	if err != nil {
		return uuid.Nil, xerrors.Errorf("create ingestion: %w", err)
	}
	span.SetTag("ingestion_id", in.ID.String())

	logger := c.cfg.Logger.WithFields(logrus.Fields{
		"ingestion_id": in.ID,
		"priority":     prio,
		"batches":      len(in.Batches),
	})
	ctx := opentracing.ContextWithSpan(context.Background(), span)
	if err = c.cfg.Scheduler.Enqueue(ctx, in.ID, in.Priority, in.Batches); err != nil {
		logger.WithField("err", err).Error("unable to schedule ingestion batches")
		return uuid.Nil, xerrors.Errorf("schedule ingestion %s: %w", in.ID, err)
	}

	metrics.IngestionsSubmitted.WithLabelValues(string(prio)).Inc()
	logger.Info("accepted ingestion request")
	return in.ID, nil
}

// Status looks up an ingestion request by id. The returned value is a
// snapshot; its aggregate status is available via AggregateStatus.
func (c *Coordinator) Status(id uuid.UUID) (*ingestion.Ingestion, error) {
	return c.cfg.Store.Ingestion(id)
}

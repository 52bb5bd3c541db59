package scheduler

import (
	"container/heap"
	"context"
	"io/ioutil"
	"sync"
	"time"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/batchingest/batchingest/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ErrClosed is returned by Enqueue and Dispatch once the scheduler has been
// closed.
var ErrClosed = xerrors.New("scheduler is closed")

// Config encapsulates the settings for configuring the batch scheduler.
type Config struct {
	// The delay between the eligibility times of successive batches that
	// belong to the same ingestion request.
	Spacing time.Duration

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Spacing < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for batch spacing"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Scheduler holds batch jobs until they become eligible and hands them out
// to workers in priority order. It is safe for concurrent use.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	nextSeq uint64
	delayed *jobQueue
	ready   *jobQueue

	// wakeCh is closed and replaced whenever new jobs are enqueued so that
	// all suspended Dispatch calls re-evaluate the queues.
	wakeCh  chan struct{}
	closed  bool
	closeCh chan struct{}
}

// New creates a new scheduler with the specified config.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("scheduler: config validation failed: %w", err)
	}

	return &Scheduler{
		cfg:     cfg,
		delayed: newDelayQueue(),
		ready:   newReadyQueue(),
		wakeCh:  make(chan struct{}),
		closeCh: make(chan struct{}),
	}, nil
}

// Enqueue creates one job per batch. The i_th batch becomes eligible for
// dispatching i*Spacing after the call. If ctx carries a tracing span, its
// context is attached to every job.
func (s *Scheduler) Enqueue(ctx context.Context, ingestionID uuid.UUID, priority ingestion.Priority, batches []*ingestion.Batch) error {
	if _, err := ingestion.ParsePriority(string(priority)); err != nil {
		return xerrors.Errorf("scheduler: enqueue: %w", err)
	}

	var spanCtx opentracing.SpanContext
	if span := opentracing.SpanFromContext(ctx); span != nil {
		spanCtx = span.Context()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	now := s.cfg.Clock.Now()
	for i, b := range batches {
		heap.Push(s.delayed, &Job{
			BatchID:     b.ID,
			IngestionID: ingestionID,
			Priority:    priority,
			MemberIDs:   append([]string(nil), b.MemberIDs...),
			NotBefore:   now.Add(time.Duration(i) * s.cfg.Spacing),
			SpanContext: spanCtx,
			seq:         s.nextSeq,
		})
		s.nextSeq++
	}
	metrics.PendingJobs.Set(float64(s.lenLocked()))

	if len(batches) != 0 {
		close(s.wakeCh)
		s.wakeCh = make(chan struct{})
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"ingestion_id": ingestionID,
		"priority":     priority,
		"batches":      len(batches),
	}).Debug("enqueued batch jobs")
	return nil
}

// Dispatch blocks until an eligible job is available and returns the one with
// the highest priority. It returns ErrClosed if the scheduler is closed or
// the context error if ctx is done. Jobs are never handed out once ctx is
// done.
func (s *Scheduler) Dispatch(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Job{}, ErrClosed
		}

		now := s.cfg.Clock.Now()
		s.promoteLocked(now)
		if s.ready.Len() != 0 {
			job := heap.Pop(s.ready).(*Job)
			metrics.PendingJobs.Set(float64(s.lenLocked()))
			s.mu.Unlock()
			return *job, nil
		}

		// Nothing is eligible yet; sleep until the earliest delayed job
		// becomes eligible or until new jobs get enqueued.
		var (
			timer   clock.Timer
			timerCh <-chan time.Time
			wakeCh  = s.wakeCh
		)
		if s.delayed.Len() != 0 {
			timer = s.cfg.Clock.NewTimer(s.delayed.peek().NotBefore.Sub(now))
			timerCh = timer.Chan()
		}
		s.mu.Unlock()

		select {
		case <-timerCh:
		case <-wakeCh:
		case <-s.closeCh:
		case <-ctx.Done():
			stopTimer(timer)
			return Job{}, ctx.Err()
		}
		stopTimer(timer)
	}
}

// promoteLocked moves every delayed job that is eligible at now to the
// ready queue.
func (s *Scheduler) promoteLocked(now time.Time) {
	for s.delayed.Len() != 0 && !s.delayed.peek().NotBefore.After(now) {
		heap.Push(s.ready, heap.Pop(s.delayed))
	}
}

// Len returns the number of jobs that have not been dispatched yet.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

func (s *Scheduler) lenLocked() int {
	return s.delayed.Len() + s.ready.Len()
}

// Close shuts down the scheduler. Pending and future Dispatch calls return
// ErrClosed. Jobs that were not dispatched are dropped.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.closed = true
	close(s.closeCh)
	if dropped := s.lenLocked(); dropped != 0 {
		s.cfg.Logger.WithField("dropped_jobs", dropped).Warn("scheduler closed with pending jobs")
	}
	return nil
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/batchingest/batchingest/coordinator/mocks"
	"github.com/batchingest/batchingest/ingestion"
	"github.com/batchingest/batchingest/ingestion/store/memory"
	"github.com/batchingest/batchingest/scheduler"
	"github.com/batchingest/batchingest/worker"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(CoordinatorTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

type CoordinatorTestSuite struct{}

func (s *CoordinatorTestSuite) TestConfigValidation(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	origCfg := Config{
		Store:     mocks.NewMockStore(ctrl),
		Scheduler: mocks.NewMockEnqueuer(ctrl),
		BatchSize: 3,
	}

	cfg := origCfg
	c.Assert(cfg.validate(), gc.IsNil)
	c.Assert(cfg.Logger, gc.Not(gc.IsNil), gc.Commentf("default logger was not assigned"))

	cfg = origCfg
	cfg.Store = nil
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*ingestion store has not been provided.*")

	cfg = origCfg
	cfg.Scheduler = nil
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*scheduler has not been provided.*")

	cfg = origCfg
	cfg.BatchSize = 0
	c.Assert(cfg.validate(), gc.ErrorMatches, "(?ms).*invalid value for batch size.*")
}

func (s *CoordinatorTestSuite) TestSubmitSplitsAndSchedulesBatches(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	store := memory.NewInMemoryStore(nil)
	mockSched := mocks.NewMockEnqueuer(ctrl)

	var scheduled []*ingestion.Batch
	mockSched.EXPECT().Enqueue(gomock.Any(), gomock.Any(), ingestion.PriorityMedium, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, _ ingestion.Priority, batches []*ingestion.Batch) error {
			scheduled = batches
			return nil
		},
	)

	coord := s.newCoordinator(c, store, mockSched)
	id, err := coord.Submit([]string{"1", "2", "3", "4", "5"}, "MEDIUM")
	c.Assert(err, gc.IsNil)
	c.Assert(id, gc.Not(gc.Equals), uuid.Nil)

	c.Assert(scheduled, gc.HasLen, 2)
	c.Assert(scheduled[0].MemberIDs, gc.DeepEquals, []string{"1", "2", "3"})
	c.Assert(scheduled[1].MemberIDs, gc.DeepEquals, []string{"4", "5"})

	in, err := coord.Status(id)
	c.Assert(err, gc.IsNil)
	c.Assert(in.Priority, gc.Equals, ingestion.PriorityMedium)
	c.Assert(in.AggregateStatus(), gc.Equals, ingestion.StatusPending)
	c.Assert(in.Batches, gc.HasLen, 2)
	for i, b := range in.Batches {
		c.Assert(b.ID, gc.Equals, scheduled[i].ID, gc.Commentf("batch %d scheduled out of order", i))
		c.Assert(b.Status, gc.Equals, ingestion.StatusPending)
	}
}

func (s *CoordinatorTestSuite) TestSubmitRejectsInvalidRequests(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	// Neither the store nor the scheduler may be touched.
	coord := s.newCoordinator(c, mocks.NewMockStore(ctrl), mocks.NewMockEnqueuer(ctrl))

	specs := []struct {
		descr    string
		ids      []string
		priority string
	}{
		{descr: "nil ids", ids: nil, priority: "HIGH"},
		{descr: "empty ids", ids: []string{}, priority: "HIGH"},
		{descr: "missing priority", ids: []string{"1"}, priority: ""},
		{descr: "unknown priority", ids: []string{"1"}, priority: "URGENT"},
		{descr: "lowercase priority", ids: []string{"1"}, priority: "high"},
	}

	for specIndex, spec := range specs {
		c.Logf("[spec %d] %s", specIndex, spec.descr)
		id, err := coord.Submit(spec.ids, spec.priority)
		c.Assert(xerrors.Is(err, ingestion.ErrInvalidInput), gc.Equals, true, gc.Commentf("got error %v", err))
		c.Assert(id, gc.Equals, uuid.Nil)
	}
}

func (s *CoordinatorTestSuite) TestSubmitReportsSchedulingFailure(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	mockSched := mocks.NewMockEnqueuer(ctrl)
	mockSched.EXPECT().Enqueue(gomock.Any(), gomock.Any(), ingestion.PriorityLow, gomock.Any()).Return(scheduler.ErrClosed)

	coord := s.newCoordinator(c, memory.NewInMemoryStore(nil), mockSched)
	_, err := coord.Submit([]string{"1"}, "LOW")
	c.Assert(xerrors.Is(err, scheduler.ErrClosed), gc.Equals, true)
}

func (s *CoordinatorTestSuite) TestSubmitRecordsSpanAndPropagatesIt(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	tracer := mocktracer.New()
	mockSched := mocks.NewMockEnqueuer(ctrl)

	var enqueueSpan opentracing.Span
	mockSched.EXPECT().Enqueue(gomock.Any(), gomock.Any(), ingestion.PriorityHigh, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ uuid.UUID, _ ingestion.Priority, _ []*ingestion.Batch) error {
			enqueueSpan = opentracing.SpanFromContext(ctx)
			return nil
		},
	)

	coord, err := New(Config{
		Store:     memory.NewInMemoryStore(nil),
		Scheduler: mockSched,
		BatchSize: 3,
		Tracer:    tracer,
	})
	c.Assert(err, gc.IsNil)

	id, err := coord.Submit([]string{"1", "2", "3", "4"}, "HIGH")
	c.Assert(err, gc.IsNil)

	spans := tracer.FinishedSpans()
	c.Assert(spans, gc.HasLen, 1)
	c.Assert(spans[0].OperationName, gc.Equals, "ingestion.submit")
	c.Assert(spans[0].Tag("ingestion_id"), gc.Equals, id.String())
	c.Assert(spans[0].Tag("priority"), gc.Equals, "HIGH")
	c.Assert(spans[0].Tag("error"), gc.IsNil)

	c.Assert(enqueueSpan, gc.Not(gc.IsNil), gc.Commentf("expected the enqueue context to carry the submit span"))
	c.Assert(enqueueSpan.Context(), gc.DeepEquals, spans[0].Context())
}

func (s *CoordinatorTestSuite) TestRejectedSubmitSpanIsMarkedAsError(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	tracer := mocktracer.New()
	coord, err := New(Config{
		Store:     mocks.NewMockStore(ctrl),
		Scheduler: mocks.NewMockEnqueuer(ctrl),
		BatchSize: 3,
		Tracer:    tracer,
	})
	c.Assert(err, gc.IsNil)

	_, err = coord.Submit([]string{"1"}, "URGENT")
	c.Assert(xerrors.Is(err, ingestion.ErrInvalidInput), gc.Equals, true)

	spans := tracer.FinishedSpans()
	c.Assert(spans, gc.HasLen, 1)
	c.Assert(spans[0].Tag("error"), gc.Equals, true)
	c.Assert(spans[0].Tag("ingestion_id"), gc.IsNil)
}

func (s *CoordinatorTestSuite) TestStatusOfUnknownIngestion(c *gc.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	coord := s.newCoordinator(c, memory.NewInMemoryStore(nil), mocks.NewMockEnqueuer(ctrl))
	_, err := coord.Status(uuid.New())
	c.Assert(xerrors.Is(err, ingestion.ErrNotFound), gc.Equals, true)
}

func (s *CoordinatorTestSuite) TestSubmittedIngestionIsEventuallyCompleted(c *gc.C) {
	store := memory.NewInMemoryStore(nil)
	sched, err := scheduler.New(scheduler.Config{})
	c.Assert(err, gc.IsNil)

	pool, err := worker.NewPool(worker.Config{
		Dispatcher: sched,
		Store:      store,
		Ingester: worker.IngesterFunc(func(context.Context, scheduler.Job) error {
			return nil
		}),
		Workers: 2,
	})
	c.Assert(err, gc.IsNil)

	ctx, cancelFn := context.WithCancel(context.TODO())
	doneCh := make(chan error, 1)
	go func() { doneCh <- pool.Run(ctx) }()
	defer func() {
		cancelFn()
		c.Assert(<-doneCh, gc.IsNil)
	}()

	coord := s.newCoordinator(c, store, sched)
	id, err := coord.Submit([]string{"1", "2", "3", "4", "5", "6", "7"}, "HIGH")
	c.Assert(err, gc.IsNil)

	deadline := time.Now().Add(10 * time.Second)
	for {
		in, err := coord.Status(id)
		c.Assert(err, gc.IsNil)
		if in.AggregateStatus() == ingestion.StatusCompleted {
			c.Assert(in.Batches, gc.HasLen, 3)
			for _, b := range in.Batches {
				c.Assert(b.Status, gc.Equals, ingestion.StatusCompleted)
			}
			return
		}

		if time.Now().After(deadline) {
			c.Fatal("timeout waiting for ingestion to complete")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *CoordinatorTestSuite) newCoordinator(c *gc.C, store ingestion.Store, sched Enqueuer) *Coordinator {
	coord, err := New(Config{
		Store:     store,
		Scheduler: sched,
		BatchSize: 3,
	})
	c.Assert(err, gc.IsNil)
	return coord
}

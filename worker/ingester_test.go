package worker

import (
	"context"
	"time"

	"github.com/batchingest/batchingest/scheduler"
	"github.com/juju/clock/testclock"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(SimulatedIngesterTestSuite))

type SimulatedIngesterTestSuite struct{}

func (s *SimulatedIngesterTestSuite) TestCompletesAfterConfiguredDuration(c *gc.C) {
	clk := testclock.NewClock(time.Now())
	ingester := Simulated{Clock: clk, Duration: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- ingester.Ingest(context.TODO(), scheduler.Job{}) }()

	c.Assert(clk.WaitAdvance(4*time.Second, 10*time.Second, 1), gc.IsNil)
	select {
	case err := <-errCh:
		c.Fatalf("ingestion completed early with error %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	clk.Advance(time.Second)
	select {
	case err := <-errCh:
		c.Assert(err, gc.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timeout waiting for simulated ingestion to complete")
	}
}

func (s *SimulatedIngesterTestSuite) TestAbortsWhenContextIsCancelled(c *gc.C) {
	clk := testclock.NewClock(time.Now())
	ingester := Simulated{Clock: clk, Duration: time.Hour}

	ctx, cancelFn := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() { errCh <- ingester.Ingest(ctx, scheduler.Job{}) }()

	// Wait for the ingester to start its timer before cancelling.
	c.Assert(clk.WaitAdvance(time.Minute, 10*time.Second, 1), gc.IsNil)
	cancelFn()

	select {
	case err := <-errCh:
		c.Assert(err, gc.Equals, context.Canceled)
	case <-time.After(10 * time.Second):
		c.Fatal("timeout waiting for simulated ingestion to abort")
	}
}

func (s *SimulatedIngesterTestSuite) TestIngesterFuncAdapter(c *gc.C) {
	var got scheduler.Job
	f := IngesterFunc(func(_ context.Context, job scheduler.Job) error {
		got = job
		return nil
	})

	job := scheduler.Job{MemberIDs: []string{"1", "2"}}
	c.Assert(f.Ingest(context.TODO(), job), gc.IsNil)
	c.Assert(got.MemberIDs, gc.DeepEquals, job.MemberIDs)
}

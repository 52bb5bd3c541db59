package ingestion

import (
	"github.com/google/uuid"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(IngestionTestSuite))

type IngestionTestSuite struct{}

func (s *IngestionTestSuite) TestParsePriority(c *gc.C) {
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		got, err := ParsePriority(string(p))
		c.Assert(err, gc.IsNil)
		c.Assert(got, gc.Equals, p)
	}

	for _, bogus := range []string{"", "high", "URGENT"} {
		_, err := ParsePriority(bogus)
		c.Assert(xerrors.Is(err, ErrInvalidInput), gc.Equals, true, gc.Commentf("priority %q", bogus))
	}
}

func (s *IngestionTestSuite) TestPriorityRank(c *gc.C) {
	c.Assert(PriorityHigh.Rank() < PriorityMedium.Rank(), gc.Equals, true)
	c.Assert(PriorityMedium.Rank() < PriorityLow.Rank(), gc.Equals, true)
	c.Assert(PriorityLow.Rank() < Priority("bogus").Rank(), gc.Equals, true)
}

func (s *IngestionTestSuite) TestStatusTransitions(c *gc.C) {
	specs := []struct {
		from, to Status
		exp      bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusPending, false},
		{Status("bogus"), StatusInProgress, false},
	}

	for specIndex, spec := range specs {
		c.Assert(spec.from.CanTransition(spec.to), gc.Equals, spec.exp, gc.Commentf("[spec %d] %s -> %s", specIndex, spec.from, spec.to))
	}
}

func (s *IngestionTestSuite) TestAggregateStatus(c *gc.C) {
	specs := []struct {
		descr    string
		statuses []Status
		exp      Status
	}{
		{descr: "no batches", exp: StatusCompleted},
		{descr: "all pending", statuses: []Status{StatusPending, StatusPending}, exp: StatusPending},
		{descr: "one in progress", statuses: []Status{StatusPending, StatusInProgress}, exp: StatusInProgress},
		{descr: "in progress and completed", statuses: []Status{StatusCompleted, StatusInProgress}, exp: StatusInProgress},
		{descr: "completed and pending", statuses: []Status{StatusCompleted, StatusPending}, exp: StatusPending},
		{descr: "all completed", statuses: []Status{StatusCompleted, StatusCompleted}, exp: StatusCompleted},
	}

	for specIndex, spec := range specs {
		in := &Ingestion{ID: uuid.New()}
		for _, st := range spec.statuses {
			in.Batches = append(in.Batches, &Batch{ID: uuid.New(), IngestionID: in.ID, Status: st})
		}
		c.Assert(in.AggregateStatus(), gc.Equals, spec.exp, gc.Commentf("[spec %d] %s", specIndex, spec.descr))
	}
}

func (s *IngestionTestSuite) TestCloneIsDeep(c *gc.C) {
	in := &Ingestion{
		ID:       uuid.New(),
		Priority: PriorityLow,
		Batches: []*Batch{
			{ID: uuid.New(), MemberIDs: []string{"1", "2"}, Status: StatusPending},
		},
	}

	clone := in.Clone()
	clone.Batches[0].Status = StatusCompleted
	clone.Batches[0].MemberIDs[0] = "changed"

	c.Assert(in.Batches[0].Status, gc.Equals, StatusPending)
	c.Assert(in.Batches[0].MemberIDs[0], gc.Equals, "1")
}

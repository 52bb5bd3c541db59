package memory

import (
	"testing"
	"time"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/batchingest/batchingest/ingestion/ingestiontest"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(InMemoryStoreTestSuite))

func Test(t *testing.T) { gc.TestingT(t) }

type InMemoryStoreTestSuite struct {
	ingestiontest.SuiteBase
}

func (s *InMemoryStoreTestSuite) SetUpTest(c *gc.C) {
	s.SetStore(NewInMemoryStore(nil))
}

func (s *InMemoryStoreTestSuite) TestCreatedAtUsesClock(c *gc.C) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(testclock.NewClock(now))

	in, err := store.CreateIngestion(ingestion.PriorityLow, [][]string{{"1"}})
	c.Assert(err, gc.IsNil)
	c.Assert(in.CreatedAt.Equal(now), gc.Equals, true)
}

func (s *InMemoryStoreTestSuite) TestBatchIDsAreUniqueWithinRequest(c *gc.C) {
	// Hand out every id twice in a row so that consecutive batches of the
	// same request would collide unless the store retries.
	var (
		ids  = []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
		next int
	)
	store := NewInMemoryStore(nil)
	store.newID = func() uuid.UUID {
		id := ids[(next/2)%len(ids)]
		next++
		return id
	}

	in, err := store.CreateIngestion(ingestion.PriorityHigh, [][]string{{"1"}, {"2"}, {"3"}})
	c.Assert(err, gc.IsNil)
	c.Assert(in.Batches, gc.HasLen, 3)

	seen := make(map[uuid.UUID]bool)
	for i, b := range in.Batches {
		c.Assert(seen[b.ID], gc.Equals, false, gc.Commentf("batch %d reuses id %s", i, b.ID))
		seen[b.ID] = true

		c.Assert(store.MarkInProgress(b.ID), gc.IsNil)
		got, err := store.Ingestion(in.ID)
		c.Assert(err, gc.IsNil)
		c.Assert(got.Batches[i].Status, gc.Equals, ingestion.StatusInProgress)
	}
}

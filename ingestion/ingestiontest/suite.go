package ingestiontest

import (
	"fmt"
	"sync"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/google/uuid"
	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"
)

// SuiteBase defines a re-usable set of store-related tests that can be
// executed against any type that implements ingestion.Store.
type SuiteBase struct {
	s ingestion.Store
}

// SetStore configures the test-suite to run all tests against s.
func (s *SuiteBase) SetStore(store ingestion.Store) {
	s.s = store
}

// TestCreateIngestion verifies that new ingestions get unique IDs and
// PENDING batches that preserve the identifier groups.
func (s *SuiteBase) TestCreateIngestion(c *gc.C) {
	groups := [][]string{{"1", "2", "3"}, {"4", "5"}}
	in, err := s.s.CreateIngestion(ingestion.PriorityMedium, groups)
	c.Assert(err, gc.IsNil)
	c.Assert(in.ID, gc.Not(gc.Equals), uuid.Nil, gc.Commentf("expected an ID to be assigned to the new ingestion"))
	c.Assert(in.Priority, gc.Equals, ingestion.PriorityMedium)
	c.Assert(in.Batches, gc.HasLen, 2)

	seen := make(map[uuid.UUID]bool)
	for i, b := range in.Batches {
		c.Assert(b.ID, gc.Not(gc.Equals), uuid.Nil)
		c.Assert(seen[b.ID], gc.Equals, false, gc.Commentf("duplicate batch ID %s", b.ID))
		seen[b.ID] = true
		c.Assert(b.IngestionID, gc.Equals, in.ID)
		c.Assert(b.MemberIDs, gc.DeepEquals, groups[i])
		c.Assert(b.Status, gc.Equals, ingestion.StatusPending)
	}

	stored, err := s.s.Ingestion(in.ID)
	c.Assert(err, gc.IsNil)
	c.Assert(stored, gc.DeepEquals, in)
	c.Assert(stored.AggregateStatus(), gc.Equals, ingestion.StatusPending)
}

// TestCreateEmptyIngestion verifies that an ingestion without batches is
// reported as completed.
func (s *SuiteBase) TestCreateEmptyIngestion(c *gc.C) {
	in, err := s.s.CreateIngestion(ingestion.PriorityLow, nil)
	c.Assert(err, gc.IsNil)

	stored, err := s.s.Ingestion(in.ID)
	c.Assert(err, gc.IsNil)
	c.Assert(stored.Batches, gc.HasLen, 0)
	c.Assert(stored.AggregateStatus(), gc.Equals, ingestion.StatusCompleted)
}

// TestLookupUnknownIngestion verifies that lookups for unknown IDs fail
// with ErrNotFound.
func (s *SuiteBase) TestLookupUnknownIngestion(c *gc.C) {
	_, err := s.s.Ingestion(uuid.New())
	c.Assert(xerrors.Is(err, ingestion.ErrNotFound), gc.Equals, true)
}

// TestStatusTransitions verifies the batch status life-cycle and its effect
// on the aggregate status.
func (s *SuiteBase) TestStatusTransitions(c *gc.C) {
	in, err := s.s.CreateIngestion(ingestion.PriorityHigh, [][]string{{"1", "2", "3"}, {"4", "5"}})
	c.Assert(err, gc.IsNil)
	b0, b1 := in.Batches[0].ID, in.Batches[1].ID

	c.Assert(s.s.MarkInProgress(b0), gc.IsNil)
	s.assertAggregate(c, in.ID, ingestion.StatusInProgress)

	// Repeating a transition is a no-op.
	c.Assert(s.s.MarkInProgress(b0), gc.IsNil)

	c.Assert(s.s.MarkCompleted(b0), gc.IsNil)
	s.assertAggregate(c, in.ID, ingestion.StatusPending)

	c.Assert(s.s.MarkInProgress(b1), gc.IsNil)
	s.assertAggregate(c, in.ID, ingestion.StatusInProgress)

	c.Assert(s.s.MarkCompleted(b1), gc.IsNil)
	s.assertAggregate(c, in.ID, ingestion.StatusCompleted)
	c.Assert(s.s.MarkCompleted(b1), gc.IsNil)
	s.assertAggregate(c, in.ID, ingestion.StatusCompleted)
}

// TestInvalidTransitions verifies that backward or skipped transitions are
// rejected and leave the batch untouched.
func (s *SuiteBase) TestInvalidTransitions(c *gc.C) {
	in, err := s.s.CreateIngestion(ingestion.PriorityHigh, [][]string{{"1"}})
	c.Assert(err, gc.IsNil)
	batchID := in.Batches[0].ID

	err = s.s.MarkCompleted(batchID)
	c.Assert(xerrors.Is(err, ingestion.ErrInvalidTransition), gc.Equals, true)
	s.assertAggregate(c, in.ID, ingestion.StatusPending)

	c.Assert(s.s.MarkInProgress(batchID), gc.IsNil)
	c.Assert(s.s.MarkCompleted(batchID), gc.IsNil)

	err = s.s.MarkInProgress(batchID)
	c.Assert(xerrors.Is(err, ingestion.ErrInvalidTransition), gc.Equals, true)
	s.assertAggregate(c, in.ID, ingestion.StatusCompleted)
}

// TestTransitionUnknownBatch verifies that updates for unknown batch IDs
// fail with ErrNotFound.
func (s *SuiteBase) TestTransitionUnknownBatch(c *gc.C) {
	err := s.s.MarkInProgress(uuid.New())
	c.Assert(xerrors.Is(err, ingestion.ErrNotFound), gc.Equals, true)

	err = s.s.MarkCompleted(uuid.New())
	c.Assert(xerrors.Is(err, ingestion.ErrNotFound), gc.Equals, true)
}

// TestReturnedRecordsAreCopies verifies that callers cannot mutate the
// stored state through returned records.
func (s *SuiteBase) TestReturnedRecordsAreCopies(c *gc.C) {
	in, err := s.s.CreateIngestion(ingestion.PriorityHigh, [][]string{{"1"}})
	c.Assert(err, gc.IsNil)

	in.Batches[0].Status = ingestion.StatusCompleted
	in.Batches[0].MemberIDs[0] = "tampered"

	stored, err := s.s.Ingestion(in.ID)
	c.Assert(err, gc.IsNil)
	c.Assert(stored.Batches[0].Status, gc.Equals, ingestion.StatusPending)
	c.Assert(stored.Batches[0].MemberIDs, gc.DeepEquals, []string{"1"})
}

// TestConcurrentUpdatesAndReads verifies that the store can be mutated
// and queried concurrently and that readers never observe a batch status
// moving backwards.
func (s *SuiteBase) TestConcurrentUpdatesAndReads(c *gc.C) {
	var (
		numBatches = 50
		numReaders = 5
		groups     = make([][]string, numBatches)
	)
	for i := 0; i < numBatches; i++ {
		groups[i] = []string{fmt.Sprint(i)}
	}

	in, err := s.s.CreateIngestion(ingestion.PriorityMedium, groups)
	c.Assert(err, gc.IsNil)

	var (
		writersWg sync.WaitGroup
		readersWg sync.WaitGroup
		doneCh    = make(chan struct{})
		errCh     = make(chan error, numBatches+numReaders)
	)

	writersWg.Add(numBatches)
	for _, b := range in.Batches {
		go func(batchID uuid.UUID) {
			defer writersWg.Done()
			if err := s.s.MarkInProgress(batchID); err != nil {
				errCh <- err
				return
			}
			if err := s.s.MarkCompleted(batchID); err != nil {
				errCh <- err
			}
		}(b.ID)
	}

	readersWg.Add(numReaders)
	for i := 0; i < numReaders; i++ {
		go func() {
			defer readersWg.Done()
			lastSeen := make(map[uuid.UUID]ingestion.Status)
			for {
				select {
				case <-doneCh:
					return
				default:
				}

				snapshot, err := s.s.Ingestion(in.ID)
				if err != nil {
					errCh <- err
					return
				}
				for _, b := range snapshot.Batches {
					if prev, ok := lastSeen[b.ID]; ok && rank(b.Status) < rank(prev) {
						errCh <- xerrors.Errorf("batch %s regressed from %s to %s", b.ID, prev, b.Status)
						return
					}
					lastSeen[b.ID] = b.Status
				}
			}
		}()
	}

	writersWg.Wait()
	close(doneCh)
	readersWg.Wait()
	close(errCh)
	for err := range errCh {
		c.Assert(err, gc.IsNil)
	}

	s.assertAggregate(c, in.ID, ingestion.StatusCompleted)
}

func (s *SuiteBase) assertAggregate(c *gc.C, id uuid.UUID, exp ingestion.Status) {
	in, err := s.s.Ingestion(id)
	c.Assert(err, gc.IsNil)
	c.Assert(in.AggregateStatus(), gc.Equals, exp)
}

func rank(st ingestion.Status) int {
	switch st {
	case ingestion.StatusPending:
		return 0
	case ingestion.StatusInProgress:
		return 1
	default:
		return 2
	}
}

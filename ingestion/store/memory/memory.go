package memory

import (
	"sync"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"golang.org/x/xerrors"
)

// Compile-time check for ensuring InMemoryStore implements ingestion.Store.
var _ ingestion.Store = (*InMemoryStore)(nil)

// batchRef locates a batch inside the ingestion that owns it.
type batchRef struct {
	ingestion *ingestion.Ingestion
	index     int
}

// InMemoryStore implements an in-memory ingestion.Store that is safe for
// concurrent use.
type InMemoryStore struct {
	clk   clock.Clock
	newID func() uuid.UUID

	mu         sync.RWMutex
	ingestions map[uuid.UUID]*ingestion.Ingestion
	batches    map[uuid.UUID]batchRef
}

// NewInMemoryStore creates a new in-memory store. If clk is nil, the
// wall-clock is used for stamping new ingestions.
func NewInMemoryStore(clk clock.Clock) *InMemoryStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &InMemoryStore{
		clk:        clk,
		newID:      uuid.New,
		ingestions: make(map[uuid.UUID]*ingestion.Ingestion),
		batches:    make(map[uuid.UUID]batchRef),
	}
}

// CreateIngestion implements ingestion.Store.
func (s *InMemoryStore) CreateIngestion(priority ingestion.Priority, groups [][]string) (*ingestion.Ingestion, error) {
	// Build the full record before taking the lock; readers can only see
	// it once it is inserted into the map.
	in := &ingestion.Ingestion{
		Priority:  priority,
		Batches:   make([]*ingestion.Batch, len(groups)),
		CreatedAt: s.clk.Now(),
	}
	for i, group := range groups {
		in.Batches[i] = &ingestion.Batch{
			MemberIDs: append([]string(nil), group...),
			Status:    ingestion.StatusPending,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Assign IDs that do not collide with existing records or with the
	// batches of this request. Each batch is indexed as soon as its ID is
	// picked.
	for in.ID = s.newID(); s.ingestions[in.ID] != nil; in.ID = s.newID() {
	}
	for i, b := range in.Batches {
		for b.ID = s.newID(); s.batchExists(b.ID); b.ID = s.newID() {
		}
		b.IngestionID = in.ID
		s.batches[b.ID] = batchRef{ingestion: in, index: i}
	}
	s.ingestions[in.ID] = in
	return in.Clone(), nil
}

func (s *InMemoryStore) batchExists(id uuid.UUID) bool {
	_, exists := s.batches[id]
	return exists
}

// MarkInProgress implements ingestion.Store.
func (s *InMemoryStore) MarkInProgress(batchID uuid.UUID) error {
	return s.transition(batchID, ingestion.StatusInProgress)
}

// MarkCompleted implements ingestion.Store.
func (s *InMemoryStore) MarkCompleted(batchID uuid.UUID) error {
	return s.transition(batchID, ingestion.StatusCompleted)
}

func (s *InMemoryStore) transition(batchID uuid.UUID, next ingestion.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, exists := s.batches[batchID]
	if !exists {
		return xerrors.Errorf("mark batch %s as %s: %w", batchID, next, ingestion.ErrNotFound)
	}

	batch := ref.ingestion.Batches[ref.index]
	if !batch.Status.CanTransition(next) {
		return xerrors.Errorf("mark batch %s as %s (current status %s): %w", batchID, next, batch.Status, ingestion.ErrInvalidTransition)
	}
	batch.Status = next
	return nil
}

// Ingestion implements ingestion.Store.
func (s *InMemoryStore) Ingestion(id uuid.UUID) (*ingestion.Ingestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, exists := s.ingestions[id]
	if !exists {
		return nil, xerrors.Errorf("find ingestion %s: %w", id, ingestion.ErrNotFound)
	}

	// Callers get a snapshot so that later transitions cannot race with
	// whatever they do with the result.
	return in.Clone(), nil
}

package ingestion

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// Priority describes the scheduling priority of an ingestion request. All
// batches of a request share its priority.
type Priority string

// The supported priority values.
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority converts s into a Priority. It returns ErrInvalidInput if s
// is not one of the supported priority values.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", xerrors.Errorf("unknown priority %q: %w", s, ErrInvalidInput)
	}
}

// Rank returns the dispatch rank for the priority. Batches with a lower rank
// are dispatched first. Unknown priorities rank after all known ones.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Status describes the processing state of a batch or, in aggregate, of an
// ingestion request.
type Status string

// The supported status values, in the order a batch moves through them.
const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) ordinal() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a batch may move from status s to next.
// Writing the current status again is allowed so that updates are
// idempotent; any other move must advance the status by exactly one step.
func (s Status) CanTransition(next Status) bool {
	from, to := s.ordinal(), next.ordinal()
	if from < 0 || to < 0 {
		return false
	}
	return to == from || to == from+1
}

// Batch is a fixed-size slice of the identifiers submitted with an ingestion
// request.
type Batch struct {
	// A unique identifier for the batch.
	ID uuid.UUID

	// The ID of the ingestion request this batch belongs to.
	IngestionID uuid.UUID

	// The identifiers assigned to this batch, in submission order.
	MemberIDs []string

	// The current processing status.
	Status Status
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	clone := *b
	clone.MemberIDs = append([]string(nil), b.MemberIDs...)
	return &clone
}

// Ingestion encapsulates an accepted ingestion request and its batches.
type Ingestion struct {
	// A unique identifier for the ingestion request.
	ID uuid.UUID

	// The priority shared by all batches of the request.
	Priority Priority

	// The batches in split order.
	Batches []*Batch

	// The time when the request was accepted.
	CreatedAt time.Time
}

// Clone returns a deep copy of the ingestion and its batches.
func (in *Ingestion) Clone() *Ingestion {
	clone := *in
	clone.Batches = make([]*Batch, len(in.Batches))
	for i, b := range in.Batches {
		clone.Batches[i] = b.Clone()
	}
	return &clone
}

// AggregateStatus derives the status of the ingestion from its batches:
//
//   - COMPLETED if every batch is completed (or there are no batches)
//   - IN_PROGRESS if at least one batch is in progress
//   - PENDING otherwise
//
// A request with some completed and some pending batches but none in
// progress is therefore reported as PENDING.
func (in *Ingestion) AggregateStatus() Status {
	allCompleted := true
	for _, b := range in.Batches {
		switch b.Status {
		case StatusInProgress:
			return StatusInProgress
		case StatusCompleted:
		default:
			allCompleted = false
		}
	}

	if allCompleted {
		return StatusCompleted
	}
	return StatusPending
}

// Store is implemented by objects that own the authoritative record of
// ingestion requests and their batches.
type Store interface {
	// CreateIngestion stores a new ingestion request with one PENDING batch
	// per identifier group and returns a copy of the stored record. The
	// record only becomes visible to readers once it is fully populated.
	CreateIngestion(priority Priority, groups [][]string) (*Ingestion, error)

	// MarkInProgress moves a batch to the IN_PROGRESS state.
	MarkInProgress(batchID uuid.UUID) error

	// MarkCompleted moves a batch to the COMPLETED state.
	MarkCompleted(batchID uuid.UUID) error

	// Ingestion looks up an ingestion request by its ID.
	Ingestion(id uuid.UUID) (*Ingestion, error)
}

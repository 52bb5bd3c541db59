package ingestion

import "golang.org/x/xerrors"

var (
	// ErrInvalidInput is returned when a submission or a split request is
	// malformed.
	ErrInvalidInput = xerrors.New("invalid input")

	// ErrNotFound is returned when an ingestion or batch lookup fails.
	ErrNotFound = xerrors.New("not found")

	// ErrInvalidTransition is returned when a batch status update would move
	// the batch backwards or skip a state.
	ErrInvalidTransition = xerrors.New("invalid status transition")

	// ErrExternalOperation wraps failures reported by the ingestion
	// operation that processes a batch.
	ErrExternalOperation = xerrors.New("external ingestion operation failed")
)

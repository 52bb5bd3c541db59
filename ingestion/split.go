package ingestion

import "golang.org/x/xerrors"

// Split partitions ids into consecutive groups of at most size elements.
// Every group except possibly the last contains exactly size elements and
// concatenating the groups yields ids. An empty input yields no groups.
func Split(ids []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, xerrors.Errorf("batch size must be positive, got %d: %w", size, ErrInvalidInput)
	}

	groups := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}

		// Copy each group so that stored batches do not alias the
		// caller's slice.
		groups = append(groups, append([]string(nil), ids[start:end]...))
	}
	return groups, nil
}

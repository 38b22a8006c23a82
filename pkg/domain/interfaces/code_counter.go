package interfaces

import "context"

// CodeCounter is the only writer of per-prefix sequence counters
type CodeCounter interface {
	// Next atomically increments the counter of (orgID, prefix) and returns
	// the new value. The first call for a prefix returns 1.
	Next(ctx context.Context, orgID, prefix string) (int64, error)
}

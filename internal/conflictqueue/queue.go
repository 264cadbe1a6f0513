// Package conflictqueue holds paths whose documents were found conflicted
// during reconciliation and now wait for external resolution. The queue is
// an ordered set: pushing a queued path again is a no-op, order is
// first-deferral order.
package conflictqueue

import "docsync-go/internal/engine"

// Queue is the deferred-conflict registration target. It is a superset of
// engine.ConflictQueue; the extra operations back the CLI's listing and
// resolution workflow.
type Queue interface {
	engine.ConflictQueue
	// Pop removes and returns the oldest queued path, or "" when empty.
	Pop() (string, error)
	// List returns all queued paths in deferral order.
	List() ([]string, error)
	// Len returns the number of queued paths.
	Len() (int, error)
}

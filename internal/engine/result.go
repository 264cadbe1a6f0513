package engine

import "errors"

// Outcome is the explicit result space of a reconciliation operation.
// Absence, policy rejection, and conflict deferral are outcomes, not
// errors; only unexpected store-layer failures carry a non-nil error.
type Outcome int

const (
	// Applied means the target side was mutated.
	Applied Outcome = iota
	// Unchanged means both sides were already reconciled; nothing written.
	Unchanged
	// Skipped means the operation declined: absent file, internal file,
	// non-target path, folder collision, or nothing to delete.
	Skipped
	// Deferred means a conflicted document was queued for external
	// resolution instead of being written through. The operation is a
	// success, but nothing was applied.
	Deferred
	// Failed means an unexpected store-layer failure; the accompanying
	// error describes it.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	case Skipped:
		return "skipped"
	case Deferred:
		return "deferred"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrDocumentMissing marks a database-to-storage request for a
	// document that does not exist; the document must exist to be pushed.
	ErrDocumentMissing = errors.New("document missing")

	// ErrContentUnavailable marks metadata whose body could not be
	// resolved: a store-consistency failure, distinct from absence.
	ErrContentUnavailable = errors.New("document content unavailable")
)

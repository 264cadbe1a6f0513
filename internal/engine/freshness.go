package engine

import "time"

// Freshness is the tri-state verdict of comparing the storage side (base)
// of a logical file against the database side (target).
type Freshness int

const (
	// Equivalent means both sides represent the same change.
	Equivalent Freshness = iota
	// BaseIsNewer means the storage side holds the newer content.
	BaseIsNewer
	// TargetIsNewer means the database side holds the newer content.
	TargetIsNewer
)

func (f Freshness) String() string {
	switch f {
	case Equivalent:
		return "equivalent"
	case BaseIsNewer:
		return "base-newer"
	case TargetIsNewer:
		return "target-newer"
	default:
		return "unknown"
	}
}

// timeResolutionMillis is the comparison floor. ZIP-style archive storage
// cannot represent modification times below 2-second precision, so anything
// finer would make a round-trip through such storage look perpetually changed.
const timeResolutionMillis int64 = 2000

// CompareTimes compares two timestamps after truncating both to the
// resolution floor. Pure and total: any two timestamps are comparable.
func CompareTimes(base, target time.Time) Freshness {
	b := base.UnixMilli() / timeResolutionMillis
	t := target.UnixMilli() / timeResolutionMillis
	switch {
	case b == t:
		return Equivalent
	case b > t:
		return BaseIsNewer
	default:
		return TargetIsNewer
	}
}

// compareFileFreshness arbitrates freshness between a storage file and a
// document entry. Absence is a legitimate state on either side: both absent
// is Equivalent, and a single existing side always wins. When both exist,
// the equivalence registry is consulted before the raw time comparison so
// that timestamp pairs already judged to be the same change short-circuit
// to Equivalent.
func (e *Engine) compareFileFreshness(file *StorageFile, entry *MetaEntry) Freshness {
	fileExists := file != nil
	entryExists := entry != nil && !entry.IsDeleted()

	switch {
	case !fileExists && !entryExists:
		return Equivalent
	case fileExists && !entryExists:
		return BaseIsNewer
	case !fileExists && entryExists:
		return TargetIsNewer
	}

	fileTime := file.ModTime
	entryTime := entry.ModTime
	if e.registry != nil && e.registry.IsEquivalent(e.codec.Normalize(file.Path), []time.Time{fileTime, entryTime}) {
		return Equivalent
	}
	return CompareTimes(fileTime, entryTime)
}

package dmmtrie

// ValueStore is the external value log DMMTrie writes through and reads
// back via. The valuestore package's concrete Store implementations
// satisfy this by structural typing; this interface lives here, not in
// valuestore, so DMMTrie can depend on it without importing valuestore
// (which itself imports this package).
type ValueStore interface {
	WriteValue(version uint64, key, value []byte) (Location, error)
	ReadValue(loc Location) ([]byte, error)
}

// VersionIndex is the per-pid version bookkeeping LSVPS.LoadPage consults
// to decide where a historical replay should start. DMMTrie implements it;
// it lives here rather than in lsvps so both
// packages can share one definition without an import cycle (lsvps already
// imports dmmtrie).
type VersionIndex interface {
	// LatestBasePageVersion returns the version of the newest base-page
	// checkpoint written for pid, or ok=false if pid has never been
	// checkpointed.
	LatestBasePageVersion(pid string) (version uint64, ok bool)

	// GetVersionUpperbound returns the smallest delta-freeze PageKey whose
	// version is >= target, or ok=false if none exists.
	GetVersionUpperbound(pid string, target uint64) (PageKey, bool)
}

// PageSource records where LoadPageDiagnostic's result was ultimately
// assembled from: PageQuery is implemented as a read-only diagnostic, and
// PageSource is the piece of that diagnostic naming where the data came
// from.
type PageSource int

const (
	// SourceUnknown is the zero value, never returned by a successful load.
	SourceUnknown PageSource = iota
	// SourceEmpty means the pid has never been written and the target
	// version is 0; LoadPage synthesized a fresh empty page without
	// reading anything. For a later target version a never-written pid
	// yields a nil page instead.
	SourceEmpty
	// SourceActiveDelta means the result needed only the active,
	// not-yet-frozen delta page (plus, possibly, nothing else).
	SourceActiveDelta
	// SourceBuffer means at least one page was found in LSVPS's
	// in-memory not-yet-flushed buffer.
	SourceBuffer
	// SourceIndexFile means at least one page had to be read from a
	// flushed, on-disk index file.
	SourceIndexFile
)

func (s PageSource) String() string {
	switch s {
	case SourceEmpty:
		return "empty"
	case SourceActiveDelta:
		return "active-delta"
	case SourceBuffer:
		return "buffer"
	case SourceIndexFile:
		return "index-file"
	default:
		return "unknown"
	}
}

// PageSnapshot is PageQuery's result: the reconstructed page plus
// diagnostics (delta-chain length, data source).
type PageSnapshot struct {
	Page             *BasePage
	Source           PageSource
	DeltaChainLength int
}

// PageStore is everything DMMTrie needs from LSVPS: store a serialized
// page, load a page at a target version (with diagnostics), and read/write
// the active delta page for a pid. *lsvps.LSVPS satisfies this by
// structural typing (dmmtrie cannot import lsvps, since lsvps already
// imports dmmtrie), so this interface, not a concrete type, is what DMMTrie
// is built against.
type PageStore interface {
	StorePage(key PageKey, data []byte) error
	LoadPage(target PageKey, versions VersionIndex) (*BasePage, error)
	LoadPageDiagnostic(target PageKey, versions VersionIndex) (*BasePage, PageSource, int, error)
	GetActiveDelta(pid string) (*DeltaPage, error)
	StoreActiveDelta(page *DeltaPage) error
}

package dmmtrie

import (
	"bytes"

	"github.com/letus-go/dmmtrie/codec"
)

// PageType distinguishes a base-page checkpoint from a delta-page log.
type PageType uint8

const (
	// Base identifies a checkpointed page.
	Base PageType = 0
	// Delta identifies a delta-page log.
	Delta PageType = 1
)

func (t PageType) String() string {
	if t == Delta {
		return "delta"
	}
	return "base"
}

// PageKey addresses one page: the pid's page at a specific version, of a
// specific type, under a specific trie id.
//
// tid is plumbed everywhere but DMMTrie only ever constructs PageKeys with
// Tid == 0; multi-trie-per-store is not implemented, the field is kept only
// so the wire format and comparator match.
type PageKey struct {
	Version uint64
	Tid     uint64
	Type    PageType
	Pid     string
}

// SentinelKey is the PageKey meaning "this pid's page never existed before",
// the terminus of a delta chain that never reached a base page.
func SentinelKey(pid string) PageKey {
	return PageKey{Version: 0, Tid: 0, Type: Base, Pid: pid}
}

// IsSentinel reports whether k is the "never existed" sentinel for its pid.
func (k PageKey) IsSentinel() bool {
	return k.Version == 0 && k.Type == Base
}

// Compare implements a total order, lexicographic by (pid, version, type,
// tid). Returns <0, 0, or >0, matching sort.Interface / slices.SortFunc
// conventions.
func (k PageKey) Compare(other PageKey) int {
	if c := cmpString(k.Pid, other.Pid); c != 0 {
		return c
	}
	if c := cmpUint64(k.Version, other.Version); c != 0 {
		return c
	}
	if c := cmpUint8(uint8(k.Type), uint8(other.Type)); c != 0 {
		return c
	}
	return cmpUint64(k.Tid, other.Tid)
}

// Equal reports structural equality, independent of Compare's ordering
// (kept distinct so a future change to Compare's tie-breaking can't
// silently change equality semantics elsewhere).
func (k PageKey) Equal(other PageKey) bool {
	return k == other
}

// Less reports whether k sorts strictly before other.
func (k PageKey) Less(other PageKey) bool {
	return k.Compare(other) < 0
}

func cmpString(a, b string) int {
	return bytes.Compare([]byte(a), []byte(b))
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint8(a, b uint8) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// pageKeyWireSize returns the serialized size of k under the PageKey wire
// format: version(8) tid(4, int32) type(1) pid_size(8) pid.
func pageKeyWireSize(k PageKey) int {
	return 8 + 4 + 1 + 8 + len(k.Pid)
}

// MarshalTo writes k in the PageKey wire format used inside IndexBlock and
// LookupBlock mappings. tid is written here as a signed 32-bit int
// (matching existing index files), not the 64-bit unsigned width the
// BasePage header uses for tid; this inconsistency is preserved
// deliberately, not fixed, for wire compatibility.
func (k PageKey) MarshalTo(c *codec.Cursor) error {
	if err := c.PutUint64(k.Version); err != nil {
		return err
	}
	if err := c.PutInt32(int32(k.Tid)); err != nil {
		return err
	}
	if err := c.PutUint8(uint8(k.Type)); err != nil {
		return err
	}
	return c.PutBytesWithSize([]byte(k.Pid))
}

// UnmarshalPageKey reads a PageKey in the wire format from c.
func UnmarshalPageKey(c *codec.Cursor) (PageKey, error) {
	var k PageKey
	version, err := c.GetUint64()
	if err != nil {
		return k, err
	}
	tid, err := c.GetInt32()
	if err != nil {
		return k, err
	}
	typ, err := c.GetUint8()
	if err != nil {
		return k, err
	}
	pid, err := c.GetBytesWithSize()
	if err != nil {
		return k, err
	}
	k = PageKey{
		Version: version,
		Tid:     uint64(uint32(tid)),
		Type:    PageType(typ),
		Pid:     string(pid),
	}
	return k, nil
}

// writeHeaderVersionTid writes a page's own (version, tid) pair using the
// BasePage-header width for tid: uint64, not the int32 the PageKey wire
// format (MarshalTo, above) uses for an *embedded* PageKey such as a delta
// page's last_pagekey. This inconsistency is preserved on purpose: the
// BasePage header writes its own tid as 8 bytes; a DeltaPage has no header
// tid of its own, and any embedded PageKey (last_pagekey) is written with
// MarshalTo's 4-byte signed tid.
func writeHeaderVersionTid(c *codec.Cursor, version, tid uint64) error {
	if err := c.PutUint64(version); err != nil {
		return err
	}
	return c.PutUint64(tid)
}

func readHeaderVersionTid(c *codec.Cursor) (version, tid uint64, err error) {
	version, err = c.GetUint64()
	if err != nil {
		return
	}
	tid, err = c.GetUint64()
	return
}

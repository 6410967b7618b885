package dmmtrie

import (
	"testing"

	"github.com/letus-go/dmmtrie/codec"
)

func TestPageKeyCompareOrdering(t *testing.T) {
	a := PageKey{Pid: "aa", Version: 1, Type: Base}
	b := PageKey{Pid: "aa", Version: 2, Type: Base}
	if !a.Less(b) {
		t.Fatalf("expected %v < %v", a, b)
	}
	if b.Less(a) {
		t.Fatalf("expected %v not < %v", b, a)
	}

	c := PageKey{Pid: "ab", Version: 0, Type: Base}
	if !a.Less(c) {
		t.Fatalf("expected pid ordering to dominate: %v < %v", a, c)
	}

	base := PageKey{Pid: "aa", Version: 1, Type: Base}
	delta := PageKey{Pid: "aa", Version: 1, Type: Delta}
	if !base.Less(delta) {
		t.Fatalf("expected Base to sort before Delta at equal version: %v < %v", base, delta)
	}
}

func TestPageKeyEqual(t *testing.T) {
	a := PageKey{Pid: "x", Version: 5, Type: Delta, Tid: 0}
	b := PageKey{Pid: "x", Version: 5, Type: Delta, Tid: 0}
	if !a.Equal(b) {
		t.Fatalf("expected %v == %v", a, b)
	}
	c := PageKey{Pid: "x", Version: 5, Type: Delta, Tid: 1}
	if a.Equal(c) {
		t.Fatalf("expected %v != %v", a, c)
	}
}

func TestSentinelKey(t *testing.T) {
	s := SentinelKey("deadbeef")
	if !s.IsSentinel() {
		t.Fatalf("SentinelKey result is not IsSentinel: %v", s)
	}
	notSentinel := PageKey{Pid: "deadbeef", Version: 1, Type: Base}
	if notSentinel.IsSentinel() {
		t.Fatalf("version-1 base key wrongly reported as sentinel")
	}
	deltaZero := PageKey{Pid: "deadbeef", Version: 0, Type: Delta}
	if deltaZero.IsSentinel() {
		t.Fatalf("version-0 delta key wrongly reported as sentinel")
	}
}

func TestPageKeyMarshalRoundTrip(t *testing.T) {
	k := PageKey{Version: 0x0102030405060708, Tid: 0, Type: Delta, Pid: "abcd1234"}
	buf := make([]byte, pageKeyWireSize(k))
	w := codec.NewWriter(buf)
	if err := k.MarshalTo(w); err != nil {
		t.Fatalf("MarshalTo: %v", err)
	}

	r := codec.NewReader(buf)
	got, err := UnmarshalPageKey(r)
	if err != nil {
		t.Fatalf("UnmarshalPageKey: %v", err)
	}
	if !got.Equal(k) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, k)
	}
}

// TestPageKeyTidWidthInconsistency pins the deliberately preserved
// inconsistency between MarshalTo's 4-byte signed tid (embedded PageKey wire
// format) and writeHeaderVersionTid's 8-byte unsigned tid (a page's own
// header). A tid beyond int32 range round-trips through the header path but
// truncates through the embedded-PageKey path.
func TestPageKeyTidWidthInconsistency(t *testing.T) {
	const bigTid = uint64(1) << 40

	buf := make([]byte, 8+8)
	w := codec.NewWriter(buf)
	if err := writeHeaderVersionTid(w, 7, bigTid); err != nil {
		t.Fatalf("writeHeaderVersionTid: %v", err)
	}
	r := codec.NewReader(buf)
	_, tid, err := readHeaderVersionTid(r)
	if err != nil {
		t.Fatalf("readHeaderVersionTid: %v", err)
	}
	if tid != bigTid {
		t.Fatalf("header tid path: got %d, want %d", tid, bigTid)
	}

	k := PageKey{Version: 7, Tid: bigTid, Type: Base, Pid: "p"}
	kbuf := make([]byte, pageKeyWireSize(k))
	kw := codec.NewWriter(kbuf)
	if err := k.MarshalTo(kw); err != nil {
		t.Fatalf("MarshalTo: %v", err)
	}
	kr := codec.NewReader(kbuf)
	got, err := UnmarshalPageKey(kr)
	if err != nil {
		t.Fatalf("UnmarshalPageKey: %v", err)
	}
	if got.Tid == bigTid {
		t.Fatalf("expected embedded-PageKey tid to truncate past int32, got exact match %d", got.Tid)
	}
}

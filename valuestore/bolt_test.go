package valuestore

import (
	"path/filepath"
	"testing"

	"github.com/letus-go/dmmtrie"
)

func TestBoltStoreWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer s.Close()

	loc1, err := s.WriteValue(1, []byte("key1"), []byte("value-one"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	loc2, err := s.WriteValue(2, []byte("key2"), []byte("value-two"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if loc2.Offset == loc1.Offset {
		t.Fatalf("expected distinct offsets, got %d == %d", loc1.Offset, loc2.Offset)
	}

	got1, err := s.ReadValue(loc1)
	if err != nil {
		t.Fatalf("ReadValue loc1: %v", err)
	}
	if string(got1) != "value-one" {
		t.Fatalf("got %q, want %q", got1, "value-one")
	}

	got2, err := s.ReadValue(loc2)
	if err != nil {
		t.Fatalf("ReadValue loc2: %v", err)
	}
	if string(got2) != "value-two" {
		t.Fatalf("got %q, want %q", got2, "value-two")
	}
}

func TestBoltStoreReadMissingReturnsKeyNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer s.Close()

	_, err = s.ReadValue(dmmtrie.Location{FileID: 0, Offset: 999, Size: 1})
	if !dmmtrie.IsKeyNotFound(err) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestBoltStoreCounterPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	loc, err := s.WriteValue(1, []byte("k"), []byte("v"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	nextLoc, err := reopened.WriteValue(2, []byte("k2"), []byte("v2"))
	if err != nil {
		t.Fatalf("WriteValue after reopen: %v", err)
	}
	if nextLoc.Offset <= loc.Offset {
		t.Fatalf("expected monotonically increasing offset after reopen, got %d after %d", nextLoc.Offset, loc.Offset)
	}
}

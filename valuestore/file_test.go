package valuestore

import (
	"path/filepath"
	"testing"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.log")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer s.Close()

	loc1, err := s.WriteValue(1, []byte("key1"), []byte("value-one"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	loc2, err := s.WriteValue(2, []byte("key2"), []byte("value-two-longer"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
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
	if string(got2) != "value-two-longer" {
		t.Fatalf("got %q, want %q", got2, "value-two-longer")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.log")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	loc, err := s.WriteValue(1, []byte("k"), []byte("persisted"))
	if err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ReadValue(loc)
	if err != nil {
		t.Fatalf("ReadValue after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("got %q, want %q", got, "persisted")
	}
}

package valuestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/letus-go/dmmtrie"
)

// FileStore is an append-only value log backed by a single file: every
// WriteValue appends a length-prefixed (version, key, value) record and
// returns the record's (file_id, offset, size) location, where file_id is
// always 0 (one file, no rotation; the value log is a single opaque
// append-only store).
//
// Record layout: version u64 | key_size u32 | key | value_size u32 | value.
// size in the returned Location is the byte length of value alone; offset
// points at the start of the value, not the record header, so ReadValue
// never has to re-parse the header.
type FileStore struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenFileStore opens (creating if needed) path as an append-only value log.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return &FileStore{f: f, size: info.Size()}, nil
}

func (s *FileStore) WriteValue(version uint64, key, value []byte) (dmmtrie.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := make([]byte, 8+4+len(key)+4)
	binary.LittleEndian.PutUint64(header[0:8], version)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(key)))
	copy(header[12:], key)
	binary.LittleEndian.PutUint32(header[12+len(key):], uint32(len(value)))

	if _, err := s.f.WriteAt(header, s.size); err != nil {
		return dmmtrie.Location{}, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	valueOffset := s.size + int64(len(header))
	if _, err := s.f.WriteAt(value, valueOffset); err != nil {
		return dmmtrie.Location{}, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	s.size = valueOffset + int64(len(value))

	return dmmtrie.Location{FileID: 0, Offset: uint64(valueOffset), Size: uint64(len(value))}, nil
}

func (s *FileStore) ReadValue(loc dmmtrie.Location) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.FileID != 0 {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, fmt.Errorf("valuestore: unknown file_id %d", loc.FileID))
	}
	buf := make([]byte, loc.Size)
	if _, err := s.f.ReadAt(buf, int64(loc.Offset)); err != nil && err != io.EOF {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return buf, nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return nil
}

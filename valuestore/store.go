// Package valuestore implements the value log as an external collaborator:
// an append-only store mapping (version, key, value) writes to an opaque
// (file_id, offset, size) location, and reading that location back to the
// original bytes.
package valuestore

import "github.com/letus-go/dmmtrie"

// Store is the VDLS interface DMMTrie writes values through and reads them
// back via. Implementations need not interpret version or key; both are
// accepted only so a backend can choose to index or log by them.
type Store interface {
	WriteValue(version uint64, key, value []byte) (dmmtrie.Location, error)
	ReadValue(loc dmmtrie.Location) ([]byte, error)
	Close() error
}

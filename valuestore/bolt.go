package valuestore

import (
	"encoding/binary"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"

	"github.com/letus-go/dmmtrie"
)

var boltValueBucket = []byte("values")

// BoltStore is a Store backed by a single bbolt bucket, keyed by an 8-byte
// big-endian offset counter (the closest bbolt-native analogue of an
// append-only log returning (file_id, offset, size)). file_id is always 0;
// offset is the counter value at write time, size is unused on read (bbolt
// records are self-delimited) but still tracked so Location round-trips the
// same shape FileStore produces.
type BoltStore struct {
	db      *bolt.DB
	counter uint64
}

// OpenBoltStore opens (creating if needed) path as a bbolt-backed value log.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{NoFreelistSync: true})
	if err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	var next uint64
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltValueBucket)
		if err != nil {
			return err
		}
		if k, _ := bucket.Cursor().Last(); k != nil {
			next = binary.BigEndian.Uint64(k) + 1
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return &BoltStore{db: db, counter: next}, nil
}

func (s *BoltStore) WriteValue(version uint64, key, value []byte) (dmmtrie.Location, error) {
	offset := atomic.AddUint64(&s.counter, 1) - 1
	record := make([]byte, 8+4+len(key)+len(value))
	binary.LittleEndian.PutUint64(record[0:8], version)
	binary.LittleEndian.PutUint32(record[8:12], uint32(len(key)))
	copy(record[12:12+len(key)], key)
	copy(record[12+len(key):], value)

	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, offset)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltValueBucket).Put(k, record)
	})
	if err != nil {
		return dmmtrie.Location{}, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return dmmtrie.Location{FileID: 0, Offset: offset, Size: uint64(len(value))}, nil
}

func (s *BoltStore) ReadValue(loc dmmtrie.Location) ([]byte, error) {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, loc.Offset)

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		record := tx.Bucket(boltValueBucket).Get(k)
		if record == nil {
			return dmmtrie.NewError(dmmtrie.ErrKeyNotFound)
		}
		keyLen := binary.LittleEndian.Uint32(record[8:12])
		value := record[12+keyLen:]
		out = append(out[:0], value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return nil
}

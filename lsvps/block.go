package lsvps

import (
	"github.com/letus-go/dmmtrie"
	"github.com/letus-go/dmmtrie/codec"
)

// BlockSize is the fixed on-disk size, in bytes, of every IndexBlock and
// LookupBlock.
const BlockSize = 12288

// assumedMaxPidLen bounds how many entries MappingsPerBlock assumes fit in
// one block. pids are even-length nibble prefixes of application keys, so
// in practice they stay far short of this; MarshalBinary still verifies the
// real encoded size against BlockSize rather than trusting the estimate.
const assumedMaxPidLen = 128

// mappingFixedOverhead is every byte of a serialized (PageKey, uint64) pair
// except the variable-length pid: version(8) + tid(4) + type(1) + pid_size(8) + value(8).
const mappingFixedOverhead = 8 + 4 + 1 + 8 + 8

// MappingsPerBlock is the capacity floor((12288 - 4) / sizeof(Mapping)),
// where 4 is the block's u32 count header, adapted to this module's
// variable-length pid encoding by assuming a conservative max pid length
// rather than a fixed struct size.
const MappingsPerBlock = (BlockSize - 4) / (mappingFixedOverhead + assumedMaxPidLen)

// entry is the (PageKey, uint64) pair shared by IndexBlock mappings
// (PageKey -> file offset of the page) and LookupBlock entries
// (first PageKey of an IndexBlock -> that IndexBlock's offset).
type entry struct {
	Key   dmmtrie.PageKey
	Value uint64
}

func marshalBlock(entries []entry) ([]byte, error) {
	if len(entries) > MappingsPerBlock {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}
	buf := make([]byte, BlockSize)
	c := codec.NewWriter(buf)
	if err := c.PutUint32(uint32(len(entries))); err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
	}
	for _, e := range entries {
		if err := e.Key.MarshalTo(c); err != nil {
			return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
		}
		if err := c.PutUint64(e.Value); err != nil {
			return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
		}
	}
	if err := c.PadTo(BlockSize); err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
	}
	return buf, nil
}

func unmarshalBlock(data []byte) ([]entry, error) {
	if len(data) != BlockSize {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}
	c := codec.NewReader(data)
	count, err := c.GetUint32()
	if err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
	}
	if count > MappingsPerBlock {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}
	entries := make([]entry, 0, count)
	for i := 0; i < int(count); i++ {
		key, err := dmmtrie.UnmarshalPageKey(c)
		if err != nil {
			return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
		}
		value, err := c.GetUint64()
		if err != nil {
			return nil, dmmtrie.WrapError(dmmtrie.ErrCorruptedBlock, err)
		}
		entries = append(entries, entry{Key: key, Value: value})
	}
	return entries, nil
}

// IndexBlock is a sorted-by-PageKey (PageKey -> page file offset) mapping
// table.
type IndexBlock struct {
	Mappings []entry
}

// AddMapping appends a (pagekey, location) pair. Callers are responsible for
// keeping a block's mappings sorted ascending; the buffer partitioning in
// buffer.go adds them in already-sorted order.
func (b *IndexBlock) AddMapping(key dmmtrie.PageKey, location uint64) bool {
	if len(b.Mappings) >= MappingsPerBlock {
		return false
	}
	b.Mappings = append(b.Mappings, entry{Key: key, Value: location})
	return true
}

// MarshalBinary serializes b to exactly BlockSize bytes.
func (b *IndexBlock) MarshalBinary() ([]byte, error) {
	return marshalBlock(b.Mappings)
}

// UnmarshalIndexBlock reads an IndexBlock from exactly BlockSize bytes.
func UnmarshalIndexBlock(data []byte) (*IndexBlock, error) {
	entries, err := unmarshalBlock(data)
	if err != nil {
		return nil, err
	}
	return &IndexBlock{Mappings: entries}, nil
}

// Lookup linear-scans for an exact PageKey match.
func (b *IndexBlock) Lookup(key dmmtrie.PageKey) (uint64, bool) {
	for _, m := range b.Mappings {
		if m.Key.Equal(key) {
			return m.Value, true
		}
	}
	return 0, false
}

// LookupBlock is the terminal block of an index file: (first PageKey of
// each IndexBlock -> that IndexBlock's byte offset), sorted ascending.
type LookupBlock struct {
	Entries []entry
}

// AddEntry appends a (first_pagekey, index_block_offset) pair.
func (b *LookupBlock) AddEntry(firstKey dmmtrie.PageKey, offset uint64) bool {
	if len(b.Entries) >= MappingsPerBlock {
		return false
	}
	b.Entries = append(b.Entries, entry{Key: firstKey, Value: offset})
	return true
}

// MarshalBinary serializes b to exactly BlockSize bytes.
func (b *LookupBlock) MarshalBinary() ([]byte, error) {
	return marshalBlock(b.Entries)
}

// UnmarshalLookupBlock reads a LookupBlock from exactly BlockSize bytes.
func UnmarshalLookupBlock(data []byte) (*LookupBlock, error) {
	entries, err := unmarshalBlock(data)
	if err != nil {
		return nil, err
	}
	return &LookupBlock{Entries: entries}, nil
}

// UpperBoundOffset returns the offset of the greatest entry whose Key is
// <= target, and whether such an entry exists. Entries are assumed sorted
// ascending by Key.
func (b *LookupBlock) UpperBoundOffset(target dmmtrie.PageKey) (uint64, bool) {
	// Entries lists are short (bounded by MappingsPerBlock) in practice, and
	// a linear scan keeping the last candidate <= target is both simple and
	// exactly mirrors "upper_bound - 1" without a separate binary search
	// helper for a type this small.
	var (
		found bool
		best  uint64
	)
	for _, e := range b.Entries {
		if e.Key.Compare(target) <= 0 {
			best = e.Value
			found = true
			continue
		}
		break
	}
	return best, found
}

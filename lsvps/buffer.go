package lsvps

import (
	"os"
	"sort"

	"github.com/letus-go/dmmtrie"
)

// flushLocked implements the Flush algorithm: partition the buffer into
// index blocks, build a lookup block, and write everything to a new index
// file. Caller holds l.mu.
func (l *LSVPS) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	// Pages are written to disk in buffer-insertion order; mappings are
	// built from a separate PageKey-sorted view so IndexBlocks cover the
	// buffer contiguously in ascending PageKey order, each mapping
	// carrying the page's insertion-order offset.
	sorted := make([]int, len(l.buffer))
	for i := range sorted {
		sorted[i] = i
	}
	sort.Slice(sorted, func(a, b int) bool {
		return l.buffer[sorted[a]].Key.Less(l.buffer[sorted[b]].Key)
	})

	path := indexFilePath(l.indexFileDir, l.nextIndexFileNum)
	f, err := os.Create(path)
	if err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	defer f.Close()

	for _, p := range l.buffer {
		if _, err := f.Write(p.Data); err != nil {
			return dmmtrie.WrapError(dmmtrie.ErrIO, err)
		}
	}
	pagesBytes := int64(len(l.buffer)) * dmmtrie.PageSize

	var indexBlocks []*IndexBlock
	var cur *IndexBlock
	for _, idx := range sorted {
		p := l.buffer[idx]
		if cur == nil || len(cur.Mappings) >= MappingsPerBlock {
			cur = &IndexBlock{}
			indexBlocks = append(indexBlocks, cur)
		}
		cur.AddMapping(p.Key, uint64(idx)*dmmtrie.PageSize)
	}

	lookup := &LookupBlock{}
	for i, block := range indexBlocks {
		offset := pagesBytes + int64(i)*BlockSize
		lookup.AddEntry(block.Mappings[0].Key, uint64(offset))
		data, err := block.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return dmmtrie.WrapError(dmmtrie.ErrIO, err)
		}
	}

	lookupData, err := lookup.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := f.Write(lookupData); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}

	min := l.buffer[sorted[0]].Key
	max := l.buffer[sorted[len(sorted)-1]].Key
	l.indexFiles = append(l.indexFiles, &IndexFile{Min: min, Max: max, Path: path})
	l.nextIndexFileNum++
	l.buffer = l.buffer[:0]
	return nil
}

// Package lsvps implements the log-structured versioned page store: an
// in-memory page buffer, an append-only index-file writer with a two-level
// on-disk index, page lookup with delta replay, and the active delta-page
// cache.
package lsvps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/letus-go/dmmtrie"
	"github.com/letus-go/dmmtrie/lsvps/mmap"
)

// indexFileSubdir is the directory under an LSVPS's root holding every
// flushed index file: "<index_file_path>/IndexFile/index_<N>.dat".
const indexFileSubdir = "IndexFile"

// deltaCacheSubdir holds the active delta-page cache's disk-spill files.
const deltaCacheSubdir = "DeltaCache"

// IndexFile is the registry entry for one flushed, immutable index file: the
// PageKey range it covers and its path.
//
// min/max are the smallest/largest PageKey (by PageKey's total order) among
// its buffered pages, not literally the first/last page inserted: index
// blocks must be contiguous in PageKey order for pageLookup's range scan to
// work at all (find the IndexFile where min <= key <= max), so min/max are
// defined as the Compare-order extremes here.
type IndexFile struct {
	Min  dmmtrie.PageKey
	Max  dmmtrie.PageKey
	Path string

	mapped *mmap.Map
}

// covers reports whether key falls within [f.Min, f.Max] under PageKey's
// total order: find the IndexFile where min_pagekey <= key <= max_pagekey.
func (f *IndexFile) covers(key dmmtrie.PageKey) bool {
	return f.Min.Compare(key) <= 0 && key.Compare(f.Max) <= 0
}

// ensureMapped memory-maps f.Path read-only the first time it is needed.
// Index files are written once by Flush and never mutated afterward, so the
// mapping is opened once and held for the file's lifetime rather than
// remapped per read.
func (f *IndexFile) ensureMapped() error {
	if f.mapped != nil {
		return nil
	}
	m, err := mmap.MapFile(f.Path, false)
	if err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	if err := m.AdviseSequential(); err != nil {
		// Advisory only; a failure here doesn't affect correctness.
		_ = err
	}
	f.mapped = m
	return nil
}

// readAt copies length bytes starting at offset out of the mapping,
// mapping the file on first use. The returned slice is a copy, safe to
// retain past the mapping's lifetime.
func (f *IndexFile) readAt(offset int64, length int) ([]byte, error) {
	if err := f.ensureMapped(); err != nil {
		return nil, err
	}
	data := f.mapped.Data()
	if offset < 0 || length < 0 || offset+int64(length) > int64(len(data)) {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}
	out := make([]byte, length)
	copy(out, data[offset:offset+int64(length)])
	return out, nil
}

// size returns the mapped file's total length, mapping it on first use.
func (f *IndexFile) size() (int64, error) {
	if err := f.ensureMapped(); err != nil {
		return 0, err
	}
	return int64(len(f.mapped.Data())), nil
}

// close unmaps f, if mapped. Safe to call on an unmapped file.
func (f *IndexFile) close() error {
	if f.mapped == nil {
		return nil
	}
	err := f.mapped.Close()
	f.mapped = nil
	if err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return nil
}

func indexFilePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("index_%d.dat", n))
}

// discoverIndexFiles lists <indexFileDir>/index_*.dat, recovers each file's
// PageKey range from its trailing LookupBlock, and rebuilds the registry in
// ascending file-number order, so an LSVPS reopened against an existing
// directory picks its lookups back up where a prior process left off.
func (l *LSVPS) discoverIndexFiles() error {
	entries, err := os.ReadDir(l.indexFileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "index_") || !strings.HasSuffix(name, ".dat") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "index_"), ".dat")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(l.indexFileDir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	for _, f := range files {
		idxFile, err := recoverIndexFileRange(f.path)
		if err != nil {
			return err
		}
		l.indexFiles = append(l.indexFiles, idxFile)
		if f.n+1 > l.nextIndexFileNum {
			l.nextIndexFileNum = f.n + 1
		}
	}
	return nil
}

// recoverIndexFileRange reads path's trailing LookupBlock and recovers the
// file's min/max PageKey: min is the first entry's key (the first
// IndexBlock's smallest mapping), max is read from the last IndexBlock's
// last mapping.
func recoverIndexFileRange(path string) (*IndexFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	if info.Size() < BlockSize {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}

	lookupBuf := make([]byte, BlockSize)
	if _, err := f.ReadAt(lookupBuf, info.Size()-BlockSize); err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	lookup, err := UnmarshalLookupBlock(lookupBuf)
	if err != nil {
		return nil, err
	}
	if len(lookup.Entries) == 0 {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}

	lastEntry := lookup.Entries[len(lookup.Entries)-1]
	indexBuf := make([]byte, BlockSize)
	if _, err := f.ReadAt(indexBuf, int64(lastEntry.Value)); err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	lastIndexBlock, err := UnmarshalIndexBlock(indexBuf)
	if err != nil {
		return nil, err
	}
	if len(lastIndexBlock.Mappings) == 0 {
		return nil, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}

	return &IndexFile{
		Min:  lookup.Entries[0].Key,
		Max:  lastIndexBlock.Mappings[len(lastIndexBlock.Mappings)-1].Key,
		Path: path,
	}, nil
}

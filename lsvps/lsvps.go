package lsvps

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/letus-go/dmmtrie"
)

// bufferedPage is one not-yet-flushed page sitting in LSVPS's in-memory
// buffer, serialized and deep-copied at StorePage time since the trie
// reuses its in-memory copy.
type bufferedPage struct {
	Key  dmmtrie.PageKey
	Data []byte
}

// LSVPS is the log-structured versioned page store: an in-memory page
// buffer, the registry of flushed index files, and the active delta-page
// cache.
type LSVPS struct {
	mu sync.Mutex

	dir          string
	indexFileDir string
	cfg          dmmtrie.Config

	buffer           []bufferedPage
	indexFiles       []*IndexFile
	nextIndexFileNum int

	cache *ActiveDeltaPageCache
}

// Open opens (creating if needed) an LSVPS rooted at dir, rebuilding the
// index-file registry from whatever is already on disk, since LoadPage's
// lookup algorithm assumes this registry exists.
func Open(dir string, cfg dmmtrie.Config) (*LSVPS, error) {
	indexFileDir := filepath.Join(dir, indexFileSubdir)
	if err := os.MkdirAll(indexFileDir, 0o755); err != nil {
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	deltaDir := filepath.Join(dir, deltaCacheSubdir)

	l := &LSVPS{
		dir:          dir,
		indexFileDir: indexFileDir,
		cfg:          cfg,
		cache:        NewActiveDeltaPageCache(deltaDir, cfg.MaxDeltaCacheSize),
	}
	if err := l.discoverIndexFiles(); err != nil {
		return nil, err
	}
	return l, nil
}

// Cache returns the active delta-page cache DMMTrie reads/writes active
// deltas through.
func (l *LSVPS) Cache() *ActiveDeltaPageCache {
	return l.cache
}

// GetActiveDelta returns pid's active (not yet frozen) delta page, or nil
// if none exists yet, satisfying dmmtrie.PageStore. DMMTrie and LoadPage
// must observe the same active delta, so this simply delegates to the one
// cache LoadPage itself consults.
func (l *LSVPS) GetActiveDelta(pid string) (*dmmtrie.DeltaPage, error) {
	return l.cache.Get(pid)
}

// StoreActiveDelta installs page as pid's active delta, satisfying
// dmmtrie.PageStore.
func (l *LSVPS) StoreActiveDelta(page *dmmtrie.DeltaPage) error {
	return l.cache.Store(page)
}

// StorePage deep-copies page's serialized form and appends it to the
// in-memory buffer, flushing to a new index file once the buffer reaches
// its configured capacity.
func (l *LSVPS) StorePage(key dmmtrie.PageKey, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	l.buffer = append(l.buffer, bufferedPage{Key: key, Data: cp})

	if len(l.buffer) >= l.cfg.MaxBufferSize {
		return l.flushLocked()
	}
	return nil
}

// Flush forces a flush of the in-memory buffer to a new index file, even
// if it has not reached capacity (used at shutdown).
func (l *LSVPS) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// Close flushes any buffered pages and the active delta-page cache to
// disk, and unmaps every index file mapping opened by LoadPage.
func (l *LSVPS) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	if err := l.cache.FlushToDisk(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.indexFiles {
		if err := f.close(); err != nil {
			return err
		}
	}
	return nil
}

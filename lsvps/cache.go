package lsvps

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"

	"github.com/letus-go/dmmtrie"
)

// ActiveDeltaPageCache is the LRU-with-disk-spill over active (not yet
// frozen into an index file) delta pages, keyed by pid.
//
// Built on a plain container/list + map LRU rather than a third-party cache
// library, since this is a small, single-writer-owned structure where a
// hand-rolled intrusive list is the natural fit.
type ActiveDeltaPageCache struct {
	mu      sync.Mutex
	dir     string
	maxSize int
	ll      *list.List
	index   map[string]*list.Element
}

type cacheEntry struct {
	pid  string
	page *dmmtrie.DeltaPage
}

// NewActiveDeltaPageCache creates a cache that spills evicted pages under
// dir and holds at most maxSize pages in memory.
func NewActiveDeltaPageCache(dir string, maxSize int) *ActiveDeltaPageCache {
	return &ActiveDeltaPageCache{
		dir:     dir,
		maxSize: maxSize,
		ll:      list.New(),
		index:   make(map[string]*list.Element),
	}
}

func (c *ActiveDeltaPageCache) deltaPath(pid string) string {
	return filepath.Join(c.dir, pid+".delta")
}

// Get returns the cached active delta for pid, touching its LRU position,
// falling back to a disk read. A nil, nil result means pid has no active
// delta yet; the caller creates a fresh one.
func (c *ActiveDeltaPageCache) Get(pid string) (*dmmtrie.DeltaPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[pid]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(*cacheEntry).page, nil
	}

	page, err := c.readFromDisk(pid)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}
	c.insertLocked(pid, page)
	return page, nil
}

// Store installs page as pid's active delta, touching LRU position, and
// evicts the LRU tail to disk if the cache is now over capacity.
func (c *ActiveDeltaPageCache) Store(page *dmmtrie.DeltaPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pid := page.Key.Pid
	if elem, ok := c.index[pid]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.page = page
		c.ll.MoveToFront(elem)
		return nil
	}
	return c.insertLocked(pid, page)
}

func (c *ActiveDeltaPageCache) insertLocked(pid string, page *dmmtrie.DeltaPage) error {
	elem := c.ll.PushFront(&cacheEntry{pid: pid, page: page})
	c.index[pid] = elem
	if c.ll.Len() <= c.maxSize {
		return nil
	}
	tail := c.ll.Back()
	evicted := tail.Value.(*cacheEntry)
	if err := c.writeToDisk(evicted.pid, evicted.page); err != nil {
		return err
	}
	c.ll.Remove(tail)
	delete(c.index, evicted.pid)
	return nil
}

func (c *ActiveDeltaPageCache) readFromDisk(pid string) (*dmmtrie.DeltaPage, error) {
	data, err := os.ReadFile(c.deltaPath(pid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	key := dmmtrie.PageKey{Version: 0, Tid: 0, Type: dmmtrie.Delta, Pid: pid}
	return dmmtrie.UnmarshalDeltaPage(data, key)
}

func (c *ActiveDeltaPageCache) writeToDisk(pid string, page *dmmtrie.DeltaPage) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	data, err := page.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.deltaPath(pid), data, 0o644); err != nil {
		return dmmtrie.WrapError(dmmtrie.ErrIO, err)
	}
	return nil
}

// FlushToDisk writes every currently cached delta page to disk, matching
// the behavior expected on shutdown: flush all cached pages to disk.
func (c *ActiveDeltaPageCache) FlushToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry)
		if err := c.writeToDisk(entry.pid, entry.page); err != nil {
			return err
		}
	}
	return nil
}

package dmmtrie

import (
	"container/list"
	"sort"
)

// pidState is the per-pid bookkeeping (page_versions): current version and
// latest checkpointed version, plus the freeze-version index
// GetVersionUpperbound binary-searches (an ascending list of every version
// at which that pid's active delta was frozen, built explicitly here as
// freezeVersions).
type pidState struct {
	currentVersion    uint64
	latestBaseVersion uint64
	haveBase          bool
	freezeVersions    []uint64 // ascending; one entry per delta freeze
}

// trieCacheEntry is one LRU slot in Trie's BasePage cache.
type trieCacheEntry struct {
	pid  string
	page *BasePage
}

// trieCache is the LRU of BasePage (holds at most max_cache_size entries;
// policy: evict LRU, delete the page), built on the same container/list
// shape as lsvps.ActiveDeltaPageCache. It is the trie's own performance
// cache, not a correctness-bearing store: an evicted page is simply
// dropped, and a later Put/Get for that pid reconstructs it via
// PageStore.LoadPage's delta replay.
type trieCache struct {
	maxSize int
	ll      *list.List
	index   map[string]*list.Element
}

func newTrieCache(maxSize int) *trieCache {
	return &trieCache{maxSize: maxSize, ll: list.New(), index: make(map[string]*list.Element)}
}

func (c *trieCache) get(pid string) (*BasePage, bool) {
	elem, ok := c.index[pid]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(*trieCacheEntry).page, true
}

func (c *trieCache) put(pid string, page *BasePage) {
	if elem, ok := c.index[pid]; ok {
		elem.Value.(*trieCacheEntry).page = page
		c.ll.MoveToFront(elem)
		return
	}
	elem := c.ll.PushFront(&trieCacheEntry{pid: pid, page: page})
	c.index[pid] = elem
	if c.ll.Len() <= c.maxSize {
		return
	}
	tail := c.ll.Back()
	delete(c.index, tail.Value.(*trieCacheEntry).pid)
	c.ll.Remove(tail)
}

// Trie is the DMMTrie operator: Put/Get over pages stored in a PageStore,
// values stored in a ValueStore, with a BasePage LRU and per-pid
// version/freeze bookkeeping.
//
// Trie is single-threaded and cooperative: no mutex guards its fields,
// because Put and Get are documented as unsafe to call concurrently on the
// same instance, and VersionIndex methods below are invoked re-entrantly
// from inside PageStore.LoadPage while a Put is in progress (a lock here
// would deadlock that re-entrant call, not just be redundant).
type Trie struct {
	cfg    Config
	store  PageStore
	values ValueStore

	currentVersion uint64
	haveVersion    bool

	pidStates map[string]*pidState
	cache     *trieCache
}

// New creates a Trie storing pages in store, with values appended to and
// read from values. DMMTrie always addresses pages with PageKey.Tid == 0;
// multi-trie-per-store is not implemented, so Trie carries no tid of its
// own.
func New(cfg Config, store PageStore, values ValueStore) *Trie {
	return &Trie{
		cfg:       cfg,
		store:     store,
		values:    values,
		pidStates: make(map[string]*pidState),
		cache:     newTrieCache(cfg.MaxCacheSize),
	}
}

func (t *Trie) pidState(pid string) *pidState {
	pi, ok := t.pidStates[pid]
	if !ok {
		pi = &pidState{}
		t.pidStates[pid] = pi
	}
	return pi
}

// LatestBasePageVersion implements VersionIndex.
func (t *Trie) LatestBasePageVersion(pid string) (uint64, bool) {
	pi, ok := t.pidStates[pid]
	if !ok || !pi.haveBase {
		return 0, false
	}
	return pi.latestBaseVersion, true
}

// GetVersionUpperbound implements VersionIndex: the smallest freeze
// version >= target, found by binary search over pid's ascending
// freezeVersions list.
func (t *Trie) GetVersionUpperbound(pid string, target uint64) (PageKey, bool) {
	pi, ok := t.pidStates[pid]
	if !ok || len(pi.freezeVersions) == 0 {
		return PageKey{}, false
	}
	idx := sort.Search(len(pi.freezeVersions), func(i int) bool { return pi.freezeVersions[i] >= target })
	if idx == len(pi.freezeVersions) {
		return PageKey{}, false
	}
	return PageKey{Version: pi.freezeVersions[idx], Type: Delta, Pid: pid}, true
}

// loadOrCreatePage returns pid's page at oldKey.Version, preferring Trie's
// own BasePage LRU before falling back to PageStore.LoadPage's replay.
func (t *Trie) loadOrCreatePage(pid string, oldKey PageKey) (*BasePage, error) {
	if page, ok := t.cache.get(pid); ok && page.Key.Version == oldKey.Version {
		return page, nil
	}
	page, err := t.store.LoadPage(oldKey, t)
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = &BasePage{Key: oldKey}
	}
	return page, nil
}

// Put appends the value, then walks from the deepest pid (the longest
// even-length prefix of key) up to the root pid (""), updating one page
// per level and propagating each page's new root hash to the next level up
// as that level's child hash.
func (t *Trie) Put(version uint64, key, value []byte) (bool, error) {
	if t.haveVersion && version < t.currentVersion {
		return false, nil
	}

	loc, err := t.values.WriteValue(version, key, value)
	if err != nil {
		return false, err
	}

	keyStr := string(key)
	n := len(keyStr)
	evenLen := n - (n % 2)

	var propagated Hash
	for i := evenLen; i >= 0; i -= 2 {
		pid := keyStr[:i]
		end := i + 2
		if end > n {
			end = n
		}
		nibbles := keyStr[i:end]

		pi := t.pidState(pid)
		oldKey := PageKey{Version: pi.currentVersion, Type: Base, Pid: pid}

		page, err := t.loadOrCreatePage(pid, oldKey)
		if err != nil {
			return false, err
		}

		delta, err := t.store.GetActiveDelta(pid)
		if err != nil {
			return false, err
		}
		if delta == nil {
			delta = NewDeltaPage(pid, version, SentinelKey(pid))
		}
		delta.Key = PageKey{Version: version, Type: Delta, Pid: pid}

		newHash, err := applyBasePageUpdate(page, version, loc, keyStr, value, nibbles, propagated, delta)
		if err != nil {
			return false, err
		}

		page.DUpdateCount++
		if int(page.DUpdateCount) >= t.cfg.Td {
			data, err := delta.MarshalBinary()
			if err != nil {
				return false, err
			}
			if err := t.store.StorePage(delta.Key, data); err != nil {
				return false, err
			}
			pi.freezeVersions = append(pi.freezeVersions, version)
			delta = NewDeltaPage(pid, version, delta.Key)
			page.DUpdateCount = 0
		}
		if err := t.store.StoreActiveDelta(delta); err != nil {
			return false, err
		}

		page.Key = PageKey{Version: version, Type: Base, Pid: pid}
		page.BUpdateCount++
		if int(page.BUpdateCount) >= t.cfg.Tb {
			data, err := page.MarshalBinary()
			if err != nil {
				return false, err
			}
			if err := t.store.StorePage(page.Key, data); err != nil {
				return false, err
			}
			pi.latestBaseVersion = version
			pi.haveBase = true
			page.BUpdateCount = 0
		}

		pi.currentVersion = version
		t.cache.put(pid, page)

		propagated = newHash
	}

	t.currentVersion = version
	t.haveVersion = true
	return true, nil
}

// Get looks up key at version. A missing key is not an error: it is the
// routine, recovered case, so Get returns a nil slice rather than surfacing
// *Error(ErrKeyNotFound) to the caller.
func (t *Trie) Get(version uint64, key []byte) ([]byte, error) {
	keyStr := string(key)
	n := len(keyStr)
	pid := keyStr[:n-(n%2)]

	target := PageKey{Version: version, Type: Base, Pid: pid}
	page, err := t.store.LoadPage(target, t)
	if err != nil {
		return nil, err
	}
	if page == nil || page.Root == nil {
		return nil, nil
	}

	var leaf *LeafNode
	if page.Root.Kind == KindLeaf {
		leaf = page.Root.Leaf
	} else {
		if n%2 == 0 {
			return nil, nil
		}
		idx, err := nibbleValue(keyStr[n-1])
		if err != nil {
			return nil, err
		}
		child := page.Root.Index.ChildNodes[idx]
		if child == nil || child.Kind != KindLeaf {
			return nil, nil
		}
		leaf = child.Leaf
	}
	if leaf == nil {
		return nil, nil
	}
	return t.values.ReadValue(leaf.Location)
}

// PageQuery is a read-only diagnostic: the reconstructed page at
// pid/version plus where it came from.
func (t *Trie) PageQuery(pid string, version uint64) (PageSnapshot, error) {
	target := PageKey{Version: version, Type: Base, Pid: pid}
	page, source, chainLen, err := t.store.LoadPageDiagnostic(target, t)
	if err != nil {
		return PageSnapshot{}, err
	}
	return PageSnapshot{Page: page, Source: source, DeltaChainLength: chainLen}, nil
}

// nibbleValue converts one hex-digit key byte to its 0..15 value.
func nibbleValue(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	default:
		return 0, NewError(ErrCorruptedBlock)
	}
}

// applyBasePageUpdate applies one of the three update cases (by nibble
// count: 0, 1, or 2), mutating page in place and appending the resulting
// DeltaItem(s) to delta. It also synthesizes a fresh page shape when
// page.Root is nil or the wrong kind for nibbles' length: a missing root or
// child is simply created on demand, producing exactly the shapes a
// brand-new pid needs (a bare LeafNode for an empty nibbles, an IndexNode
// with one LeafNode child for one nibble, an IndexNode with one IndexNode
// child for two nibbles) without a separate synthesis step.
func applyBasePageUpdate(page *BasePage, version uint64, loc Location, keyStr string, value []byte, nibbles string, propagated Hash, delta *DeltaPage) (Hash, error) {
	switch len(nibbles) {
	case 0:
		if page.Root == nil || page.Root.Kind != KindLeaf {
			page.Root = NewLeaf(NewLeafNode(version, keyStr))
		}
		hash := H([]byte(keyStr), value)
		page.Root.Leaf.Update(version, loc, hash)
		delta.Append(DeltaItem{
			LocationInPage: 0, IsLeaf: true, Version: version, Hash: hash,
			FileID: loc.FileID, Offset: loc.Offset, Size: loc.Size,
		})
		return hash, nil

	case 1:
		i, err := nibbleValue(nibbles[0])
		if err != nil {
			return Hash{}, err
		}
		if page.Root == nil || page.Root.Kind != KindIndex {
			page.Root = NewIndex(NewIndexNode(version))
		}
		root := page.Root.Index
		child := root.ChildNodes[i]
		if child == nil || child.Kind != KindLeaf {
			child = NewLeaf(NewLeafNode(version, keyStr))
			root.ChildNodes[i] = child
		}
		hash := H([]byte(keyStr), value)
		child.Leaf.Update(version, loc, hash)
		delta.Append(DeltaItem{
			LocationInPage: uint8(i + 1), IsLeaf: true, Version: version, Hash: hash,
			FileID: loc.FileID, Offset: loc.Offset, Size: loc.Size,
		})
		if err := root.SetChildSlot(i, version, hash); err != nil {
			return Hash{}, err
		}
		root.Version = version
		root.RecomputeHash()
		delta.Append(DeltaItem{
			LocationInPage: 0, IsLeaf: false, Version: version, Hash: root.Hash,
			ChildIndex: uint8(i), ChildHash: hash,
		})
		return root.Hash, nil

	case 2:
		i, err := nibbleValue(nibbles[0])
		if err != nil {
			return Hash{}, err
		}
		j, err := nibbleValue(nibbles[1])
		if err != nil {
			return Hash{}, err
		}
		if page.Root == nil || page.Root.Kind != KindIndex {
			page.Root = NewIndex(NewIndexNode(version))
		}
		root := page.Root.Index
		child := root.ChildNodes[i]
		if child == nil || child.Kind != KindIndex {
			child = NewIndex(NewIndexNode(version))
			root.ChildNodes[i] = child
		}
		if err := child.Index.SetChildSlot(j, version, propagated); err != nil {
			return Hash{}, err
		}
		child.Index.Version = version
		child.Index.RecomputeHash()
		delta.Append(DeltaItem{
			LocationInPage: uint8(i + 1), IsLeaf: false, Version: version, Hash: child.Index.Hash,
			ChildIndex: uint8(j), ChildHash: propagated,
		})
		if err := root.SetChildSlot(i, version, child.Index.Hash); err != nil {
			return Hash{}, err
		}
		root.Version = version
		root.RecomputeHash()
		delta.Append(DeltaItem{
			LocationInPage: 0, IsLeaf: false, Version: version, Hash: root.Hash,
			ChildIndex: uint8(i), ChildHash: child.Index.Hash,
		})
		return root.Hash, nil

	default:
		return Hash{}, NewError(ErrCorruptedBlock)
	}
}

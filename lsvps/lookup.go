package lsvps

import (
	"github.com/letus-go/dmmtrie"
)

// LoadPage reconstructs pid's page at target.Version by replaying delta
// pages over the most recent base page at or before it. Returns (nil, nil)
// if the page is unavailable at that version (the caller, DMMTrie.Get, turns
// that into ErrKeyNotFound).
func (l *LSVPS) LoadPage(target dmmtrie.PageKey, versions dmmtrie.VersionIndex) (*dmmtrie.BasePage, error) {
	page, _, _, err := l.LoadPageDiagnostic(target, versions)
	return page, err
}

// LoadPageDiagnostic is LoadPage plus the diagnostics PageQuery exposes: how
// many delta pages were replayed, and whether the result was assembled
// purely from the active delta, from LSVPS's in-memory buffer, or required
// reading a flushed on-disk index file.
func (l *LSVPS) LoadPageDiagnostic(target dmmtrie.PageKey, versions dmmtrie.VersionIndex) (*dmmtrie.BasePage, dmmtrie.PageSource, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pid := target.Pid
	active, err := l.cache.Get(pid)
	if err != nil {
		return nil, dmmtrie.SourceUnknown, 0, err
	}

	var (
		deltas     []*dmmtrie.DeltaPage
		cur        dmmtrie.PageKey
		readBuffer bool
		readOnDisk bool
	)

	if active == nil {
		cur = dmmtrie.SentinelKey(pid)
	} else {
		deltas = append(deltas, active)
		cur = active.LastPageKey

		latestBase, haveBase := versions.LatestBasePageVersion(pid)
		if haveBase && target.Version < latestBase {
			if replayKey, found := versions.GetVersionUpperbound(pid, target.Version); found {
				data, fromDisk, err := l.pageLookupLocked(replayKey)
				if err != nil {
					return nil, dmmtrie.SourceUnknown, 0, err
				}
				if fromDisk {
					readOnDisk = true
				} else if data != nil {
					readBuffer = true
				}
				if data != nil {
					replaySentinel, err := dmmtrie.UnmarshalDeltaPage(data, replayKey)
					if err != nil {
						return nil, dmmtrie.SourceUnknown, 0, err
					}
					deltas = append(deltas, replaySentinel)
					cur = replaySentinel.LastPageKey
				}
			}
		}
	}

	for cur.Type == dmmtrie.Delta {
		data, fromDisk, err := l.pageLookupLocked(cur)
		if err != nil {
			return nil, dmmtrie.SourceUnknown, 0, err
		}
		if fromDisk {
			readOnDisk = true
		} else if data != nil {
			readBuffer = true
		}
		if data == nil {
			break
		}
		d, err := dmmtrie.UnmarshalDeltaPage(data, cur)
		if err != nil {
			return nil, dmmtrie.SourceUnknown, 0, err
		}
		deltas = append(deltas, d)
		cur = d.LastPageKey
	}

	var base *dmmtrie.BasePage
	if cur.Version == 0 {
		// Root left nil: the first replayed delta item decides whether this
		// page's root is a leaf or an index node (see the nil-root handling
		// in UpdateDeltaItem).
		base = &dmmtrie.BasePage{Key: dmmtrie.PageKey{Version: 0, Tid: 0, Type: dmmtrie.Base, Pid: pid}}
	} else {
		data, fromDisk, err := l.pageLookupLocked(cur)
		if err != nil {
			return nil, dmmtrie.SourceUnknown, 0, err
		}
		if fromDisk {
			readOnDisk = true
		} else if data != nil {
			readBuffer = true
		}
		if data == nil {
			return nil, dmmtrie.SourceUnknown, 0, dmmtrie.NewError(dmmtrie.ErrMissingBasePage)
		}
		bp, err := dmmtrie.UnmarshalBasePage(data, cur)
		if err != nil {
			return nil, dmmtrie.SourceUnknown, 0, err
		}
		base = bp.Clone()
	}

	for i := len(deltas) - 1; i >= 0; i-- {
		if err := applyDelta(base, deltas[i], target); err != nil {
			return nil, dmmtrie.SourceUnknown, 0, err
		}
	}

	if base.Key.Version < target.Version {
		return nil, dmmtrie.SourceUnknown, len(deltas), nil
	}

	source := dmmtrie.SourceEmpty
	switch {
	case readOnDisk:
		source = dmmtrie.SourceIndexFile
	case readBuffer:
		source = dmmtrie.SourceBuffer
	case active != nil:
		source = dmmtrie.SourceActiveDelta
	}
	return base, source, len(deltas), nil
}

// applyDelta iterates delta's items in insertion order, applying each item
// with Version <= target.Version via dmmtrie.UpdateDeltaItem and stopping at
// the first item whose Version exceeds target.Version (later items in the
// same delta belong to a newer version). A non-monotonic version sequence
// is surfaced as ErrCorruptedBlock rather than trusted silently.
func applyDelta(base *dmmtrie.BasePage, delta *dmmtrie.DeltaPage, target dmmtrie.PageKey) error {
	var (
		prevVersion uint64
		havePrev    bool
	)
	for _, item := range delta.Items {
		if havePrev && item.Version < prevVersion {
			return dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
		}
		prevVersion, havePrev = item.Version, true

		if item.Version > target.Version {
			break
		}
		if err := dmmtrie.UpdateDeltaItem(base, item); err != nil {
			return err
		}
		base.Key.Version = item.Version
	}
	return nil
}

// pageLookupLocked finds key's serialized page, checking the in-memory
// buffer before any flushed index file. Caller holds l.mu. The second return
// value reports whether the page was read from a flushed on-disk index file
// (as opposed to LSVPS's in-memory buffer), feeding LoadPageDiagnostic's
// source classification.
func (l *LSVPS) pageLookupLocked(key dmmtrie.PageKey) ([]byte, bool, error) {
	if key.Version == 0 {
		return nil, false, nil
	}
	for _, p := range l.buffer {
		if p.Key.Equal(key) {
			return p.Data, false, nil
		}
	}

	var file *IndexFile
	for _, f := range l.indexFiles {
		if f.covers(key) {
			file = f
			break
		}
	}
	if file == nil {
		return nil, false, nil
	}

	size, err := file.size()
	if err != nil {
		return nil, false, err
	}
	if size < BlockSize {
		return nil, false, dmmtrie.NewError(dmmtrie.ErrCorruptedBlock)
	}

	lookupBuf, err := file.readAt(size-BlockSize, BlockSize)
	if err != nil {
		return nil, false, err
	}
	lookup, err := UnmarshalLookupBlock(lookupBuf)
	if err != nil {
		return nil, false, err
	}

	indexBlockOffset, found := lookup.UpperBoundOffset(key)
	if !found {
		return nil, false, nil
	}

	indexBuf, err := file.readAt(int64(indexBlockOffset), BlockSize)
	if err != nil {
		return nil, false, err
	}
	indexBlock, err := UnmarshalIndexBlock(indexBuf)
	if err != nil {
		return nil, false, err
	}

	pageOffset, found := indexBlock.Lookup(key)
	if !found {
		return nil, false, nil
	}

	pageBuf, err := file.readAt(int64(pageOffset), dmmtrie.PageSize)
	if err != nil {
		return nil, false, err
	}
	return pageBuf, true, nil
}

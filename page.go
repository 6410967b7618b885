package dmmtrie

import "github.com/letus-go/dmmtrie/codec"

// BasePage is a 4096-byte checkpoint of one trie page.
//
// Root is either a LeafNode (a single leaf for an odd-length key shorter
// than the pid, an uncommon case) or an IndexNode carrying one level of
// children inline.
type BasePage struct {
	Key          PageKey
	DUpdateCount uint16
	BUpdateCount uint16
	Root         *Node
}

// NewBasePage creates an empty base page addressed by key with root set to
// an empty index node (the common shape; callers needing a bare leaf root
// build it directly).
func NewBasePage(key PageKey) *BasePage {
	return &BasePage{Key: key, Root: NewIndex(NewIndexNode(key.Version))}
}

// Clone deep-copies p. LSVPS deep-copies every BasePage it is handed, so
// the in-memory copy is detached before storage and LSVPS owns its own
// copy; LoadPage likewise hands callers a page they own outright.
func (p *BasePage) Clone() *BasePage {
	clone := &BasePage{Key: p.Key, DUpdateCount: p.DUpdateCount, BUpdateCount: p.BUpdateCount}
	clone.Root = cloneNode(p.Root)
	return clone
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindLeaf {
		leaf := *n.Leaf
		return NewLeaf(&leaf)
	}
	idx := &IndexNode{Version: n.Index.Version, Hash: n.Index.Hash, Bitmap: n.Index.Bitmap, Children: n.Index.Children}
	for i, c := range n.Index.ChildNodes {
		idx.ChildNodes[i] = cloneNode(c)
	}
	return NewIndex(idx)
}

// MarshalBinary serializes p to exactly PageSize bytes in BasePage layout.
// Returns ErrPageOverflow if the serialized form would not fit.
func (p *BasePage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PageSize)
	c := codec.NewWriter(buf)
	if err := writeHeaderVersionTid(c, p.Key.Version, p.Key.Tid); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if err := c.PutUint8(uint8(Base)); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if err := c.PutBytesWithSize([]byte(p.Key.Pid)); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if err := c.PutUint16(p.DUpdateCount); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if err := c.PutUint16(p.BUpdateCount); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	isLeafRoot := p.Root.Kind == KindLeaf
	if err := c.PutUint8(boolToUint8(isLeafRoot)); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if isLeafRoot {
		if err := marshalLeafBody(c, p.Root.Leaf); err != nil {
			return nil, WrapError(ErrPageOverflow, err)
		}
	} else {
		if err := marshalIndexBody(c, p.Root.Index); err != nil {
			return nil, WrapError(ErrPageOverflow, err)
		}
		// One level of children inline, ascending by slot, only for
		// slots that carry a live in-memory pointer (a set bitmap bit
		// does not imply a pointer for non-root index nodes, but Root
		// here IS the page's root).
		for i := 0; i < DMM_NODE_FANOUT; i++ {
			child := p.Root.Index.ChildNodes[i]
			if child == nil {
				continue
			}
			if err := c.PutUint8(boolToUint8(child.Kind == KindLeaf)); err != nil {
				return nil, WrapError(ErrPageOverflow, err)
			}
			var err error
			if child.Kind == KindLeaf {
				err = marshalLeafBody(c, child.Leaf)
			} else {
				err = marshalIndexBody(c, child.Index)
			}
			if err != nil {
				return nil, WrapError(ErrPageOverflow, err)
			}
		}
	}
	if err := c.PadTo(PageSize); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	return buf, nil
}

// UnmarshalBasePage reads a BasePage from exactly PageSize bytes of data.
// The returned page's Key is taken from the page's own header
// (version/tid/pid); key is used only to cross-check the pid, and only when
// key.Pid is non-empty.
func UnmarshalBasePage(data []byte, key PageKey) (*BasePage, error) {
	if len(data) != PageSize {
		return nil, NewError(ErrCorruptedBlock)
	}
	c := codec.NewReader(data)
	version, tid, err := readHeaderVersionTid(c)
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	pageType, err := c.GetUint8()
	if err != nil || PageType(pageType) != Base {
		return nil, NewError(ErrCorruptedBlock)
	}
	pid, err := c.GetBytesWithSize()
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	p := &BasePage{Key: PageKey{Version: version, Tid: tid, Type: Base, Pid: string(pid)}}
	p.DUpdateCount, err = c.GetUint16()
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	p.BUpdateCount, err = c.GetUint16()
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	isLeafRoot, err := c.GetUint8()
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	if isLeafRoot != 0 {
		leaf, err := unmarshalLeafBody(c)
		if err != nil {
			return nil, WrapError(ErrCorruptedBlock, err)
		}
		p.Root = NewLeaf(leaf)
	} else {
		idx, err := unmarshalIndexBody(c)
		if err != nil {
			return nil, WrapError(ErrCorruptedBlock, err)
		}
		for i := 0; i < DMM_NODE_FANOUT; i++ {
			if idx.Bitmap&(1<<uint(i)) == 0 {
				continue
			}
			isLeaf, err := c.GetUint8()
			if err != nil {
				// GetUint8 fails only at the end of the
				// page. A set bit with no inline child is
				// not detected here: MarshalBinary writes a
				// child only for each non-nil ChildNodes
				// entry, and any zero padding that follows
				// is read as an index child body.
				break
			}
			var child *Node
			if isLeaf != 0 {
				leaf, err := unmarshalLeafBody(c)
				if err != nil {
					return nil, WrapError(ErrCorruptedBlock, err)
				}
				child = NewLeaf(leaf)
			} else {
				cidx, err := unmarshalIndexBody(c)
				if err != nil {
					return nil, WrapError(ErrCorruptedBlock, err)
				}
				child = NewIndex(cidx)
			}
			idx.ChildNodes[i] = child
		}
		p.Root = NewIndex(idx)
	}
	if key.Pid != "" && p.Key.Pid != key.Pid {
		return nil, NewError(ErrCorruptedBlock)
	}
	return p, nil
}

// DeltaItem is one recorded update within an active or frozen delta page.
type DeltaItem struct {
	LocationInPage uint8 // 0 = page root; 1..16 = root's children, slot-1
	IsLeaf         bool
	Version        uint64
	Hash           Hash

	// Leaf-update fields (IsLeaf == true).
	FileID uint64
	Offset uint64
	Size   uint64

	// Index-update fields (IsLeaf == false).
	ChildIndex uint8
	ChildHash  Hash
}

func marshalDeltaItem(c *codec.Cursor, it DeltaItem) error {
	if err := c.PutUint8(it.LocationInPage); err != nil {
		return err
	}
	if err := c.PutUint8(boolToUint8(it.IsLeaf)); err != nil {
		return err
	}
	if err := c.PutUint64(it.Version); err != nil {
		return err
	}
	if err := c.PutBytes(it.Hash[:]); err != nil {
		return err
	}
	if it.IsLeaf {
		if err := c.PutUint64(it.FileID); err != nil {
			return err
		}
		if err := c.PutUint64(it.Offset); err != nil {
			return err
		}
		return c.PutUint64(it.Size)
	}
	if err := c.PutUint8(it.ChildIndex); err != nil {
		return err
	}
	return c.PutBytes(it.ChildHash[:])
}

func unmarshalDeltaItem(c *codec.Cursor) (DeltaItem, error) {
	var it DeltaItem
	loc, err := c.GetUint8()
	if err != nil {
		return it, err
	}
	isLeaf, err := c.GetUint8()
	if err != nil {
		return it, err
	}
	version, err := c.GetUint64()
	if err != nil {
		return it, err
	}
	hb, err := c.GetBytes(HashSize)
	if err != nil {
		return it, err
	}
	it.LocationInPage = loc
	it.IsLeaf = isLeaf != 0
	it.Version = version
	copy(it.Hash[:], hb)
	if it.IsLeaf {
		if it.FileID, err = c.GetUint64(); err != nil {
			return it, err
		}
		if it.Offset, err = c.GetUint64(); err != nil {
			return it, err
		}
		if it.Size, err = c.GetUint64(); err != nil {
			return it, err
		}
		return it, nil
	}
	ci, err := c.GetUint8()
	if err != nil {
		return it, err
	}
	it.ChildIndex = ci
	chb, err := c.GetBytes(HashSize)
	if err != nil {
		return it, err
	}
	copy(it.ChildHash[:], chb)
	return it, nil
}

// DeltaPage is a 4096-byte log of updates since the last checkpoint.
// LastPageKey chains delta pages: a frozen delta's
// replacement starts empty with LastPageKey pointing at the just-frozen
// delta, forming a singly linked list that terminates at a base page or at
// SentinelKey (never existed).
type DeltaPage struct {
	Key         PageKey
	LastPageKey PageKey
	Items       []DeltaItem
}

// NewDeltaPage creates an empty active delta page for pid at version,
// chained to last (the previously frozen delta, or a sentinel).
func NewDeltaPage(pid string, version uint64, last PageKey) *DeltaPage {
	return &DeltaPage{
		Key:         PageKey{Version: version, Tid: 0, Type: Delta, Pid: pid},
		LastPageKey: last,
	}
}

// Append adds it to the page and reports the new item count.
func (d *DeltaPage) Append(it DeltaItem) int {
	d.Items = append(d.Items, it)
	return len(d.Items)
}

// MarshalBinary serializes d to exactly PageSize bytes in DeltaPage layout.
// Returns ErrPageOverflow the moment the item list would not fit, the
// concrete case where a DeltaPage serialization would exceed 4096 bytes.
func (d *DeltaPage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PageSize)
	c := codec.NewWriter(buf)
	if err := d.LastPageKey.MarshalTo(c); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	if err := c.PutUint16(uint16(len(d.Items))); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	for _, it := range d.Items {
		if err := marshalDeltaItem(c, it); err != nil {
			return nil, WrapError(ErrPageOverflow, err)
		}
	}
	if err := c.PadTo(PageSize); err != nil {
		return nil, WrapError(ErrPageOverflow, err)
	}
	return buf, nil
}

// UnmarshalDeltaPage reads a DeltaPage from exactly PageSize bytes, tagged
// with key (the page's own PageKey; not serialized in the on-disk layout
// beyond last_pagekey, so it must be supplied by the caller, which knows it
// from the index/lookup block it read the offset from).
func UnmarshalDeltaPage(data []byte, key PageKey) (*DeltaPage, error) {
	if len(data) != PageSize {
		return nil, NewError(ErrCorruptedBlock)
	}
	c := codec.NewReader(data)
	last, err := UnmarshalPageKey(c)
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	count, err := c.GetUint16()
	if err != nil {
		return nil, WrapError(ErrCorruptedBlock, err)
	}
	d := &DeltaPage{Key: key, LastPageKey: last, Items: make([]DeltaItem, 0, count)}
	for i := 0; i < int(count); i++ {
		it, err := unmarshalDeltaItem(c)
		if err != nil {
			return nil, WrapError(ErrCorruptedBlock, err)
		}
		d.Items = append(d.Items, it)
	}
	return d, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

package dmmtrie

import "github.com/letus-go/dmmtrie/codec"

// NodeKind tags the Node sum type across LeafNode/IndexNode with an
// explicit tag every caller switches on, rather than virtual dispatch.
type NodeKind uint8

const (
	// KindLeaf tags a LeafNode.
	KindLeaf NodeKind = 0
	// KindIndex tags an IndexNode.
	KindIndex NodeKind = 1
)

// Location is the opaque (file_id, offset, size) triple a ValueStore
// returns for a written value.
type Location struct {
	FileID uint64
	Offset uint64
	Size   uint64
}

// LeafNode addresses one value in the value log.
type LeafNode struct {
	Version  uint64
	Key      string
	Location Location
	Hash     Hash
}

// NewLeafNode creates a leaf for key with no value written yet (Hash and
// Location are zero); callers update it via Update immediately after.
func NewLeafNode(version uint64, key string) *LeafNode {
	return &LeafNode{Version: version, Key: key}
}

// Update sets the leaf's version, location and hash in one call.
func (n *LeafNode) Update(version uint64, loc Location, hash Hash) {
	n.Version = version
	n.Location = loc
	n.Hash = hash
}

// ChildSlot is an index node's per-slot (child_version, child_hash) pair,
// always meaningful once the corresponding bitmap bit is set, independent
// of whether an in-memory child pointer also exists.
type ChildSlot struct {
	Version uint64
	Hash    Hash
}

// IndexNode routes to up to DMM_NODE_FANOUT children by nibble.
//
// Children holds every slot's (version, hash) once populated; ChildNodes
// holds live pointers to child Nodes, but only for a page's root node, since
// non-root index nodes do not persist child pointers. A freshly loaded base
// page's root has both Children and, for slots where it was
// inline-serialized, ChildNodes populated; any index node one level further
// down has only Children.
type IndexNode struct {
	Version  uint64
	Hash     Hash
	Bitmap   uint16
	Children [DMM_NODE_FANOUT]ChildSlot
	ChildNodes [DMM_NODE_FANOUT]*Node
}

// NewIndexNode creates an empty index node with no children populated.
func NewIndexNode(version uint64) *IndexNode {
	return &IndexNode{Version: version}
}

// HasChild reports whether slot i has ever been populated.
func (n *IndexNode) HasChild(i int) bool {
	if i < 0 || i >= DMM_NODE_FANOUT {
		return false
	}
	return n.Bitmap&(1<<uint(i)) != 0
}

// GetChildSlot returns slot i's (version, hash), or ErrChildAbsent if the
// bitmap bit is unset (reading an unset slot raises an error).
func (n *IndexNode) GetChildSlot(i int) (ChildSlot, error) {
	if i < 0 || i >= DMM_NODE_FANOUT {
		return ChildSlot{}, NewError(ErrChildOutOfRange)
	}
	if !n.HasChild(i) {
		return ChildSlot{}, NewError(ErrChildAbsent)
	}
	return n.Children[i], nil
}

// SetChildSlot sets slot i's (version, hash) and marks its bitmap bit.
// UpdateDeltaItem's index case calls this with location_in_page-1 as i, not
// the DeltaItem's separately carried child_index; see applyDelta in the
// lsvps package.
func (n *IndexNode) SetChildSlot(i int, version uint64, hash Hash) error {
	if i < 0 || i >= DMM_NODE_FANOUT {
		return NewError(ErrChildOutOfRange)
	}
	n.Children[i] = ChildSlot{Version: version, Hash: hash}
	n.Bitmap |= 1 << uint(i)
	return nil
}

// AttachChild installs an in-memory child pointer at slot i, for use by a
// page's root node only, and seeds its slot from the child's own hash.
func (n *IndexNode) AttachChild(i int, child *Node) error {
	if i < 0 || i >= DMM_NODE_FANOUT {
		return NewError(ErrChildOutOfRange)
	}
	n.ChildNodes[i] = child
	return n.SetChildSlot(i, child.Version(), child.HashOf())
}

// RecomputeHash sets n.Hash = H(concat of all 16 child hashes, zero-filled
// where the bitmap bit is unset): every slot contributes 32 bytes of hash,
// zero-filled when absent.
func (n *IndexNode) RecomputeHash() {
	var buf [DMM_NODE_FANOUT * HashSize]byte
	for i := 0; i < DMM_NODE_FANOUT; i++ {
		if n.HasChild(i) {
			copy(buf[i*HashSize:(i+1)*HashSize], n.Children[i].Hash[:])
		}
	}
	n.Hash = H(buf[:])
}

// Node is the LeafNode/IndexNode sum type.
type Node struct {
	Kind  NodeKind
	Leaf  *LeafNode
	Index *IndexNode
}

// NewLeaf wraps a LeafNode as a Node.
func NewLeaf(n *LeafNode) *Node { return &Node{Kind: KindLeaf, Leaf: n} }

// NewIndex wraps an IndexNode as a Node.
func NewIndex(n *IndexNode) *Node { return &Node{Kind: KindIndex, Index: n} }

// Version returns the node's own version, regardless of kind.
func (n *Node) Version() uint64 {
	if n.Kind == KindLeaf {
		return n.Leaf.Version
	}
	return n.Index.Version
}

// HashOf returns the node's own hash, regardless of kind.
func (n *Node) HashOf() Hash {
	if n.Kind == KindLeaf {
		return n.Leaf.Hash
	}
	return n.Index.Hash
}

// marshalLeafBody writes a LeafNode body:
// version u64 | key_size u64 | key | file_id u64 | offset u64 | size u64 | hash[32]
func marshalLeafBody(c *codec.Cursor, n *LeafNode) error {
	if err := c.PutUint64(n.Version); err != nil {
		return err
	}
	if err := c.PutBytesWithSize([]byte(n.Key)); err != nil {
		return err
	}
	if err := c.PutUint64(n.Location.FileID); err != nil {
		return err
	}
	if err := c.PutUint64(n.Location.Offset); err != nil {
		return err
	}
	if err := c.PutUint64(n.Location.Size); err != nil {
		return err
	}
	return c.PutBytes(n.Hash[:])
}

func unmarshalLeafBody(c *codec.Cursor) (*LeafNode, error) {
	version, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	key, err := c.GetBytesWithSize()
	if err != nil {
		return nil, err
	}
	fileID, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	offset, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	size, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	hb, err := c.GetBytes(HashSize)
	if err != nil {
		return nil, err
	}
	var hash Hash
	copy(hash[:], hb)
	return &LeafNode{
		Version:  version,
		Key:      string(key),
		Location: Location{FileID: fileID, Offset: offset, Size: size},
		Hash:     hash,
	}, nil
}

// marshalIndexBody writes an IndexNode's own fields:
// version u64 | hash[32] | bitmap u16 | 16x(child_version u64, child_hash[32])
// It does NOT recurse into child node bodies; that one extra level is
// handled by the page (de)serializer, which only does it for a page's root
// node (see page.go).
func marshalIndexBody(c *codec.Cursor, n *IndexNode) error {
	if err := c.PutUint64(n.Version); err != nil {
		return err
	}
	if err := c.PutBytes(n.Hash[:]); err != nil {
		return err
	}
	if err := c.PutUint16(n.Bitmap); err != nil {
		return err
	}
	for i := 0; i < DMM_NODE_FANOUT; i++ {
		if err := c.PutUint64(n.Children[i].Version); err != nil {
			return err
		}
		if err := c.PutBytes(n.Children[i].Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalIndexBody(c *codec.Cursor) (*IndexNode, error) {
	version, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	hb, err := c.GetBytes(HashSize)
	if err != nil {
		return nil, err
	}
	var hash Hash
	copy(hash[:], hb)
	bitmap, err := c.GetUint16()
	if err != nil {
		return nil, err
	}
	n := &IndexNode{Version: version, Hash: hash, Bitmap: bitmap}
	for i := 0; i < DMM_NODE_FANOUT; i++ {
		v, err := c.GetUint64()
		if err != nil {
			return nil, err
		}
		chb, err := c.GetBytes(HashSize)
		if err != nil {
			return nil, err
		}
		var ch Hash
		copy(ch[:], chb)
		n.Children[i] = ChildSlot{Version: v, Hash: ch}
	}
	return n, nil
}

package dmmtrie

import "testing"

func TestBasePageRoundTripIndexRoot(t *testing.T) {
	key := PageKey{Version: 3, Tid: 0, Type: Base, Pid: "ab12"}
	p := NewBasePage(key)
	p.DUpdateCount = 5
	p.BUpdateCount = 1

	leaf := NewLeafNode(3, "ab12cdef")
	leaf.Update(3, Location{FileID: 1, Offset: 100, Size: 16}, H([]byte("leafvalue")))
	if err := p.Root.Index.AttachChild(0xc, NewLeaf(leaf)); err != nil {
		t.Fatalf("AttachChild: %v", err)
	}

	childIdx := NewIndexNode(3)
	if err := p.Root.Index.AttachChild(0x3, NewIndex(childIdx)); err != nil {
		t.Fatalf("AttachChild: %v", err)
	}
	p.Root.Index.RecomputeHash()

	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != PageSize {
		t.Fatalf("expected %d bytes, got %d", PageSize, len(data))
	}

	got, err := UnmarshalBasePage(data, key)
	if err != nil {
		t.Fatalf("UnmarshalBasePage: %v", err)
	}
	if got.Key.Version != key.Version || got.Key.Pid != key.Pid {
		t.Fatalf("key mismatch: %v", got.Key)
	}
	if got.DUpdateCount != 5 || got.BUpdateCount != 1 {
		t.Fatalf("update counts mismatch: %+v", got)
	}
	if got.Root.Kind != KindIndex {
		t.Fatalf("expected index root, got kind %v", got.Root.Kind)
	}
	if !got.Root.Index.HasChild(0xc) {
		t.Fatalf("expected slot 0xc populated")
	}
	gotLeaf := got.Root.Index.ChildNodes[0xc]
	if gotLeaf == nil || gotLeaf.Kind != KindLeaf {
		t.Fatalf("expected inline leaf child at slot 0xc, got %v", gotLeaf)
	}
	if gotLeaf.Leaf.Key != "ab12cdef" {
		t.Fatalf("leaf key mismatch: %q", gotLeaf.Leaf.Key)
	}
	if !got.Root.Index.HasChild(0x3) {
		t.Fatalf("expected slot 0x3 populated")
	}
	gotIdxChild := got.Root.Index.ChildNodes[0x3]
	if gotIdxChild == nil || gotIdxChild.Kind != KindIndex {
		t.Fatalf("expected inline index child at slot 0x3, got %v", gotIdxChild)
	}
}

func TestBasePageRoundTripLeafRoot(t *testing.T) {
	key := PageKey{Version: 9, Tid: 0, Type: Base, Pid: "ff"}
	leaf := NewLeafNode(9, "ffabcd")
	leaf.Update(9, Location{FileID: 2, Offset: 0, Size: 4}, H([]byte("v")))
	p := &BasePage{Key: key, Root: NewLeaf(leaf)}

	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := UnmarshalBasePage(data, key)
	if err != nil {
		t.Fatalf("UnmarshalBasePage: %v", err)
	}
	if got.Root.Kind != KindLeaf {
		t.Fatalf("expected leaf root, got %v", got.Root.Kind)
	}
	if got.Root.Leaf.Key != "ffabcd" {
		t.Fatalf("leaf key mismatch: %q", got.Root.Leaf.Key)
	}
	if got.Root.Leaf.Location.FileID != 2 || got.Root.Leaf.Location.Offset != 0 || got.Root.Leaf.Location.Size != 4 {
		t.Fatalf("location mismatch: %+v", got.Root.Leaf.Location)
	}
}

func TestBasePageUnmarshalPidMismatch(t *testing.T) {
	key := PageKey{Version: 1, Type: Base, Pid: "aa"}
	p := NewBasePage(key)
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	wrongKey := PageKey{Version: 1, Type: Base, Pid: "bb"}
	if _, err := UnmarshalBasePage(data, wrongKey); err == nil {
		t.Fatalf("expected error on pid mismatch")
	}
}

func TestDeltaPageRoundTrip(t *testing.T) {
	last := SentinelKey("aabb")
	d := NewDeltaPage("aabb", 4, last)

	leafItem := DeltaItem{
		LocationInPage: 1,
		IsLeaf:         true,
		Version:        4,
		Hash:           H([]byte("leaf")),
		FileID:         7,
		Offset:         200,
		Size:           10,
	}
	idxItem := DeltaItem{
		LocationInPage: 0,
		IsLeaf:         false,
		Version:        4,
		Hash:           H([]byte("idx")),
		ChildIndex:     2,
		ChildHash:      H([]byte("child")),
	}
	if n := d.Append(leafItem); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	if n := d.Append(idxItem); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}

	data, err := d.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != PageSize {
		t.Fatalf("expected %d bytes, got %d", PageSize, len(data))
	}

	key := PageKey{Version: 4, Type: Delta, Pid: "aabb"}
	got, err := UnmarshalDeltaPage(data, key)
	if err != nil {
		t.Fatalf("UnmarshalDeltaPage: %v", err)
	}
	if !got.LastPageKey.Equal(last) {
		t.Fatalf("LastPageKey mismatch: %v", got.LastPageKey)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	if got.Items[0] != leafItem {
		t.Fatalf("leaf item mismatch: %+v", got.Items[0])
	}
	if got.Items[1] != idxItem {
		t.Fatalf("index item mismatch: %+v", got.Items[1])
	}
}

func TestBasePageCloneIsDeep(t *testing.T) {
	key := PageKey{Version: 1, Type: Base, Pid: "cc"}
	p := NewBasePage(key)
	leaf := NewLeafNode(1, "ccdd")
	if err := p.Root.Index.AttachChild(0xd, NewLeaf(leaf)); err != nil {
		t.Fatalf("AttachChild: %v", err)
	}

	clone := p.Clone()
	clone.Root.Index.ChildNodes[0xd].Leaf.Key = "mutated"
	if p.Root.Index.ChildNodes[0xd].Leaf.Key == "mutated" {
		t.Fatalf("Clone did not deep-copy child leaf")
	}
}

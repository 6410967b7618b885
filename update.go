package dmmtrie

// UpdateDeltaItem applies one DeltaItem onto base, the BasePage-shaped
// replay state LSVPS is reconstructing.
//
// For an index-kind item this writes the selected node's own child slot at
// location_in_page-1, not the separately carried ChildIndex. When
// location_in_page == 0 (the page's root), that is slot -1, out of range,
// which produces a "SetChild out of range" error for an index update
// targeting the root. This is surfaced here as ErrChildOutOfRange rather
// than silently corrected; see TestUpdateDeltaItemLocationVsChildIndex.
func UpdateDeltaItem(base *BasePage, item DeltaItem) error {
	loc := int(item.LocationInPage)

	if item.IsLeaf {
		if base.Root == nil {
			if loc == 0 {
				base.Root = NewLeaf(NewLeafNode(0, ""))
			} else {
				base.Root = NewIndex(NewIndexNode(0))
			}
		}
		node, err := selectOrCreateNode(base, loc, func() *Node { return NewLeaf(NewLeafNode(0, "")) })
		if err != nil {
			return err
		}
		if node.Kind != KindLeaf {
			return NewError(ErrCorruptedBlock)
		}
		node.Leaf.Update(item.Version, Location{FileID: item.FileID, Offset: item.Offset, Size: item.Size}, item.Hash)
		return nil
	}

	if base.Root == nil {
		base.Root = NewIndex(NewIndexNode(0))
	}
	node, err := selectOrCreateNode(base, loc, func() *Node { return NewIndex(NewIndexNode(0)) })
	if err != nil {
		return err
	}
	if node.Kind != KindIndex {
		return NewError(ErrCorruptedBlock)
	}
	node.Index.Version = item.Version
	node.Index.Hash = item.Hash
	return node.Index.SetChildSlot(loc-1, item.Version, item.ChildHash)
}

// selectOrCreateNode returns the node identified by loc (0 = base's root,
// 1..16 = root's child at loc-1), materializing a placeholder child via
// makeEmpty if the slot's bitmap bit is unset. A set bit with no live
// ChildNodes pointer (non-root index nodes don't persist child pointers) is
// likewise materialized freshly: the replayed item overwrites whatever
// fields matter immediately after.
func selectOrCreateNode(base *BasePage, loc int, makeEmpty func() *Node) (*Node, error) {
	if loc == 0 {
		return base.Root, nil
	}
	if base.Root.Kind != KindIndex {
		return nil, NewError(ErrCorruptedBlock)
	}
	idx := loc - 1
	idxNode := base.Root.Index
	if !idxNode.HasChild(idx) {
		child := makeEmpty()
		if idx >= 0 && idx < DMM_NODE_FANOUT {
			idxNode.ChildNodes[idx] = child
		}
		if err := idxNode.SetChildSlot(idx, 0, Hash{}); err != nil {
			return nil, err
		}
		return child, nil
	}
	if idxNode.ChildNodes[idx] == nil {
		child := makeEmpty()
		idxNode.ChildNodes[idx] = child
		return child, nil
	}
	return idxNode.ChildNodes[idx], nil
}

package hsda

import (
	"crypto/sha256"
	"encoding/binary"
)

// FanoutTree assigns each validator index to a layer of a shard
// propagation tree, so that distributing shards need not be an O(n)
// broadcast from the proposer: the proposer sends to its root layer's
// few children, who fan out to the next layer, and so on.
//
// Grounded directly on gturbine/gtbuilder.TreeBuilder's deterministic,
// seeded Fisher-Yates shuffle plus layer slicing. The parent/child index
// arithmetic is absorbed from gnetdag.FixedTree, which modeled the same
// fixed-branch-factor layout as pure index math over a flattened slice;
// it's folded directly into FanoutTree here rather than kept as a
// separate generic package, since this is its only caller.
type FanoutTree struct {
	Fanout uint32
	Layers [][]uint64

	// order is the flattened post-shuffle validator ordering: order[0]
	// is the root, order[1:Fanout+1] are its children, and so on. pos is
	// its inverse, used by ParentOf/ChildrenOf to translate a validator
	// index back to a tree position.
	order []uint64
	pos   map[uint64]int
}

// BuildFanoutTree arranges valIndices (already ordered however the
// caller wants, e.g. by stake) into a tree with the given fanout, seeded
// deterministically by view and commitment so every validator derives
// the same tree independently.
func BuildFanoutTree(valIndices []uint64, view uint64, commitmentSeed []byte, fanout uint32) *FanoutTree {
	if len(valIndices) == 0 || fanout == 0 {
		return &FanoutTree{Fanout: fanout}
	}

	indices := append([]uint64(nil), valIndices...)
	seed := deriveSeed(view, commitmentSeed)

	for i := len(indices) - 1; i > 0; i-- {
		j := int(binary.LittleEndian.Uint64(seed) % uint64(i+1))
		indices[i], indices[j] = indices[j], indices[i]

		h := sha256.New()
		h.Write(seed)
		seed = h.Sum(nil)
	}

	t := &FanoutTree{Fanout: fanout, order: indices}
	t.pos = make(map[uint64]int, len(indices))
	for i, v := range indices {
		t.pos[v] = i
	}

	remaining := indices
	width := 1
	for len(remaining) > 0 {
		take := len(remaining)
		if take > width {
			take = width
		}
		t.Layers = append(t.Layers, remaining[:take])
		remaining = remaining[take:]
		width *= int(fanout)
	}

	return t
}

func deriveSeed(view uint64, commitmentSeed []byte) []byte {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], view)
	h.Write(buf[:])
	h.Write(commitmentSeed)
	return h.Sum(nil)
}

// Children returns the validator indices that receive shards from
// sender, given sender's position as the root (layer 0, index 0) or as
// one of the fanout children of a previous layer. Layer i's senders each
// fan out to t.Fanout children in layer i+1, partitioned in order.
func (t *FanoutTree) Children(layerIdx, posInLayer int) []uint64 {
	if layerIdx+1 >= len(t.Layers) {
		return nil
	}

	next := t.Layers[layerIdx+1]
	start := posInLayer * int(t.Fanout)
	if start >= len(next) {
		return nil
	}
	end := start + int(t.Fanout)
	if end > len(next) {
		end = len(next)
	}
	return next[start:end]
}

// ParentOf returns the validator index that forwards shards to val, and
// false if val is the root or is not present in the tree.
func (t *FanoutTree) ParentOf(val uint64) (uint64, bool) {
	entry, ok := t.pos[val]
	if !ok || entry == 0 {
		return 0, false
	}

	p := treeParent(entry, int(t.Fanout))
	if p < 0 {
		return 0, false
	}
	return t.order[p], true
}

// ChildrenOf returns the validator indices that val forwards shards to,
// in tree order. It returns nil if val is not present in the tree or its
// layer is the last one occupied.
func (t *FanoutTree) ChildrenOf(val uint64) []uint64 {
	entry, ok := t.pos[val]
	if !ok {
		return nil
	}

	start := treeFirstChild(entry, int(t.Fanout))
	if start >= len(t.order) {
		return nil
	}
	end := start + int(t.Fanout)
	if end > len(t.order) {
		end = len(t.order)
	}
	return t.order[start:end]
}

// treeParent returns the index of entry's parent in a flattened,
// fixed-branch-factor tree, or -1 for entry 0. Unchecked math: negative
// entries or a branch factor so large that bf^2 overflows an int are
// undefined.
func treeParent(entry, branchFactor int) int {
	if entry == 0 {
		return -1
	}
	if entry <= branchFactor {
		return 0
	}

	curLayer := treeLayer(entry, branchFactor)
	parentLayer := curLayer - 1

	ancestorEntries := 1
	ancestorWidth := 1
	for i := 0; i < parentLayer-1; i++ {
		ancestorWidth *= branchFactor
		ancestorEntries += ancestorWidth
	}

	parentLayerWidth := ancestorWidth * branchFactor
	parentOffset := (entry - parentLayerWidth - ancestorEntries) / branchFactor
	return ancestorEntries + parentOffset
}

// treeFirstChild returns the index of entry's first child in a
// flattened, fixed-branch-factor tree; entry is assumed to have at
// least branchFactor children available in the slice.
func treeFirstChild(entry, branchFactor int) int {
	if entry == 0 {
		return 1
	}

	curLayerWidth := branchFactor
	entriesBeforeCurLayer := 1

	for {
		if entry <= entriesBeforeCurLayer+curLayerWidth {
			layerOffset := entry - entriesBeforeCurLayer
			return entriesBeforeCurLayer + curLayerWidth + layerOffset*branchFactor
		}

		entriesBeforeCurLayer += curLayerWidth
		curLayerWidth *= branchFactor
	}
}

// treeLayer returns the layer containing entry in a flattened,
// fixed-branch-factor tree.
func treeLayer(entry, branchFactor int) int {
	if entry == 0 {
		return 0
	}

	layer := 1
	layerWidth := branchFactor
	entriesSoFar := 1 + branchFactor

	for {
		if entry < entriesSoFar {
			return layer
		}

		layer++
		layerWidth *= branchFactor
		entriesSoFar += layerWidth
	}
}

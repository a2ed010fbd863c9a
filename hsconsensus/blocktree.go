package hsconsensus

import (
	"github.com/google/btree"
)

// treeNode is one block in the BlockTree's commitment-keyed arena.
type treeNode struct {
	block    Block
	children []Commitment
}

// heightEntry indexes a commitment by view, so BlockTree can answer
// "what's the highest block I have" without scanning the whole arena.
// Grounded on the google/btree usage in onflow-flow-go's fvm/utils, which
// wraps application values in a generic BTreeG ordered by a composite key.
type heightEntry struct {
	View       View
	Commitment Commitment
}

func heightLess(a, b heightEntry) bool {
	if a.View != b.View {
		return a.View < b.View
	}
	return a.Commitment < b.Commitment
}

// BlockTree holds every block the replica has received but not yet
// pruned, indexed by commitment, with a view-ordered index used to find
// the highest view held (HighestView) and to prune by view (PruneBelow).
//
// Not safe for concurrent use; callers serialize access through the
// engine's Coordinator.
type BlockTree struct {
	nodes map[Commitment]*treeNode
	byView *btree.BTreeG[heightEntry]

	root Commitment
}

// NewBlockTree creates a BlockTree rooted at genesis.
func NewBlockTree(genesis Block, genesisCommitment Commitment) *BlockTree {
	t := &BlockTree{
		nodes:  make(map[Commitment]*treeNode),
		byView: btree.NewG(32, heightLess),
		root:   genesisCommitment,
	}
	t.nodes[genesisCommitment] = &treeNode{block: genesis}
	t.byView.ReplaceOrInsert(heightEntry{View: genesis.View, Commitment: genesisCommitment})
	return t
}

// Insert adds block under commitment, linking it as a child of its
// parent if the parent is known. Returns false if commitment is already
// present.
func (t *BlockTree) Insert(commitment Commitment, block Block) bool {
	if _, exists := t.nodes[commitment]; exists {
		return false
	}

	t.nodes[commitment] = &treeNode{block: block}
	t.byView.ReplaceOrInsert(heightEntry{View: block.View, Commitment: commitment})

	if parent, ok := t.nodes[block.ParentCommitment]; ok {
		parent.children = append(parent.children, commitment)
	}

	return true
}

// Get returns the block stored under commitment.
func (t *BlockTree) Get(commitment Commitment) (Block, bool) {
	n, ok := t.nodes[commitment]
	if !ok {
		return Block{}, false
	}
	return n.block, true
}

// Children returns the commitments of blocks directly extending
// commitment.
func (t *BlockTree) Children(commitment Commitment) []Commitment {
	n, ok := t.nodes[commitment]
	if !ok {
		return nil
	}
	return n.children
}

// HighestView returns the view number of the highest block currently
// held in the tree.
func (t *BlockTree) HighestView() View {
	var max View
	t.byView.Descend(func(e heightEntry) bool {
		max = e.View
		return false
	})
	return max
}

// Ancestors walks from commitment back to the root, inclusive, in
// descending-view order. Used by the three-chain commit rule to check
// that three consecutive blocks are direct parent/child links.
func (t *BlockTree) Ancestors(commitment Commitment, limit int) []Commitment {
	out := make([]Commitment, 0, limit)
	cur := commitment
	for len(out) < limit {
		n, ok := t.nodes[cur]
		if !ok {
			break
		}
		out = append(out, cur)
		if cur == t.root {
			break
		}
		cur = n.block.ParentCommitment
	}
	return out
}

// PruneBelow removes every block with a view strictly less than view,
// except ancestors of keep (the locked or committed chain must survive
// pruning). Returns the number of blocks removed.
func (t *BlockTree) PruneBelow(view View, keep Commitment) int {
	keepSet := make(map[Commitment]bool)
	for _, c := range t.Ancestors(keep, len(t.nodes)+1) {
		keepSet[c] = true
	}

	var toRemove []heightEntry
	t.byView.Ascend(func(e heightEntry) bool {
		if e.View >= view {
			return false
		}
		if !keepSet[e.Commitment] {
			toRemove = append(toRemove, e)
		}
		return true
	})

	for _, e := range toRemove {
		delete(t.nodes, e.Commitment)
		t.byView.Delete(e)
	}

	return len(toRemove)
}

package hsconsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsconsensus/hsconsensustest"
)

// chain builds a linear sequence of blocks view 0..n, inserts them into a
// fresh BlockTree rooted at genesis, and returns the tree plus each
// block's commitment in order (commits[0] is genesis).
func chain(t *testing.T, hs hsconsensus.HashScheme, n int) (*hsconsensus.BlockTree, []hsconsensus.Commitment, []hsconsensus.Block) {
	t.Helper()

	genesis := hsconsensus.Block{View: 0, Payload: []byte("genesis")}
	genesisCommitment := genesis.Commitment(hs)

	tree := hsconsensus.NewBlockTree(genesis, genesisCommitment)

	commits := []hsconsensus.Commitment{genesisCommitment}
	blocks := []hsconsensus.Block{genesis}

	parent := genesisCommitment
	for v := 1; v <= n; v++ {
		b := hsconsensus.Block{
			View:             hsconsensus.View(v),
			ParentCommitment: parent,
			Payload:          []byte{byte(v)},
		}
		c := b.Commitment(hs)
		require.True(t, tree.Insert(c, b))
		commits = append(commits, c)
		blocks = append(blocks, b)
		parent = c
	}

	return tree, commits, blocks
}

func TestChainCommit_ThreeConsecutiveViews(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	tree, commits, blocks := chain(t, fx.HashScheme, 3)

	// commits: [genesis(0), b1(1), b2(2), b3(3)]
	commitment, ok := hsconsensus.ChainCommit(tree, commits[3], blocks[3].View)
	require.True(t, ok)
	require.Equal(t, commits[1], commitment)
}

func TestChainCommit_GapBreaksTheChain(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	genesis := hsconsensus.Block{View: 0, Payload: []byte("genesis")}
	genesisCommitment := genesis.Commitment(fx.HashScheme)
	tree := hsconsensus.NewBlockTree(genesis, genesisCommitment)

	b1 := hsconsensus.Block{View: 1, ParentCommitment: genesisCommitment, Payload: []byte{1}}
	c1 := b1.Commitment(fx.HashScheme)
	require.True(t, tree.Insert(c1, b1))

	// b3 skips view 2 entirely (simulating a view that timed out).
	b3 := hsconsensus.Block{View: 3, ParentCommitment: c1, Payload: []byte{3}}
	c3 := b3.Commitment(fx.HashScheme)
	require.True(t, tree.Insert(c3, b3))

	b4 := hsconsensus.Block{View: 4, ParentCommitment: c3, Payload: []byte{4}}
	c4 := b4.Commitment(fx.HashScheme)
	require.True(t, tree.Insert(c4, b4))

	_, ok := hsconsensus.ChainCommit(tree, c4, b4.View)
	require.False(t, ok, "a skipped view must not count toward the three-chain")
}

func TestSafeNode_ExtendingLockedBlockIsAlwaysSafe(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	tree, commits, blocks := chain(t, fx.HashScheme, 2)

	lockedQC := &hsconsensus.QuorumCert{View: blocks[1].View, Commitment: commits[1]}

	// A new block extending the locked block's descendant, carrying no
	// timeout certificate at all, is still safe via the safety rule.
	candidate := hsconsensus.Block{View: 3, ParentCommitment: commits[2]}

	require.True(t, hsconsensus.SafeNode(tree, candidate, nil, lockedQC))
}

func TestSafeNode_HigherTCViewIsSafeEvenOffTheLockedChain(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	tree, commits, blocks := chain(t, fx.HashScheme, 2)

	lockedQC := &hsconsensus.QuorumCert{View: blocks[2].View, Commitment: commits[2]}

	// Candidate does not extend the locked block, but carries a timeout
	// certificate proving a later view than the lock was abandoned, so
	// the liveness rule applies.
	otherBranch := hsconsensus.Block{View: 4, ParentCommitment: commits[0]}
	higherTC := &hsconsensus.TimeoutCert{View: blocks[2].View + 1}

	require.True(t, hsconsensus.SafeNode(tree, otherBranch, higherTC, lockedQC))
}

func TestSafeNode_RejectsConflictingLowerView(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	tree, commits, blocks := chain(t, fx.HashScheme, 2)

	lockedQC := &hsconsensus.QuorumCert{View: blocks[2].View, Commitment: commits[2]}

	otherBranch := hsconsensus.Block{View: blocks[2].View, ParentCommitment: commits[0]}
	staleTC := &hsconsensus.TimeoutCert{View: blocks[1].View}

	require.False(t, hsconsensus.SafeNode(tree, otherBranch, staleTC, lockedQC))
}

package hsmerkle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsmerkle"
)

func leaves(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestRootProveVerify_EvenLeafCount(t *testing.T) {
	t.Parallel()

	ls := leaves(4)
	root := hsmerkle.Root(ls)
	require.NotEmpty(t, root)

	for i := range ls {
		proof := hsmerkle.Prove(ls, i)
		require.True(t, hsmerkle.Verify(root, ls[i], proof), "leaf %d should verify", i)
	}
}

func TestRootProveVerify_OddLeafCountPadsLastLeaf(t *testing.T) {
	t.Parallel()

	ls := leaves(5)
	root := hsmerkle.Root(ls)

	for i := range ls {
		proof := hsmerkle.Prove(ls, i)
		require.True(t, hsmerkle.Verify(root, ls[i], proof), "leaf %d should verify", i)
	}
}

func TestVerify_RejectsWrongLeaf(t *testing.T) {
	t.Parallel()

	ls := leaves(4)
	root := hsmerkle.Root(ls)
	proof := hsmerkle.Prove(ls, 2)

	require.False(t, hsmerkle.Verify(root, []byte("not the leaf"), proof))
}

func TestVerify_RejectsWrongRoot(t *testing.T) {
	t.Parallel()

	ls := leaves(4)
	other := hsmerkle.Root(leaves(6))
	proof := hsmerkle.Prove(ls, 1)

	require.False(t, hsmerkle.Verify(other, ls[1], proof))
}

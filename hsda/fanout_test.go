package hsda_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsda"
)

func TestFanoutTree_ParentChildAreInverses(t *testing.T) {
	t.Parallel()

	valIndices := make([]uint64, 23)
	for i := range valIndices {
		valIndices[i] = uint64(i)
	}

	tree := hsda.BuildFanoutTree(valIndices, 7, []byte("commitment"), 3)
	require.Len(t, tree.Layers, 4) // 1 + 3 + 9 + 10

	root := tree.Layers[0][0]
	_, ok := tree.ParentOf(root)
	require.False(t, ok, "root should have no parent")

	for _, v := range valIndices {
		if v == root {
			continue
		}
		parent, ok := tree.ParentOf(v)
		require.True(t, ok, "validator %d should have a parent", v)
		require.Contains(t, tree.ChildrenOf(parent), v, "parent's children should include %d back", v)
	}
}

func TestFanoutTree_ChildrenOfLeafIsEmpty(t *testing.T) {
	t.Parallel()

	valIndices := []uint64{10, 20, 30, 40}
	tree := hsda.BuildFanoutTree(valIndices, 1, []byte("c1"), 2)

	lastLayer := tree.Layers[len(tree.Layers)-1]
	for _, v := range lastLayer {
		require.Empty(t, tree.ChildrenOf(v))
	}
}

func TestFanoutTree_UnknownValidatorHasNoParentOrChildren(t *testing.T) {
	t.Parallel()

	tree := hsda.BuildFanoutTree([]uint64{1, 2, 3}, 1, []byte("c"), 2)

	_, ok := tree.ParentOf(999)
	require.False(t, ok)
	require.Empty(t, tree.ChildrenOf(999))
}

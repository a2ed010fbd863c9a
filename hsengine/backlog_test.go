package hsengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

func TestProposalBacklog_DrainReturnsFIFOOrder(t *testing.T) {
	t.Parallel()

	b := newProposalBacklog(4)
	parent := hsconsensus.Commitment("parent")

	ev1 := ProposalEvent{Commitment: "c1", Block: hsconsensus.Block{View: 1, ParentCommitment: parent}}
	ev2 := ProposalEvent{Commitment: "c2", Block: hsconsensus.Block{View: 2, ParentCommitment: parent}}

	require.True(t, b.add(parent, ev1))
	require.True(t, b.add(parent, ev2))

	drained := b.drain(parent)
	require.Equal(t, []ProposalEvent{ev1, ev2}, drained)

	// Draining again finds nothing: the backlog entry was consumed.
	require.Empty(t, b.drain(parent))
}

func TestProposalBacklog_DropsPastCapacity(t *testing.T) {
	t.Parallel()

	b := newProposalBacklog(1)
	parent := hsconsensus.Commitment("parent")

	ev1 := ProposalEvent{Commitment: "c1", Block: hsconsensus.Block{View: 1, ParentCommitment: parent}}
	ev2 := ProposalEvent{Commitment: "c2", Block: hsconsensus.Block{View: 2, ParentCommitment: parent}}

	require.True(t, b.add(parent, ev1))
	require.False(t, b.add(parent, ev2), "second push should be dropped once capacity is reached")

	require.Equal(t, []ProposalEvent{ev1}, b.drain(parent))
}

func TestProposalBacklog_IndependentParentsDoNotInterfere(t *testing.T) {
	t.Parallel()

	b := newProposalBacklog(4)
	parentA := hsconsensus.Commitment("a")
	parentB := hsconsensus.Commitment("b")

	evA := ProposalEvent{Commitment: "ca", Block: hsconsensus.Block{View: 1, ParentCommitment: parentA}}
	evB := ProposalEvent{Commitment: "cb", Block: hsconsensus.Block{View: 1, ParentCommitment: parentB}}

	require.True(t, b.add(parentA, evA))
	require.True(t, b.add(parentB, evB))

	require.Equal(t, []ProposalEvent{evA}, b.drain(parentA))
	require.Equal(t, []ProposalEvent{evB}, b.drain(parentB))
}

package hsengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsconsensus/hsconsensustest"
	"github.com/hotshot-consensus/hotshot/hsengine"
	"github.com/hotshot-consensus/hotshot/hsstore"
)

func newTestCoordinator(t *testing.T, ctx context.Context, fx *hsconsensustest.Fixture) (*hsengine.Coordinator, *hsengine.Bus) {
	t.Helper()

	bus := hsengine.NewBus()
	genesis, genesisCommitment := fx.Genesis()
	log := slogt.New(t)

	coord, err := hsengine.NewCoordinator(ctx, log, bus, hsengine.Config{
		Store:             hsstore.NewMemStore(),
		ValidatorSet:      fx.Set,
		Membership:        hsconsensus.RoundRobinMembership{},
		HashScheme:        fx.HashScheme,
		SignatureScheme:   fx.SignatureScheme,
		ProofScheme:       fx.ProofScheme,
		Genesis:           genesis,
		GenesisCommitment: genesisCommitment,
		Signer:            fx.Signers[0],
		ViewTimeoutBase:   1000,
	})
	require.NoError(t, err)

	return coord, bus
}

// TestReplicaTask_BacklogsOutOfOrderProposal verifies that a proposal
// delivered before its parent is queued rather than dropped, and is
// processed (producing a vote) once the parent later arrives.
func TestReplicaTask_BacklogsOutOfOrderProposal(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	coord, bus := newTestCoordinator(t, ctx, fx)
	_, genesisCommitment := fx.Genesis()

	replica := hsengine.NewReplicaTask(slogt.New(t), coord, bus)
	go replica.Run(ctx)

	votes := hsengine.Subscribe[hsengine.OutboundVoteEvent](bus, 8)

	// Run subscribes to proposals on its own goroutine, and Publish drops
	// events of a type nobody has subscribed to yet; give it time to
	// subscribe before the first proposal goes out.
	time.Sleep(50 * time.Millisecond)

	b1 := hsconsensus.Block{View: 1, ParentCommitment: genesisCommitment}
	c1 := b1.Commitment(fx.HashScheme)

	b2 := hsconsensus.Block{View: 2, ParentCommitment: c1}
	c2 := b2.Commitment(fx.HashScheme)

	// Publish the child before its parent is known.
	hsengine.Publish(bus, hsengine.ProposalEvent{Commitment: c2, Block: b2})

	select {
	case v := <-votes:
		t.Fatalf("unexpected vote for out-of-order proposal before its parent arrived: %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	// Now publish the parent; both votes should follow.
	hsengine.Publish(bus, hsengine.ProposalEvent{Commitment: c1, Block: b1})

	var seen []hsconsensus.View
	for i := 0; i < 2; i++ {
		select {
		case v := <-votes:
			seen = append(seen, v.Vote.Target.View)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for vote %d", i)
		}
	}

	require.ElementsMatch(t, []hsconsensus.View{1, 2}, seen)
}

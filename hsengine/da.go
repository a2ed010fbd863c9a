package hsengine

import (
	"context"
	"log/slog"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsda"
)

// DATask shards every newly proposed block's payload, casts the local
// validator's DA vote, and aggregates DA votes from peers into a DACert
// once the DA stake threshold is met. It runs independently of the
// QC/TC voting track in AggregatorTask, per spec.md's separate DA
// certificate track.
type DATask struct {
	log   *slog.Logger
	coord *Coordinator
	bus   *Bus

	enc   *hsda.Encoder
	cache *hsda.Cache

	// fanout bounds how many children each validator forwards shards to
	// in the propagation tree built per block; see forwardShards.
	fanout uint32

	collectors map[daKey]*hsda.Collector
}

type daKey struct {
	view       hsconsensus.View
	commitment hsconsensus.Commitment
}

// NewDATask constructs a DATask; call Run in its own goroutine. fanout
// bounds the shard-forwarding tree's branching factor.
func NewDATask(log *slog.Logger, coord *Coordinator, bus *Bus, enc *hsda.Encoder, cache *hsda.Cache, fanout uint32) *DATask {
	return &DATask{
		log:        log,
		coord:      coord,
		bus:        bus,
		enc:        enc,
		cache:      cache,
		fanout:     fanout,
		collectors: make(map[daKey]*hsda.Collector),
	}
}

// Run processes proposals and DA votes until ctx is canceled.
func (t *DATask) Run(ctx context.Context) error {
	proposals := Subscribe[ProposalEvent](t.bus, 32)
	daVotes := Subscribe[DAVoteEvent](t.bus, 64)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-proposals:
			t.shardAndVote(ctx, ev)

		case ev := <-daVotes:
			t.recordDAVote(ctx, ev)
		}
	}
}

func (t *DATask) shardAndVote(ctx context.Context, ev ProposalEvent) {
	set, err := hsda.Shard(t.enc, ev.Block.Payload)
	if err != nil {
		t.log.Error("Failed to shard block payload", "view", ev.Block.View, "err", err)
		return
	}
	t.cache.Put(ev.Commitment, set)

	target := hsda.DAVoteTarget{View: ev.Block.View, Commitment: ev.Commitment, MerkleRoot: set.MerkleRoot}
	sig, err := t.signDAVote(ctx, target)
	if err != nil {
		t.log.Error("Failed to sign DA vote", "err", err)
		return
	}

	Publish(t.bus, DAVoteEvent{
		View:       target.View,
		Commitment: target.Commitment,
		Sig:        sig,
		Signer:     string(t.coord.signer.PubKey().Address()),
	})

	t.forwardShards(ev, set)
}

// forwardShards relays set to the local validator's children in the
// view's fanout tree, so shard propagation is O(fanout) hops rather than
// an O(n) broadcast from the proposer. Every validator derives the same
// tree independently from the view and commitment, so no coordination
// round is needed to learn who forwards to whom.
func (t *DATask) forwardShards(ev ProposalEvent, set hsda.ShardSet) {
	vs := t.coord.ValidatorSet()
	ownIdx := t.ownValidatorIndex(vs)
	if ownIdx < 0 {
		return
	}

	valIndices := make([]uint64, len(vs.Validators))
	for i := range vs.Validators {
		valIndices[i] = uint64(i)
	}

	tree := hsda.BuildFanoutTree(valIndices, uint64(ev.Block.View), []byte(ev.Commitment), t.fanout)
	for _, child := range tree.ChildrenOf(uint64(ownIdx)) {
		Publish(t.bus, OutboundShardEvent{
			View:       ev.Block.View,
			Commitment: ev.Commitment,
			TargetIdx:  int(child),
			Set:        set,
		})
	}
}

func (t *DATask) ownValidatorIndex(vs hsconsensus.ValidatorSet) int {
	self := t.coord.signer.PubKey()
	for i, v := range vs.Validators {
		if v.PubKey.Equal(self) {
			return i
		}
	}
	return -1
}

func (t *DATask) signDAVote(ctx context.Context, target hsda.DAVoteTarget) ([]byte, error) {
	return t.coord.signer.Sign(ctx, target.SignBytes())
}

func (t *DATask) recordDAVote(ctx context.Context, ev DAVoteEvent) {
	key := daKey{view: ev.View, commitment: ev.Commitment}

	col, ok := t.collectors[key]
	if !ok {
		set, haveSet := t.cache.Get(ev.Commitment)
		if !haveSet {
			// We cannot construct a collector without the merkle root, so
			// a vote that arrives before the local shard set is dropped.
			return
		}

		var err error
		col, err = hsda.NewCollector(t.coord.proofScheme, hsda.DAVoteTarget{
			View: ev.View, Commitment: ev.Commitment, MerkleRoot: set.MerkleRoot,
		}, t.coord.vs.PubKeys(), t.coord.PubKeyHash())
		if err != nil {
			t.log.Error("Failed to start DA collector", "err", err)
			return
		}
		t.collectors[key] = col
	}

	signerIdx := -1
	for i, v := range t.coord.vs.Validators {
		if string(v.PubKey.Address()) == ev.Signer {
			signerIdx = i
			break
		}
	}
	if signerIdx < 0 {
		t.log.Info("Dropping DA vote from unknown signer", "view", ev.View)
		return
	}
	signer := t.coord.vs.Validators[signerIdx].PubKey
	set, _ := t.cache.Get(ev.Commitment)
	cert, err := col.Add(ctx, hsda.DAVoteTarget{View: ev.View, Commitment: ev.Commitment, MerkleRoot: set.MerkleRoot}, ev.Sig, signer, t.coord.vs, t.coord.PubKeyHash())
	if err != nil {
		t.log.Info("Dropping DA vote", "err", err)
		return
	}
	if cert != nil {
		delete(t.collectors, key)
		Publish(t.bus, DACertFormedEvent{Cert: cert})
	}
}

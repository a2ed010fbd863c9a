package hsengine

import (
	"context"
	"log/slog"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// AggregatorTask folds incoming votes and timeout votes into the shared
// accumulating proofs, and publishes QCFormedEvent/TCFormedEvent once a
// proof crosses its stake threshold. It also records the local
// validator's own outbound votes, so a validator always sees its own
// vote counted the same way a peer's vote would be.
//
// Signature verification for inbound (network-sourced) votes runs on a
// hsconsensus.VerificationPool rather than inline, per spec.md §5: the
// pool worker does the expensive curve operation while this task's
// goroutine stays free to keep draining the bus. Outbound (locally
// signed) votes skip the pool since they were just produced by this
// validator's own signer.
type AggregatorTask struct {
	log   *slog.Logger
	coord *Coordinator
	bus   *Bus

	verifyPool *hsconsensus.VerificationPool
}

// NewAggregatorTask constructs an AggregatorTask; call Run in its own
// goroutine.
func NewAggregatorTask(log *slog.Logger, coord *Coordinator, bus *Bus) *AggregatorTask {
	return &AggregatorTask{
		log:        log,
		coord:      coord,
		bus:        bus,
		verifyPool: hsconsensus.NewVerificationPool(4),
	}
}

// Run processes votes until ctx is canceled.
func (t *AggregatorTask) Run(ctx context.Context) error {
	inbound := Subscribe[VoteEvent](t.bus, 64)
	outbound := Subscribe[OutboundVoteEvent](t.bus, 64)
	inboundTO := Subscribe[TimeoutVoteEvent](t.bus, 64)
	outboundTO := Subscribe[OutboundTimeoutVoteEvent](t.bus, 64)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-inbound:
			t.recordVoteVerified(ctx, ev.Vote)

		case ev := <-outbound:
			t.recordVote(ctx, ev.Vote)

		case ev := <-inboundTO:
			t.recordTimeoutVoteVerified(ctx, ev.Vote)

		case ev := <-outboundTO:
			t.recordTimeoutVote(ctx, ev.Vote)
		}
	}
}

// recordVoteVerified pre-verifies an inbound vote's signature on the
// verification pool before handing it to the Coordinator, so an
// expensive curve check for a bad vote never contends the consensus
// state lock.
func (t *AggregatorTask) recordVoteVerified(ctx context.Context, v hsconsensus.Vote) {
	msg := v.Target.SignBytes(t.coord.SignatureScheme())
	result := <-t.verifyPool.Submit(v.Signer, msg, v.Sig)
	if !result.Valid {
		t.log.Info("Dropping vote with invalid signature", "view", v.Target.View)
		return
	}
	t.recordVote(ctx, v)
}

func (t *AggregatorTask) recordTimeoutVoteVerified(ctx context.Context, v hsconsensus.TimeoutVote) {
	msg := t.coord.SignatureScheme().TimeoutSignBytes(v.View, v.HighQC)
	result := <-t.verifyPool.Submit(v.Signer, msg, v.Sig)
	if !result.Valid {
		t.log.Info("Dropping timeout vote with invalid signature", "view", v.View)
		return
	}
	t.recordTimeoutVote(ctx, v)
}

func (t *AggregatorTask) recordVote(ctx context.Context, v hsconsensus.Vote) {
	qc, err, ok := t.coord.RecordVote(ctx, v)
	if !ok {
		return
	}
	if err != nil {
		t.log.Info("Dropping vote", "view", v.Target.View, "err", err)
		return
	}
	if qc != nil {
		t.log.Info("Quorum certificate formed", "view", qc.View)
		// Forming a QC is the other half of the locking rule alongside
		// receiving one via a proposal's Justify (see replica.go): the
		// lock must move the moment this validator itself learns of a
		// higher-view QC, not only when a later proposal happens to
		// carry it along.
		t.coord.UpdateLockedQC(ctx, qc)
		Publish(t.bus, QCFormedEvent{QC: qc})
	}
}

func (t *AggregatorTask) recordTimeoutVote(ctx context.Context, v hsconsensus.TimeoutVote) {
	tc, err, ok := t.coord.RecordTimeoutVote(ctx, v)
	if !ok {
		return
	}
	if err != nil {
		t.log.Info("Dropping timeout vote", "view", v.View, "err", err)
		return
	}
	if tc != nil {
		t.log.Info("Timeout certificate formed", "view", tc.View)
		Publish(t.bus, TCFormedEvent{TC: tc})
	}
}

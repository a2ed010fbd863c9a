package hsengine

import (
	"context"
	"log/slog"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// ProposalBuilder supplies the application payload for a new block. Kept
// as a narrow interface so the leader task does not need to know
// anything about how the payload is produced or erasure-coded; see
// hsda for the data-availability side of block production.
type ProposalBuilder interface {
	BuildPayload(ctx context.Context, view hsconsensus.View, parent hsconsensus.Commitment) ([]byte, error)
}

// LeaderTask builds and proposes a block whenever the local validator
// leads the current view, extending the highest known QC.
type LeaderTask struct {
	log     *slog.Logger
	coord   *Coordinator
	bus     *Bus
	builder ProposalBuilder

	// proposed marks a view once this task has already built and
	// inserted a proposal for it, so a second QCFormedEvent or
	// TCFormedEvent naming the same next view (e.g. a late-arriving
	// duplicate, or both a QC and a stale TC resolving to the same
	// view) can never cause a second, equivocating proposal.
	proposed map[hsconsensus.View]bool
}

// NewLeaderTask constructs a LeaderTask; call Run in its own goroutine.
func NewLeaderTask(log *slog.Logger, coord *Coordinator, bus *Bus, builder ProposalBuilder) *LeaderTask {
	return &LeaderTask{log: log, coord: coord, bus: bus, builder: builder, proposed: make(map[hsconsensus.View]bool)}
}

// Run proposes whenever a QC or TC formation advances the view and the
// local validator is the new leader, until ctx is canceled.
func (t *LeaderTask) Run(ctx context.Context) error {
	qcs := Subscribe[QCFormedEvent](t.bus, 32)
	tcs := Subscribe[TCFormedEvent](t.bus, 32)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-qcs:
			t.maybePropose(ctx, ev.QC.View+1, ev.QC, nil, ev.QC.Commitment)

		case ev := <-tcs:
			t.maybePropose(ctx, ev.TC.View+1, ev.TC.HighQC, ev.TC, parentFor(ev.TC.HighQC))
		}
	}
}

func parentFor(qc *hsconsensus.QuorumCert) hsconsensus.Commitment {
	if qc == nil {
		return ""
	}
	return qc.Commitment
}

func (t *LeaderTask) maybePropose(ctx context.Context, view hsconsensus.View, justify *hsconsensus.QuorumCert, tc *hsconsensus.TimeoutCert, parent hsconsensus.Commitment) {
	if t.proposed[view] {
		return
	}

	if !t.coord.IsLocalLeader(ctx, view) {
		return
	}

	parentBlock, ok := t.coord.GetBlock(ctx, parent)
	if !ok {
		t.log.Error("Cannot propose: parent block not known locally", "view", view, "parent", parent)
		return
	}

	payload, err := t.builder.BuildPayload(ctx, view, parent)
	if err != nil {
		t.log.Error("Failed to build proposal payload", "view", view, "err", err)
		return
	}

	block := hsconsensus.Block{
		View:             view,
		Height:           parentBlock.Height + 1,
		ParentCommitment: parent,
		Justify:          justify,
		TC:               tc,
		Payload:          payload,
	}

	commitment := block.Commitment(t.coord.HashScheme())

	if inserted, ok := t.coord.InsertBlock(ctx, commitment, block); ok && inserted {
		t.proposed[view] = true
		t.log.Info("Proposing block", "view", view, "height", block.Height)
		Publish(t.bus, OutboundProposalEvent{Commitment: commitment, Block: block})
		// Also deliver the proposal to the local replica loop, exactly as
		// if it had arrived over the network, so the leader votes on its
		// own proposal too.
		Publish(t.bus, ProposalEvent{Commitment: commitment, Block: block})
	}
}

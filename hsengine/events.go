// Package hsengine wires the Coordinator (the shared-state owner, see
// internal/hskernel) together with the cooperating tasks that drive the
// protocol forward: replica, leader, view-sync/timeout, the vote/QC
// aggregator, and the data-availability task. Tasks never share memory
// directly; they publish and subscribe to typed events over the Bus, and
// call into the Coordinator for anything that touches shared state.
//
// Grounded on the teacher's tmengine package, which wires its Mirror,
// state machine, and gossip strategy together through a set of
// specific-purpose channels declared in tmelink (ProposedHeaderFetcher,
// NetworkViewUpdate, LagState, and so on) rather than a generic bus; this
// module generalizes that into one typed Bus since there are more event
// kinds here (proposal, vote, timeout vote, QC, TC, DA vote, DA cert,
// commit) than tmengine's handful of links.
package hsengine

import (
	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsda"
)

// ProposalEvent is published when a new block proposal is received,
// either from the network or from the local leader task.
type ProposalEvent struct {
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
}

// VoteEvent is published when a vote is received from the network.
type VoteEvent struct {
	Vote hsconsensus.Vote
}

// TimeoutVoteEvent is published when a timeout vote is received from the
// network.
type TimeoutVoteEvent struct {
	Vote hsconsensus.TimeoutVote
}

// QCFormedEvent is published by the aggregator once a quorum certificate
// forms for a (view, commitment) pair.
type QCFormedEvent struct {
	QC *hsconsensus.QuorumCert
}

// TCFormedEvent is published by the aggregator once a timeout certificate
// forms for a view.
type TCFormedEvent struct {
	TC *hsconsensus.TimeoutCert
}

// DAVoteEvent is published when a data-availability vote is received.
type DAVoteEvent struct {
	View       hsconsensus.View
	Commitment hsconsensus.Commitment
	Sig        []byte
	Signer     string // address, to avoid importing hscrypto.PubKey here
}

// DACertFormedEvent is published once a data-availability certificate
// forms for a block's erasure shard set.
type DACertFormedEvent struct {
	Cert *hsconsensus.DACert
}

// CommitEvent is published once the three-chain rule commits a block.
type CommitEvent struct {
	View       hsconsensus.View
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
}

// TimeoutEvent is published by the view-sync task when a view's timer
// elapses without a commit.
type TimeoutEvent struct {
	View hsconsensus.View
}

// OutboundVoteEvent is published by the replica task when the local
// validator casts a vote, for the network task to send to the next
// leader.
type OutboundVoteEvent struct {
	Vote hsconsensus.Vote
}

// OutboundTimeoutVoteEvent is published by the view-sync task when the
// local validator casts a timeout vote.
type OutboundTimeoutVoteEvent struct {
	Vote hsconsensus.TimeoutVote
}

// OutboundProposalEvent is published by the leader task when it builds a
// new proposal, for the network task to broadcast.
type OutboundProposalEvent struct {
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
}

// OutboundShardEvent is published by DATask for each child the local
// validator forwards a sharded payload to in the view's fanout tree,
// for the network task to deliver point-to-point rather than gossip to
// the whole validator set.
type OutboundShardEvent struct {
	View       hsconsensus.View
	Commitment hsconsensus.Commitment
	TargetIdx  int
	Set        hsda.ShardSet
}

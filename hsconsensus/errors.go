package hsconsensus

import "fmt"

// The five error classes below are the taxonomy every task in hsengine
// switches on to decide how to respond to a bad message: drop and score
// down, drop and log, fetch and retry, retry with backoff, or halt.
// Checked with errors.As, same as the teacher's typed store errors (e.g.
// tmstore.NoPubKeyHashError).

// CryptographicError indicates a signature or proof failed verification.
// Never retried; the sender's score is lowered.
type CryptographicError struct {
	Reason string
}

func (e *CryptographicError) Error() string {
	return fmt.Sprintf("cryptographic error: %s", e.Reason)
}

// ProtocolError indicates a message violates the protocol's structural
// rules (wrong view, malformed vote target, and so on). Dropped, and
// surfaced to observability, but the sender is not penalized as harshly
// as for a cryptographic failure.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// MissingError indicates a referenced block, QC, or payload shard is not
// yet available locally. The caller should fetch it and retry the
// operation that produced this error.
type MissingError struct {
	Commitment Commitment
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing block %x", e.Commitment)
}

// TransientError indicates a recoverable failure, typically in the
// network layer (timeout, connection reset). The caller should retry
// with backoff and may fall back to broadcast.
type TransientError struct {
	Reason string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %s", e.Reason)
}

// FatalError indicates local state has become inconsistent in a way that
// cannot be safely continued from. The process should log and halt.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error: %s", e.Reason)
}

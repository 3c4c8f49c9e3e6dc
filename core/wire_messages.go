package core

// wire_messages.go – the messages exchanged between the two sides of an
// account during the two-phase commit (spec.md §6.4). Grounded on the
// teacher's proposal/ack message pair in the old state_channel.go, widened
// to carry a full frame instead of a single state delta.

// AccountFrameProposal is sent by the proposing side to open a commit round.
type AccountFrameProposal struct {
	From        EntityId // entity sending this proposal
	AccountId   EntityId // counterparty being proposed to
	Frame       AccountFrame
	ProposerSig Signature
}

// AccountFrameAck is the receiving side's co-signature over a proposal it
// independently recomputed and accepted.
type AccountFrameAck struct {
	AccountId    EntityId
	StateHash    Hash
	ReceiverSig  Signature
}

// AccountFrameNak is returned instead of an Ack when the receiver's replay of
// the proposal does not match, carrying enough detail to diagnose a dispute.
type AccountFrameNak struct {
	AccountId     EntityId
	Reason        string
	ExpectedHash  Hash
}

// AccountFrameFinalize closes the round: the proposer aggregates both
// signatures into a hanko and broadcasts it so the receiver need not
// re-derive it.
type AccountFrameFinalize struct {
	AccountId EntityId
	StateHash Hash
	Hanko     Hanko
}

// SettleIntent notifies a counterparty that a settlement workspace has been
// updated and needs review (spec.md §6.4). It carries the full workspace
// state rather than a diff, so the receiving side's mirror converges on one
// delivery instead of needing to replay history.
type SettleIntent struct {
	From               EntityId // entity sending this intent
	AccountId          EntityId // counterparty being notified
	Version            uint32
	Ops                []SettlementOp
	Proposer           EntityId
	LastModifiedByLeft bool
	Status             SettlementStatus
	ExecutorIsLeft     bool
	ApprovedBy         map[EntityId]Signature
	Hanko              Hanko
}

package core

// jurisdiction_events.go – the JurisdictionEvent sum type and its payloads
// (spec.md §4.4, "Finalization"). Reconciliation into local state lives in
// jurisdiction_batch.go and EntityState.HandleJurisdictionEvent. Chain events
// are expected in strictly increasing (jBlockNumber, logIndex) order, per
// §4.4 "Ordering guarantees".

// JurisdictionEventKind tags the JurisdictionEvent variant.
type JurisdictionEventKind string

const (
	EventBatchConfirmed             JurisdictionEventKind = "batch_confirmed"
	EventBatchFailed                JurisdictionEventKind = "batch_failed"
	EventCounterpartyBatchConfirmed JurisdictionEventKind = "counterparty_batch_confirmed"
	EventDisputeStarted             JurisdictionEventKind = "dispute_started"
	EventDisputeFinalized           JurisdictionEventKind = "dispute_finalized"
)

// JurisdictionEvent is the closed sum type consumed from the jurisdiction
// adapter's event stream. Exactly one of the payload fields is populated,
// selected by Kind.
type JurisdictionEvent struct {
	Kind        JurisdictionEventKind
	TxHash      Hash
	JBlockNumber uint64
	LogIndex    uint64

	BatchConfirmedPayload             *BatchConfirmedPayload
	BatchFailedPayload                *BatchFailedPayload
	CounterpartyBatchConfirmedPayload *CounterpartyBatchConfirmedPayload
	DisputeStartedPayload             *DisputeStartedPayload
	DisputeFinalizedPayload           *DisputeFinalizedPayload
}

type BatchConfirmedPayload struct {
	EntityId     EntityId
	EntityNonce  uint64
	EventType    string
}

type BatchFailedPayload struct {
	EntityNonce uint64
	Reason      string
}

// CounterpartyOpEffect describes one collateral/delta mutation implied by a
// counterparty-initiated batch confirmation.
type CounterpartyOpEffect struct {
	Counterparty    EntityId
	Token           TokenId
	CollateralDelta Amount
	OndeltaDelta    Amount
}

type CounterpartyBatchConfirmedPayload struct {
	EntityId EntityId
	OpIndex  uint64
	Effects  []CounterpartyOpEffect
}

type DisputeStartedPayload struct {
	Counterparty  EntityId
	TimeoutBlock  uint64
	InitialNonce  uint64
}

type DisputeFinalizedPayload struct {
	Counterparty EntityId
	Cooperative  bool
}

// dedupKey identifies an event for idempotent replay handling.
type dedupKey struct {
	txHash  Hash
	opIndex uint64
}

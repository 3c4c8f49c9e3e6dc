package core

// jurisdiction_batch.go – the Jurisdiction Batch Pipeline (spec.md §4.4):
// amortizes on-chain cost by aggregating ops into one signed batch per
// entity, tracks its draft/sent/finalized lifecycle, and resolves fee
// presets against the adapter's suggested base fee. Grounded on the
// teacher's gas-table scaling in the old gas_table.go (preset multipliers
// over a base fee), adapted from a fixed opcode-gas schedule to the three
// named broadcast urgency presets spec.md requires.

import (
	"context"
	"math/big"
)

// FeePreset names a broadcast urgency tier.
type FeePreset string

const (
	FeeStandard FeePreset = "standard"
	FeeFast     FeePreset = "fast"
	FeeUrgent   FeePreset = "urgent"
	FeeCustom   FeePreset = "custom"
)

var feePresetMultiplier = map[FeePreset]float64{
	FeeStandard: 1.0,
	FeeFast:     1.2,
	FeeUrgent:   1.5,
}

const defaultRebroadcastBumpBps = 1000

// resolveFee scales base by the named preset, or returns overrides verbatim
// for FeeCustom (spec.md §4.4 "Broadcast").
func resolveFee(preset FeePreset, base FeeData, overrides *FeeOverrides) (FeeOverrides, error) {
	if preset == FeeCustom {
		if overrides == nil {
			return FeeOverrides{}, ValidationError("jbp.resolve_fee", errFmt("custom preset requires fee overrides"))
		}
		return *overrides, nil
	}
	mult, ok := feePresetMultiplier[preset]
	if !ok {
		return FeeOverrides{}, ValidationError("jbp.resolve_fee", errFmt("unknown fee preset %q", preset))
	}
	return FeeOverrides{
		MaxFeePerGas:         scaleAmount(base.MaxFeePerGas, mult),
		MaxPriorityFeePerGas: scaleAmount(base.MaxPriorityFeePerGas, mult),
	}, nil
}

func scaleAmount(a Amount, mult float64) Amount {
	// mult is one of {1.0, 1.2, 1.5}; represent as a per-mille integer ratio
	// so scaling stays exact integer arithmetic (spec.md §9 "BigInt-only
	// arithmetic" — no floats touch state).
	permille := big.NewInt(int64(mult * 1000))
	v := a.BigInt()
	v.Mul(v, permille)
	v.Div(v, big.NewInt(1000))
	return AmountFromBig(v)
}

func bumpByBps(a Amount, bps int) Amount {
	v := a.BigInt()
	v.Mul(v, big.NewInt(int64(10000+bps)))
	v.Div(v, big.NewInt(10000))
	return AmountFromBig(v)
}

// DraftBatch accumulates ops awaiting the next broadcast (spec.md §4.4
// "Batch shape").
type DraftBatch struct {
	ReserveToCollateral    []R2COp
	CollateralToReserve    []C2ROp
	ReserveToReserve       []R2ROp
	Settlements            []TokenDiff
	DisputeStarts          []DisputeStartOp
	DisputeFinalizations   []DisputeFinalizeOp
	ExternalTokenToReserve []ExternalTokenToReserveOp
	ReserveToExternalToken []ReserveToExternalTokenOp
	RevealSecrets          []RevealSecretOp
}

func (b *DraftBatch) isEmpty() bool {
	return len(b.ReserveToCollateral) == 0 && len(b.CollateralToReserve) == 0 &&
		len(b.ReserveToReserve) == 0 && len(b.Settlements) == 0 &&
		len(b.DisputeStarts) == 0 && len(b.DisputeFinalizations) == 0 &&
		len(b.ExternalTokenToReserve) == 0 && len(b.ReserveToExternalToken) == 0 &&
		len(b.RevealSecrets) == 0
}

type DisputeStartOp struct {
	Counterparty EntityId
	LastStateHash Hash
}

type DisputeFinalizeOp struct {
	Counterparty EntityId
	Cooperative  bool
}

type ExternalTokenToReserveOp struct {
	Signer SignerId
	Token  TokenId
	Amount Amount
}

type ReserveToExternalTokenOp struct {
	Token  TokenId
	Amount Amount
}

type RevealSecretOp struct {
	LockId   LockId
	Preimage []byte
}

// BatchStatus is the JBP lifecycle position (spec.md §4.4).
type BatchStatus string

const (
	BatchNoBatch    BatchStatus = "no_batch"
	BatchDraft      BatchStatus = "draft"
	BatchSent       BatchStatus = "sent"
	BatchFinalized  BatchStatus = "finalized" // transient; immediately folded into history
)

// SentBatch is the in-flight, submitted batch awaiting chain confirmation.
type SentBatch struct {
	Nonce           uint64
	BatchHash       Hash
	Ops             DraftBatch
	SubmitAttempts  int
	LastSubmittedAt int64
	TxHash          Hash
}

// BatchHistoryEntry is an immutable record of a batch's terminal outcome.
type BatchHistoryEntry struct {
	Nonce       uint64
	BatchHash   Hash
	Status      string // "confirmed" | "failed" | "counterparty-event"
	JBlockNumber uint64
	Source      string
}

// JurisdictionBatchPipeline holds one entity's JBP state.
type JurisdictionBatchPipeline struct {
	Draft   DraftBatch
	Sent    *SentBatch
	History []BatchHistoryEntry

	EntityNonce          uint64
	LastFinalizedNonce   uint64
	LastFinalizedJHeight uint64

	seenTx map[Hash]map[uint64]bool // dedup: txHash -> opIndex -> seen
}

func NewJurisdictionBatchPipeline() *JurisdictionBatchPipeline {
	return &JurisdictionBatchPipeline{seenTx: make(map[Hash]map[uint64]bool)}
}

func (p *JurisdictionBatchPipeline) status() BatchStatus {
	if p.Sent != nil {
		return BatchSent
	}
	if !p.Draft.isEmpty() {
		return BatchDraft
	}
	return BatchNoBatch
}

// Broadcast computes batchHash, resolves the fee preset, submits via the
// adapter and transitions Draft -> Sent. Refused while a Sent batch is
// already in flight (spec.md §4.4 invariant).
func (p *JurisdictionBatchPipeline) Broadcast(ctx context.Context, adapter JurisdictionAdapter, signer SignerId, crypto Crypto, preset FeePreset, overrides *FeeOverrides) (SubmitResult, error) {
	if p.Sent != nil {
		return SubmitResult{}, JurisdictionError("jbp.broadcast", errFmt("a batch is already in flight (nonce %d)", p.Sent.Nonce))
	}
	if p.Draft.isEmpty() {
		return SubmitResult{}, ValidationError("jbp.broadcast", errFmt("draft batch is empty"))
	}

	nonce := p.EntityNonce + 1
	hash, err := canonicalHash(struct {
		Batch DraftBatch
		Nonce uint64
	}{p.Draft, nonce})
	if err != nil {
		return SubmitResult{}, IntegrityError("jbp.broadcast", err)
	}

	base, err := adapter.GetFeeData(ctx)
	if err != nil {
		return SubmitResult{}, JurisdictionError("jbp.broadcast", err)
	}
	fee, err := resolveFee(preset, base, overrides)
	if err != nil {
		return SubmitResult{}, err
	}

	sig, err := crypto.Sign(signer, hash)
	if err != nil {
		return SubmitResult{}, SignatureError("jbp.broadcast", err)
	}
	payload := mustJSON(struct {
		Batch DraftBatch
		Nonce uint64
		Sig   Signature
	}{p.Draft, nonce, sig})

	result, err := adapter.SubmitProcessBatch(ctx, payload, fee)
	if err != nil {
		return SubmitResult{}, JurisdictionError("jbp.broadcast", err)
	}

	p.EntityNonce = nonce
	p.Sent = &SentBatch{Nonce: nonce, BatchHash: hash, Ops: p.Draft, SubmitAttempts: 1, TxHash: result.TxHash}
	p.Draft = DraftBatch{}
	recordBatchSubmit("broadcast")
	return result, nil
}

// Rebroadcast resubmits the in-flight Sent batch with fees bumped by bps,
// keeping the same entityNonce (spec.md §4.4 "j_rebroadcast").
func (p *JurisdictionBatchPipeline) Rebroadcast(ctx context.Context, adapter JurisdictionAdapter, signer SignerId, crypto Crypto, bumpBps int) (SubmitResult, error) {
	if p.Sent == nil {
		return SubmitResult{}, ConsensusError("jbp.rebroadcast", errFmt("no sent batch to rebroadcast"))
	}
	if bumpBps <= 0 {
		bumpBps = defaultRebroadcastBumpBps
	}
	base, err := adapter.GetFeeData(ctx)
	if err != nil {
		return SubmitResult{}, JurisdictionError("jbp.rebroadcast", err)
	}
	fee := FeeOverrides{
		MaxFeePerGas:         bumpByBps(base.MaxFeePerGas, bumpBps),
		MaxPriorityFeePerGas: bumpByBps(base.MaxPriorityFeePerGas, bumpBps),
	}
	sig, err := crypto.Sign(signer, p.Sent.BatchHash)
	if err != nil {
		return SubmitResult{}, SignatureError("jbp.rebroadcast", err)
	}
	payload := mustJSON(struct {
		Batch DraftBatch
		Nonce uint64
		Sig   Signature
	}{p.Sent.Ops, p.Sent.Nonce, sig})

	result, err := adapter.SubmitProcessBatch(ctx, payload, fee)
	if err != nil {
		return SubmitResult{}, JurisdictionError("jbp.rebroadcast", err)
	}
	p.Sent.SubmitAttempts++
	p.Sent.TxHash = result.TxHash
	recordBatchSubmit("rebroadcast")
	return result, nil
}

// ClearDraft discards queued draft ops. Refused while a batch is in flight
// (spec.md §4.4 "j_clear_batch").
func (p *JurisdictionBatchPipeline) ClearDraft(reason string) error {
	if p.Sent != nil {
		return ConsensusError("jbp.clear_batch", errFmt("cannot clear draft while a batch is in flight"))
	}
	p.Draft = DraftBatch{}
	return nil
}

// HandleBatchConfirmed reconciles a BatchConfirmed event into history,
// idempotent per spec.md §4.4 "Ordering guarantees".
func (p *JurisdictionBatchPipeline) HandleBatchConfirmed(ev JurisdictionEvent) error {
	if ev.BatchConfirmedPayload == nil {
		return ValidationError("jbp.batch_confirmed", errFmt("nil payload"))
	}
	payload := ev.BatchConfirmedPayload
	if p.dedup(ev.TxHash, 0) {
		return nil
	}
	if p.Sent == nil || p.Sent.Nonce != payload.EntityNonce {
		return nil // stale/foreign event, ignore per nonce-gating rule
	}
	p.History = append(p.History, BatchHistoryEntry{
		Nonce: p.Sent.Nonce, BatchHash: p.Sent.BatchHash, Status: "confirmed",
		JBlockNumber: ev.JBlockNumber, Source: "self",
	})
	p.LastFinalizedNonce = p.Sent.Nonce
	p.LastFinalizedJHeight = ev.JBlockNumber
	p.Sent = nil
	return nil
}

// HandleBatchFailed moves a Sent batch to history as failed.
func (p *JurisdictionBatchPipeline) HandleBatchFailed(ev JurisdictionEvent) error {
	if ev.BatchFailedPayload == nil {
		return ValidationError("jbp.batch_failed", errFmt("nil payload"))
	}
	if p.dedup(ev.TxHash, 0) {
		return nil
	}
	if p.Sent == nil || p.Sent.Nonce != ev.BatchFailedPayload.EntityNonce {
		return nil
	}
	p.History = append(p.History, BatchHistoryEntry{
		Nonce: p.Sent.Nonce, BatchHash: p.Sent.BatchHash, Status: "failed", Source: "self",
	})
	p.Sent = nil
	return nil
}

// HandleCounterpartyBatchConfirmed records a read-only history entry for a
// counterparty-initiated batch; its per-account effects are applied by the
// caller (EntityState.HandleJurisdictionEvent in entity_state.go) against
// the referenced accounts.
func (p *JurisdictionBatchPipeline) HandleCounterpartyBatchConfirmed(ev JurisdictionEvent) (bool, error) {
	if ev.CounterpartyBatchConfirmedPayload == nil {
		return false, ValidationError("jbp.counterparty_batch_confirmed", errFmt("nil payload"))
	}
	if p.dedup(ev.TxHash, ev.CounterpartyBatchConfirmedPayload.OpIndex) {
		return false, nil
	}
	p.History = append(p.History, BatchHistoryEntry{
		JBlockNumber: ev.JBlockNumber, Status: "counterparty-event", Source: "counterparty-event",
	})
	return true, nil
}

func (p *JurisdictionBatchPipeline) dedup(tx Hash, opIndex uint64) bool {
	if p.seenTx == nil {
		p.seenTx = make(map[Hash]map[uint64]bool)
	}
	seen, ok := p.seenTx[tx]
	if !ok {
		seen = make(map[uint64]bool)
		p.seenTx[tx] = seen
	}
	if seen[opIndex] {
		return true
	}
	seen[opIndex] = true
	return false
}

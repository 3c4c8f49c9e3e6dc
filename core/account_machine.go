package core

// account_machine.go – the Account Consensus Engine (spec.md §4): the two-
// phase commit state machine that advances a bilateral account one
// AccountFrame at a time. Grounded on the teacher's Channel.ProposeUpdate /
// Channel.ApplyUpdate pair in the old state_channel.go, generalized from a
// single-slot balance update to a queued mempool of AccountTx applied as a
// batch per frame, with an explicit retry/backoff policy and dispute escalation
// the teacher's version did not need.

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// AccountStatus is the ACE's local state machine position (spec.md §4.2).
type AccountStatus string

const (
	StatusIdle             AccountStatus = "idle"
	StatusProposingLocal   AccountStatus = "proposing_local"
	StatusAwaitingAck      AccountStatus = "awaiting_ack"
	StatusAwaitingFinalize AccountStatus = "awaiting_finalize"
	StatusDisputed         AccountStatus = "disputed"
	StatusClosed           AccountStatus = "closed"
)

const frameHistoryCap = 32

const (
	retryBaseBackoffMs = 200
	retryMaxBackoffMs  = 5000
	retryMaxAttempts   = 3
)

// Dispute records why an account escalated out of cooperative operation.
type Dispute struct {
	Reason       string
	RaisedHeight uint64
	Cooperative  bool
}

// AccountMachine is one side's local view of a bilateral account. Both
// sides of a pair run an identical AccountMachine keyed by the other's
// EntityId; LeftId is always the lexicographically smaller of the two
// (spec.md §3.1's deterministic role assignment).
type AccountMachine struct {
	LeftId  EntityId
	RightId EntityId
	Self    EntityId // which of LeftId/RightId this instance represents

	deltas   map[TokenId]Delta
	lockBook *LockBook
	swapBook *SwapBook
	workspace *SettlementWorkspace

	// pendingSettleIntent is the outbound SettleIntent queued by the most
	// recent local settle_propose/update/approve/reject, collected and
	// cleared by EntityState.Tick's outbound step (spec.md §4.3 step 4).
	pendingSettleIntent *SettleIntent

	// onDispute is invoked whenever escalate() fires, so an automatic
	// ACE-internal dispute surfaces into the owning entity's JBP draft the
	// same way a manual dispute_start does. Nil for AccountMachines built
	// outside an EntityState (e.g. tests).
	onDispute func(reason string)

	mempool       []AccountTx
	currentFrame  AccountFrame
	pendingFrame  *AccountFrame
	pendingTxs    []AccountTx
	pendingDeltas map[TokenId]Delta

	history []AccountFrame // ring, newest last, capped at frameHistoryCap

	status       AccountStatus
	dispute      *Dispute
	retryAttempt int

	lastFinalizedJHeight uint64

	crypto Crypto
	clock  Clock
	log    *log.Entry
}

// NewAccountMachine wires a fresh, empty account between a and b. Role
// assignment (LeftId/RightId) is the deterministic lexicographic compare of
// spec.md §3.1.
func NewAccountMachine(a, b EntityId, self EntityId, crypto Crypto, clock Clock) *AccountMachine {
	left, right := a, b
	if !a.Less(b) {
		left, right = b, a
	}
	return &AccountMachine{
		LeftId:  left,
		RightId: right,
		Self:    self,
		deltas:  make(map[TokenId]Delta),
		lockBook: NewLockBook(),
		swapBook: NewSwapBook(),
		status:  StatusIdle,
		crypto:  crypto,
		clock:   clock,
		log:     log.WithField("component", "ace").WithField("left", left.String()).WithField("right", right.String()),
	}
}

func (m *AccountMachine) isLeft(id EntityId) bool { return id == m.LeftId }

// counterpartyOf returns the other side of the pair from self.
func (m *AccountMachine) counterpartyOf(self EntityId) EntityId {
	if self == m.LeftId {
		return m.RightId
	}
	return m.LeftId
}

// Status returns the account's current lifecycle position.
func (m *AccountMachine) Status() AccountStatus { return m.status }

// CurrentFrame returns the last finalized frame.
func (m *AccountMachine) CurrentFrame() AccountFrame { return m.currentFrame }

// HasWorkspace reports whether a settlement workspace is currently open on
// this account, so callers can tell settle_propose (no workspace yet) apart
// from settle_update (spec.md §4.2).
func (m *AccountMachine) HasWorkspace() bool { return m.workspace != nil }

// DeltaView returns the derived capacity view for token from self's
// perspective (spec.md §6.2 "deriveDelta").
func (m *AccountMachine) DeltaView(token TokenId, self EntityId) DerivedDelta {
	return DeriveDelta(m.deltas[token], m.isLeft(self))
}

// isProposer reports whether Self is the designated proposer for the next
// frame. Role alternates by frame height so neither side starves the other
// under contention (spec.md §4.2's "alternating by default" policy).
func (m *AccountMachine) isProposer() bool {
	nextHeight := m.currentFrame.Height + 1
	selfIsLeft := m.isLeft(m.Self)
	leftProposes := nextHeight%2 == 1
	return selfIsLeft == leftProposes
}

// Enqueue adds a tx to the local mempool for inclusion in the next proposed
// frame.
func (m *AccountMachine) Enqueue(tx AccountTx) {
	m.mempool = append(m.mempool, tx)
}

// ProposeNextFrame builds a candidate frame from the current mempool and
// signs it, transitioning to AwaitingAck. Returns nil, nil if this side is
// not the proposer or the mempool is empty (spec.md §4.1 step 1).
func (m *AccountMachine) ProposeNextFrame(signer SignerId) (*AccountFrameProposal, error) {
	if m.status != StatusIdle {
		return nil, ConsensusError("ace.propose", errFmt("cannot propose while status is %q", m.status))
	}
	if !m.isProposer() || len(m.mempool) == 0 {
		return nil, nil
	}

	scratch := copyDeltas(m.deltas)
	scratchLock := m.lockBook
	scratchSwap := m.swapBook
	trial := &AccountMachine{
		LeftId: m.LeftId, RightId: m.RightId, Self: m.Self,
		deltas: scratch, lockBook: scratchLock, swapBook: scratchSwap,
		crypto: m.crypto, clock: m.clock,
	}

	txs := make([]AccountTx, len(m.mempool))
	copy(txs, m.mempool)
	for _, tx := range txs {
		if err := trial.applyAccountTx(tx); err != nil {
			return nil, err
		}
	}

	tokenIds := tokenIdsOf(scratch)
	frame := AccountFrame{
		Height:        m.currentFrame.Height + 1,
		Timestamp:     m.clock.Now().Unix(),
		AccountTxs:    txs,
		TokenIds:      tokenIds,
		ByLeft:        m.isLeft(m.Self),
		PrevStateHash: m.currentFrame.StateHash,
	}
	hash, err := computeFrameHash(frame, deltaValues(scratch))
	if err != nil {
		return nil, IntegrityError("ace.propose", err)
	}
	frame.StateHash = hash

	sig, err := m.crypto.Sign(signer, hash)
	if err != nil {
		return nil, SignatureError("ace.propose", err)
	}

	m.pendingFrame = &frame
	m.pendingTxs = txs
	m.pendingDeltas = scratch
	m.status = StatusAwaitingAck

	return &AccountFrameProposal{From: m.Self, AccountId: m.counterpartyOf(m.Self), Frame: frame, ProposerSig: sig}, nil
}

// HandleProposal validates a counterparty's proposal by independently
// replaying its txs, returning an Ack on match or a Nak describing the
// mismatch (spec.md §4.1 step 2).
func (m *AccountMachine) HandleProposal(p *AccountFrameProposal, proposerSigner SignerId, signer SignerId) (*AccountFrameAck, *AccountFrameNak, error) {
	if p.Frame.PrevStateHash != m.currentFrame.StateHash {
		return nil, &AccountFrameNak{AccountId: m.Self, Reason: "prev_state_hash mismatch", ExpectedHash: m.currentFrame.StateHash}, nil
	}
	if !m.crypto.Verify(proposerSigner, p.Frame.StateHash, p.ProposerSig) {
		return nil, &AccountFrameNak{AccountId: m.Self, Reason: "invalid proposer signature"}, nil
	}

	scratch := copyDeltas(m.deltas)
	trial := &AccountMachine{LeftId: m.LeftId, RightId: m.RightId, Self: m.Self, deltas: scratch, lockBook: m.lockBook, swapBook: m.swapBook, crypto: m.crypto, clock: m.clock}
	for _, tx := range p.Frame.AccountTxs {
		if err := trial.applyAccountTx(tx); err != nil {
			return nil, &AccountFrameNak{AccountId: m.Self, Reason: err.Error()}, nil
		}
	}
	wantHash, err := computeFrameHash(p.Frame, deltaValues(scratch))
	if err != nil {
		return nil, nil, IntegrityError("ace.handle_proposal", err)
	}
	if wantHash != p.Frame.StateHash {
		return nil, &AccountFrameNak{AccountId: m.Self, Reason: "recomputed state hash mismatch", ExpectedHash: wantHash}, nil
	}

	sig, err := m.crypto.Sign(signer, p.Frame.StateHash)
	if err != nil {
		return nil, nil, SignatureError("ace.handle_proposal", err)
	}

	m.pendingFrame = &p.Frame
	m.pendingTxs = p.Frame.AccountTxs
	m.pendingDeltas = scratch
	m.status = StatusAwaitingFinalize

	return &AccountFrameAck{AccountId: m.Self, StateHash: p.Frame.StateHash, ReceiverSig: sig}, nil, nil
}

// HandleAck aggregates the counterparty's ack into a finalize message
// (spec.md §4.1 step 3). Only valid for the proposing side.
func (m *AccountMachine) HandleAck(ack *AccountFrameAck, proposerSig Signature) (*AccountFrameFinalize, error) {
	if m.status != StatusAwaitingAck || m.pendingFrame == nil {
		return nil, ConsensusError("ace.handle_ack", errFmt("no pending proposal to ack"))
	}
	if ack.StateHash != m.pendingFrame.StateHash {
		return nil, m.escalate("ack state hash mismatch")
	}
	hanko, err := m.crypto.Aggregate([]Signature{proposerSig, ack.ReceiverSig})
	if err != nil {
		return nil, SignatureError("ace.handle_ack", err)
	}
	m.commitPending()
	return &AccountFrameFinalize{AccountId: m.Self, StateHash: ack.StateHash, Hanko: hanko}, nil
}

// HandleFinalize commits the pending frame on the receiving side once the
// proposer's finalize message arrives (spec.md §4.1 step 4).
func (m *AccountMachine) HandleFinalize(f *AccountFrameFinalize) error {
	if m.status != StatusAwaitingFinalize || m.pendingFrame == nil {
		return ConsensusError("ace.handle_finalize", errFmt("no pending frame to finalize"))
	}
	if f.StateHash != m.pendingFrame.StateHash {
		return m.escalate("finalize state hash mismatch")
	}
	m.commitPending()
	return nil
}

func (m *AccountMachine) commitPending() {
	m.deltas = m.pendingDeltas
	m.currentFrame = *m.pendingFrame
	m.history = append(m.history, m.currentFrame)
	if len(m.history) > frameHistoryCap {
		m.history = m.history[len(m.history)-frameHistoryCap:]
	}
	m.mempool = nil
	m.pendingFrame = nil
	m.pendingTxs = nil
	m.pendingDeltas = nil
	m.retryAttempt = 0
	m.status = StatusIdle
}

// escalate moves the account into dispute, the terminal response to any
// consensus mismatch spec.md §4.2 defines as unrecoverable without an
// on-chain resolution.
func (m *AccountMachine) escalate(reason string) error {
	m.status = StatusDisputed
	m.dispute = &Dispute{Reason: reason, RaisedHeight: m.currentFrame.Height}
	m.log.WithField("reason", reason).Warn("account entering dispute")
	recordDispute(reason)
	if m.onDispute != nil {
		m.onDispute(reason)
	}
	return ConsensusError("ace.escalate", errFmt("%s", reason))
}

// NextBackoff returns the delay before the next proposal retry, capped at
// retryMaxBackoffMs, and reports whether retryMaxAttempts has been exceeded.
// Nothing in this package calls it: proposals are not retried, and dispute
// escalation happens only on an ack or finalize hash mismatch.
func (m *AccountMachine) NextBackoff() (ms int, exhausted bool) {
	m.retryAttempt++
	if m.retryAttempt > retryMaxAttempts {
		return 0, true
	}
	backoff := retryBaseBackoffMs << uint(m.retryAttempt-1)
	if backoff > retryMaxBackoffMs {
		backoff = retryMaxBackoffMs
	}
	return backoff, false
}

// queueSettleIntentFromWorkspace snapshots the current workspace into an
// outbound SettleIntent so the counterparty's mirror converges on the next
// tick's outbound step (spec.md §4.3 step 4, §6.4).
func (m *AccountMachine) queueSettleIntentFromWorkspace() {
	if m.workspace == nil {
		return
	}
	approved := make(map[EntityId]Signature, len(m.workspace.ApprovedBy))
	for k, v := range m.workspace.ApprovedBy {
		approved[k] = v
	}
	m.pendingSettleIntent = &SettleIntent{
		From:               m.Self,
		AccountId:          m.counterpartyOf(m.Self),
		Version:            m.workspace.Version,
		Ops:                m.workspace.Ops,
		Proposer:           m.workspace.Proposer,
		LastModifiedByLeft: m.workspace.LastModifiedByLeft,
		Status:             m.workspace.Status,
		ExecutorIsLeft:     m.workspace.ExecutorIsLeft,
		ApprovedBy:         approved,
		Hanko:              m.workspace.Hanko,
	}
}

func copyDeltas(in map[TokenId]Delta) map[TokenId]Delta {
	out := make(map[TokenId]Delta, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func deltaValues(m map[TokenId]Delta) []Delta {
	out := make([]Delta, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	return out
}

func tokenIdsOf(m map[TokenId]Delta) []TokenId {
	out := make([]TokenId, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

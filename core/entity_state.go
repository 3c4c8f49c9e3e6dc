package core

// entity_state.go – the Entity Replicated Machine (spec.md §4.3): owns an
// entity's reserves, accounts, jurisdiction batch and gossip profile, and
// advances them by executing EntityTx in strict order. Grounded on the
// teacher's per-node replicated state object in the old common_structs.go
// (a single struct owning every subsystem's state, advanced by one apply
// loop), narrowed here to the four subsystems this domain needs.

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
)

// EntityState is one entity's complete durable state.
type EntityState struct {
	Id       EntityId
	Reserves map[TokenId]Amount
	Accounts map[EntityId]*AccountMachine
	JBP      *JurisdictionBatchPipeline
	Profile  Profile

	Height    uint64
	StateHash Hash

	// PrimarySigner is the signer used for entity-level acts (jurisdiction
	// broadcast, frame proposal) when an EntityTx does not name one itself.
	// Most single-operator deployments have exactly one signer per entity.
	PrimarySigner SignerId

	crypto   Crypto
	keystore KeyStore
	clock    Clock
	tokens   TokenRegistry
	log      *log.Entry
}

// NewEntityState creates an empty entity ready to receive EntityTx.
func NewEntityState(id EntityId, primarySigner SignerId, crypto Crypto, keystore KeyStore, clock Clock, tokens TokenRegistry) *EntityState {
	return &EntityState{
		Id:            id,
		Reserves:      make(map[TokenId]Amount),
		Accounts:      make(map[EntityId]*AccountMachine),
		JBP:           NewJurisdictionBatchPipeline(),
		PrimarySigner: primarySigner,
		crypto:        crypto,
		keystore:      keystore,
		clock:         clock,
		tokens:        tokens,
		log:           log.WithField("component", "erm").WithField("entity", id.String()),
	}
}

func (e *EntityState) account(counterparty EntityId) (*AccountMachine, bool) {
	a, ok := e.Accounts[counterparty]
	return a, ok
}

func (e *EntityState) mustAccount(counterparty EntityId) (*AccountMachine, error) {
	a, ok := e.account(counterparty)
	if !ok {
		return nil, ValidationError("erm.account", errFmt("no account with counterparty %s", counterparty.String()))
	}
	return a, nil
}

// ApplyEntityTxs applies txs in order, per spec.md §4.3 "Frame production"
// step 1. A failing tx does not stop the batch: every tx is attempted, the
// errors are collected and returned, and txs already applied are not rolled
// back, matching the teacher's fail-forward apply loop.
func (e *EntityState) ApplyEntityTxs(ctx context.Context, adapter JurisdictionAdapter, txs []EntityTx) []error {
	var errs []error
	for _, tx := range txs {
		if err := e.applyEntityTx(ctx, adapter, tx); err != nil {
			e.log.WithError(err).WithField("kind", tx.Kind).Warn("entity tx rejected")
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *EntityState) applyEntityTx(ctx context.Context, adapter JurisdictionAdapter, tx EntityTx) error {
	switch tx.Kind {
	case TxOpenAccount:
		return e.applyOpenAccount(tx.OpenAccount)
	case TxDirectPaymentE:
		return e.delegateAccountTx(tx.DirectPayment.Counterparty, AccountTx{
			Kind: TxDirectPayment, Sender: e.Id,
			DirectPayment: &DirectPaymentTx{Token: tx.DirectPayment.Token, Amount: tx.DirectPayment.Amount, Description: tx.DirectPayment.Description},
		})
	case TxExtendCredit:
		return e.applyExtendCredit(tx.ExtendCredit)
	case TxSetCreditLimitE:
		return e.delegateAccountTx(tx.SetCreditLimit.Counterparty, AccountTx{
			Kind: TxSetCreditLimit, Sender: e.Id,
			SetCreditLimit: &SetCreditLimitTx{Token: tx.SetCreditLimit.Token, Side: tx.SetCreditLimit.Side, Amount: tx.SetCreditLimit.Amount},
		})
	case TxDepositCollateral:
		return e.applyDepositCollateral(tx.DepositCollateral)
	case TxRequestWithdrawal:
		return e.applyRequestWithdrawal(tx.RequestWithdrawal)
	case TxReserveToReserve:
		return e.applyReserveToReserve(tx.ReserveToReserve)
	case TxSettlePropose:
		return e.applySettlePropose(tx.SettlePropose)
	case TxSettleUpdate:
		return e.applySettleUpdate(tx.SettleUpdate)
	case TxSettleApprove:
		return e.applySettleApprove(tx.SettleApprove)
	case TxSettleExecute:
		return e.applySettleExecute(tx.SettleExecute)
	case TxSettleReject:
		return e.applySettleReject(tx.SettleReject)
	case TxDisputeStart:
		return e.applyDisputeStart(tx.DisputeStart)
	case TxDisputeFinalize:
		return e.applyDisputeFinalize(tx.DisputeFinalize)
	case TxJBroadcast:
		_, err := e.JBP.Broadcast(ctx, adapter, e.signerOrPrimary(tx.Signer), e.crypto, tx.JBroadcast.Preset, tx.JBroadcast.Overrides)
		return err
	case TxJRebroadcast:
		_, err := e.JBP.Rebroadcast(ctx, adapter, e.signerOrPrimary(tx.Signer), e.crypto, tx.JRebroadcast.GasBumpBps)
		return err
	case TxJClearBatch:
		return e.JBP.ClearDraft(tx.JClearBatch.Reason)
	case TxProfileUpdate:
		e.Profile = tx.ProfileUpdate.Profile
		return nil
	default:
		return ValidationError("erm.apply", errFmt("unknown entity tx kind %q", tx.Kind))
	}
}

// signerOrPrimary prefers the signer named on the tx itself, falling back to
// the entity's primary signer for callers (e.g. automated rebroadcast) that
// don't carry one.
func (e *EntityState) signerOrPrimary(signer SignerId) SignerId {
	var zero SignerId
	if signer != zero {
		return signer
	}
	return e.PrimarySigner
}

func (e *EntityState) applyOpenAccount(tx *OpenAccountTx) error {
	if tx == nil {
		return ValidationError("open_account", errFmt("nil payload"))
	}
	if _, exists := e.Accounts[tx.TargetEntityId]; exists {
		return ValidationError("open_account", errFmt("account with %s already open", tx.TargetEntityId.String()))
	}
	m := NewAccountMachine(e.Id, tx.TargetEntityId, e.Id, e.crypto, e.clock)
	counterparty := tx.TargetEntityId
	m.onDispute = func(reason string) { e.noteAutomaticDispute(counterparty, reason) }
	e.Accounts[tx.TargetEntityId] = m
	if tx.CreditAmount != nil && tx.TokenId != nil {
		side := CreditRight
		if m.isLeft(e.Id) {
			side = CreditLeft
		}
		m.Enqueue(AccountTx{
			Kind: TxSetCreditLimit, Sender: e.Id,
			SetCreditLimit: &SetCreditLimitTx{Token: *tx.TokenId, Side: side, Amount: *tx.CreditAmount},
		})
	}
	return nil
}

func (e *EntityState) delegateAccountTx(counterparty EntityId, tx AccountTx) error {
	a, err := e.mustAccount(counterparty)
	if err != nil {
		return err
	}
	a.Enqueue(tx)
	return nil
}

func (e *EntityState) applyExtendCredit(tx *ExtendCreditTx) error {
	if tx == nil {
		return ValidationError("extend_credit", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	d, ok := a.deltas[tx.Token]
	if !ok {
		d = Delta{TokenId: tx.Token}
	}
	current := d.LeftCreditLimit
	if tx.Side == CreditRight {
		current = d.RightCreditLimit
	}
	a.Enqueue(AccountTx{
		Kind: TxSetCreditLimit, Sender: e.Id,
		SetCreditLimit: &SetCreditLimitTx{Token: tx.Token, Side: tx.Side, Amount: current.Add(tx.Amount)},
	})
	return nil
}

func (e *EntityState) applyDepositCollateral(tx *DepositCollateralTx) error {
	if tx == nil {
		return ValidationError("deposit_collateral", errFmt("nil payload"))
	}
	bal, ok := e.Reserves[tx.Token]
	if !ok {
		bal = ZeroAmount
	}
	if tx.Amount.Cmp(bal) > 0 {
		return ValidationError("deposit_collateral", errFmt("insufficient reserve: have %s, need %s", bal, tx.Amount))
	}
	if _, err := e.mustAccount(tx.Counterparty); err != nil {
		return err
	}
	e.Reserves[tx.Token] = bal.Sub(tx.Amount)
	e.JBP.Draft.ReserveToCollateral = append(e.JBP.Draft.ReserveToCollateral, R2COp{Token: tx.Token, Amount: tx.Amount})
	return nil
}

func (e *EntityState) applyRequestWithdrawal(tx *RequestWithdrawalTx) error {
	if tx == nil {
		return ValidationError("request_withdrawal", errFmt("nil payload"))
	}
	if _, err := e.mustAccount(tx.Counterparty); err != nil {
		return err
	}
	e.JBP.Draft.CollateralToReserve = append(e.JBP.Draft.CollateralToReserve, C2ROp{Token: tx.Token, Amount: tx.Amount})
	return nil
}

func (e *EntityState) applyReserveToReserve(tx *ReserveToReserveTx) error {
	if tx == nil {
		return ValidationError("reserve_to_reserve", errFmt("nil payload"))
	}
	bal, ok := e.Reserves[tx.Token]
	if !ok {
		bal = ZeroAmount
	}
	if tx.Amount.Cmp(bal) > 0 {
		return ValidationError("reserve_to_reserve", errFmt("insufficient reserve: have %s, need %s", bal, tx.Amount))
	}
	e.Reserves[tx.Token] = bal.Sub(tx.Amount)
	e.JBP.Draft.ReserveToReserve = append(e.JBP.Draft.ReserveToReserve, R2ROp{Token: tx.Token, Amount: tx.Amount, Counterparty: tx.ToEntity})
	return nil
}

func (e *EntityState) applySettlePropose(tx *SettleProposeTx) error {
	if tx == nil {
		return ValidationError("settle_propose", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	if a.workspace != nil {
		return ConsensusError("settle_propose", errFmt("a workspace already exists for this account"))
	}
	ops := stripRawDiff(tx.Ops)
	hash, err := canonicalHash(ops)
	if err != nil {
		return IntegrityError("settle_propose", err)
	}
	sig, err := e.crypto.Sign(e.signerOrPrimary(tx.Signer), hash)
	if err != nil {
		return SignatureError("settle_propose", err)
	}
	a.workspace = NewSettlementWorkspace(e.Id, a.isLeft(e.Id), ops, sig)
	a.queueSettleIntentFromWorkspace()
	return nil
}

func (e *EntityState) applySettleUpdate(tx *SettleUpdateTx) error {
	if tx == nil {
		return ValidationError("settle_update", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	if a.workspace == nil {
		return ConsensusError("settle_update", errFmt("no workspace to update; settle_propose first"))
	}
	ops := stripRawDiff(tx.Ops)
	hash, err := canonicalHash(ops)
	if err != nil {
		return IntegrityError("settle_update", err)
	}
	sig, err := e.crypto.Sign(e.signerOrPrimary(tx.Signer), hash)
	if err != nil {
		return SignatureError("settle_update", err)
	}
	if err := a.workspace.Update(ops, e.Id, a.isLeft(e.Id), sig); err != nil {
		return err
	}
	a.queueSettleIntentFromWorkspace()
	return nil
}

func (e *EntityState) applySettleApprove(tx *SettleApproveTx) error {
	if tx == nil {
		return ValidationError("settle_approve", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	if a.workspace == nil {
		return ConsensusError("settle_approve", errFmt("no workspace to approve"))
	}
	hash, err := canonicalHash(a.workspace.Ops)
	if err != nil {
		return IntegrityError("settle_approve", err)
	}
	sig, err := e.crypto.Sign(e.signerOrPrimary(tx.Signer), hash)
	if err != nil {
		return SignatureError("settle_approve", err)
	}
	if err := a.workspace.Approve(e.Id, a.isLeft(e.Id), sig); err != nil {
		return err
	}
	if len(a.workspace.ApprovedBy) == 2 {
		if err := a.workspace.Finalize(a.LeftId, a.RightId, e.crypto); err != nil {
			return err
		}
	}
	a.queueSettleIntentFromWorkspace()
	return nil
}

func (e *EntityState) applySettleExecute(tx *SettleExecuteTx) error {
	if tx == nil {
		return ValidationError("settle_execute", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	if a.workspace == nil || a.workspace.Status != SettlementReadyToSubmit {
		return ConsensusError("settle_execute", errFmt("workspace not ready to submit"))
	}
	diffs, adjustments, err := compileSettlementOps(a.workspace.Ops, a.workspace.Proposer, a.isLeft(a.workspace.Proposer), a.deltas)
	if err != nil {
		return err
	}
	if err := a.workspace.MarkSubmitted(a.isLeft(e.Id)); err != nil {
		return err
	}
	a.Enqueue(AccountTx{
		Kind: TxAccountSettle, Sender: e.Id,
		AccountSettle: &AccountSettleTx{WorkspaceVersion: a.workspace.Version, CompiledDiffs: diffs},
	})
	for _, adj := range adjustments {
		if adj.Entity != e.Id {
			continue
		}
		bal, ok := e.Reserves[adj.Token]
		if !ok {
			bal = ZeroAmount
		}
		e.Reserves[adj.Token] = bal.Add(adj.Amount)
	}
	e.JBP.Draft.Settlements = append(e.JBP.Draft.Settlements, diffs...)
	a.queueSettleIntentFromWorkspace()
	a.workspace = nil
	return nil
}

func (e *EntityState) applySettleReject(tx *SettleRejectTx) error {
	if tx == nil {
		return ValidationError("settle_reject", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	if a.workspace == nil {
		return nil
	}
	if err := a.workspace.Cancel(); err != nil {
		return err
	}
	a.queueSettleIntentFromWorkspace()
	a.workspace = nil
	return nil
}

// HandleSettleIntent mirrors a counterparty's settlement workspace state
// into this side's own AccountMachine (spec.md §6.4). The workspace is the
// source of truth on the side that last mutated it; this side only ever
// overwrites its mirror wholesale rather than merging.
func (e *EntityState) HandleSettleIntent(intent *SettleIntent) error {
	if intent == nil {
		return ValidationError("settle_intent", errFmt("nil payload"))
	}
	a, err := e.mustAccount(intent.From)
	if err != nil {
		return err
	}
	if intent.Status == SettlementCancelled || intent.Status == SettlementSubmitted {
		a.workspace = nil
		return nil
	}
	approved := make(map[EntityId]Signature, len(intent.ApprovedBy))
	for k, v := range intent.ApprovedBy {
		approved[k] = v
	}
	a.workspace = &SettlementWorkspace{
		Proposer:           intent.Proposer,
		LastModifiedByLeft: intent.LastModifiedByLeft,
		ExecutorIsLeft:     intent.ExecutorIsLeft,
		Version:            intent.Version,
		Ops:                intent.Ops,
		Status:             intent.Status,
		Hanko:              intent.Hanko,
		ApprovedBy:         approved,
	}
	return nil
}

// noteAutomaticDispute appends the same disputeStarts op the manual
// dispute_start path produces, so an ACE-internal escalation (an ack or
// finalize whose state hash does not match the pending frame; the account
// escalates on the first mismatch, without retries) surfaces into the JBP
// draft exactly like an
// operator-initiated dispute_start (spec.md §4.1 "Failure semantics").
func (e *EntityState) noteAutomaticDispute(counterparty EntityId, reason string) {
	a, ok := e.account(counterparty)
	if !ok {
		return
	}
	e.JBP.Draft.DisputeStarts = append(e.JBP.Draft.DisputeStarts, DisputeStartOp{Counterparty: counterparty, LastStateHash: a.currentFrame.StateHash})
}

func (e *EntityState) applyDisputeStart(tx *DisputeStartTx) error {
	if tx == nil {
		return ValidationError("dispute_start", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	a.status = StatusDisputed
	a.dispute = &Dispute{Reason: "local dispute_start", RaisedHeight: a.currentFrame.Height}
	e.JBP.Draft.DisputeStarts = append(e.JBP.Draft.DisputeStarts, DisputeStartOp{Counterparty: tx.Counterparty, LastStateHash: a.currentFrame.StateHash})
	return nil
}

func (e *EntityState) applyDisputeFinalize(tx *DisputeFinalizeTx) error {
	if tx == nil {
		return ValidationError("dispute_finalize", errFmt("nil payload"))
	}
	a, err := e.mustAccount(tx.Counterparty)
	if err != nil {
		return err
	}
	a.status = StatusClosed
	e.JBP.Draft.DisputeFinalizations = append(e.JBP.Draft.DisputeFinalizations, DisputeFinalizeOp{Counterparty: tx.Counterparty, Cooperative: true})
	return nil
}

// HandleJurisdictionEvent reconciles a single chain observation into state,
// per spec.md §4.4 "Finalization".
func (e *EntityState) HandleJurisdictionEvent(ev JurisdictionEvent) error {
	switch ev.Kind {
	case EventBatchConfirmed:
		return e.JBP.HandleBatchConfirmed(ev)
	case EventBatchFailed:
		return e.JBP.HandleBatchFailed(ev)
	case EventCounterpartyBatchConfirmed:
		accepted, err := e.JBP.HandleCounterpartyBatchConfirmed(ev)
		if err != nil || !accepted {
			return err
		}
		for _, effect := range ev.CounterpartyBatchConfirmedPayload.Effects {
			a, ok := e.account(effect.Counterparty)
			if !ok {
				continue
			}
			d, ok := a.deltas[effect.Token]
			if !ok {
				d = Delta{TokenId: effect.Token}
			}
			d.Collateral = d.Collateral.Add(effect.CollateralDelta)
			d.Ondelta = d.Ondelta.Add(effect.OndeltaDelta)
			a.deltas[effect.Token] = d
		}
		return nil
	case EventDisputeStarted:
		if ev.DisputeStartedPayload == nil {
			return ValidationError("erm.dispute_started", errFmt("nil payload"))
		}
		a, ok := e.account(ev.DisputeStartedPayload.Counterparty)
		if !ok {
			return nil
		}
		a.status = StatusDisputed
		a.dispute = &Dispute{Reason: "chain-observed dispute", RaisedHeight: a.currentFrame.Height}
		return nil
	case EventDisputeFinalized:
		if ev.DisputeFinalizedPayload == nil {
			return ValidationError("erm.dispute_finalized", errFmt("nil payload"))
		}
		a, ok := e.account(ev.DisputeFinalizedPayload.Counterparty)
		if !ok {
			return nil
		}
		a.status = StatusClosed
		return nil
	default:
		return ValidationError("erm.handle_event", errFmt("unknown event kind %q", ev.Kind))
	}
}

// entityStateSnapshot is the canonical, hashable view of an EntityState: it
// excludes adapter handles and anything volatile (spec.md §4.3
// "Determinism requirement").
type entityStateSnapshot struct {
	Id        EntityId
	Reserves  map[TokenId]Amount
	Accounts  map[EntityId]accountSnapshot
	JBP       *JurisdictionBatchPipeline
	Profile   Profile
	Height    uint64
}

type accountSnapshot struct {
	LeftId  EntityId
	RightId EntityId
	Deltas  []Delta
	Locks   []HTLC
	Offers  []SwapOffer
	Status  AccountStatus
	Frame   AccountFrame
}

// ComputeStateHash derives the deterministic stateHash over a canonical
// encoding of the whole entity state (spec.md §4.3 step 3, §6.3).
func (e *EntityState) ComputeStateHash() (Hash, error) {
	accounts := make(map[EntityId]accountSnapshot, len(e.Accounts))
	counterparties := make([]EntityId, 0, len(e.Accounts))
	for cp := range e.Accounts {
		counterparties = append(counterparties, cp)
	}
	sort.Slice(counterparties, func(i, j int) bool { return counterparties[i].Less(counterparties[j]) })

	for _, cp := range counterparties {
		a := e.Accounts[cp]
		accounts[cp] = accountSnapshot{
			LeftId: a.LeftId, RightId: a.RightId,
			Deltas: sortedDeltaSnapshot(a.deltas),
			Locks:  a.lockBook.Snapshot(),
			Offers: a.swapBook.Snapshot(),
			Status: a.status,
			Frame:  a.currentFrame,
		}
	}

	snap := entityStateSnapshot{
		Id: e.Id, Reserves: e.Reserves, Accounts: accounts,
		JBP: e.JBP, Profile: e.Profile, Height: e.Height,
	}
	return canonicalHash(snap)
}

func sortedDeltaSnapshot(m map[TokenId]Delta) []Delta {
	out := deltaValues(m)
	sortDeltasByToken(out)
	return out
}

// Tick runs one ERM frame: apply queued EntityTx, flush proposer-side ACE
// rounds and pending settlement intents, and stamp height/stateHash
// (spec.md §4.3 "Frame production"). The returned proposals and settle
// intents are this entity's outbound messages for the caller (the Runtime)
// to deliver to the named counterparties.
func (e *EntityState) Tick(ctx context.Context, adapter JurisdictionAdapter, txs []EntityTx) ([]*AccountFrameProposal, []*SettleIntent, []error) {
	errs := e.ApplyEntityTxs(ctx, adapter, txs)

	counterparties := make([]EntityId, 0, len(e.Accounts))
	for cp := range e.Accounts {
		counterparties = append(counterparties, cp)
	}
	sort.Slice(counterparties, func(i, j int) bool { return counterparties[i].Less(counterparties[j]) })

	var proposals []*AccountFrameProposal
	var settleIntents []*SettleIntent
	for _, cp := range counterparties {
		a := e.Accounts[cp]
		if a.pendingSettleIntent != nil {
			settleIntents = append(settleIntents, a.pendingSettleIntent)
			a.pendingSettleIntent = nil
		}
		prop, err := a.ProposeNextFrame(e.PrimarySigner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prop != nil {
			proposals = append(proposals, prop)
		}
	}

	e.Height++
	hash, err := e.ComputeStateHash()
	if err != nil {
		errs = append(errs, IntegrityError("erm.tick", err))
	} else {
		e.StateHash = hash
	}
	return proposals, settleIntents, errs
}

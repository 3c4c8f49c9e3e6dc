package core

// settlement_workspace.go – the Settlement Workspace (spec.md §5): a
// multi-op draft that compiles to per-token diffs and commits atomically
// under a dual-hanko signature. Grounded on the teacher's staged-transaction
// pattern (propose/ack/commit) reused from account_machine.go's two-phase
// commit, applied here to a workspace instead of a frame.

// SettlementOpKind tags a single operation within a workspace.
type SettlementOpKind string

const (
	SettleR2C     SettlementOpKind = "r2c" // reserve -> collateral
	SettleC2R     SettlementOpKind = "c2r" // collateral -> reserve
	SettleR2R     SettlementOpKind = "r2r" // reserve -> counterparty reserve
	SettleForgive SettlementOpKind = "forgive"
	SettleRawDiff SettlementOpKind = "raw_diff"
)

type R2COp struct {
	Token  TokenId
	Amount Amount
}

type C2ROp struct {
	Token  TokenId
	Amount Amount
}

type R2ROp struct {
	Token         TokenId
	Amount        Amount
	Counterparty  EntityId
}

type ForgiveOp struct {
	Token TokenId
}

type RawDiffOp struct {
	Token           TokenId
	CollateralDelta Amount
	OndeltaDelta    Amount
}

// SettlementOp is one instruction in a workspace draft.
type SettlementOp struct {
	Kind SettlementOpKind

	R2C     *R2COp     `json:",omitempty"`
	C2R     *C2ROp     `json:",omitempty"`
	R2R     *R2ROp     `json:",omitempty"`
	Forgive *ForgiveOp `json:",omitempty"`
	RawDiff *RawDiffOp `json:",omitempty"`
}

// TokenDiff is a compiled, per-token net effect on an account's Delta.
type TokenDiff struct {
	Token           TokenId
	CollateralDelta Amount
	OndeltaDelta    Amount
}

// ReserveAdjustment is a compiled, per-entity effect on jurisdiction-reserve
// balances (ERM-owned state, outside the account Delta).
type ReserveAdjustment struct {
	Entity EntityId
	Token  TokenId
	Amount Amount // signed; negative debits, positive credits
}

// compileSettlementOps reduces a workspace's ops into the diffs and reserve
// adjustments account_settle/the ERM apply atomically. current supplies the
// pre-settlement Delta for tokens touched by a forgive op (spec.md §9 open
// question: forgive zeroes the proposer's own-credit usage for that token).
func compileSettlementOps(ops []SettlementOp, proposer EntityId, proposerIsLeft bool, current map[TokenId]Delta) ([]TokenDiff, []ReserveAdjustment, error) {
	diffs := make(map[TokenId]*TokenDiff)
	var adjustments []ReserveAdjustment

	get := func(token TokenId) *TokenDiff {
		d, ok := diffs[token]
		if !ok {
			d = &TokenDiff{Token: token, CollateralDelta: ZeroAmount, OndeltaDelta: ZeroAmount}
			diffs[token] = d
		}
		return d
	}

	for _, op := range ops {
		switch op.Kind {
		case SettleR2C:
			if op.R2C == nil || op.R2C.Amount.IsNeg() || op.R2C.Amount.IsZero() {
				return nil, nil, ValidationError("workspace.compile", errFmt("invalid r2c op"))
			}
			d := get(op.R2C.Token)
			d.CollateralDelta = d.CollateralDelta.Add(op.R2C.Amount)
			if proposerIsLeft {
				d.OndeltaDelta = d.OndeltaDelta.Add(op.R2C.Amount)
			} else {
				d.OndeltaDelta = d.OndeltaDelta.Sub(op.R2C.Amount)
			}
			adjustments = append(adjustments, ReserveAdjustment{Entity: proposer, Token: op.R2C.Token, Amount: op.R2C.Amount.Neg()})

		case SettleC2R:
			if op.C2R == nil || op.C2R.Amount.IsNeg() || op.C2R.Amount.IsZero() {
				return nil, nil, ValidationError("workspace.compile", errFmt("invalid c2r op"))
			}
			d := get(op.C2R.Token)
			d.CollateralDelta = d.CollateralDelta.Sub(op.C2R.Amount)
			if proposerIsLeft {
				d.OndeltaDelta = d.OndeltaDelta.Sub(op.C2R.Amount)
			} else {
				d.OndeltaDelta = d.OndeltaDelta.Add(op.C2R.Amount)
			}
			adjustments = append(adjustments, ReserveAdjustment{Entity: proposer, Token: op.C2R.Token, Amount: op.C2R.Amount})

		case SettleR2R:
			if op.R2R == nil || op.R2R.Amount.IsNeg() || op.R2R.Amount.IsZero() {
				return nil, nil, ValidationError("workspace.compile", errFmt("invalid r2r op"))
			}
			adjustments = append(adjustments,
				ReserveAdjustment{Entity: proposer, Token: op.R2R.Token, Amount: op.R2R.Amount.Neg()},
				ReserveAdjustment{Entity: op.R2R.Counterparty, Token: op.R2R.Token, Amount: op.R2R.Amount},
			)

		case SettleForgive:
			if op.Forgive == nil {
				return nil, nil, ValidationError("workspace.compile", errFmt("invalid forgive op"))
			}
			cur, ok := current[op.Forgive.Token]
			if !ok {
				cur = Delta{TokenId: op.Forgive.Token}
			}
			view := DeriveDelta(cur, proposerIsLeft)
			ownCreditUsed := view.OwnCreditLimit.Sub(view.OutOwnCredit)
			if ownCreditUsed.IsZero() {
				continue
			}
			d := get(op.Forgive.Token)
			if proposerIsLeft {
				d.OndeltaDelta = d.OndeltaDelta.Add(ownCreditUsed)
			} else {
				d.OndeltaDelta = d.OndeltaDelta.Sub(ownCreditUsed)
			}

		case SettleRawDiff:
			if op.RawDiff == nil {
				return nil, nil, ValidationError("workspace.compile", errFmt("invalid raw_diff op"))
			}
			d := get(op.RawDiff.Token)
			d.CollateralDelta = d.CollateralDelta.Add(op.RawDiff.CollateralDelta)
			d.OndeltaDelta = d.OndeltaDelta.Add(op.RawDiff.OndeltaDelta)

		default:
			return nil, nil, ValidationError("workspace.compile", errFmt("unknown op kind %q", op.Kind))
		}
	}

	out := make([]TokenDiff, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, *d)
	}
	sortTokenDiffs(out)
	return out, adjustments, nil
}

// applyTokenDiff returns d with diff applied, rejecting results that break
// §3.2's capacity invariants.
func applyTokenDiff(d Delta, diff TokenDiff) (Delta, error) {
	d.Collateral = d.Collateral.Add(diff.CollateralDelta)
	d.Ondelta = d.Ondelta.Add(diff.OndeltaDelta)
	if err := d.CheckInvariants(); err != nil {
		return Delta{}, err
	}
	return d, nil
}

func sortTokenDiffs(d []TokenDiff) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].Token < d[j-1].Token; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// SettlementStatus is the workspace's lifecycle stage (spec.md §5.2).
type SettlementStatus string

const (
	SettlementDraft               SettlementStatus = "draft"
	SettlementAwaitingCounterparty SettlementStatus = "awaiting_counterparty"
	SettlementReadyToSubmit       SettlementStatus = "ready_to_submit"
	SettlementSubmitted           SettlementStatus = "submitted"
	SettlementCancelled           SettlementStatus = "cancelled"
)

// SettlementWorkspace is a multi-op atomic settlement draft shared by a
// pair, mirrored independently on each side (spec.md §3.5). LastModifiedByLeft
// names the side that holds proposer rights for the current version; only
// that side may settle_update, and only the other side may settle_approve.
type SettlementWorkspace struct {
	Proposer           EntityId
	LastModifiedByLeft bool
	ExecutorIsLeft     bool
	Version            uint32
	Ops                []SettlementOp
	Status             SettlementStatus
	Hanko              Hanko
	ApprovedBy         map[EntityId]Signature
}

// stripRawDiff drops rawDiff ops from an input op list: rawDiff is reserved
// for admin/dispute replay and cannot be introduced through settle_propose or
// settle_update (spec.md §4.2 "Operations and compilation").
func stripRawDiff(ops []SettlementOp) []SettlementOp {
	out := make([]SettlementOp, 0, len(ops))
	for _, op := range ops {
		if op.Kind == SettleRawDiff {
			continue
		}
		out = append(out, op)
	}
	return out
}

// NewSettlementWorkspace creates version 1 of a workspace from a settle_propose,
// stamping lastModifiedByLeft from the proposer's role and recording its
// hanko (spec.md §4.2 "settle_propose").
func NewSettlementWorkspace(proposer EntityId, proposerIsLeft bool, ops []SettlementOp, proposerSig Signature) *SettlementWorkspace {
	return &SettlementWorkspace{
		Proposer:           proposer,
		LastModifiedByLeft: proposerIsLeft,
		Version:            1,
		Ops:                stripRawDiff(ops),
		Status:             SettlementAwaitingCounterparty,
		ApprovedBy:         map[EntityId]Signature{proposer: proposerSig},
	}
}

// Update replaces the op list of a draft, bumping its version. Only the side
// that holds proposer rights for the current version may update, and only
// while no counterparty hanko has been collected yet (spec.md §4.2
// "settle_update").
func (w *SettlementWorkspace) Update(ops []SettlementOp, proposer EntityId, proposerIsLeft bool, sig Signature) error {
	if w.Status != SettlementDraft && w.Status != SettlementAwaitingCounterparty {
		return ConsensusError("workspace.update", errFmt("cannot update workspace in status %q", w.Status))
	}
	if proposerIsLeft != w.LastModifiedByLeft {
		return ConsensusError("workspace.update", errFmt("only the current proposer side may update"))
	}
	if len(w.ApprovedBy) > 1 {
		return ConsensusError("workspace.update", errFmt("cannot update once the counterparty has signed"))
	}
	w.Ops = stripRawDiff(ops)
	w.Version++
	w.Status = SettlementAwaitingCounterparty
	w.Proposer = proposer
	w.ApprovedBy = map[EntityId]Signature{proposer: sig}
	return nil
}

// Approve records the non-proposer's signature over the current version and
// fixes executorIsLeft to the approver's role (spec.md §4.2 "settle_approve").
// The caller transitions to ReadyToSubmit via Finalize once both sides have
// signed.
func (w *SettlementWorkspace) Approve(approver EntityId, approverIsLeft bool, sig Signature) error {
	if w.Status != SettlementAwaitingCounterparty {
		return ConsensusError("workspace.approve", errFmt("cannot approve workspace in status %q", w.Status))
	}
	if approverIsLeft == w.LastModifiedByLeft {
		return ConsensusError("workspace.approve", errFmt("the proposer cannot approve its own proposal"))
	}
	if _, already := w.ApprovedBy[approver]; already {
		return ConsensusError("workspace.approve", errFmt("version %d already has this side's signature", w.Version))
	}
	if w.ApprovedBy == nil {
		w.ApprovedBy = make(map[EntityId]Signature)
	}
	w.ApprovedBy[approver] = sig
	w.ExecutorIsLeft = approverIsLeft
	return nil
}

// Finalize marks the workspace ready to submit once both signatures are in,
// aggregating them into a dual-hanko via crypto.
func (w *SettlementWorkspace) Finalize(left, right EntityId, crypto Crypto) error {
	sigL, okL := w.ApprovedBy[left]
	sigR, okR := w.ApprovedBy[right]
	if !okL || !okR {
		return ConsensusError("workspace.finalize", errFmt("missing approval from both sides"))
	}
	hanko, err := crypto.Aggregate([]Signature{sigL, sigR})
	if err != nil {
		return err
	}
	w.Hanko = hanko
	w.Status = SettlementReadyToSubmit
	return nil
}

// MarkSubmitted transitions a ready workspace into an account_settle tx.
// Only the fixed executor may submit (spec.md §4.2 "settle_execute").
func (w *SettlementWorkspace) MarkSubmitted(senderIsLeft bool) error {
	if w.Status != SettlementReadyToSubmit {
		return ConsensusError("workspace.submit", errFmt("workspace not ready (status %q)", w.Status))
	}
	if senderIsLeft != w.ExecutorIsLeft {
		return ConsensusError("workspace.submit", errFmt("only the fixed executor may settle_execute"))
	}
	w.Status = SettlementSubmitted
	return nil
}

// Cancel aborts a draft or pending workspace. Either side may reject in any
// non-terminal state (spec.md §4.2 "settle_reject").
func (w *SettlementWorkspace) Cancel() error {
	if w.Status == SettlementSubmitted {
		return ConsensusError("workspace.cancel", errFmt("cannot cancel a submitted workspace"))
	}
	w.Status = SettlementCancelled
	return nil
}

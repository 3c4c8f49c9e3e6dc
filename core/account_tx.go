package core

// account_tx.go – the AccountTx sum type and its deterministic effects on
// account state (spec.md §4.1 table). Modeled as a closed tagged struct
// (spec.md §9 "dynamic dispatch across tx variants" redesign note: tagged
// sum types with exhaustive handlers, no open polymorphism), the same shape
// used for JurisdictionEvent in jurisdiction_events.go.

// AccountTxKind tags the AccountTx variant.
type AccountTxKind string

const (
	TxDirectPayment  AccountTxKind = "direct_payment"
	TxSetCreditLimit AccountTxKind = "set_credit_limit"
	TxAddDelta       AccountTxKind = "add_delta"
	TxAccountSettle  AccountTxKind = "account_settle"
	TxLockOpen       AccountTxKind = "lock_open"
	TxLockReveal     AccountTxKind = "lock_reveal"
	TxLockCancel     AccountTxKind = "lock_cancel"
	TxSwapPlace      AccountTxKind = "swap_place"
	TxSwapFill       AccountTxKind = "swap_fill"
	TxSwapCancel     AccountTxKind = "swap_cancel"
)

// CreditSide names which side's credit limit a set_credit_limit tx updates.
type CreditSide string

const (
	CreditLeft  CreditSide = "left"
	CreditRight CreditSide = "right"
)

type DirectPaymentTx struct {
	Token       TokenId
	Amount      Amount
	Description string
}

type SetCreditLimitTx struct {
	Token  TokenId
	Side   CreditSide
	Amount Amount
}

type AddDeltaTx struct {
	Token TokenId
	Delta Delta
}

type AccountSettleTx struct {
	WorkspaceVersion uint32
	CompiledDiffs    []TokenDiff
}

type LockOpenTx struct {
	Id        LockId
	Direction LockDirection
	Token     TokenId
	Amount    Amount
	Hash      Hash
	Expiry    int64
}

type LockRevealTx struct {
	Id       LockId
	Preimage []byte
}

type LockCancelTx struct {
	Id LockId
}

type SwapPlaceTx struct {
	Offer SwapOffer
}

type SwapFillTx struct {
	OfferId    OfferId
	GiveAmount Amount
}

type SwapCancelTx struct {
	OfferId OfferId
}

// AccountTx is a single instruction queued into an account's mempool.
// Sender identifies which side of the pair originated it, resolved to
// left/right by the AccountMachine applying it.
type AccountTx struct {
	Kind   AccountTxKind
	Sender EntityId

	DirectPayment  *DirectPaymentTx  `json:",omitempty"`
	SetCreditLimit *SetCreditLimitTx `json:",omitempty"`
	AddDelta       *AddDeltaTx       `json:",omitempty"`
	AccountSettle  *AccountSettleTx  `json:",omitempty"`
	LockOpen       *LockOpenTx       `json:",omitempty"`
	LockReveal     *LockRevealTx     `json:",omitempty"`
	LockCancel     *LockCancelTx     `json:",omitempty"`
	SwapPlace      *SwapPlaceTx      `json:",omitempty"`
	SwapFill       *SwapFillTx       `json:",omitempty"`
	SwapCancel     *SwapCancelTx     `json:",omitempty"`
}

// applyAccountTx mutates m's deltas/lockBook/swapBook for a single tx,
// rejecting (without mutating) anything that would violate §3.2's capacity
// invariants or reference a nonexistent lock/offer, per §4.1 "A transaction
// is invalid if...".
func (m *AccountMachine) applyAccountTx(tx AccountTx) error {
	senderIsLeft := tx.Sender == m.LeftId

	switch tx.Kind {
	case TxDirectPayment:
		return m.applyDirectPayment(tx.DirectPayment, senderIsLeft)
	case TxSetCreditLimit:
		return m.applySetCreditLimit(tx.SetCreditLimit)
	case TxAddDelta:
		return m.applyAddDelta(tx.AddDelta)
	case TxAccountSettle:
		return m.applyAccountSettle(tx.AccountSettle)
	case TxLockOpen:
		return m.applyLockOpen(tx.LockOpen)
	case TxLockReveal:
		return m.applyLockReveal(tx.LockReveal)
	case TxLockCancel:
		return m.applyLockCancel(tx.LockCancel)
	case TxSwapPlace:
		return m.applySwapPlace(tx.SwapPlace)
	case TxSwapFill:
		return m.applySwapFill(tx.SwapFill)
	case TxSwapCancel:
		return m.applySwapCancel(tx.SwapCancel)
	default:
		return ValidationError("account_tx.apply", errFmt("unknown tx kind %q", tx.Kind))
	}
}

func (m *AccountMachine) applyDirectPayment(tx *DirectPaymentTx, senderIsLeft bool) error {
	if tx == nil {
		return ValidationError("direct_payment", errFmt("nil payload"))
	}
	if tx.Amount.IsNeg() || tx.Amount.IsZero() {
		return ValidationError("direct_payment", errFmt("amount must be positive"))
	}
	d, ok := m.deltas[tx.Token]
	if !ok {
		d = Delta{TokenId: tx.Token}
	}
	view := DeriveDelta(d, senderIsLeft)
	if tx.Amount.Cmp(view.OutCapacity()) > 0 {
		return ValidationError("direct_payment", errFmt("amount %s exceeds out capacity %s", tx.Amount, view.OutCapacity()))
	}
	// Sending shifts offdelta in the sender's favour-decreasing direction:
	// left sending decreases net delta, right sending increases it (delta is
	// left-oriented per §3.2).
	if senderIsLeft {
		d.Offdelta = d.Offdelta.Sub(tx.Amount)
	} else {
		d.Offdelta = d.Offdelta.Add(tx.Amount)
	}
	if err := d.CheckInvariants(); err != nil {
		return err
	}
	m.deltas[tx.Token] = d
	return nil
}

func (m *AccountMachine) applySetCreditLimit(tx *SetCreditLimitTx) error {
	if tx == nil {
		return ValidationError("set_credit_limit", errFmt("nil payload"))
	}
	if tx.Amount.IsNeg() {
		return ValidationError("set_credit_limit", errFmt("credit limit must be non-negative"))
	}
	d, ok := m.deltas[tx.Token]
	if !ok {
		d = Delta{TokenId: tx.Token}
	}
	switch tx.Side {
	case CreditLeft:
		d.LeftCreditLimit = tx.Amount
	case CreditRight:
		d.RightCreditLimit = tx.Amount
	default:
		return ValidationError("set_credit_limit", errFmt("unknown side %q", tx.Side))
	}
	m.deltas[tx.Token] = d
	return nil
}

func (m *AccountMachine) applyAddDelta(tx *AddDeltaTx) error {
	if tx == nil {
		return ValidationError("add_delta", errFmt("nil payload"))
	}
	if err := tx.Delta.CheckInvariants(); err != nil {
		return err
	}
	m.deltas[tx.Token] = tx.Delta
	return nil
}

func (m *AccountMachine) applyAccountSettle(tx *AccountSettleTx) error {
	if tx == nil {
		return ValidationError("account_settle", errFmt("nil payload"))
	}
	for _, diff := range tx.CompiledDiffs {
		d, ok := m.deltas[diff.Token]
		if !ok {
			d = Delta{TokenId: diff.Token}
		}
		nd, err := applyTokenDiff(d, diff)
		if err != nil {
			return err
		}
		m.deltas[diff.Token] = nd
	}
	return nil
}

func (m *AccountMachine) applyLockOpen(tx *LockOpenTx) error {
	if tx == nil {
		return ValidationError("lock_open", errFmt("nil payload"))
	}
	return m.lockBook.Open(HTLC{Id: tx.Id, Direction: tx.Direction, Token: tx.Token, Amount: tx.Amount, Hash: tx.Hash, Expiry: tx.Expiry})
}

func (m *AccountMachine) applyLockReveal(tx *LockRevealTx) error {
	if tx == nil {
		return ValidationError("lock_reveal", errFmt("nil payload"))
	}
	h, err := m.lockBook.Reveal(tx.Id, tx.Preimage, m.crypto.Hash)
	if err != nil {
		return err
	}
	d, ok := m.deltas[h.Token]
	if !ok {
		d = Delta{TokenId: h.Token}
	}
	// Revealing settles the locked amount in the direction it was locked.
	if h.Direction == LockOutbound {
		d.Offdelta = d.Offdelta.Sub(h.Amount)
	} else {
		d.Offdelta = d.Offdelta.Add(h.Amount)
	}
	if err := d.CheckInvariants(); err != nil {
		return err
	}
	m.deltas[h.Token] = d
	return nil
}

func (m *AccountMachine) applyLockCancel(tx *LockCancelTx) error {
	if tx == nil {
		return ValidationError("lock_cancel", errFmt("nil payload"))
	}
	_, err := m.lockBook.Cancel(tx.Id, m.clock.Now().Unix())
	return err
}

func (m *AccountMachine) applySwapPlace(tx *SwapPlaceTx) error {
	if tx == nil {
		return ValidationError("swap_place", errFmt("nil payload"))
	}
	return m.swapBook.Place(tx.Offer)
}

func (m *AccountMachine) applySwapFill(tx *SwapFillTx) error {
	if tx == nil {
		return ValidationError("swap_fill", errFmt("nil payload"))
	}
	offer, wantOwed, err := m.swapBook.Fill(tx.OfferId, tx.GiveAmount)
	if err != nil {
		return err
	}
	give, ok := m.deltas[offer.GiveToken]
	if !ok {
		give = Delta{TokenId: offer.GiveToken}
	}
	want, ok := m.deltas[offer.WantToken]
	if !ok {
		want = Delta{TokenId: offer.WantToken}
	}
	give.Offdelta = give.Offdelta.Add(tx.GiveAmount)
	want.Offdelta = want.Offdelta.Sub(wantOwed)
	if err := give.CheckInvariants(); err != nil {
		return err
	}
	if err := want.CheckInvariants(); err != nil {
		return err
	}
	m.deltas[offer.GiveToken] = give
	m.deltas[offer.WantToken] = want
	return nil
}

func (m *AccountMachine) applySwapCancel(tx *SwapCancelTx) error {
	if tx == nil {
		return ValidationError("swap_cancel", errFmt("nil payload"))
	}
	_, err := m.swapBook.Cancel(tx.OfferId)
	return err
}

package core

// swap_book.go – the account-level swap offer book (spec.md §3.4). Per-
// account order placement is authoritative; cross-account matching is a
// named Non-goal (spec.md §1, §9).

type OfferId [32]byte

func (o OfferId) String() string { return Hash(o).String() }

// SwapOffer is a standing offer to trade giveAmount of giveToken for
// wantAmount of wantToken, fillable in parts. Place checks that
// MinFillRatio lies in (0,1]; Fill does not enforce it.
type SwapOffer struct {
	Id            OfferId
	GiveToken     TokenId
	GiveAmount    Amount
	WantToken     TokenId
	WantAmount    Amount
	MinFillRatio  float64 // 0 < ratio <= 1; validated by Place, not checked by Fill
	Filled        Amount  // cumulative GiveAmount already filled
}

// Remaining returns the unfilled portion of GiveAmount.
func (o SwapOffer) Remaining() Amount { return o.GiveAmount.Sub(o.Filled) }

// SwapBook maps OfferId to SwapOffer, keyed per account.
type SwapBook struct {
	offers map[OfferId]SwapOffer
}

func NewSwapBook() *SwapBook { return &SwapBook{offers: make(map[OfferId]SwapOffer)} }

func (b *SwapBook) Place(o SwapOffer) error {
	if _, exists := b.offers[o.Id]; exists {
		return ValidationError("swapbook.place", errFmt("offer %s already exists", o.Id))
	}
	if o.GiveAmount.IsNeg() || o.GiveAmount.IsZero() {
		return ValidationError("swapbook.place", errFmt("give amount must be positive"))
	}
	if o.MinFillRatio <= 0 || o.MinFillRatio > 1 {
		return ValidationError("swapbook.place", errFmt("min fill ratio %v out of (0,1]", o.MinFillRatio))
	}
	b.offers[o.Id] = o
	return nil
}

// Fill partially or fully fills an offer with giveAmt of the give side,
// returning the corresponding want-side amount owed to the filler.
func (b *SwapBook) Fill(id OfferId, giveAmt Amount) (SwapOffer, Amount, error) {
	o, ok := b.offers[id]
	if !ok {
		return SwapOffer{}, ZeroAmount, ValidationError("swapbook.fill", errFmt("offer %s not found", id))
	}
	if giveAmt.IsNeg() || giveAmt.IsZero() || giveAmt.Cmp(o.Remaining()) > 0 {
		return SwapOffer{}, ZeroAmount, ValidationError("swapbook.fill", errFmt("invalid fill amount %s for offer %s", giveAmt, id))
	}
	// want owed = giveAmt * wantAmount / giveAmount (integer division, floor)
	num := giveAmt.BigInt()
	num.Mul(num, o.WantAmount.BigInt())
	num.Div(num, o.GiveAmount.BigInt())
	wantOwed := AmountFromBig(num)

	o.Filled = o.Filled.Add(giveAmt)
	if o.Filled.Cmp(o.GiveAmount) >= 0 {
		delete(b.offers, id)
	} else {
		b.offers[id] = o
	}
	return o, wantOwed, nil
}

func (b *SwapBook) Cancel(id OfferId) (SwapOffer, error) {
	o, ok := b.offers[id]
	if !ok {
		return SwapOffer{}, ValidationError("swapbook.cancel", errFmt("offer %s not found", id))
	}
	delete(b.offers, id)
	return o, nil
}

func (b *SwapBook) Get(id OfferId) (SwapOffer, bool) {
	o, ok := b.offers[id]
	return o, ok
}

func (b *SwapBook) Snapshot() []SwapOffer {
	out := make([]SwapOffer, 0, len(b.offers))
	for _, o := range b.offers {
		out = append(out, o)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Id.String() < out[j-1].Id.String(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

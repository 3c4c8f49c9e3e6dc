package core

// delta.go – the per-token, per-account Delta and its derived capacity view
// (spec.md §3.2). Grounded on the teacher's two-party Channel{BalanceA,
// BalanceB} balance pair in the old state_channel.go, generalized from a
// single balance split to the three-segment (own-credit / collateral /
// peer-credit) capacity model spec.md requires, and made symmetric so
// DeriveDelta(d, true) and DeriveDelta(d, false) are exact mirror images
// (the testable property of spec.md §8 item 2).

// Delta holds one token's net position within a bilateral account.
type Delta struct {
	TokenId          TokenId
	Collateral       Amount // >= 0
	Ondelta          Amount // settled on-chain component
	Offdelta         Amount // off-chain pending component
	LeftCreditLimit  Amount
	RightCreditLimit Amount
}

// NetDelta returns ondelta + offdelta.
func (d Delta) NetDelta() Amount { return d.Ondelta.Add(d.Offdelta) }

// DerivedDelta is the read-only, perspective-oriented view over a Delta,
// computed fresh on every read per spec.md §3.2.
type DerivedDelta struct {
	TokenId TokenId
	IsLeft  bool

	NetDelta Amount

	OutOwnCredit  Amount
	OutCollateral Amount
	OutPeerCredit Amount

	InOwnCredit  Amount
	InCollateral Amount
	InPeerCredit Amount

	OwnCreditLimit  Amount
	PeerCreditLimit Amount
}

// OutCapacity is the total amount this side can still send outbound.
func (v DerivedDelta) OutCapacity() Amount {
	return v.OutOwnCredit.Add(v.OutCollateral).Add(v.OutPeerCredit)
}

// InCapacity is the total amount this side can still receive inbound.
func (v DerivedDelta) InCapacity() Amount {
	return v.InOwnCredit.Add(v.InCollateral).Add(v.InPeerCredit)
}

// DeriveDelta computes the capacity decomposition for d from the requested
// side's perspective: collateral is split into insured parts by clamping the
// net delta to [0, collateral], any net delta outside that range is the
// uninsured (credit-backed) part, and credit segments are bounded by each
// side's credit limit.
func DeriveDelta(d Delta, isLeft bool) DerivedDelta {
	net := d.NetDelta()
	collateral := d.Collateral

	// leftInsured is the portion of collateral currently attributable to the
	// left side; clamp(net, 0, collateral).
	leftInsured := net.Max(ZeroAmount).Min(collateral)
	rightInsured := collateral.Sub(leftInsured)

	var leftUninsured, rightUninsured Amount = ZeroAmount, ZeroAmount
	if net.IsNeg() {
		leftUninsured = net.Neg()
	} else if net.Cmp(collateral) > 0 {
		rightUninsured = net.Sub(collateral)
	}

	if isLeft {
		return DerivedDelta{
			TokenId:  d.TokenId,
			IsLeft:   true,
			NetDelta: net,

			OutOwnCredit:  d.LeftCreditLimit.Sub(leftUninsured),
			OutCollateral: leftInsured,
			OutPeerCredit: rightUninsured,

			InOwnCredit:  leftUninsured,
			InCollateral: rightInsured,
			InPeerCredit: d.RightCreditLimit.Sub(rightUninsured),

			OwnCreditLimit:  d.LeftCreditLimit,
			PeerCreditLimit: d.RightCreditLimit,
		}
	}
	return DerivedDelta{
		TokenId:  d.TokenId,
		IsLeft:   false,
		NetDelta: net,

		OutOwnCredit:  d.RightCreditLimit.Sub(rightUninsured),
		OutCollateral: rightInsured,
		OutPeerCredit: leftUninsured,

		InOwnCredit:  rightUninsured,
		InCollateral: leftInsured,
		InPeerCredit: d.LeftCreditLimit.Sub(leftUninsured),

		OwnCreditLimit:  d.RightCreditLimit,
		PeerCreditLimit: d.LeftCreditLimit,
	}
}

// CheckInvariants verifies the capacity inequalities of spec.md §3.2 hold for
// d. Used by tests (property 3 of §8) and defensively after frame
// application.
func (d Delta) CheckInvariants() error {
	if d.Collateral.IsNeg() {
		return ValidationError("delta.invariants", errFmt("collateral %s is negative", d.Collateral))
	}
	left := DeriveDelta(d, true)
	right := DeriveDelta(d, false)

	sumCollateral := left.OutCollateral.Add(left.InCollateral)
	if sumCollateral.IsNeg() || sumCollateral.Cmp(d.Collateral) > 0 {
		return ValidationError("delta.invariants", errFmt("outCollateral+inCollateral %s out of [0,%s]", sumCollateral, d.Collateral))
	}
	if left.OutOwnCredit.Cmp(d.LeftCreditLimit) > 0 {
		return ValidationError("delta.invariants", errFmt("left outOwnCredit %s exceeds limit %s", left.OutOwnCredit, d.LeftCreditLimit))
	}
	if left.OutOwnCredit.IsNeg() {
		return ValidationError("delta.invariants", errFmt("left uninsured debt exceeds its own credit limit %s", d.LeftCreditLimit))
	}
	if left.InPeerCredit.Cmp(d.RightCreditLimit) > 0 {
		return ValidationError("delta.invariants", errFmt("left inPeerCredit %s exceeds limit %s", left.InPeerCredit, d.RightCreditLimit))
	}
	if right.OutOwnCredit.Cmp(d.RightCreditLimit) > 0 {
		return ValidationError("delta.invariants", errFmt("right outOwnCredit %s exceeds limit %s", right.OutOwnCredit, d.RightCreditLimit))
	}
	if right.OutOwnCredit.IsNeg() {
		return ValidationError("delta.invariants", errFmt("right uninsured debt exceeds its own credit limit %s", d.RightCreditLimit))
	}
	if right.InPeerCredit.Cmp(d.LeftCreditLimit) > 0 {
		return ValidationError("delta.invariants", errFmt("right inPeerCredit %s exceeds limit %s", right.InPeerCredit, d.LeftCreditLimit))
	}
	return nil
}

package core

import "testing"

func TestDeriveDeltaMirrorsAcrossSides(t *testing.T) {
	d := Delta{
		TokenId:          1,
		Collateral:       NewAmount(100),
		Ondelta:          NewAmount(0),
		Offdelta:         NewAmount(30),
		LeftCreditLimit:  NewAmount(50),
		RightCreditLimit: NewAmount(20),
	}
	left := DeriveDelta(d, true)
	right := DeriveDelta(d, false)

	if left.OutCollateral.Cmp(right.InCollateral) != 0 {
		t.Fatalf("left.OutCollateral %s != right.InCollateral %s", left.OutCollateral, right.InCollateral)
	}
	if left.InCollateral.Cmp(right.OutCollateral) != 0 {
		t.Fatalf("left.InCollateral %s != right.OutCollateral %s", left.InCollateral, right.OutCollateral)
	}
	if left.OutPeerCredit.Cmp(right.InOwnCredit) != 0 {
		t.Fatalf("left.OutPeerCredit %s != right.InOwnCredit %s", left.OutPeerCredit, right.InOwnCredit)
	}
	if left.InPeerCredit.Cmp(right.OutOwnCredit) != 0 {
		t.Fatalf("left.InPeerCredit %s != right.OutOwnCredit %s", left.InPeerCredit, right.OutOwnCredit)
	}
}

func TestDeriveDeltaCapacitySumsMatchNetAndCollateral(t *testing.T) {
	cases := []Delta{
		{TokenId: 1, Collateral: NewAmount(100), Offdelta: NewAmount(-40), LeftCreditLimit: NewAmount(60), RightCreditLimit: NewAmount(10)},
		{TokenId: 1, Collateral: NewAmount(100), Offdelta: NewAmount(50), LeftCreditLimit: NewAmount(10), RightCreditLimit: NewAmount(10)},
		{TokenId: 1, Collateral: NewAmount(100), Offdelta: NewAmount(150), LeftCreditLimit: NewAmount(10), RightCreditLimit: NewAmount(80)},
	}
	for _, d := range cases {
		if err := d.CheckInvariants(); err != nil {
			t.Fatalf("unexpected invariant failure for %+v: %v", d, err)
		}
		left := DeriveDelta(d, true)
		wantOut := d.NetDelta().Add(d.LeftCreditLimit)
		if left.OutCapacity().Cmp(wantOut) != 0 {
			t.Fatalf("left out capacity = %s, want %s", left.OutCapacity(), wantOut)
		}
	}
}

func TestCheckInvariantsRejectsNegativeCollateral(t *testing.T) {
	d := Delta{TokenId: 1, Collateral: NewAmount(-1)}
	if err := d.CheckInvariants(); err == nil {
		t.Fatal("expected error for negative collateral")
	}
}

func TestCheckInvariantsRejectsCreditOverdraw(t *testing.T) {
	// net delta far below zero with no credit limit should be rejected.
	d := Delta{TokenId: 1, Collateral: NewAmount(10), Offdelta: NewAmount(-100)}
	if err := d.CheckInvariants(); err == nil {
		t.Fatal("expected error when uninsured debt exceeds credit limit of zero")
	}
}

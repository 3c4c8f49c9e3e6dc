package core

import "testing"

func TestCompileSettlementOpsR2CAndC2R(t *testing.T) {
	proposer := EntityId{0x01}
	token := TokenId(1)
	ops := []SettlementOp{
		{Kind: SettleR2C, R2C: &R2COp{Token: token, Amount: NewAmount(40)}},
		{Kind: SettleC2R, C2R: &C2ROp{Token: token, Amount: NewAmount(15)}},
	}
	diffs, adjustments, err := compileSettlementOps(ops, proposer, true, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected one merged diff, got %d", len(diffs))
	}
	if want := NewAmount(25); diffs[0].CollateralDelta.Cmp(want) != 0 {
		t.Fatalf("CollateralDelta = %s, want %s", diffs[0].CollateralDelta, want)
	}
	var net Amount
	for _, a := range adjustments {
		net = net.Add(a.Amount)
	}
	if want := NewAmount(-25); net.Cmp(want) != 0 {
		t.Fatalf("net reserve adjustment = %s, want %s", net, want)
	}
}

func TestCompileSettlementOpsR2RMovesBetweenEntities(t *testing.T) {
	proposer := EntityId{0x01}
	counterparty := EntityId{0x02}
	token := TokenId(1)
	ops := []SettlementOp{
		{Kind: SettleR2R, R2R: &R2ROp{Token: token, Amount: NewAmount(10), Counterparty: counterparty}},
	}
	diffs, adjustments, err := compileSettlementOps(ops, proposer, true, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("r2r should not touch account deltas, got %d diffs", len(diffs))
	}
	if len(adjustments) != 2 {
		t.Fatalf("expected 2 reserve adjustments, got %d", len(adjustments))
	}
	var proposerAdj, cpAdj Amount
	for _, a := range adjustments {
		if a.Entity == proposer {
			proposerAdj = a.Amount
		} else {
			cpAdj = a.Amount
		}
	}
	if proposerAdj.Cmp(NewAmount(-10)) != 0 || cpAdj.Cmp(NewAmount(10)) != 0 {
		t.Fatalf("expected -10/+10 split, got proposer=%s counterparty=%s", proposerAdj, cpAdj)
	}
}

func TestCompileSettlementOpsForgiveZeroesOwnCreditUsage(t *testing.T) {
	proposer := EntityId{0x01}
	token := TokenId(1)
	// left (proposer) has drawn 30 of its own 50 credit limit.
	current := map[TokenId]Delta{
		token: {TokenId: token, Collateral: NewAmount(0), Offdelta: NewAmount(-30), LeftCreditLimit: NewAmount(50), RightCreditLimit: NewAmount(0)},
	}
	ops := []SettlementOp{{Kind: SettleForgive, Forgive: &ForgiveOp{Token: token}}}
	diffs, _, err := compileSettlementOps(ops, proposer, true, current)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected one diff from forgive, got %d", len(diffs))
	}
	if want := NewAmount(30); diffs[0].OndeltaDelta.Cmp(want) != 0 {
		t.Fatalf("OndeltaDelta = %s, want %s", diffs[0].OndeltaDelta, want)
	}

	after, err := applyTokenDiff(current[token], diffs[0])
	if err != nil {
		t.Fatalf("applyTokenDiff: %v", err)
	}
	view := DeriveDelta(after, true)
	if view.OutOwnCredit.Cmp(NewAmount(50)) != 0 {
		t.Fatalf("expected proposer's own credit fully restored, got OutOwnCredit=%s", view.OutOwnCredit)
	}
}

func TestCompileSettlementOpsForgiveNoOpWhenNothingDrawn(t *testing.T) {
	proposer := EntityId{0x01}
	token := TokenId(1)
	current := map[TokenId]Delta{
		token: {TokenId: token, LeftCreditLimit: NewAmount(50)},
	}
	ops := []SettlementOp{{Kind: SettleForgive, Forgive: &ForgiveOp{Token: token}}}
	diffs, adjustments, err := compileSettlementOps(ops, proposer, true, current)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(diffs) != 0 || len(adjustments) != 0 {
		t.Fatalf("expected no-op forgive to produce nothing, got diffs=%d adjustments=%d", len(diffs), len(adjustments))
	}
}

func TestCompileSettlementOpsRejectsZeroAmount(t *testing.T) {
	proposer := EntityId{0x01}
	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: ZeroAmount}}}
	if _, _, err := compileSettlementOps(ops, proposer, true, nil); err == nil {
		t.Fatal("expected zero-amount r2c to be rejected")
	}
}

func TestSettlementWorkspaceLifecycle(t *testing.T) {
	left := EntityId{0x01}
	right := EntityId{0x02}
	crypto := newTestCrypto(t)

	var signerL, signerR SignerId
	signerL[0] = 1
	signerR[0] = 2

	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}}}
	hash, err := canonicalHash(ops)
	if err != nil {
		t.Fatalf("hash ops: %v", err)
	}
	sigL, err := crypto.Sign(signerL, hash)
	if err != nil {
		t.Fatalf("sign left: %v", err)
	}

	w := NewSettlementWorkspace(left, true, ops, sigL)
	if w.Status != SettlementAwaitingCounterparty {
		t.Fatalf("expected initial status awaiting_counterparty, got %s", w.Status)
	}
	if w.Version != 1 {
		t.Fatalf("expected version 1 on propose, got %d", w.Version)
	}
	if !w.LastModifiedByLeft {
		t.Fatalf("expected lastModifiedByLeft true for left proposer")
	}

	updateOps := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(2)}}}
	updateHash, err := canonicalHash(updateOps)
	if err != nil {
		t.Fatalf("hash update ops: %v", err)
	}
	sigL2, err := crypto.Sign(signerL, updateHash)
	if err != nil {
		t.Fatalf("sign left update: %v", err)
	}
	if err := w.Update(updateOps, left, true, sigL2); err != nil {
		t.Fatalf("update: %v", err)
	}
	if w.Version != 2 {
		t.Fatalf("expected version to bump to 2 after update, got %d", w.Version)
	}

	sigR, err := crypto.Sign(signerR, canonicalHashMust(t, w.Ops))
	if err != nil {
		t.Fatalf("sign right: %v", err)
	}
	if err := w.Approve(right, false, sigR); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if w.Status != SettlementAwaitingCounterparty {
		t.Fatalf("approval alone should not advance status, got %s", w.Status)
	}
	if w.ExecutorIsLeft {
		t.Fatalf("expected executorIsLeft false: right (non-proposer) approved and is left=false, so executorIsLeft should mirror approverIsLeft=false")
	}

	version := w.Version
	if err := w.Finalize(left, right, crypto); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if w.Status != SettlementReadyToSubmit {
		t.Fatalf("expected ready_to_submit after both approvals, got %s", w.Status)
	}
	if w.Version != version {
		t.Fatalf("finalize must not bump version, got %d want %d", w.Version, version)
	}

	if err := w.MarkSubmitted(false); err != nil {
		t.Fatalf("mark submitted by executor: %v", err)
	}
	if w.Status != SettlementSubmitted {
		t.Fatalf("expected submitted, got %s", w.Status)
	}
	if err := w.Cancel(); err == nil {
		t.Fatal("expected cancel to be refused once submitted")
	}
}

func canonicalHashMust(t *testing.T, ops []SettlementOp) Hash {
	t.Helper()
	hash, err := canonicalHash(ops)
	if err != nil {
		t.Fatalf("hash ops: %v", err)
	}
	return hash
}

func TestSettlementWorkspaceOnlyProposerMayUpdate(t *testing.T) {
	left := EntityId{0x01}
	right := EntityId{0x02}
	crypto := newTestCrypto(t)
	var signerL SignerId
	signerL[0] = 1
	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}}}
	sig, err := crypto.Sign(signerL, canonicalHashMust(t, ops))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w := NewSettlementWorkspace(left, true, ops, sig)

	if err := w.Update(ops, right, false, sig); err == nil {
		t.Fatal("expected non-proposer side update to be rejected")
	}
}

func TestSettlementWorkspaceProposerCannotApproveOwnProposal(t *testing.T) {
	left := EntityId{0x01}
	crypto := newTestCrypto(t)
	var signerL SignerId
	signerL[0] = 1
	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}}}
	sig, err := crypto.Sign(signerL, canonicalHashMust(t, ops))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w := NewSettlementWorkspace(left, true, ops, sig)

	if err := w.Approve(left, true, sig); err == nil {
		t.Fatal("expected proposer approving its own proposal to be rejected")
	}
}

func TestSettlementWorkspaceUpdateRejectedOnceCounterpartySigned(t *testing.T) {
	left := EntityId{0x01}
	right := EntityId{0x02}
	crypto := newTestCrypto(t)
	var signerL, signerR SignerId
	signerL[0] = 1
	signerR[0] = 2
	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}}}
	sigL, err := crypto.Sign(signerL, canonicalHashMust(t, ops))
	if err != nil {
		t.Fatalf("sign left: %v", err)
	}
	w := NewSettlementWorkspace(left, true, ops, sigL)

	sigR, err := crypto.Sign(signerR, canonicalHashMust(t, w.Ops))
	if err != nil {
		t.Fatalf("sign right: %v", err)
	}
	if err := w.Approve(right, false, sigR); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := w.Update(ops, left, true, sigL); err == nil {
		t.Fatal("expected update to be rejected once the counterparty has signed")
	}
}

func TestSettlementWorkspaceRawDiffStrippedFromProposeAndUpdate(t *testing.T) {
	left := EntityId{0x01}
	crypto := newTestCrypto(t)
	var signerL SignerId
	signerL[0] = 1
	ops := []SettlementOp{
		{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}},
		{Kind: SettleRawDiff, RawDiff: &RawDiffOp{Token: 1}},
	}
	sig, err := crypto.Sign(signerL, canonicalHashMust(t, ops))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w := NewSettlementWorkspace(left, true, ops, sig)
	if len(w.Ops) != 1 {
		t.Fatalf("expected rawDiff op to be stripped on propose, got %d ops", len(w.Ops))
	}

	updateOps := append([]SettlementOp{}, ops...)
	if err := w.Update(updateOps, left, true, sig); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(w.Ops) != 1 {
		t.Fatalf("expected rawDiff op to be stripped on update, got %d ops", len(w.Ops))
	}
}

func TestSettlementWorkspaceOnlyFixedExecutorMaySubmit(t *testing.T) {
	left := EntityId{0x01}
	right := EntityId{0x02}
	crypto := newTestCrypto(t)
	var signerL, signerR SignerId
	signerL[0] = 1
	signerR[0] = 2
	ops := []SettlementOp{{Kind: SettleR2C, R2C: &R2COp{Token: 1, Amount: NewAmount(1)}}}
	sigL, err := crypto.Sign(signerL, canonicalHashMust(t, ops))
	if err != nil {
		t.Fatalf("sign left: %v", err)
	}
	w := NewSettlementWorkspace(left, true, ops, sigL)

	sigR, err := crypto.Sign(signerR, canonicalHashMust(t, w.Ops))
	if err != nil {
		t.Fatalf("sign right: %v", err)
	}
	if err := w.Approve(right, false, sigR); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := w.Finalize(left, right, crypto); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// executorIsLeft was fixed to false (right approved). Left attempting to
	// submit must be rejected.
	if err := w.MarkSubmitted(true); err == nil {
		t.Fatal("expected non-executor submit to be rejected")
	}
	if err := w.MarkSubmitted(false); err != nil {
		t.Fatalf("expected fixed executor submit to succeed: %v", err)
	}
}

package core

import (
	"context"
	"testing"
)

func newTestEntity(t *testing.T, id EntityId) *EntityState {
	t.Helper()
	crypto := newTestCrypto(t)
	clock := NewMockClock()
	tokens := NewStaticTokenRegistry(nil)
	ks, err := NewHDKeyStoreFromSeed(make([]byte, 32), nil)
	if err != nil {
		t.Fatalf("keystore: %v", err)
	}
	return NewEntityState(id, PrimarySignerFor(id), crypto, ks, clock, tokens)
}

func TestApplyOpenAccountSeedsCreditLimit(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	e := newTestEntity(t, a)

	amt := NewAmount(100)
	token := TokenId(1)
	errs := e.ApplyEntityTxs(context.Background(), NewStubJurisdictionAdapter(), []EntityTx{
		{Kind: TxOpenAccount, OpenAccount: &OpenAccountTx{TargetEntityId: b, CreditAmount: &amt, TokenId: &token}},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	acct, ok := e.account(b)
	if !ok {
		t.Fatal("expected account to be opened")
	}
	if len(acct.mempool) != 1 {
		t.Fatalf("expected the seed credit limit tx to be enqueued, got %d", len(acct.mempool))
	}
}

func TestApplyOpenAccountRejectsDuplicate(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	e := newTestEntity(t, a)
	adapter := NewStubJurisdictionAdapter()

	tx := EntityTx{Kind: TxOpenAccount, OpenAccount: &OpenAccountTx{TargetEntityId: b}}
	if errs := e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{tx}); len(errs) != 0 {
		t.Fatalf("unexpected errors on first open: %v", errs)
	}
	errs := e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{tx})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error on duplicate open_account, got %d", len(errs))
	}
}

func TestTickAdvancesHeightAndRecomputesStateHash(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	e := newTestEntity(t, a)
	adapter := NewStubJurisdictionAdapter()

	_, _, errs := e.Tick(context.Background(), adapter, []EntityTx{
		{Kind: TxOpenAccount, OpenAccount: &OpenAccountTx{TargetEntityId: b}},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if e.Height != 1 {
		t.Fatalf("expected height 1 after one tick, got %d", e.Height)
	}
	first := e.StateHash

	hash, err := e.ComputeStateHash()
	if err != nil {
		t.Fatalf("ComputeStateHash: %v", err)
	}
	if hash != first {
		t.Fatalf("ComputeStateHash is not reproducible: got %x, want %x", hash, first)
	}

	_, _, errs = e.Tick(context.Background(), adapter, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors on empty tick: %v", errs)
	}
	if e.Height != 2 {
		t.Fatalf("expected height 2 after second tick, got %d", e.Height)
	}
}

func TestApplyDepositCollateralRequiresSufficientReserve(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	e := newTestEntity(t, a)
	adapter := NewStubJurisdictionAdapter()

	if errs := e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{
		{Kind: TxOpenAccount, OpenAccount: &OpenAccountTx{TargetEntityId: b}},
	}); len(errs) != 0 {
		t.Fatalf("open account: %v", errs)
	}

	token := TokenId(1)
	errs := e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{
		{Kind: TxDepositCollateral, DepositCollateral: &DepositCollateralTx{Counterparty: b, Token: token, Amount: NewAmount(50)}},
	})
	if len(errs) != 1 {
		t.Fatalf("expected insufficient-reserve error, got %v", errs)
	}

	e.Reserves[token] = NewAmount(50)
	errs = e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{
		{Kind: TxDepositCollateral, DepositCollateral: &DepositCollateralTx{Counterparty: b, Token: token, Amount: NewAmount(50)}},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected error depositing exact reserve balance: %v", errs)
	}
	if e.Reserves[token].Cmp(ZeroAmount) != 0 {
		t.Fatalf("expected reserve to be fully debited, got %s", e.Reserves[token])
	}
	if len(e.JBP.Draft.ReserveToCollateral) != 1 {
		t.Fatalf("expected one queued r2c draft op, got %d", len(e.JBP.Draft.ReserveToCollateral))
	}
}

func TestHandleJurisdictionEventCounterpartyConfirmAppliesEffects(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	e := newTestEntity(t, a)
	adapter := NewStubJurisdictionAdapter()

	if errs := e.ApplyEntityTxs(context.Background(), adapter, []EntityTx{
		{Kind: TxOpenAccount, OpenAccount: &OpenAccountTx{TargetEntityId: b}},
	}); len(errs) != 0 {
		t.Fatalf("open account: %v", errs)
	}

	token := TokenId(1)
	ev := JurisdictionEvent{
		Kind:   EventCounterpartyBatchConfirmed,
		TxHash: Hash{0x01},
		CounterpartyBatchConfirmedPayload: &CounterpartyBatchConfirmedPayload{
			EntityId: a,
			OpIndex:  0,
			Effects: []CounterpartyOpEffect{
				{Counterparty: b, Token: token, CollateralDelta: NewAmount(20), OndeltaDelta: NewAmount(5)},
			},
		},
	}
	if err := e.HandleJurisdictionEvent(ev); err != nil {
		t.Fatalf("HandleJurisdictionEvent: %v", err)
	}
	acct, _ := e.account(b)
	d := acct.deltas[token]
	if d.Collateral.Cmp(NewAmount(20)) != 0 || d.Ondelta.Cmp(NewAmount(5)) != 0 {
		t.Fatalf("expected effects applied to account delta, got %+v", d)
	}

	// Redelivery with the same (txHash, opIndex) must not double-apply.
	if err := e.HandleJurisdictionEvent(ev); err != nil {
		t.Fatalf("redelivered HandleJurisdictionEvent: %v", err)
	}
	d = acct.deltas[token]
	if d.Collateral.Cmp(NewAmount(20)) != 0 {
		t.Fatalf("expected dedup to prevent double-apply, got Collateral=%s", d.Collateral)
	}
}

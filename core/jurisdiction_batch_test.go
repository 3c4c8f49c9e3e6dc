package core

import (
	"context"
	"testing"
)

func newTestCrypto(t *testing.T) Crypto {
	t.Helper()
	ks, err := NewHDKeyStoreFromSeed(make([]byte, 32), nil)
	if err != nil {
		t.Fatalf("new keystore: %v", err)
	}
	return NewEd25519Crypto(ks)
}

func TestJBPBroadcastRefusesWhileInFlight(t *testing.T) {
	p := NewJurisdictionBatchPipeline()
	p.Draft.ReserveToCollateral = append(p.Draft.ReserveToCollateral, R2COp{Token: 1, Amount: NewAmount(10)})

	adapter := NewStubJurisdictionAdapter()
	crypto := newTestCrypto(t)
	var signer SignerId

	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err != nil {
		t.Fatalf("first broadcast: %v", err)
	}
	if p.Sent == nil {
		t.Fatal("expected Sent to be set after broadcast")
	}
	if !p.Draft.isEmpty() {
		t.Fatal("expected Draft to be cleared after broadcast")
	}

	p.Draft.ReserveToCollateral = append(p.Draft.ReserveToCollateral, R2COp{Token: 1, Amount: NewAmount(5)})
	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err == nil {
		t.Fatal("expected broadcast to be refused while a batch is in flight")
	}
}

func TestJBPBroadcastRefusesEmptyDraft(t *testing.T) {
	p := NewJurisdictionBatchPipeline()
	adapter := NewStubJurisdictionAdapter()
	crypto := newTestCrypto(t)
	var signer SignerId

	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err == nil {
		t.Fatal("expected broadcast to be refused for an empty draft")
	}
}

func TestResolveFeeScalesByPresetExactly(t *testing.T) {
	base := FeeData{MaxFeePerGas: NewAmount(1000), MaxPriorityFeePerGas: NewAmount(100)}

	fast, err := resolveFee(FeeFast, base, nil)
	if err != nil {
		t.Fatalf("resolveFee(fast): %v", err)
	}
	if fast.MaxFeePerGas.Cmp(NewAmount(1200)) != 0 {
		t.Fatalf("fast MaxFeePerGas = %s, want 1200", fast.MaxFeePerGas)
	}

	urgent, err := resolveFee(FeeUrgent, base, nil)
	if err != nil {
		t.Fatalf("resolveFee(urgent): %v", err)
	}
	if urgent.MaxFeePerGas.Cmp(NewAmount(1500)) != 0 {
		t.Fatalf("urgent MaxFeePerGas = %s, want 1500", urgent.MaxFeePerGas)
	}
}

func TestResolveFeeCustomRequiresOverrides(t *testing.T) {
	base := FeeData{MaxFeePerGas: NewAmount(1000), MaxPriorityFeePerGas: NewAmount(100)}
	if _, err := resolveFee(FeeCustom, base, nil); err == nil {
		t.Fatal("expected custom preset without overrides to fail")
	}
	overrides := &FeeOverrides{MaxFeePerGas: NewAmount(9999), MaxPriorityFeePerGas: NewAmount(1)}
	got, err := resolveFee(FeeCustom, base, overrides)
	if err != nil {
		t.Fatalf("resolveFee(custom): %v", err)
	}
	if got.MaxFeePerGas.Cmp(overrides.MaxFeePerGas) != 0 {
		t.Fatalf("custom fee not passed through verbatim: got %s", got.MaxFeePerGas)
	}
}

func TestJBPRebroadcastBumpsFeeAndKeepsNonce(t *testing.T) {
	p := NewJurisdictionBatchPipeline()
	p.Draft.CollateralToReserve = append(p.Draft.CollateralToReserve, C2ROp{Token: 1, Amount: NewAmount(10)})
	adapter := NewStubJurisdictionAdapter()
	crypto := newTestCrypto(t)
	var signer SignerId

	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	nonce := p.Sent.Nonce
	attempts := p.Sent.SubmitAttempts

	if _, err := p.Rebroadcast(context.Background(), adapter, signer, crypto, 1000); err != nil {
		t.Fatalf("rebroadcast: %v", err)
	}
	if p.Sent.Nonce != nonce {
		t.Fatalf("rebroadcast changed nonce: got %d, want %d", p.Sent.Nonce, nonce)
	}
	if p.Sent.SubmitAttempts != attempts+1 {
		t.Fatalf("expected SubmitAttempts to increment, got %d", p.Sent.SubmitAttempts)
	}
}

func TestJBPClearDraftRefusedWhileInFlight(t *testing.T) {
	p := NewJurisdictionBatchPipeline()
	p.Draft.ReserveToReserve = append(p.Draft.ReserveToReserve, R2ROp{Token: 1, Amount: NewAmount(1)})
	adapter := NewStubJurisdictionAdapter()
	crypto := newTestCrypto(t)
	var signer SignerId

	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if err := p.ClearDraft("changed my mind"); err == nil {
		t.Fatal("expected ClearDraft to be refused while Sent is in flight")
	}
}

func TestJBPHandleBatchConfirmedMovesToHistory(t *testing.T) {
	p := NewJurisdictionBatchPipeline()
	p.Draft.ReserveToCollateral = append(p.Draft.ReserveToCollateral, R2COp{Token: 1, Amount: NewAmount(1)})
	adapter := NewStubJurisdictionAdapter()
	crypto := newTestCrypto(t)
	var signer SignerId

	if _, err := p.Broadcast(context.Background(), adapter, signer, crypto, FeeStandard, nil); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	nonce := p.Sent.Nonce
	txHash := p.Sent.TxHash

	ev := JurisdictionEvent{
		Kind:         EventBatchConfirmed,
		TxHash:       txHash,
		JBlockNumber: 42,
		BatchConfirmedPayload: &BatchConfirmedPayload{
			EntityNonce: nonce,
		},
	}
	if err := p.HandleBatchConfirmed(ev); err != nil {
		t.Fatalf("HandleBatchConfirmed: %v", err)
	}
	if p.Sent != nil {
		t.Fatal("expected Sent to be cleared after confirmation")
	}
	if len(p.History) != 1 || p.History[0].Status != "confirmed" {
		t.Fatalf("expected one confirmed history entry, got %+v", p.History)
	}

	// Redelivery of the same confirmation is a dedup no-op, not an error.
	if err := p.HandleBatchConfirmed(ev); err != nil {
		t.Fatalf("redelivered HandleBatchConfirmed: %v", err)
	}
	if len(p.History) != 1 {
		t.Fatalf("expected dedup to prevent a second history entry, got %d", len(p.History))
	}
}

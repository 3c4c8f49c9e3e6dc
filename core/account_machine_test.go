package core

import "testing"

func TestAccountMachineRoundTripCommitsSymmetrically(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	crypto := newTestCrypto(t)
	clock := NewMockClock()

	left := NewAccountMachine(a, b, a, crypto, clock)
	right := NewAccountMachine(a, b, b, crypto, clock)

	token := TokenId(1)
	tx := AccountTx{
		Kind: TxSetCreditLimit, Sender: a,
		SetCreditLimit: &SetCreditLimitTx{Token: token, Side: CreditLeft, Amount: NewAmount(100)},
	}
	left.Enqueue(tx)
	right.Enqueue(tx)

	var proposerSigner, receiverSigner SignerId
	proposerSigner[0] = 1
	receiverSigner[0] = 2

	var proposal *AccountFrameProposal
	var err error
	if left.isProposer() {
		proposal, err = left.ProposeNextFrame(proposerSigner)
	} else {
		proposal, err = right.ProposeNextFrame(proposerSigner)
	}
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if proposal == nil {
		t.Fatal("expected a non-nil proposal")
	}

	proposer, receiver := left, right
	if !left.isProposer() {
		proposer, receiver = right, left
	}

	ack, nak, err := receiver.HandleProposal(proposal, proposerSigner, receiverSigner)
	if err != nil {
		t.Fatalf("handle proposal: %v", err)
	}
	if nak != nil {
		t.Fatalf("unexpected nak: %+v", nak)
	}

	finalize, err := proposer.HandleAck(ack, proposal.ProposerSig)
	if err != nil {
		t.Fatalf("handle ack: %v", err)
	}
	if err := receiver.HandleFinalize(finalize); err != nil {
		t.Fatalf("handle finalize: %v", err)
	}

	if proposer.Status() != StatusIdle || receiver.Status() != StatusIdle {
		t.Fatalf("expected both sides Idle after commit, got proposer=%s receiver=%s", proposer.Status(), receiver.Status())
	}
	if proposer.CurrentFrame().StateHash != receiver.CurrentFrame().StateHash {
		t.Fatal("expected both sides to converge on the same state hash")
	}
	if proposer.CurrentFrame().Height != 1 || receiver.CurrentFrame().Height != 1 {
		t.Fatalf("expected height 1 on both sides, got proposer=%d receiver=%d", proposer.CurrentFrame().Height, receiver.CurrentFrame().Height)
	}

	leftView := left.DeltaView(token, a)
	rightView := right.DeltaView(token, b)
	if leftView.OutPeerCredit.Cmp(rightView.InOwnCredit) != 0 {
		t.Fatalf("left.OutPeerCredit %s != right.InOwnCredit %s", leftView.OutPeerCredit, rightView.InOwnCredit)
	}
}

func TestAccountMachineEscalatesOnFinalizeMismatch(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	crypto := newTestCrypto(t)
	clock := NewMockClock()

	m := NewAccountMachine(a, b, a, crypto, clock)
	m.pendingFrame = &AccountFrame{Height: 1, StateHash: Hash{0xAA}}
	m.status = StatusAwaitingFinalize

	bogus := &AccountFrameFinalize{AccountId: b, StateHash: Hash{0xBB}}
	err := m.HandleFinalize(bogus)
	if err == nil {
		t.Fatal("expected finalize hash mismatch to error")
	}
	if m.Status() != StatusDisputed {
		t.Fatalf("expected Disputed status after mismatch, got %s", m.Status())
	}
}

func TestAccountMachineBackoffEscalatesAfterMaxAttempts(t *testing.T) {
	a := EntityId{0x01}
	b := EntityId{0x02}
	crypto := newTestCrypto(t)
	clock := NewMockClock()
	m := NewAccountMachine(a, b, a, crypto, clock)

	var last int
	exhausted := false
	for i := 0; i < retryMaxAttempts; i++ {
		ms, ex := m.NextBackoff()
		if ex {
			t.Fatalf("unexpected early exhaustion at attempt %d", i+1)
		}
		if ms < last {
			t.Fatalf("expected non-decreasing backoff, got %d after %d", ms, last)
		}
		last = ms
	}
	_, exhausted = m.NextBackoff()
	if !exhausted {
		t.Fatal("expected NextBackoff to report exhaustion past retryMaxAttempts")
	}
}

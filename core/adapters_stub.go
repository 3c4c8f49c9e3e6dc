package core

// adapters_stub.go – in-memory reference implementations of the adapter
// interfaces in adapters.go, for tests and local development. Grounded on
// the teacher's tests/state_channel_test.go hand-rolled mocks (scMem,
// stubToken): small, explicit, no mocking framework.

import (
	"context"
	"fmt"
	"sync"
)

//---------------------------------------------------------------------
// TokenRegistry
//---------------------------------------------------------------------

// StaticTokenRegistry is a fixed, in-memory TokenRegistry seeded at
// construction from a Go map of TokenInfo.
type StaticTokenRegistry struct {
	mu    sync.RWMutex
	infos map[TokenId]TokenInfo
}

func NewStaticTokenRegistry(seed map[TokenId]TokenInfo) *StaticTokenRegistry {
	r := &StaticTokenRegistry{infos: make(map[TokenId]TokenInfo, len(seed))}
	for k, v := range seed {
		r.infos[k] = v
	}
	return r
}

func (r *StaticTokenRegistry) Info(token TokenId) (TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.infos[token]
	return ti, ok
}

func (r *StaticTokenRegistry) List() []TokenInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TokenInfo, 0, len(r.infos))
	for _, v := range r.infos {
		out = append(out, v)
	}
	return out
}

//---------------------------------------------------------------------
// Gossip
//---------------------------------------------------------------------

// MemoryGossip is an in-process Gossip stand-in used by tests and single-
// process development environments.
type MemoryGossip struct {
	mu       sync.RWMutex
	profiles map[EntityId]Profile
}

func NewMemoryGossip() *MemoryGossip {
	return &MemoryGossip{profiles: make(map[EntityId]Profile)}
}

func (g *MemoryGossip) GetProfiles(ctx context.Context) ([]Profile, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Profile, 0, len(g.profiles))
	for _, p := range g.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (g *MemoryGossip) PublishProfile(ctx context.Context, p Profile) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[p.EntityId] = p
	return nil
}

//---------------------------------------------------------------------
// JurisdictionAdapter
//---------------------------------------------------------------------

// StubJurisdictionAdapter is a deterministic in-memory jurisdiction adapter
// for tests: submitted batches are recorded, never actually broadcast, and
// events are delivered from a queue the test populates.
type StubJurisdictionAdapter struct {
	mu           sync.Mutex
	blockNumber  uint64
	baseFee      Amount
	priorityFee  Amount
	submitted    []stubSubmission
	events       chan JurisdictionEvent
	erc20Balances map[string]Amount
}

type stubSubmission struct {
	Payload []byte
	Fee     FeeOverrides
	TxHash  Hash
}

func NewStubJurisdictionAdapter() *StubJurisdictionAdapter {
	return &StubJurisdictionAdapter{
		baseFee:       NewAmount(1_000_000_000),
		priorityFee:   NewAmount(1_000_000),
		events:        make(chan JurisdictionEvent, 64),
		erc20Balances: make(map[string]Amount),
	}
}

func (s *StubJurisdictionAdapter) GetBlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockNumber, nil
}

// AdvanceBlock lets tests move the simulated chain forward.
func (s *StubJurisdictionAdapter) AdvanceBlock(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockNumber += n
}

func (s *StubJurisdictionAdapter) GetFeeData(ctx context.Context) (FeeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FeeData{MaxFeePerGas: s.baseFee, MaxPriorityFeePerGas: s.priorityFee}, nil
}

func (s *StubJurisdictionAdapter) SubmitProcessBatch(ctx context.Context, payload []byte, fee FeeOverrides) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := Hash{}
	copy(h[:], fmt.Sprintf("%032d", len(s.submitted)))
	s.submitted = append(s.submitted, stubSubmission{Payload: payload, Fee: fee, TxHash: h})
	return SubmitResult{TxHash: h}, nil
}

func (s *StubJurisdictionAdapter) GetErc20Balance(ctx context.Context, token TokenId, holder EntityId) (Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.erc20Balances[fmt.Sprintf("%d:%s", token, holder)], nil
}

func (s *StubJurisdictionAdapter) SetErc20Balance(token TokenId, holder EntityId, amt Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.erc20Balances[fmt.Sprintf("%d:%s", token, holder)] = amt
}

func (s *StubJurisdictionAdapter) ExternalTokenToReserve(ctx context.Context, signer SignerId, entity EntityId, token TokenId, amount Amount) (Hash, error) {
	return Hash{}, nil
}

func (s *StubJurisdictionAdapter) SubscribeEvents(ctx context.Context) (<-chan JurisdictionEvent, error) {
	return s.events, nil
}

// Emit lets tests push a synthetic JurisdictionEvent onto the subscription
// stream (e.g. BatchConfirmed after a submitted batch "confirms").
func (s *StubJurisdictionAdapter) Emit(ev JurisdictionEvent) {
	s.events <- ev
}

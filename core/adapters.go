package core

// adapters.go – external collaborator interfaces (spec.md §6.1). The core
// consumes these; it does not own their implementation. Grounded on the
// teacher's interface-only wiring style for StateRW/BlockReader/PeerManager
// in the old common_structs.go, which kept core logic independent of any
// concrete storage/network implementation.

import "context"

// Crypto is the abstract signing/hashing capability. Wallet key derivation,
// ECDSA/ed25519 signing and keccak-style hashing live behind this interface;
// the core never implements them directly (spec.md §1).
type Crypto interface {
	Hash(data []byte) Hash
	Sign(key SignerId, h Hash) (Signature, error)
	Verify(signer SignerId, h Hash, sig Signature) bool
	Aggregate(sigs []Signature) (Hanko, error)
}

// KeyStore derives and exposes signer key material.
type KeyStore interface {
	DeriveSigner(seed []byte, signer SignerId) error
	PublicFor(signer SignerId) ([]byte, error)
}

// FeeData is the adapter-suggested base fee, used to scale the JBP fee
// presets (spec.md §4.4).
type FeeData struct {
	MaxFeePerGas         Amount
	MaxPriorityFeePerGas Amount
}

// FeeOverrides pins an explicit fee, used by the "custom" preset.
type FeeOverrides struct {
	MaxFeePerGas         Amount
	MaxPriorityFeePerGas Amount
}

// SubmitResult is returned by submitProcessBatch.
type SubmitResult struct {
	TxHash Hash
}

// JurisdictionAdapter bridges the core to the real on-chain jurisdiction
// layer (spec.md §6.1).
type JurisdictionAdapter interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetFeeData(ctx context.Context) (FeeData, error)
	SubmitProcessBatch(ctx context.Context, payload []byte, fee FeeOverrides) (SubmitResult, error)
	GetErc20Balance(ctx context.Context, token TokenId, holder EntityId) (Amount, error)
	ExternalTokenToReserve(ctx context.Context, signer SignerId, entity EntityId, token TokenId, amount Amount) (Hash, error)
	SubscribeEvents(ctx context.Context) (<-chan JurisdictionEvent, error)
}

// Profile is a gossip-published entity card.
type Profile struct {
	EntityId EntityId
	Name     string
	Metadata map[string]string
}

// Gossip is the profile discovery/publication capability.
type Gossip interface {
	GetProfiles(ctx context.Context) ([]Profile, error)
	PublishProfile(ctx context.Context, p Profile) error
}

// TokenRegistry resolves token metadata sourced from the jurisdiction.
type TokenRegistry interface {
	Info(token TokenId) (TokenInfo, bool)
	List() []TokenInfo
}

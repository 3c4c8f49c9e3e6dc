package core

// types.go – identifiers and arbitrary-precision primitives shared across the
// account consensus engine, settlement workspace, entity machine and
// jurisdiction pipeline. Mirrors the teacher's practice of centralising
// widely shared value types in one file (see the old common_structs.go) but
// scoped to this domain's identifiers instead of a chain-wide struct zoo.

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
)

// EntityId is an opaque 32-byte identifier for a top-level account holder.
type EntityId [32]byte

// String renders the id as lowercase hex, matching spec.md §3.1.
func (e EntityId) String() string { return hex.EncodeToString(e[:]) }

// Less reports whether e sorts before o under case-insensitive lexicographic
// comparison of their hex encodings. Hex of raw bytes is already
// case-insensitive once lower-cased, so a direct byte compare suffices.
func (e EntityId) Less(o EntityId) bool { return bytes.Compare(e[:], o[:]) < 0 }

func (e EntityId) IsZero() bool { return e == EntityId{} }

// MarshalText/UnmarshalText let EntityId serve as a JSON object key (used by
// the EntityState.Accounts snapshot and SettlementWorkspace.ApprovedBy maps) and keep canonical encoding
// human-readable, matching the teacher's hex-everywhere convention.
func (e EntityId) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EntityId) UnmarshalText(text []byte) error {
	id, err := ParseEntityId(string(text))
	if err != nil {
		return err
	}
	*e = id
	return nil
}

// ParseEntityId decodes a hex string into an EntityId.
func ParseEntityId(s string) (EntityId, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return EntityId{}, fmt.Errorf("entity id must be 32-byte hex: %w", err)
	}
	var id EntityId
	copy(id[:], b)
	return id, nil
}

// SignerId is an opaque 20-byte identifier of an authorized signer within an
// entity.
type SignerId [20]byte

func (s SignerId) String() string { return hex.EncodeToString(s[:]) }

func (s SignerId) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SignerId) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != 20 {
		return fmt.Errorf("signer id must be 20-byte hex: %w", err)
	}
	copy(s[:], b)
	return nil
}

// PrimarySignerFor derives the default SignerId an entity uses for
// entity-level acts (jurisdiction broadcast, frame proposal) when no more
// specific signer is named. It is deterministic in the entity id so every
// process that loads the same entity arrives at the same signer.
func PrimarySignerFor(id EntityId) SignerId {
	var s SignerId
	copy(s[:], id[:20])
	return s
}

// TokenId is a positive integer identifying a fungible token known to the
// jurisdiction.
type TokenId uint64

// TokenInfo carries jurisdiction-sourced token metadata (spec.md §3.1).
type TokenInfo struct {
	Symbol   string
	Decimals uint8
	Address  *EntityId // nil for the native token
}

// Hash is a 32-byte digest.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool    { return h == Hash{} }

// Signature is opaque signing-scheme-specific bytes.
type Signature []byte

// Hanko is an aggregated multi-signature attesting to a frame or workspace.
type Hanko []byte

// Amount is an arbitrary-precision signed integer, wide enough for token
// units scaled by 10^decimals (spec.md §3.1, §9 "BigInt-only arithmetic").
type Amount struct {
	v *big.Int
}

// NewAmount wraps an int64 as an Amount.
func NewAmount(v int64) Amount { return Amount{v: big.NewInt(v)} }

// AmountFromBig wraps a *big.Int. The Amount takes ownership of a copy.
func AmountFromBig(v *big.Int) Amount {
	if v == nil {
		return Amount{v: big.NewInt(0)}
	}
	return Amount{v: new(big.Int).Set(v)}
}

func (a Amount) BigInt() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) Add(o Amount) Amount { return AmountFromBig(new(big.Int).Add(a.big(), o.big())) }
func (a Amount) Sub(o Amount) Amount { return AmountFromBig(new(big.Int).Sub(a.big(), o.big())) }
func (a Amount) Neg() Amount         { return AmountFromBig(new(big.Int).Neg(a.big())) }
func (a Amount) Cmp(o Amount) int    { return a.big().Cmp(o.big()) }
func (a Amount) Sign() int           { return a.big().Sign() }
func (a Amount) IsZero() bool        { return a.Sign() == 0 }
func (a Amount) IsNeg() bool         { return a.Sign() < 0 }
func (a Amount) String() string      { return a.big().String() }

func (a Amount) big() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// Min returns the smaller of a and o.
func (a Amount) Min(o Amount) Amount {
	if a.Cmp(o) <= 0 {
		return a
	}
	return o
}

// Max returns the larger of a and o.
func (a Amount) Max(o Amount) Amount {
	if a.Cmp(o) >= 0 {
		return a
	}
	return o
}

// MarshalJSON renders the amount as a decimal string so arbitrarily large
// values survive the canonical JSON encoding used for state hashing.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.big().String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount: invalid decimal %q", s)
	}
	a.v = v
	return nil
}

// ZeroAmount is the additive identity.
var ZeroAmount = NewAmount(0)

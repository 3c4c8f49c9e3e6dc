package core

// encoding.go – canonical state encoding and hashing (spec.md §6.3, §9 "Map
// iteration order"). encoding/json already sorts map keys and preserves
// struct field order, so it is used directly as the canonical codec — the
// same "mustJSON" convention the teacher's state_channel.go relies on — with
// the one addition that every map type reachable from hashed state uses a
// TextMarshaler-capable key (EntityId, SignerId) or an integer key (TokenId)
// so the encoding stays deterministic rather than relying on insertion order.

import (
	"crypto/sha256"
	"encoding/json"
)

// canonicalEncode renders v through encoding/json, which sorts map keys and
// respects declared struct field order, giving a deterministic byte
// sequence suitable for hashing.
func canonicalEncode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// canonicalHash hashes the canonical encoding of v. A marshal error is
// returned to the caller together with the zero hash.
func canonicalHash(v interface{}) (Hash, error) {
	b, err := canonicalEncode(v)
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(b), nil
}

func mustJSON(v interface{}) []byte {
	b, _ := canonicalEncode(v)
	return b
}

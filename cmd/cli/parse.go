package cli

// parse.go – small argument-parsing helpers shared by the command files,
// grounded on the teacher's StringToAddress convention (old
// account_and_balance_operations.go) but adapted to this domain's
// identifiers and arbitrary-precision amounts.

import (
	"encoding/hex"
	"fmt"
	"math/big"

	core "channel-console/core"
)

func parseEntityId(s string) (core.EntityId, error) {
	return core.ParseEntityId(s)
}

func parseSignerId(s string) (core.SignerId, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 20 {
		return core.SignerId{}, fmt.Errorf("signer id must be 20-byte hex: %w", err)
	}
	var id core.SignerId
	copy(id[:], b)
	return id, nil
}

func parseAmount(s string) (core.Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return core.Amount{}, fmt.Errorf("invalid decimal amount %q", s)
	}
	return core.AmountFromBig(v), nil
}

func parseTokenId(s string) (core.TokenId, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid token id %q: %w", s, err)
	}
	return core.TokenId(v), nil
}

package core

// account_frame.go – AccountFrame (spec.md §3.3): an immutable, hash-chained
// unit of account progress. Grounded on the teacher's Channel/SignedState
// commit-and-chain pattern in the old state_channel.go (a co-signed state
// snapshot gated by a monotonic nonce), generalized to a full ordered
// transaction list and an explicit prevStateHash chain link instead of a
// single nonce field.

// AccountFrame is an immutable record of one round of account progress.
type AccountFrame struct {
	Height        uint64
	Timestamp     int64
	AccountTxs    []AccountTx
	TokenIds      []TokenId
	ByLeft        bool // true if the left side proposed this frame
	StateHash     Hash
	PrevStateHash Hash
}

// frameSigningPayload is hashed to produce the commitment both sides sign
// during the two-phase commit (spec.md §4.1 step 1-2). It intentionally
// excludes StateHash itself (computed from it) but includes everything the
// receiving side can independently recompute.
type frameSigningPayload struct {
	Height        uint64
	Timestamp     int64
	AccountTxs    []AccountTx
	TokenIds      []TokenId
	ByLeft        bool
	PrevStateHash Hash
	PostDeltas    []Delta
}

// computeFrameHash derives the canonical stateHash for a candidate frame
// given the post-application per-token deltas, sorted by TokenId ascending
// per spec.md §4.3's determinism requirement.
func computeFrameHash(f AccountFrame, postDeltas []Delta) (Hash, error) {
	sorted := make([]Delta, len(postDeltas))
	copy(sorted, postDeltas)
	sortDeltasByToken(sorted)

	payload := frameSigningPayload{
		Height:        f.Height,
		Timestamp:     f.Timestamp,
		AccountTxs:    f.AccountTxs,
		TokenIds:      sortedTokenIds(f.TokenIds),
		ByLeft:        f.ByLeft,
		PrevStateHash: f.PrevStateHash,
		PostDeltas:    sorted,
	}
	return canonicalHash(payload)
}

func sortDeltasByToken(d []Delta) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].TokenId < d[j-1].TokenId; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

func sortedTokenIds(ids []TokenId) []TokenId {
	out := make([]TokenId, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// GenesisHash is the hash chained from by the first frame at height 1.
var GenesisHash = Hash{}

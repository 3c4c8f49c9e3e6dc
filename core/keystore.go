package core

// keystore.go – the Crypto and KeyStore capability implementations
// (spec.md §6.1). Adapted from the teacher's core/wallet.go HD wallet: the
// same SLIP-0010-style hardened ed25519 derivation and BIP-39 mnemonic
// handling, repurposed from a standalone wallet product into the narrow
// DeriveSigner/PublicFor/Sign/Verify/Aggregate surface the core calls.

import (
	"crypto/ed25519"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
)

const (
	hardenedOffset uint32 = 0x80000000
	masterHMACKey         = "ed25519 seed"
)

// HDKeyStore derives ed25519 signer keys from a BIP-39 seed using hardened
// SLIP-0010 derivation, one hardened child per SignerId (hashed into a
// uint32 derivation index). It implements both KeyStore and Crypto.
type HDKeyStore struct {
	mu          sync.RWMutex
	masterKey   []byte
	masterChain []byte
	signers     map[SignerId]ed25519.PrivateKey
	logger      *log.Logger
}

// NewHDKeyStoreFromMnemonic imports a BIP-39 recovery phrase, matching the
// teacher's WalletFromMnemonic.
func NewHDKeyStoreFromMnemonic(mnemonic, passphrase string, lg *log.Logger) (*HDKeyStore, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("keystore: invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDKeyStoreFromSeed(seed, lg)
}

// NewRandomHDKeyStore generates fresh entropy and returns the keystore plus
// its recovery mnemonic, which the caller must store securely.
func NewRandomHDKeyStore(entropyBits int, lg *log.Logger) (*HDKeyStore, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("keystore: unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("keystore: entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("keystore: mnemonic: %w", err)
	}
	ks, err := NewHDKeyStoreFromSeed(bip39.NewSeed(mnemonic, ""), lg)
	if err != nil {
		return nil, "", err
	}
	return ks, mnemonic, nil
}

func NewHDKeyStoreFromSeed(seed []byte, lg *log.Logger) (*HDKeyStore, error) {
	if len(seed) < 16 {
		return nil, errors.New("keystore: seed too short")
	}
	if lg == nil {
		lg = log.New()
	}
	I := hmacSHA512([]byte(masterHMACKey), seed)
	ks := &HDKeyStore{
		masterKey:   I[:32],
		masterChain: I[32:],
		signers:     make(map[SignerId]ed25519.PrivateKey),
		logger:      lg,
	}
	lg.WithField("seed_bytes", len(seed)).Debug("keystore: master key initialised")
	return ks, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// derivationIndex folds a SignerId into a hardened uint32 index so every
// signer gets a stable, distinct derivation path.
func derivationIndex(signer SignerId) uint32 {
	sum := sha256.Sum256(signer[:])
	return hardenedOffset | (binary.BigEndian.Uint32(sum[:4]) &^ hardenedOffset)
}

func derivePrivate(parentKey, parentChain []byte, index uint32) (key, chain []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("keystore: non-hardened derivation unsupported for ed25519")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	I := hmacSHA512(parentChain, data)
	return I[:32], I[32:], nil
}

// DeriveSigner derives (and caches) the ed25519 key pair for signer from the
// keystore's master seed material. The seed argument is accepted for
// interface compatibility with externally-rooted keystores but is ignored
// here since the master seed was fixed at construction.
func (ks *HDKeyStore) DeriveSigner(_ []byte, signer SignerId) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := ks.signers[signer]; ok {
		return nil
	}
	k, _, err := derivePrivate(ks.masterKey, ks.masterChain, derivationIndex(signer))
	if err != nil {
		return err
	}
	priv := ed25519.NewKeyFromSeed(k)
	ks.signers[signer] = priv
	ks.logger.WithField("signer", signer.String()).Debug("keystore: signer derived")
	return nil
}

// PublicFor returns the ed25519 public key for signer, deriving it on first
// use if necessary.
func (ks *HDKeyStore) PublicFor(signer SignerId) ([]byte, error) {
	ks.mu.RLock()
	priv, ok := ks.signers[signer]
	ks.mu.RUnlock()
	if !ok {
		if err := ks.DeriveSigner(nil, signer); err != nil {
			return nil, err
		}
		ks.mu.RLock()
		priv = ks.signers[signer]
		ks.mu.RUnlock()
	}
	return priv.Public().(ed25519.PublicKey), nil
}

func (ks *HDKeyStore) privateFor(signer SignerId) (ed25519.PrivateKey, error) {
	ks.mu.RLock()
	priv, ok := ks.signers[signer]
	ks.mu.RUnlock()
	if ok {
		return priv, nil
	}
	if err := ks.DeriveSigner(nil, signer); err != nil {
		return nil, err
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.signers[signer], nil
}

//---------------------------------------------------------------------
// Crypto implementation
//---------------------------------------------------------------------

// Ed25519Crypto implements Crypto on top of an HDKeyStore, matching the
// teacher's pattern of layering transaction signing (wallet.go's SignTx)
// directly atop the HD derivation primitives.
type Ed25519Crypto struct {
	ks *HDKeyStore
}

func NewEd25519Crypto(ks *HDKeyStore) *Ed25519Crypto { return &Ed25519Crypto{ks: ks} }

func (c *Ed25519Crypto) Hash(data []byte) Hash { return sha256.Sum256(data) }

func (c *Ed25519Crypto) Sign(signer SignerId, h Hash) (Signature, error) {
	priv, err := c.ks.privateFor(signer)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return ed25519.Sign(priv, h[:]), nil
}

func (c *Ed25519Crypto) Verify(signer SignerId, h Hash, sig Signature) bool {
	pub, err := c.ks.PublicFor(signer)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, h[:], sig)
}

// Aggregate concatenates individual signatures into a Hanko. Real multisig
// aggregation (BLS or similar) is left to a production Crypto
// implementation; this reference implementation simply frames each
// signature with its length so Verify-side code can split them back out.
func (c *Ed25519Crypto) Aggregate(sigs []Signature) (Hanko, error) {
	if len(sigs) == 0 {
		return nil, errors.New("crypto: aggregate: no signatures")
	}
	var out []byte
	for _, s := range sigs {
		if len(s) > 255 {
			return nil, errors.New("crypto: aggregate: signature too long to frame")
		}
		out = append(out, byte(len(s)))
		out = append(out, s...)
	}
	return Hanko(out), nil
}

// SplitHanko reverses Aggregate for verification of individual shares.
func SplitHanko(h Hanko) ([]Signature, error) {
	var out []Signature
	b := []byte(h)
	for len(b) > 0 {
		n := int(b[0])
		b = b[1:]
		if len(b) < n {
			return nil, errors.New("crypto: split hanko: truncated")
		}
		out = append(out, Signature(b[:n]))
		b = b[n:]
	}
	return out, nil
}

// RandomEntropy produces cryptographically secure random bytes, matching the
// teacher's RandomMnemonicEntropy helper.
func RandomEntropy(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe zeroes a byte slice in place (best effort).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Key material is ed25519. Accounts on the chain are keyed by the hex public
// key directly; the shorter Address form exists for derived accounts like the
// market escrow and treasury.

type PrivateKey []byte

type PublicKey []byte

// addressLen is the byte length of a derived address (40 hex chars).
const addressLen = 20

// GenerateKeyPair creates a fresh key pair for a wallet or validator.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Address derives the short account form: the first 20 bytes of
// SHA-256(pubkey), hex encoded.
func (pub PublicKey) Address() string {
	return hex.EncodeToString(HashBytes(pub)[:addressLen])
}

// Hex is the canonical account identifier on this chain.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Public derives the matching public key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// PubKeyFromHex parses a hex account identifier back into a key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pubkey is %d bytes, want %d", len(b), ed25519.PublicKeySize)
	}
	return PublicKey(b), nil
}

// PrivKeyFromHex parses a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode privkey hex: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("privkey is %d bytes, want %d", len(b), ed25519.PrivateKeySize)
	}
	return PrivateKey(b), nil
}

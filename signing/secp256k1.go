package signing

import (
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"

	"paychan/interfaces"
)

// Secp256k1Signer implements interfaces.Signer with compact recoverable
// ECDSA signatures over secp256k1.
type Secp256k1Signer struct{}

var _ interfaces.Signer = &Secp256k1Signer{}

func NewSecp256k1Signer() *Secp256k1Signer {
	return &Secp256k1Signer{}
}

// Sign produces a 65-byte compact signature over a 32-byte hash
func (s *Secp256k1Signer) Sign(hash []byte, key []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, xerrors.Errorf("expected 32-byte hash, got %d", len(hash))
	}
	if len(key) != 32 {
		return nil, xerrors.Errorf("expected 32-byte private key, got %d", len(key))
	}
	priv := secp256k1.PrivKeyFromBytes(key)
	return ecdsa.SignCompact(priv, hash, false), nil
}

// Recover returns the address of the key that produced sig over hash
func (s *Secp256k1Signer) Recover(hash []byte, sig []byte) (string, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return "", xerrors.Errorf("recover fail: %w", err)
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the 0x-prefixed hex address: the last 20 bytes
// of keccak256 over the uncompressed public key without its 0x04 prefix.
func PubkeyToAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	d := sha3.NewLegacyKeccak256()
	d.Write(uncompressed[1:])
	h := d.Sum(nil)
	return "0x" + hex.EncodeToString(h[12:])
}

// AddressFromPrivateKey derives the address controlled by a raw 32-byte key
func AddressFromPrivateKey(key []byte) (string, error) {
	if len(key) != 32 {
		return "", xerrors.Errorf("expected 32-byte private key, got %d", len(key))
	}
	priv := secp256k1.PrivKeyFromBytes(key)
	return PubkeyToAddress(priv.PubKey()), nil
}

// AddressesEqual compares two addresses case-insensitively
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

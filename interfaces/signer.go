package interfaces

// Signer abstracts the ECDSA signing/recovery primitive so the concrete
// curve implementation is swappable and testable with fixture vectors.
type Signer interface {
	// Sign produces a recoverable signature over a 32-byte message hash
	Sign(hash []byte, key []byte) ([]byte, error)

	// Recover returns the 0x-prefixed hex address of the signer
	Recover(hash []byte, sig []byte) (string, error)
}

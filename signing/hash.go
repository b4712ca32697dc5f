package signing

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"paychan/common"
)

// leftPadBytes zero-pads b on the left to length n
func leftPadBytes(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	padded := make([]byte, n)
	copy(padded[n-len(b):], b)
	return padded
}

// PaymentHash computes the keccak256 digest both parties sign and verify:
// channel id bytes, the cumulative amount left-padded to 32 bytes, then
// the nonce big-endian. Byte-exact encoding order is part of the protocol;
// changing it breaks cross-implementation interoperability.
func PaymentHash(channelID string, amount *uint256.Int, nonce uint64) ([]byte, error) {
	idBytes, err := common.DecodeBase58ToBytes(channelID)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 8)
	d := sha3.NewLegacyKeccak256()

	d.Write(idBytes)
	d.Write(leftPadBytes(amount.Bytes(), 32))
	binary.BigEndian.PutUint64(buf, nonce)
	d.Write(buf)

	return d.Sum(nil), nil
}

// DeriveChannelID builds a collision-resistant channel identifier from the
// two parties, the creation time and a random component. The id is the
// base58 rendering of a keccak256 digest.
func DeriveChannelID(sender, recipient string, createdAt time.Time) string {
	entropy := uuid.New()

	buf := make([]byte, 8)
	d := sha3.NewLegacyKeccak256()

	d.Write([]byte(sender))
	d.Write([]byte(recipient))
	binary.BigEndian.PutUint64(buf, uint64(createdAt.UnixNano()))
	d.Write(buf)
	d.Write(entropy[:])

	return common.EncodeBytesToBase58(d.Sum(nil))
}

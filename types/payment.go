package types

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
)

// SignedPayment is an immutable cumulative attestation: Amount is the
// total spent so far, not an increment. A later SignedPayment with a
// higher nonce supersedes it; nothing is ever mutated in place.
type SignedPayment struct {
	ChannelID string       `json:"channel_id" cbor:"1,keyasint"`
	Amount    *uint256.Int `json:"amount" cbor:"2,keyasint"`
	Nonce     uint64       `json:"nonce" cbor:"3,keyasint"`
	Signature []byte       `json:"signature" cbor:"4,keyasint"`
	Timestamp time.Time    `json:"timestamp" cbor:"5,keyasint"`
}

// Serialize encodes the payment with canonical CBOR for storage and wire use
func (p *SignedPayment) Serialize() ([]byte, error) {
	return cbor.Marshal(p)
}

// Deserialize decodes a CBOR-encoded payment
func (p *SignedPayment) Deserialize(b []byte) error {
	return cbor.Unmarshal(b, p)
}

// BatchItem is one logical sub-payment inside a batch
type BatchItem struct {
	Amount *uint256.Int `json:"amount"`
	Memo   string       `json:"memo,omitempty"`
}

// BatchPaymentReceipt covers N sub-payments with one signature. Each item
// gets a synthetic nonce for bookkeeping, but only the final cumulative
// total is committed by the signature.
type BatchPaymentReceipt struct {
	Payment    *SignedPayment `json:"payment"`
	ItemCount  int            `json:"item_count"`
	ItemNonces []uint64       `json:"item_nonces"`
}

// PaymentReceipt records the recipient-side acknowledgment of a verified
// payment; receipts are append-only per channel.
type PaymentReceipt struct {
	ChannelID  string       `json:"channel_id" cbor:"1,keyasint"`
	Amount     *uint256.Int `json:"amount" cbor:"2,keyasint"`
	Nonce      uint64       `json:"nonce" cbor:"3,keyasint"`
	Sender     string       `json:"sender" cbor:"4,keyasint"`
	ReceivedAt time.Time    `json:"received_at" cbor:"5,keyasint"`
}

// Serialize encodes the receipt with canonical CBOR
func (r *PaymentReceipt) Serialize() ([]byte, error) {
	return cbor.Marshal(r)
}

// Deserialize decodes a CBOR-encoded receipt
func (r *PaymentReceipt) Deserialize(b []byte) error {
	return cbor.Unmarshal(b, r)
}

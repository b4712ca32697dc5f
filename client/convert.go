package client

import (
	"encoding/hex"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"paychan/types"
)

// ToSignedPayment converts the wire representation back into the engine's
// payment type, for re-verification or x402 header encoding.
func (p *PaymentInfo) ToSignedPayment() (*types.SignedPayment, error) {
	amount, err := uint256.FromDecimal(p.Amount)
	if err != nil {
		return nil, xerrors.Errorf("parse amount: %w", err)
	}
	signature, err := hex.DecodeString(p.Signature)
	if err != nil {
		return nil, xerrors.Errorf("decode signature: %w", err)
	}
	return &types.SignedPayment{
		ChannelID: p.ChannelID,
		Amount:    amount,
		Nonce:     p.Nonce,
		Signature: signature,
		Timestamp: time.Unix(int64(p.Timestamp), 0),
	}, nil
}

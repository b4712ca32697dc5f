package types

import (
	"time"

	"github.com/holiman/uint256"

	"paychan/utils"
)

// ChannelState is an enum-like string type for the channel lifecycle
type ChannelState string

const (
	ChannelStatePending  ChannelState = "pending"
	ChannelStateOpen     ChannelState = "open"
	ChannelStateClosing  ChannelState = "closing"
	ChannelStateClosed   ChannelState = "closed"
	ChannelStateDisputed ChannelState = "disputed"
)

// AutoTopupConfig is the per-channel top-up policy. MaxTopups == 0 means
// unlimited.
type AutoTopupConfig struct {
	Threshold *uint256.Int `json:"threshold"`
	Amount    *uint256.Int `json:"amount"`
	MaxTopups uint32       `json:"max_topups,omitempty"`
}

// PaymentRecord is one history entry: the increment authorized by a
// single payment (or batch sub-payment) at a point in time.
type PaymentRecord struct {
	Amount    *uint256.Int `json:"amount"`
	Nonce     uint64       `json:"nonce"`
	Timestamp time.Time    `json:"timestamp"`
}

// Channel is the sender-side authoritative record of one bilateral
// payment relationship. Deposit and Spent only ever grow; Nonce strictly
// increases with every accepted payment or batch.
type Channel struct {
	ID        string       `json:"id"`
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Deposit   *uint256.Int `json:"deposit"`
	Spent     *uint256.Int `json:"spent"`
	Nonce     uint64       `json:"nonce"`
	State     ChannelState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`

	// LastSignature covers (ID, Spent, Nonce) and is the only artifact
	// needed for on-chain settlement.
	LastSignature []byte `json:"last_signature,omitempty"`

	// OnChainNonce is the highest nonce the ledger has confirmed for this
	// channel; disputes must carry a strictly higher nonce.
	OnChainNonce uint64 `json:"on_chain_nonce"`

	// SettlementUnresolved marks a channel that was closed locally while
	// the on-chain settlement call failed or timed out.
	SettlementUnresolved bool `json:"settlement_unresolved,omitempty"`

	ChallengeDeadline time.Time `json:"challenge_deadline,omitempty"`

	AutoTopup       *AutoTopupConfig `json:"auto_topup,omitempty"`
	TopupsPerformed uint32           `json:"topups_performed"`

	History []PaymentRecord `json:"history"`
}

// Balance returns deposit - spent. The stored fields keep spent <= deposit,
// so the subtraction cannot underflow.
func (c *Channel) Balance() *uint256.Int {
	if c.Deposit == nil || c.Spent == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(c.Deposit, c.Spent)
}

// Expired reports whether the channel can no longer accept new payments
func (c *Channel) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Clone returns a deep copy; mutators work on clones so that a failed
// operation leaves the stored channel untouched.
func (c *Channel) Clone() *Channel {
	cp := *c
	cp.Deposit = utils.CloneAmount(c.Deposit)
	cp.Spent = utils.CloneAmount(c.Spent)
	if c.LastSignature != nil {
		cp.LastSignature = append([]byte(nil), c.LastSignature...)
	}
	if c.AutoTopup != nil {
		at := *c.AutoTopup
		at.Threshold = utils.CloneAmount(c.AutoTopup.Threshold)
		at.Amount = utils.CloneAmount(c.AutoTopup.Amount)
		cp.AutoTopup = &at
	}
	if c.History != nil {
		cp.History = make([]PaymentRecord, len(c.History))
		copy(cp.History, c.History)
	}
	return &cp
}

// ChannelStats is the read-only derivation of a channel's payment history
type ChannelStats struct {
	ChannelID       string       `json:"channel_id"`
	PaymentCount    int          `json:"payment_count"`
	TotalVolume     *uint256.Int `json:"total_volume"`
	AveragePayment  *uint256.Int `json:"average_payment"`
	LargestPayment  *uint256.Int `json:"largest_payment"`
	SmallestPayment *uint256.Int `json:"smallest_payment"`
	PaymentsPerHour float64      `json:"payments_per_hour"`
	TopupCount      uint32       `json:"topup_count"`
}

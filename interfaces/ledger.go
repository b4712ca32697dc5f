package interfaces

import (
	"context"

	"github.com/holiman/uint256"
)

// LedgerOp is a tagged union of the on-chain entry points. Each operation
// is its own struct so the ledger boundary is exhaustively matched and
// cannot silently accept malformed argument tuples.
type LedgerOp interface {
	LedgerMethod() string
}

// OpenChannelOp locks the deposit in escrow under the given channel id
type OpenChannelOp struct {
	ChannelID string
	Sender    string
	Recipient string
	Deposit   *uint256.Int
}

func (OpenChannelOp) LedgerMethod() string { return "channel.open" }

// CloseChannelOp settles the channel: recipient receives Amount, sender
// is refunded deposit - Amount. Signature covers (ChannelID, Amount, Nonce).
type CloseChannelOp struct {
	ChannelID string
	Amount    *uint256.Int
	Nonce     uint64
	Signature []byte
}

func (CloseChannelOp) LedgerMethod() string { return "channel.close" }

// DisputeChannelOp escalates settlement with the highest-nonce signed
// state the submitter holds.
type DisputeChannelOp struct {
	ChannelID string
	Amount    *uint256.Int
	Nonce     uint64
	Signature []byte
}

func (DisputeChannelOp) LedgerMethod() string { return "channel.dispute" }

// DepositOp adds funds to an already-open channel's escrow (top-ups)
type DepositOp struct {
	ChannelID string
	Amount    *uint256.Int
}

func (DepositOp) LedgerMethod() string { return "channel.deposit" }

// ChannelBalance is the on-chain view of a channel's escrow
type ChannelBalance struct {
	Available *uint256.Int
	Spent     *uint256.Int
}

// Ledger is the on-chain contract boundary. Every call is transactional:
// it either fully succeeds or fully fails with no partial effect.
type Ledger interface {
	// Submit broadcasts one ledger operation and waits for confirmation
	Submit(ctx context.Context, op LedgerOp) error

	// GetChannelBalance reads the escrow state for a channel
	GetChannelBalance(ctx context.Context, channelID string) (*ChannelBalance, error)
}

package interfaces

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"paychan/types"
)

// ChannelService is the full public surface of the channel engine,
// exposed over JSON-RPC and consumed by the x402 paywall middleware.
type ChannelService interface {
	// Lifecycle
	CreateChannel(ctx context.Context, recipient string, deposit *uint256.Int, duration time.Duration, autoTopup *types.AutoTopupConfig) (*types.Channel, error)
	CloseChannel(ctx context.Context, channelID string) (*types.Channel, error)
	DisputeChannel(ctx context.Context, channelID string, payment *types.SignedPayment) (*types.Channel, error)
	TopUpChannel(ctx context.Context, channelID string, amount *uint256.Int) (*types.Channel, error)
	ExtendChannel(ctx context.Context, channelID string, extension time.Duration) (*types.Channel, error)

	// Payments
	Pay(ctx context.Context, channelID string, amount *uint256.Int) (*types.SignedPayment, error)
	BatchPay(ctx context.Context, channelID string, items []types.BatchItem) (*types.BatchPaymentReceipt, error)
	VerifyPayment(payment *types.SignedPayment, expectedSender string) (bool, error)
	AcknowledgePayment(payment *types.SignedPayment) (*types.PaymentReceipt, error)
	AcknowledgedAmount(channelID string) *uint256.Int

	// Policy
	SetAutoTopup(channelID string, cfg *types.AutoTopupConfig) error
	RemoveAutoTopup(channelID string) error

	// Reads
	GetChannel(channelID string) (*types.Channel, error)
	ListChannels() []*types.Channel
	ChannelStats(channelID string) (*types.ChannelStats, error)
}

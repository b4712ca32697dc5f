package channel

import (
	"time"

	"paychan/config"
	"paychan/errors"
	"paychan/events"
	"paychan/interfaces"
	"paychan/store"
	"paychan/types"
)

// Engine drives the client side of pre-funded payment channels: lifecycle,
// cumulative payment signing, receipts and the auto top-up policy.
type Engine struct {
	store    *store.ChannelStore
	receipts *store.ReceiptStore
	signer   interfaces.Signer
	ledger   interfaces.Ledger
	router   *events.EventRouter
	topup    *AutoTopupEngine

	senderKey  []byte
	senderAddr string

	challengeWindow time.Duration
	defaultDuration time.Duration
	ledgerTimeout   time.Duration
	maxBatchItems   int
}

var _ interfaces.ChannelService = (*Engine)(nil)

func NewEngine(
	channelStore *store.ChannelStore,
	receiptStore *store.ReceiptStore,
	signer interfaces.Signer,
	ledger interfaces.Ledger,
	router *events.EventRouter,
	senderKey []byte,
	senderAddr string,
	engineCfg *config.EngineConfig,
	topupCfg *config.TopupConfig,
	batchCfg *config.BatchConfig,
) *Engine {
	e := &Engine{
		store:           channelStore,
		receipts:        receiptStore,
		signer:          signer,
		ledger:          ledger,
		router:          router,
		senderKey:       senderKey,
		senderAddr:      senderAddr,
		challengeWindow: time.Duration(engineCfg.Channel.ChallengeWindowMinutes) * time.Minute,
		defaultDuration: time.Duration(engineCfg.Channel.DefaultDurationHours) * time.Hour,
		ledgerTimeout:   time.Duration(engineCfg.Ledger.CallTimeoutSeconds) * time.Second,
		maxBatchItems:   batchCfg.MaxItems,
	}
	e.topup = NewAutoTopupEngine(channelStore, e, topupCfg)
	return e
}

// GetChannel returns a snapshot of the channel. Mutating the result does not
// affect stored state.
func (e *Engine) GetChannel(id string) (*types.Channel, error) {
	return e.store.Get(id)
}

func (e *Engine) ListChannels() []*types.Channel {
	return e.store.List()
}

func (e *Engine) ChannelStats(id string) (*types.ChannelStats, error) {
	ch, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return ComputeStats(ch, time.Now()), nil
}

// SetAutoTopup attaches or replaces the auto top-up policy on an open channel.
func (e *Engine) SetAutoTopup(id string, cfg *types.AutoTopupConfig) error {
	if cfg == nil || cfg.Threshold == nil || cfg.Amount == nil || cfg.Amount.IsZero() {
		return errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	_, err := e.store.Update(id, func(ch *types.Channel) error {
		if ch.State != types.ChannelStateOpen {
			return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
		}
		ch.AutoTopup = cfg
		return nil
	})
	return err
}

func (e *Engine) RemoveAutoTopup(id string) error {
	_, err := e.store.Update(id, func(ch *types.Channel) error {
		ch.AutoTopup = nil
		return nil
	})
	return err
}

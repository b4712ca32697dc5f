package channel

import (
	"context"

	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"paychan/config"
	"paychan/events"
	"paychan/logx"
	"paychan/monitoring"
	"paychan/store"
	"paychan/types"
	"paychan/utils"
)

// errTopupSkipped is internal to the auto top-up path: the policy check
// decided not to act on this payment. Never surfaced to callers.
var errTopupSkipped = xerrors.New("auto topup skipped")

// AutoTopupEngine refills channels whose balance falls to the configured
// threshold. It checks exactly once per signed payment and performs at most
// one top-up per check, so a single payment can never cascade into repeated
// refills.
type AutoTopupEngine struct {
	store  *store.ChannelStore
	engine *Engine
	cfg    *config.TopupConfig
}

func NewAutoTopupEngine(channelStore *store.ChannelStore, engine *Engine, cfg *config.TopupConfig) *AutoTopupEngine {
	return &AutoTopupEngine{store: channelStore, engine: engine, cfg: cfg}
}

// CheckAfterPayment runs the policy once for the payment that just committed.
// Failures are logged and swallowed: the payment already succeeded and a
// refill problem must not fail it retroactively.
func (a *AutoTopupEngine) CheckAfterPayment(ctx context.Context, channelID string) {
	ch, err := a.store.Get(channelID)
	if err != nil {
		logx.Warn("TOPUP", "channel lookup failed", "channel", channelID, "err", err)
		return
	}
	if ch.AutoTopup == nil {
		return
	}

	amount, err := a.performTopup(channelID)
	if err != nil {
		if !xerrors.Is(err, errTopupSkipped) {
			logx.Warn("TOPUP", "auto topup failed", "channel", channelID, "err", err)
		}
		return
	}

	final, err := a.store.Get(channelID)
	if err != nil {
		return
	}
	a.engine.broadcastDeposit(channelID, amount)
	monitoring.IncreaseTopupCount()
	a.engine.router.PublishChannelEvent(events.NewTopupPerformed(channelID, amount, final.Deposit))
	logx.Info("TOPUP", "auto topped up channel", "channel", channelID, "amount", amount.Dec(), "count", final.TopupsPerformed)
}

// performTopup re-evaluates the policy inside the per-channel critical
// section, so concurrent payments on the same channel can never push the
// top-up counter past maxTopups or double-refill for one threshold crossing.
func (a *AutoTopupEngine) performTopup(channelID string) (*uint256.Int, error) {
	var amount *uint256.Int
	_, err := a.store.Update(channelID, func(ch *types.Channel) error {
		cfg := ch.AutoTopup
		if cfg == nil || ch.State != types.ChannelStateOpen {
			return errTopupSkipped
		}
		if ch.Balance().Cmp(cfg.Threshold) > 0 {
			return errTopupSkipped
		}
		if cfg.MaxTopups > 0 && ch.TopupsPerformed >= cfg.MaxTopups {
			return errTopupSkipped
		}
		ch.Deposit = new(uint256.Int).Add(ch.Deposit, cfg.Amount)
		ch.TopupsPerformed++
		amount = utils.CloneAmount(cfg.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// DefaultPolicy builds an AutoTopupConfig from the [topup] config section,
// for channels created without an explicit policy.
func (a *AutoTopupEngine) DefaultPolicy() (*types.AutoTopupConfig, error) {
	if a.cfg == nil || a.cfg.DefaultThreshold == "" || a.cfg.DefaultAmount == "" {
		return nil, nil
	}
	threshold, err := uint256.FromDecimal(a.cfg.DefaultThreshold)
	if err != nil {
		return nil, xerrors.Errorf("parse default threshold: %w", err)
	}
	amount, err := uint256.FromDecimal(a.cfg.DefaultAmount)
	if err != nil {
		return nil, xerrors.Errorf("parse default amount: %w", err)
	}
	return &types.AutoTopupConfig{Threshold: threshold, Amount: amount, MaxTopups: a.cfg.MaxTopups}, nil
}

package channel

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"paychan/errors"
	"paychan/events"
	"paychan/exception"
	"paychan/interfaces"
	"paychan/logx"
	"paychan/monitoring"
	"paychan/signing"
	"paychan/types"
	"paychan/utils"
)

// CreateChannel locks the deposit in escrow on the ledger and, once the open
// confirms, records the channel locally in the open state. The ledger call is
// confirmation-synchronous, so the pending state is never observable here.
func (e *Engine) CreateChannel(ctx context.Context, recipient string, deposit *uint256.Int, duration time.Duration, autoTopup *types.AutoTopupConfig) (*types.Channel, error) {
	if deposit == nil || deposit.IsZero() {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	if duration <= 0 {
		duration = e.defaultDuration
	}
	if autoTopup == nil {
		policy, err := e.topup.DefaultPolicy()
		if err != nil {
			logx.Warn("CHANNEL", "ignoring unparsable default topup policy", "err", err)
		} else {
			autoTopup = policy
		}
	}
	now := time.Now()
	channelID := signing.DeriveChannelID(e.senderAddr, recipient, now)

	lctx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()
	err := e.ledger.Submit(lctx, interfaces.OpenChannelOp{
		ChannelID: channelID,
		Sender:    e.senderAddr,
		Recipient: recipient,
		Deposit:   deposit,
	})
	if err != nil {
		logx.Error("CHANNEL", "ledger open failed", "channel", channelID, "err", err)
		return nil, errors.NewError(errors.ErrCodeLedgerCallFailed, errors.ErrMsgLedgerCallFailed)
	}

	ch := &types.Channel{
		ID:        channelID,
		Sender:    e.senderAddr,
		Recipient: recipient,
		Deposit:   new(uint256.Int).Set(deposit),
		Spent:     uint256.NewInt(0),
		Nonce:     0,
		State:     types.ChannelStateOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
		AutoTopup: autoTopup,
	}
	if err := e.store.Insert(ch); err != nil {
		return nil, err
	}

	monitoring.SetOpenChannels(e.store.OpenCount())
	e.router.PublishChannelEvent(events.NewChannelOpened(channelID, recipient, deposit))
	logx.Info("CHANNEL", "opened channel", "channel", channelID, "recipient", recipient, "deposit", deposit.Dec())
	return ch.Clone(), nil
}

// CloseChannel settles cooperatively with the latest signed cumulative state.
// The channel first transitions to closing; the ledger call then runs outside
// the per-channel lock so other channels and reads are never blocked on it.
//
// A ledger timeout leaves the channel in closing with the unresolved marker
// set, so settlement can be retried or escalated. A ledger rejection advances
// to closed with the marker set: the local engine is done, but the escrow
// outcome needs operator attention. Neither path ever reverts to open.
func (e *Engine) CloseChannel(ctx context.Context, channelID string) (*types.Channel, error) {
	snapshot, err := e.store.Update(channelID, func(ch *types.Channel) error {
		switch ch.State {
		case types.ChannelStateOpen:
			ch.State = types.ChannelStateClosing
			return nil
		case types.ChannelStateClosed:
			return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgAlreadyClosed)
		default:
			return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
		}
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()
	submitErr := e.ledger.Submit(lctx, interfaces.CloseChannelOp{
		ChannelID: channelID,
		Amount:    snapshot.Spent,
		Nonce:     snapshot.Nonce,
		Signature: snapshot.LastSignature,
	})
	monitoring.RecordSettlementDuration(time.Since(start))

	if submitErr != nil {
		timedOut := lctx.Err() != nil
		final, uerr := e.store.Update(channelID, func(ch *types.Channel) error {
			ch.SettlementUnresolved = true
			if !timedOut {
				ch.State = types.ChannelStateClosed
			}
			return nil
		})
		if uerr != nil {
			logx.Error("CHANNEL", "failed to persist settlement marker", "channel", channelID, "err", uerr)
		}
		monitoring.SetOpenChannels(e.store.OpenCount())
		e.router.PublishChannelEvent(events.NewChannelClosed(channelID, snapshot.Spent, true))
		logx.Error("CHANNEL", "settlement unresolved", "channel", channelID, "timeout", timedOut, "err", submitErr)
		return final, errors.NewError(errors.ErrCodeSettlementUnresolved, errors.ErrMsgSettlementUnresolved)
	}

	final, err := e.store.Update(channelID, func(ch *types.Channel) error {
		ch.State = types.ChannelStateClosed
		ch.OnChainNonce = ch.Nonce
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.SetOpenChannels(e.store.OpenCount())
	e.router.PublishChannelEvent(events.NewChannelClosed(channelID, final.Spent, false))
	logx.Info("CHANNEL", "closed channel", "channel", channelID, "settled", final.Spent.Dec(), "nonce", final.Nonce, "seconds", utils.SecondsBetween(start, time.Now()))
	return final, nil
}

// DisputeChannel escalates settlement with a signed payment whose nonce beats
// the state already on chain. The payment is validated and submitted before
// any local transition; only a confirmed dispute moves the channel to
// disputed and starts the challenge window.
func (e *Engine) DisputeChannel(ctx context.Context, channelID string, payment *types.SignedPayment) (*types.Channel, error) {
	if payment == nil || payment.ChannelID != channelID {
		return nil, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}
	ch, err := e.store.Get(channelID)
	if err != nil {
		return nil, err
	}
	switch ch.State {
	case types.ChannelStateOpen, types.ChannelStateClosing:
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
	}
	if payment.Nonce <= ch.OnChainNonce {
		return nil, errors.NewError(errors.ErrCodeStalePayment, "Disputed payment does not supersede the state on chain")
	}
	ok, err := e.VerifyPayment(payment, ch.Sender)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}

	lctx, cancel := context.WithTimeout(ctx, e.ledgerTimeout)
	defer cancel()
	err = e.ledger.Submit(lctx, interfaces.DisputeChannelOp{
		ChannelID: channelID,
		Amount:    payment.Amount,
		Nonce:     payment.Nonce,
		Signature: payment.Signature,
	})
	if err != nil {
		logx.Error("CHANNEL", "ledger dispute failed", "channel", channelID, "err", err)
		return nil, errors.NewError(errors.ErrCodeLedgerCallFailed, errors.ErrMsgLedgerCallFailed)
	}

	deadline := time.Now().Add(e.challengeWindow)
	final, err := e.store.Update(channelID, func(c *types.Channel) error {
		c.State = types.ChannelStateDisputed
		c.OnChainNonce = payment.Nonce
		c.ChallengeDeadline = deadline
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.IncreaseDisputeCount()
	monitoring.SetOpenChannels(e.store.OpenCount())
	e.router.PublishChannelEvent(events.NewChannelDisputed(channelID, payment.Nonce, deadline))
	logx.Warn("CHANNEL", "disputed channel", "channel", channelID, "nonce", payment.Nonce, "deadline", deadline)
	return final, nil
}

// TopUpChannel raises the deposit of an open channel, extending its spendable
// balance without touching the cumulative spent total or the nonce stream.
// The escrow deposit is broadcast to the ledger best-effort in the
// background; a broadcast failure never rolls back the local raise.
func (e *Engine) TopUpChannel(ctx context.Context, channelID string, amount *uint256.Int) (*types.Channel, error) {
	if amount == nil || amount.IsZero() {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	final, err := e.store.Update(channelID, func(ch *types.Channel) error {
		if ch.State != types.ChannelStateOpen {
			return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
		}
		ch.Deposit = new(uint256.Int).Add(ch.Deposit, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.broadcastDeposit(channelID, amount)
	monitoring.IncreaseTopupCount()
	e.router.PublishChannelEvent(events.NewTopupPerformed(channelID, amount, final.Deposit))
	logx.Info("CHANNEL", "topped up channel", "channel", channelID, "amount", amount.Dec(), "deposit", final.Deposit.Dec())
	return final, nil
}

// ExtendChannel pushes the expiry further out. Extending past an elapsed
// expiry makes the channel payable again as long as it is still open.
func (e *Engine) ExtendChannel(ctx context.Context, channelID string, extension time.Duration) (*types.Channel, error) {
	if extension <= 0 {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}
	final, err := e.store.Update(channelID, func(ch *types.Channel) error {
		if ch.State != types.ChannelStateOpen {
			return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
		}
		ch.ExpiresAt = ch.ExpiresAt.Add(extension)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logx.Info("CHANNEL", "extended channel", "channel", channelID, "expires_at", final.ExpiresAt)
	return final, nil
}

func (e *Engine) broadcastDeposit(channelID string, amount *uint256.Int) {
	amt := new(uint256.Int).Set(amount)
	exception.SafeGo("ledger-deposit", func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.ledgerTimeout)
		defer cancel()
		if err := e.ledger.Submit(ctx, interfaces.DepositOp{ChannelID: channelID, Amount: amt}); err != nil {
			logx.Warn("CHANNEL", "ledger deposit broadcast failed", "channel", channelID, "err", err)
		}
	})
}

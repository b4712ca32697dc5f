package channel

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"paychan/errors"
	"paychan/events"
	"paychan/logx"
	"paychan/monitoring"
	"paychan/signing"
	"paychan/types"
	"paychan/utils"
)

// Pay signs the next cumulative payment on the channel. The signed amount is
// the running total, not the increment, so losing a payment never loses money:
// the next one re-commits everything before it.
//
// Validation, nonce advance and signing all happen inside the per-channel
// critical section, so two concurrent Pay calls can never produce the same
// nonce or a non-monotonic cumulative amount.
func (e *Engine) Pay(ctx context.Context, channelID string, amount *uint256.Int) (*types.SignedPayment, error) {
	if amount == nil || amount.IsZero() {
		return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
	}

	var payment *types.SignedPayment
	now := time.Now()
	_, err := e.store.Update(channelID, func(ch *types.Channel) error {
		if err := e.checkPayable(ch, now); err != nil {
			return err
		}

		newSpent := new(uint256.Int).Add(ch.Spent, amount)
		if newSpent.Cmp(ch.Deposit) > 0 {
			return errors.NewError(errors.ErrCodeInsufficientChannelBalance, errors.ErrMsgInsufficientChannelBalance)
		}
		newNonce := ch.Nonce + 1

		hash, err := signing.PaymentHash(channelID, newSpent, newNonce)
		if err != nil {
			return xerrors.Errorf("hash payment: %w", err)
		}
		sig, err := e.signer.Sign(hash, e.senderKey)
		if err != nil {
			return xerrors.Errorf("sign payment: %w", err)
		}

		ch.Spent = newSpent
		ch.Nonce = newNonce
		ch.LastSignature = sig
		ch.History = append(ch.History, types.PaymentRecord{
			Amount:    new(uint256.Int).Set(amount),
			Nonce:     newNonce,
			Timestamp: now,
		})

		payment = &types.SignedPayment{
			ChannelID: channelID,
			Amount:    new(uint256.Int).Set(newSpent),
			Nonce:     newNonce,
			Signature: sig,
			Timestamp: now,
		}
		return nil
	})
	if err != nil {
		monitoring.RecordRejectedPayment(rejectReason(err))
		return nil, err
	}

	monitoring.IncreaseSignedPaymentCount()
	e.router.PublishChannelEvent(events.NewPaymentSigned(channelID, payment.Amount, payment.Nonce, 1))

	e.topup.CheckAfterPayment(ctx, channelID)
	return payment, nil
}

// BatchPay folds N sub-payments into a single signature. Each item gets a
// synthetic nonce for bookkeeping; only the final cumulative total is signed,
// advancing the channel nonce by len(items) in one step.
func (e *Engine) BatchPay(ctx context.Context, channelID string, items []types.BatchItem) (*types.BatchPaymentReceipt, error) {
	if len(items) == 0 {
		monitoring.RecordRejectedPayment(monitoring.PaymentEmptyBatch)
		return nil, errors.NewError(errors.ErrCodeEmptyBatch, errors.ErrMsgEmptyBatch)
	}
	if e.maxBatchItems > 0 && len(items) > e.maxBatchItems {
		monitoring.RecordRejectedPayment(monitoring.PaymentEmptyBatch)
		return nil, errors.NewError(errors.ErrCodeEmptyBatch, "Batch exceeds the configured item limit")
	}
	total := uint256.NewInt(0)
	for _, item := range items {
		if item.Amount == nil || item.Amount.IsZero() {
			return nil, errors.NewError(errors.ErrCodeInvalidAmount, errors.ErrMsgInvalidAmount)
		}
		total.Add(total, item.Amount)
	}

	var receipt *types.BatchPaymentReceipt
	now := time.Now()
	_, err := e.store.Update(channelID, func(ch *types.Channel) error {
		if err := e.checkPayable(ch, now); err != nil {
			return err
		}

		newSpent := new(uint256.Int).Add(ch.Spent, total)
		if newSpent.Cmp(ch.Deposit) > 0 {
			return errors.NewError(errors.ErrCodeInsufficientChannelBalance, errors.ErrMsgInsufficientChannelBalance)
		}
		finalNonce := ch.Nonce + uint64(len(items))

		hash, err := signing.PaymentHash(channelID, newSpent, finalNonce)
		if err != nil {
			return xerrors.Errorf("hash batch payment: %w", err)
		}
		sig, err := e.signer.Sign(hash, e.senderKey)
		if err != nil {
			return xerrors.Errorf("sign batch payment: %w", err)
		}

		itemNonces := make([]uint64, len(items))
		for i, item := range items {
			nonce := ch.Nonce + uint64(i) + 1
			itemNonces[i] = nonce
			ch.History = append(ch.History, types.PaymentRecord{
				Amount:    new(uint256.Int).Set(item.Amount),
				Nonce:     nonce,
				Timestamp: now,
			})
		}
		ch.Spent = newSpent
		ch.Nonce = finalNonce
		ch.LastSignature = sig

		receipt = &types.BatchPaymentReceipt{
			Payment: &types.SignedPayment{
				ChannelID: channelID,
				Amount:    new(uint256.Int).Set(newSpent),
				Nonce:     finalNonce,
				Signature: sig,
				Timestamp: now,
			},
			ItemCount:  len(items),
			ItemNonces: itemNonces,
		}
		return nil
	})
	if err != nil {
		monitoring.RecordRejectedPayment(rejectReason(err))
		return nil, err
	}

	monitoring.IncreaseBatchPaymentCount()
	e.router.PublishChannelEvent(events.NewPaymentSigned(channelID, receipt.Payment.Amount, receipt.Payment.Nonce, receipt.ItemCount))

	e.topup.CheckAfterPayment(ctx, channelID)
	return receipt, nil
}

// VerifyPayment is a pure check: it recomputes the payment hash, recovers the
// signer address from the signature and compares it to expectedSender. It
// touches no state and works on either side of the channel.
func (e *Engine) VerifyPayment(payment *types.SignedPayment, expectedSender string) (bool, error) {
	if payment == nil || payment.Amount == nil || len(payment.Signature) == 0 {
		return false, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}
	hash, err := signing.PaymentHash(payment.ChannelID, payment.Amount, payment.Nonce)
	if err != nil {
		return false, xerrors.Errorf("hash payment: %w", err)
	}
	recovered, err := e.signer.Recover(hash, payment.Signature)
	if err != nil {
		return false, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}
	return signing.AddressesEqual(recovered, expectedSender), nil
}

// AcknowledgePayment is the recipient-side accept path: recover the sender
// from the signature and append a receipt. The receipt store rejects any nonce
// at or below the highest already acknowledged, which is the replay guard.
func (e *Engine) AcknowledgePayment(payment *types.SignedPayment) (*types.PaymentReceipt, error) {
	if payment == nil || payment.Amount == nil || len(payment.Signature) == 0 {
		monitoring.RecordRejectedPayment(monitoring.PaymentBadSignature)
		return nil, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}
	hash, err := signing.PaymentHash(payment.ChannelID, payment.Amount, payment.Nonce)
	if err != nil {
		return nil, xerrors.Errorf("hash payment: %w", err)
	}
	sender, err := e.signer.Recover(hash, payment.Signature)
	if err != nil {
		monitoring.RecordRejectedPayment(monitoring.PaymentBadSignature)
		return nil, errors.NewError(errors.ErrCodeSignatureVerificationFailed, errors.ErrMsgSignatureVerificationFailed)
	}

	receipt := &types.PaymentReceipt{
		ChannelID:  payment.ChannelID,
		Amount:     new(uint256.Int).Set(payment.Amount),
		Nonce:      payment.Nonce,
		Sender:     sender,
		ReceivedAt: time.Now(),
	}
	if err := e.receipts.Append(receipt); err != nil {
		monitoring.RecordRejectedPayment(rejectReason(err))
		return nil, err
	}

	monitoring.IncreaseReceiptCount()
	logx.Info("CHANNEL", "acknowledged payment", "channel", payment.ChannelID, "nonce", payment.Nonce)
	return receipt, nil
}

// AcknowledgedAmount returns the cumulative amount of the most recently
// acknowledged receipt for a channel, zero when nothing was acknowledged yet.
// Pricing checks diff an incoming cumulative payment against this.
func (e *Engine) AcknowledgedAmount(channelID string) *uint256.Int {
	head := e.receipts.Head(channelID)
	if head == nil {
		return uint256.NewInt(0)
	}
	return utils.CloneAmount(head.Amount)
}

func (e *Engine) checkPayable(ch *types.Channel, now time.Time) error {
	if ch.State != types.ChannelStateOpen {
		return errors.NewError(errors.ErrCodeInvalidState, errors.ErrMsgInvalidState)
	}
	if ch.Expired(now) {
		return errors.NewError(errors.ErrCodeChannelExpired, errors.ErrMsgChannelExpired)
	}
	return nil
}

func rejectReason(err error) monitoring.PaymentRejectedReason {
	switch errors.CodeOf(err) {
	case errors.ErrCodeChannelNotFound:
		return monitoring.PaymentChannelNotFound
	case errors.ErrCodeInvalidState:
		return monitoring.PaymentInvalidState
	case errors.ErrCodeChannelExpired:
		return monitoring.PaymentChannelExpired
	case errors.ErrCodeInsufficientChannelBalance:
		return monitoring.PaymentInsufficientBalance
	case errors.ErrCodeEmptyBatch:
		return monitoring.PaymentEmptyBatch
	case errors.ErrCodeSignatureVerificationFailed:
		return monitoring.PaymentBadSignature
	case errors.ErrCodeStalePayment:
		return monitoring.PaymentReplayed
	case errors.ErrCodeInternal:
		return monitoring.PaymentSigningFailed
	default:
		return monitoring.PaymentRejectedUnknown
	}
}

package store

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"paychan/db"
	"paychan/errors"
	"paychan/logx"
	"paychan/types"
)

// ReceiptStore holds the recipient-side acknowledgment log. Receipts are
// append-only per channel, and the highest acknowledged nonce is tracked
// so stale (replayed) payments are rejected.
type ReceiptStore struct {
	mu         sync.RWMutex
	highest    map[string]uint64
	receipts   map[string][]*types.PaymentReceipt
	dbProvider db.DatabaseProvider
	txManager  *db.DBTxManager
}

// NewReceiptStore creates a store and reloads persisted receipts when the
// provider supports iteration.
func NewReceiptStore(dbProvider db.DatabaseProvider) (*ReceiptStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	rs := &ReceiptStore{
		highest:    make(map[string]uint64),
		receipts:   make(map[string][]*types.PaymentReceipt),
		dbProvider: dbProvider,
		txManager:  db.NewDBTxManager(dbProvider),
	}

	if iterable, ok := dbProvider.(db.IterableProvider); ok {
		err := iterable.IteratePrefix([]byte(PrefixReceipt), func(key, value []byte) bool {
			var r types.PaymentReceipt
			if err := r.Deserialize(value); err != nil {
				logx.Warn("RECEIPT_STORE", fmt.Sprintf("Skipping unreadable receipt record %s: %v", key, err))
				return true
			}
			rs.receipts[r.ChannelID] = append(rs.receipts[r.ChannelID], &r)
			if r.Nonce > rs.highest[r.ChannelID] {
				rs.highest[r.ChannelID] = r.Nonce
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reload receipts: %w", err)
		}

		// The head record is written atomically with each receipt, so the
		// replay guard survives even when an individual receipt record was
		// skipped as unreadable above.
		err = iterable.IteratePrefix([]byte(PrefixReceiptHead), func(key, value []byte) bool {
			if len(value) != 8 {
				return true
			}
			channelID := strings.TrimPrefix(string(key), PrefixReceiptHead)
			if nonce := binary.BigEndian.Uint64(value); nonce > rs.highest[channelID] {
				rs.highest[channelID] = nonce
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reload receipt heads: %w", err)
		}
	}

	return rs, nil
}

func (rs *ReceiptStore) getDbKey(channelID string, nonce uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, nonce)
	return append([]byte(PrefixReceipt+channelID+":"), buf...)
}

func (rs *ReceiptStore) getHeadKey(channelID string) []byte {
	return []byte(PrefixReceiptHead + channelID)
}

// HighestNonce returns the highest acknowledged nonce for a channel
// (zero when nothing was acknowledged yet).
func (rs *ReceiptStore) HighestNonce(channelID string) uint64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.highest[channelID]
}

// Head returns the most recently acknowledged receipt for a channel, or nil
// when nothing was acknowledged yet.
func (rs *ReceiptStore) Head(channelID string) *types.PaymentReceipt {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	list := rs.receipts[channelID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Append stores a receipt. A receipt whose nonce is not strictly greater
// than the highest acknowledged nonce is a replay and is rejected.
func (rs *ReceiptStore) Append(r *types.PaymentReceipt) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if r.Nonce <= rs.highest[r.ChannelID] {
		return errors.NewError(errors.ErrCodeStalePayment, errors.ErrMsgStalePayment)
	}

	data, err := r.Serialize()
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	head := make([]byte, 8)
	binary.BigEndian.PutUint64(head, r.Nonce)
	err = rs.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(rs.getDbKey(r.ChannelID, r.Nonce), data)
		batch.Put(rs.getHeadKey(r.ChannelID), head)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write receipt to db: %w", err)
	}

	rs.receipts[r.ChannelID] = append(rs.receipts[r.ChannelID], r)
	rs.highest[r.ChannelID] = r.Nonce
	return nil
}

// ListByChannel returns the receipts acknowledged for a channel, in
// acknowledgment order.
func (rs *ReceiptStore) ListByChannel(channelID string) []*types.PaymentReceipt {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	src := rs.receipts[channelID]
	out := make([]*types.PaymentReceipt, len(src))
	copy(out, src)
	return out
}

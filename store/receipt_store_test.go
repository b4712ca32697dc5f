package store

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paychan/db"
	"paychan/errors"
	"paychan/types"
)

func newTestReceipt(channelID string, nonce uint64, amount uint64) *types.PaymentReceipt {
	return &types.PaymentReceipt{
		ChannelID:  channelID,
		Amount:     uint256.NewInt(amount),
		Nonce:      nonce,
		Sender:     "0xsender",
		ReceivedAt: time.Now(),
	}
}

func TestAppendAndHighestNonce(t *testing.T) {
	rs, err := NewReceiptStore(newTestProvider(t))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), rs.HighestNonce("chan-1"))

	require.NoError(t, rs.Append(newTestReceipt("chan-1", 1, 10)))
	require.NoError(t, rs.Append(newTestReceipt("chan-1", 2, 20)))
	assert.Equal(t, uint64(2), rs.HighestNonce("chan-1"))
	assert.Len(t, rs.ListByChannel("chan-1"), 2)
}

func TestAppendRejectsReplay(t *testing.T) {
	rs, err := NewReceiptStore(newTestProvider(t))
	require.NoError(t, err)

	require.NoError(t, rs.Append(newTestReceipt("chan-1", 5, 50)))

	// Same nonce again is a replay.
	err = rs.Append(newTestReceipt("chan-1", 5, 50))
	assert.True(t, errors.Is(err, errors.ErrCodeStalePayment))

	// Older nonce is also a replay, even if never seen before.
	err = rs.Append(newTestReceipt("chan-1", 3, 30))
	assert.True(t, errors.Is(err, errors.ErrCodeStalePayment))

	assert.Equal(t, uint64(5), rs.HighestNonce("chan-1"))
	assert.Len(t, rs.ListByChannel("chan-1"), 1)
}

func TestNonceTrackingPerChannel(t *testing.T) {
	rs, err := NewReceiptStore(newTestProvider(t))
	require.NoError(t, err)

	require.NoError(t, rs.Append(newTestReceipt("chan-1", 7, 70)))
	require.NoError(t, rs.Append(newTestReceipt("chan-2", 1, 10)))

	assert.Equal(t, uint64(7), rs.HighestNonce("chan-1"))
	assert.Equal(t, uint64(1), rs.HighestNonce("chan-2"))
}

func TestReceiptReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	provider, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)

	rs, err := NewReceiptStore(provider)
	require.NoError(t, err)
	require.NoError(t, rs.Append(newTestReceipt("chan-1", 1, 10)))
	require.NoError(t, rs.Append(newTestReceipt("chan-1", 2, 20)))
	require.NoError(t, provider.Close())

	provider2, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)
	defer provider2.Close()

	reloaded, err := NewReceiptStore(provider2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reloaded.HighestNonce("chan-1"))
	assert.Len(t, reloaded.ListByChannel("chan-1"), 2)

	// The replay guard survives restarts.
	err = reloaded.Append(newTestReceipt("chan-1", 2, 20))
	assert.True(t, errors.Is(err, errors.ErrCodeStalePayment))
}

func TestHeadTracksLatestReceipt(t *testing.T) {
	rs, err := NewReceiptStore(newTestProvider(t))
	require.NoError(t, err)

	assert.Nil(t, rs.Head("chan-1"))

	require.NoError(t, rs.Append(newTestReceipt("chan-1", 1, 10)))
	require.NoError(t, rs.Append(newTestReceipt("chan-1", 3, 30)))

	head := rs.Head("chan-1")
	require.NotNil(t, head)
	assert.Equal(t, uint64(3), head.Nonce)
	assert.True(t, head.Amount.Eq(uint256.NewInt(30)))
	assert.Nil(t, rs.Head("chan-2"))
}

func TestAppendWritesHeadRecordAtomically(t *testing.T) {
	provider := newTestProvider(t)
	rs, err := NewReceiptStore(provider)
	require.NoError(t, err)

	require.NoError(t, rs.Append(newTestReceipt("chan-1", 9, 90)))

	value, err := provider.Get([]byte(PrefixReceiptHead + "chan-1"))
	require.NoError(t, err)
	require.Len(t, value, 8)
	assert.Equal(t, uint64(9), binary.BigEndian.Uint64(value))
}

func TestReplayGuardSurvivesUnreadableReceiptRecord(t *testing.T) {
	dir := t.TempDir()
	provider, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)

	rs, err := NewReceiptStore(provider)
	require.NoError(t, err)
	require.NoError(t, rs.Append(newTestReceipt("chan-1", 4, 40)))

	// Corrupt the receipt record on disk; the head record stays intact.
	require.NoError(t, provider.Put(rs.getDbKey("chan-1", 4), []byte("garbage")))
	require.NoError(t, provider.Close())

	provider2, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)
	defer provider2.Close()

	reloaded, err := NewReceiptStore(provider2)
	require.NoError(t, err)

	// The record itself is gone from the log, but the guard still holds.
	assert.Equal(t, uint64(4), reloaded.HighestNonce("chan-1"))
	err = reloaded.Append(newTestReceipt("chan-1", 4, 40))
	assert.True(t, errors.Is(err, errors.ErrCodeStalePayment))
}

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"paychan/db"
	"paychan/errors"
	"paychan/types"
)

func newTestProvider(t *testing.T) db.DatabaseProvider {
	t.Helper()
	provider, err := db.NewLevelDBProvider(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func newTestChannel(id string) *types.Channel {
	now := time.Now()
	return &types.Channel{
		ID:        id,
		Sender:    "0xsender",
		Recipient: "0xrecipient",
		Deposit:   uint256.NewInt(1000),
		Spent:     uint256.NewInt(0),
		State:     types.ChannelStateOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestInsertAndGet(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)

	ch := newTestChannel("chan-1")
	require.NoError(t, cs.Insert(ch))

	got, err := cs.Get("chan-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", got.ID)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(1000)))

	// Mutating the returned copy must not leak into the store.
	got.Spent = uint256.NewInt(999)
	again, err := cs.Get("chan-1")
	require.NoError(t, err)
	assert.True(t, again.Spent.IsZero())
}

func TestInsertDuplicate(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)

	require.NoError(t, cs.Insert(newTestChannel("chan-1")))
	err = cs.Insert(newTestChannel("chan-1"))
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateChannel))
}

func TestGetMissing(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)

	_, err = cs.Get("nope")
	assert.True(t, errors.Is(err, errors.ErrCodeChannelNotFound))
}

func TestUpdateFailureLeavesStateUntouched(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)
	require.NoError(t, cs.Insert(newTestChannel("chan-1")))

	_, err = cs.Update("chan-1", func(ch *types.Channel) error {
		ch.Spent = uint256.NewInt(500)
		ch.Nonce = 42
		return xerrors.New("boom")
	})
	require.Error(t, err)

	got, err := cs.Get("chan-1")
	require.NoError(t, err)
	assert.True(t, got.Spent.IsZero())
	assert.Equal(t, uint64(0), got.Nonce)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)
	require.NoError(t, cs.Insert(newTestChannel("chan-1")))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := cs.Update("chan-1", func(ch *types.Channel) error {
				ch.Nonce++
				ch.Spent = new(uint256.Int).Add(ch.Spent, uint256.NewInt(1))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := cs.Get("chan-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), got.Nonce)
	assert.True(t, got.Spent.Eq(uint256.NewInt(workers)))
}

func TestReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	provider, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)

	cs, err := NewChannelStore(provider)
	require.NoError(t, err)
	require.NoError(t, cs.Insert(newTestChannel("chan-1")))
	_, err = cs.Update("chan-1", func(ch *types.Channel) error {
		ch.Nonce = 9
		ch.Spent = uint256.NewInt(90)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	provider2, err := db.NewLevelDBProvider(dir)
	require.NoError(t, err)
	defer provider2.Close()

	reloaded, err := NewChannelStore(provider2)
	require.NoError(t, err)
	got, err := reloaded.Get("chan-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Nonce)
	assert.True(t, got.Spent.Eq(uint256.NewInt(90)))
	assert.Equal(t, types.ChannelStateOpen, got.State)
}

func TestListFilters(t *testing.T) {
	cs, err := NewChannelStore(newTestProvider(t))
	require.NoError(t, err)

	open := newTestChannel("chan-open")
	closed := newTestChannel("chan-closed")
	closed.State = types.ChannelStateClosed
	require.NoError(t, cs.Insert(open))
	require.NoError(t, cs.Insert(closed))

	assert.Len(t, cs.List(), 2)
	assert.Len(t, cs.ListOpen(), 1)
	assert.Len(t, cs.ListBySender("0xsender"), 2)
	assert.Len(t, cs.ListByRecipient("0xother"), 0)
	assert.Equal(t, 1, cs.OpenCount())
}

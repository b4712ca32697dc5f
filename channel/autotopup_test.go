package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paychan/config"
	"paychan/types"
)

func autoTopupPolicy(threshold, amount uint64, maxTopups uint32) *types.AutoTopupConfig {
	return &types.AutoTopupConfig{
		Threshold: uint256.NewInt(threshold),
		Amount:    uint256.NewInt(amount),
		MaxTopups: maxTopups,
	}
}

func TestAutoTopupTriggersAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	ch, err := env.engine.CreateChannel(context.Background(), "0xrecipient", uint256.NewInt(100), time.Hour,
		autoTopupPolicy(20, 50, 0))
	require.NoError(t, err)

	// Balance 30, above the threshold: no refill.
	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(70))
	require.NoError(t, err)
	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(100)))
	assert.Equal(t, uint32(0), got.TopupsPerformed)

	// Balance falls to 10 <= 20: one refill of 50.
	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(20))
	require.NoError(t, err)
	got, err = env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(150)))
	assert.Equal(t, uint32(1), got.TopupsPerformed)
	assert.True(t, got.Balance().Eq(uint256.NewInt(60)))
}

func TestAutoTopupHonorsMaxTopups(t *testing.T) {
	env := newTestEnv(t)
	// Deposit 10, threshold 5, refill 10, at most one automatic top-up.
	ch, err := env.engine.CreateChannel(context.Background(), "0xrecipient", uint256.NewInt(10), time.Hour,
		autoTopupPolicy(5, 10, 1))
	require.NoError(t, err)

	// Spend down to 5: triggers the single allowed refill.
	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(5))
	require.NoError(t, err)
	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(20)))
	assert.Equal(t, uint32(1), got.TopupsPerformed)

	// Spend down past the threshold again: the budget is exhausted.
	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(12))
	require.NoError(t, err)
	got, err = env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(20)))
	assert.Equal(t, uint32(1), got.TopupsPerformed)
	assert.True(t, got.Balance().Eq(uint256.NewInt(3)))
}

func TestAutoTopupSinglePaymentSingleTopup(t *testing.T) {
	env := newTestEnv(t)
	// Even a refill that leaves the balance at the threshold must not loop.
	ch, err := env.engine.CreateChannel(context.Background(), "0xrecipient", uint256.NewInt(100), time.Hour,
		autoTopupPolicy(100, 1, 0))
	require.NoError(t, err)

	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(50))
	require.NoError(t, err)

	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.TopupsPerformed, "one payment triggers at most one top-up")
	assert.True(t, got.Deposit.Eq(uint256.NewInt(101)))
}

func TestAutoTopupMaxUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ch, err := env.engine.CreateChannel(context.Background(), "0xrecipient", uint256.NewInt(1000), time.Hour,
		autoTopupPolicy(1000, 10, 2))
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.TopupsPerformed, uint32(2))
}

func TestNoAutoTopupWithoutPolicy(t *testing.T) {
	env := newTestEnv(t)
	ch := env.openChannel(t, 10)

	_, err := env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(9))
	require.NoError(t, err)

	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.True(t, got.Deposit.Eq(uint256.NewInt(10)))
	assert.Equal(t, uint32(0), got.TopupsPerformed)
}

func TestSetAndRemoveAutoTopup(t *testing.T) {
	env := newTestEnv(t)
	ch := env.openChannel(t, 100)

	require.NoError(t, env.engine.SetAutoTopup(ch.ID, autoTopupPolicy(50, 100, 3)))
	got, err := env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AutoTopup)
	assert.True(t, got.AutoTopup.Threshold.Eq(uint256.NewInt(50)))

	// Policy applies to the next payment that crosses the threshold.
	_, err = env.engine.Pay(context.Background(), ch.ID, uint256.NewInt(60))
	require.NoError(t, err)
	got, err = env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.TopupsPerformed)

	require.NoError(t, env.engine.RemoveAutoTopup(ch.ID))
	got, err = env.engine.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AutoTopup)
}

func TestDefaultPolicyFromConfig(t *testing.T) {
	env := newTestEnv(t)

	a := NewAutoTopupEngine(env.store, env.engine, &config.TopupConfig{
		DefaultThreshold: "100",
		DefaultAmount:    "1000",
		MaxTopups:        4,
	})
	policy, err := a.DefaultPolicy()
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.True(t, policy.Threshold.Eq(uint256.NewInt(100)))
	assert.True(t, policy.Amount.Eq(uint256.NewInt(1000)))
	assert.Equal(t, uint32(4), policy.MaxTopups)

	// No defaults configured means no implicit policy.
	empty := NewAutoTopupEngine(env.store, env.engine, &config.TopupConfig{})
	policy, err = empty.DefaultPolicy()
	require.NoError(t, err)
	assert.Nil(t, policy)

	bad := NewAutoTopupEngine(env.store, env.engine, &config.TopupConfig{
		DefaultThreshold: "not-a-number",
		DefaultAmount:    "10",
	})
	_, err = bad.DefaultPolicy()
	assert.Error(t, err)
}

func TestSetAutoTopupRejectsInvalidPolicy(t *testing.T) {
	env := newTestEnv(t)
	ch := env.openChannel(t, 100)

	err := env.engine.SetAutoTopup(ch.ID, nil)
	assert.Error(t, err)

	err = env.engine.SetAutoTopup(ch.ID, &types.AutoTopupConfig{
		Threshold: uint256.NewInt(10),
		Amount:    uint256.NewInt(0),
	})
	assert.Error(t, err)
}

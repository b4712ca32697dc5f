package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"paychan/config"
	"paychan/db"
	"paychan/events"
	"paychan/interfaces"
	"paychan/monitoring"
	"paychan/signing"
	"paychan/store"
	"paychan/types"
)

// mockLedger records submitted operations and can be told to fail or stall
type mockLedger struct {
	mu        sync.Mutex
	ops       []interfaces.LedgerOp
	submitErr error
	delay     time.Duration
}

func (m *mockLedger) Submit(ctx context.Context, op interfaces.LedgerOp) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	m.ops = append(m.ops, op)
	return nil
}

func (m *mockLedger) GetChannelBalance(ctx context.Context, channelID string) (*interfaces.ChannelBalance, error) {
	return &interfaces.ChannelBalance{Available: uint256.NewInt(0), Spent: uint256.NewInt(0)}, nil
}

func (m *mockLedger) submitted() []interfaces.LedgerOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interfaces.LedgerOp, len(m.ops))
	copy(out, m.ops)
	return out
}

func (m *mockLedger) opsOfMethod(method string) []interfaces.LedgerOp {
	var out []interfaces.LedgerOp
	for _, op := range m.submitted() {
		if op.LedgerMethod() == method {
			out = append(out, op)
		}
	}
	return out
}

type testEnv struct {
	engine     *Engine
	ledger     *mockLedger
	store      *store.ChannelStore
	receipts   *store.ReceiptStore
	senderKey  []byte
	senderAddr string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider, err := db.NewLevelDBProvider(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return newTestEnvWith(t, provider, &config.TopupConfig{})
}

func newTestEnvWith(t *testing.T, provider db.DatabaseProvider, topupCfg *config.TopupConfig) *testEnv {
	t.Helper()
	monitoring.InitMetrics()

	channelStore, err := store.NewChannelStore(provider)
	require.NoError(t, err)
	receiptStore, err := store.NewReceiptStore(provider)
	require.NoError(t, err)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	senderKey := priv.Serialize()
	senderAddr, err := signing.AddressFromPrivateKey(senderKey)
	require.NoError(t, err)

	ledger := &mockLedger{}
	router := events.NewEventRouter(events.NewEventBus())

	engineCfg := &config.EngineConfig{
		Ledger:  config.LedgerConfig{CallTimeoutSeconds: 1},
		Channel: config.ChannelConfig{ChallengeWindowMinutes: 60, DefaultDurationHours: 24},
	}
	engine := NewEngine(
		channelStore, receiptStore, signing.NewSecp256k1Signer(), ledger, router,
		senderKey, senderAddr,
		engineCfg,
		topupCfg,
		&config.BatchConfig{MaxItems: 100},
	)

	return &testEnv{
		engine:     engine,
		ledger:     ledger,
		store:      channelStore,
		receipts:   receiptStore,
		senderKey:  senderKey,
		senderAddr: senderAddr,
	}
}

func (env *testEnv) openChannel(t *testing.T, deposit uint64) *types.Channel {
	t.Helper()
	ch, err := env.engine.CreateChannel(context.Background(), "0xrecipient", uint256.NewInt(deposit), 24*time.Hour, nil)
	require.NoError(t, err)
	return ch
}

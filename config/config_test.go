package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeFile(t, "paychan.yml", `
config:
  self:
    address: "0xabc"
    privkey_path: "config/sender.key"
    rpc_addr: ":8080"
    metrics_addr: ":9090"
  ledger:
    endpoint: "127.0.0.1:7070"
    call_timeout_seconds: 10
  store:
    type: "bbolt"
    directory: "data"
  channel:
    challenge_window_minutes: 30
    default_duration_hours: 48
`)

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.Self.Address)
	assert.Equal(t, "127.0.0.1:7070", cfg.Ledger.Endpoint)
	assert.Equal(t, 10, cfg.Ledger.CallTimeoutSeconds)
	assert.Equal(t, "bbolt", cfg.Store.Type)
	assert.Equal(t, 30, cfg.Channel.ChallengeWindowMinutes)
	assert.Equal(t, 48, cfg.Channel.DefaultDurationHours)
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	path := writeFile(t, "paychan.yml", `
config:
  self:
    rpc_addr: ":8080"
  ledger:
    endpoint: "127.0.0.1:7070"
`)

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultLedgerCallTimeoutSeconds, cfg.Ledger.CallTimeoutSeconds)
	assert.Equal(t, DefaultChallengeWindowMinutes, cfg.Channel.ChallengeWindowMinutes)
	assert.Equal(t, DefaultChannelDurationHours, cfg.Channel.DefaultDurationHours)
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadTopupAndBatchConfig(t *testing.T) {
	path := writeFile(t, "paychan.ini", `
[topup]
default_threshold = 500
default_amount = 2500
max_topups = 3

[batch]
max_items = 25
`)

	topup, err := LoadTopupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "500", topup.DefaultThreshold)
	assert.Equal(t, "2500", topup.DefaultAmount)
	assert.Equal(t, uint32(3), topup.MaxTopups)

	batch, err := LoadBatchConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, batch.MaxItems)
}

func TestLoadBatchConfigDefault(t *testing.T) {
	path := writeFile(t, "paychan.ini", "[topup]\n")

	batch, err := LoadBatchConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBatchItems, batch.MaxItems)
}

func TestLoadSecp256k1PrivKey(t *testing.T) {
	path := writeFile(t, "sender.key", "6cbe1d0d31b20964b40a2580d2b85f33e004a7b1d2b7581a10a79a54f0a65ec2\n")

	key, err := LoadSecp256k1PrivKey(path)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	bad := writeFile(t, "short.key", "abcd\n")
	_, err = LoadSecp256k1PrivKey(bad)
	assert.Error(t, err)
}

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"paychan/logx"
)

// LoadEngineConfig reads and parses the paychan.yml file
func LoadEngineConfig(path string) (*EngineConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		logx.Error("CONFIG", "Failed to open config file:", err)
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		logx.Error("CONFIG", "Failed to decode YAML:", err)
		return nil, err
	}

	cfg := &cfgFile.Config
	if cfg.Ledger.CallTimeoutSeconds <= 0 {
		cfg.Ledger.CallTimeoutSeconds = DefaultLedgerCallTimeoutSeconds
	}
	if cfg.Channel.ChallengeWindowMinutes <= 0 {
		cfg.Channel.ChallengeWindowMinutes = DefaultChallengeWindowMinutes
	}
	if cfg.Channel.DefaultDurationHours <= 0 {
		cfg.Channel.DefaultDurationHours = DefaultChannelDurationHours
	}

	logx.Info("CONFIG", fmt.Sprintf("Loaded engine config: rpc=%s ledger=%s store=%s", cfg.Self.RPCAddr, cfg.Ledger.Endpoint, cfg.Store.Type))
	return cfg, nil
}

// TopupConfig holds the auto-topup defaults from paychan.ini
type TopupConfig struct {
	DefaultThreshold string `ini:"default_threshold"`
	DefaultAmount    string `ini:"default_amount"`
	MaxTopups        uint32 `ini:"max_topups"`
}

// BatchConfig holds batching limits from paychan.ini
type BatchConfig struct {
	MaxItems int `ini:"max_items"`
}

// LoadTopupConfig reads the auto-topup tuning section from an .ini file
func LoadTopupConfig(path string) (*TopupConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	topupSection := cfg.Section("topup")
	topupCfg := &TopupConfig{}
	err = topupSection.MapTo(topupCfg)
	if err != nil {
		return nil, err
	}
	return topupCfg, nil
}

// LoadBatchConfig reads the batching tuning section from an .ini file
func LoadBatchConfig(path string) (*BatchConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	batchSection := cfg.Section("batch")
	batchCfg := &BatchConfig{}
	err = batchSection.MapTo(batchCfg)
	if err != nil {
		return nil, err
	}
	if batchCfg.MaxItems <= 0 {
		batchCfg.MaxItems = DefaultMaxBatchItems
	}
	return batchCfg, nil
}

// LoadSecp256k1PrivKey loads a secp256k1 private key from a file
// (expects hex encoding, 32 bytes)
func LoadSecp256k1PrivKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid private key length: %d", len(key))
	}
	return key, nil
}

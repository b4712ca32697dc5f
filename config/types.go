package config

// SelfConfig identifies the local sender wallet and service endpoints
type SelfConfig struct {
	Address     string `yaml:"address"`
	PrivKeyPath string `yaml:"privkey_path"`
	RPCAddr     string `yaml:"rpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// LedgerConfig points at the on-chain contract gateway
type LedgerConfig struct {
	Endpoint           string `yaml:"endpoint"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
}

// StoreConfig selects the durable backend
type StoreConfig struct {
	Type      string `yaml:"type"` // leveldb or bbolt
	Directory string `yaml:"directory"`
}

// ChannelConfig carries channel protocol parameters
type ChannelConfig struct {
	ChallengeWindowMinutes int `yaml:"challenge_window_minutes"`
	DefaultDurationHours   int `yaml:"default_duration_hours"`
}

// EngineConfig holds the configuration from paychan.yml
type EngineConfig struct {
	Self    SelfConfig    `yaml:"self"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Store   StoreConfig   `yaml:"store"`
	Channel ChannelConfig `yaml:"channel"`
}

// ConfigFile is the top-level structure for paychan.yml
type ConfigFile struct {
	Config EngineConfig `yaml:"config"`
}

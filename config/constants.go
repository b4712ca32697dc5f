package config

const (
	DefaultLedgerCallTimeoutSeconds = 30
	DefaultChallengeWindowMinutes   = 60
	DefaultChannelDurationHours     = 24
	DefaultMaxBatchItems            = 100
)

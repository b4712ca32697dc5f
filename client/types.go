package client

// ChannelInfo mirrors the engine's channel.* result shape
type ChannelInfo struct {
	ID                   string `json:"id"`
	Sender               string `json:"sender"`
	Recipient            string `json:"recipient"`
	Deposit              string `json:"deposit"`
	Spent                string `json:"spent"`
	Balance              string `json:"balance"`
	Nonce                uint64 `json:"nonce"`
	State                string `json:"state"`
	CreatedAt            uint64 `json:"created_at"`
	ExpiresAt            uint64 `json:"expires_at"`
	SettlementUnresolved bool   `json:"settlement_unresolved,omitempty"`
	TopupsPerformed      uint32 `json:"topups_performed"`
}

// PaymentInfo mirrors the engine's signed payment result shape
type PaymentInfo struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
	Timestamp uint64 `json:"timestamp"`
}

type BatchItem struct {
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type BatchPayResult struct {
	Payment    *PaymentInfo `json:"payment"`
	ItemCount  int          `json:"item_count"`
	ItemNonces []uint64     `json:"item_nonces"`
}

type StatsInfo struct {
	ChannelID       string  `json:"channel_id"`
	PaymentCount    int     `json:"payment_count"`
	TotalVolume     string  `json:"total_volume"`
	AveragePayment  string  `json:"average_payment"`
	LargestPayment  string  `json:"largest_payment"`
	SmallestPayment string  `json:"smallest_payment"`
	PaymentsPerHour float64 `json:"payments_per_hour"`
	TopupCount      uint32  `json:"topup_count"`
	DecimalScale    uint64  `json:"decimal_scale"`
}

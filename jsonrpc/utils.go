package jsonrpc

import (
	"encoding/hex"
	stderrors "errors"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"paychan/types"
	"paychan/utils"
)

// JSON-RPC Method name constants
const (
	// Channel lifecycle methods
	MethodChannelOpen    = "channel.open"
	MethodChannelClose   = "channel.close"
	MethodChannelDispute = "channel.dispute"
	MethodChannelTopUp   = "channel.topup"
	MethodChannelExtend  = "channel.extend"

	// Payment methods
	MethodChannelPay      = "channel.pay"
	MethodChannelBatchPay = "channel.batchpay"

	// Policy methods
	MethodChannelSetAutoTopup    = "channel.setautotopup"
	MethodChannelRemoveAutoTopup = "channel.removeautotopup"

	// Read methods
	MethodChannelGet   = "channel.get"
	MethodChannelList  = "channel.list"
	MethodChannelStats = "channel.stats"

	// Recipient-side methods
	MethodPaymentVerify      = "payment.verify"
	MethodPaymentAcknowledge = "payment.acknowledge"
)

func stderrorsAs(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func toChannelInfo(ch *types.Channel) *channelInfo {
	info := &channelInfo{
		ID:                   ch.ID,
		Sender:               ch.Sender,
		Recipient:            ch.Recipient,
		Deposit:              utils.Uint256ToString(ch.Deposit),
		Spent:                utils.Uint256ToString(ch.Spent),
		Balance:              utils.Uint256ToString(ch.Balance()),
		Nonce:                ch.Nonce,
		State:                string(ch.State),
		CreatedAt:            uint64(ch.CreatedAt.Unix()),
		ExpiresAt:            uint64(ch.ExpiresAt.Unix()),
		SettlementUnresolved: ch.SettlementUnresolved,
		TopupsPerformed:      ch.TopupsPerformed,
	}
	if !ch.ChallengeDeadline.IsZero() {
		info.ChallengeDeadline = uint64(ch.ChallengeDeadline.Unix())
	}
	if ch.AutoTopup != nil {
		info.AutoTopup = &autoTopupParams{
			Threshold: utils.Uint256ToString(ch.AutoTopup.Threshold),
			Amount:    utils.Uint256ToString(ch.AutoTopup.Amount),
			MaxTopups: ch.AutoTopup.MaxTopups,
		}
	}
	return info
}

func toPaymentInfo(p *types.SignedPayment) *paymentInfo {
	return &paymentInfo{
		ChannelID: p.ChannelID,
		Amount:    utils.Uint256ToString(p.Amount),
		Nonce:     p.Nonce,
		Signature: hex.EncodeToString(p.Signature),
		Timestamp: uint64(p.Timestamp.Unix()),
	}
}

func fromPaymentInfo(p paymentInfo) (*types.SignedPayment, error) {
	amount, err := utils.ParseAmount(p.Amount)
	if err != nil {
		return nil, xerrors.Errorf("parse amount: %w", err)
	}
	signature, err := hex.DecodeString(p.Signature)
	if err != nil {
		return nil, xerrors.Errorf("decode signature: %w", err)
	}
	return &types.SignedPayment{
		ChannelID: p.ChannelID,
		Amount:    amount,
		Nonce:     p.Nonce,
		Signature: signature,
		Timestamp: time.Unix(int64(p.Timestamp), 0),
	}, nil
}

func parseAutoTopup(p autoTopupParams) (*types.AutoTopupConfig, error) {
	threshold, err := utils.ParseAmount(p.Threshold)
	if err != nil {
		return nil, xerrors.Errorf("parse threshold: %w", err)
	}
	amount, err := utils.ParseAmount(p.Amount)
	if err != nil {
		return nil, xerrors.Errorf("parse amount: %w", err)
	}
	return &types.AutoTopupConfig{Threshold: threshold, Amount: amount, MaxTopups: p.MaxTopups}, nil
}

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	methods := os.Getenv("CORS_ALLOWED_METHODS")
	headers := os.Getenv("CORS_ALLOWED_HEADERS")
	maxAgeStr := os.Getenv("CORS_MAX_AGE")

	var maxAge int
	if maxAgeStr != "" {
		if v, err := strconv.Atoi(maxAgeStr); err == nil {
			maxAge = v
		}
	}

	var allowedOrigins, allowedMethods, allowedHeaders []string
	if origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}
	if methods != "" {
		allowedMethods = splitAndTrim(methods)
	}
	if headers != "" {
		allowedHeaders = splitAndTrim(headers)
	}

	provided := len(allowedOrigins) > 0 || len(allowedMethods) > 0 || len(allowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}

	return CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: allowedMethods,
		AllowedHeaders: allowedHeaders,
		MaxAge:         maxAge,
	}, true
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

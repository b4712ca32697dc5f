package jsonrpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"paychan/errors"
	"paychan/exception"
	"paychan/interfaces"
	"paychan/logx"
	"paychan/types"
	"paychan/utils"
)

// --- Error mapping ---

var errorCodes = map[errors.ChannelErrorCode]jrpc2.Code{
	errors.ErrCodeChannelNotFound:             -32001,
	errors.ErrCodeDuplicateChannel:            -32002,
	errors.ErrCodeInvalidState:                -32003,
	errors.ErrCodeChannelExpired:              -32004,
	errors.ErrCodeInsufficientChannelBalance:  -32005,
	errors.ErrCodeEmptyBatch:                  -32006,
	errors.ErrCodeInvalidAmount:               -32007,
	errors.ErrCodeSignatureVerificationFailed: -32008,
	errors.ErrCodeStalePayment:                -32009,
	errors.ErrCodeLedgerCallFailed:            -32010,
	errors.ErrCodeSettlementUnresolved:        -32011,
}

func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	var ce *errors.ChannelError
	if stderrorsAs(err, &ce) {
		code, ok := errorCodes[ce.Code]
		if !ok {
			code = -32000
		}
		return jrpc2.Errorf(code, "%s", ce.Message).WithData(ce)
	}
	return jrpc2.Errorf(-32000, "%s", err.Error())
}

// --- Params/Results ---

type createChannelParams struct {
	Recipient     string           `json:"recipient"`
	Deposit       string           `json:"deposit"`
	DurationHours int              `json:"duration_hours,omitempty"`
	AutoTopup     *autoTopupParams `json:"auto_topup,omitempty"`
}

type autoTopupParams struct {
	Threshold string `json:"threshold"`
	Amount    string `json:"amount"`
	MaxTopups uint32 `json:"max_topups,omitempty"`
}

type channelIDParams struct {
	ChannelID string `json:"channel_id"`
}

type channelInfo struct {
	ID                   string           `json:"id"`
	Sender               string           `json:"sender"`
	Recipient            string           `json:"recipient"`
	Deposit              string           `json:"deposit"`
	Spent                string           `json:"spent"`
	Balance              string           `json:"balance"`
	Nonce                uint64           `json:"nonce"`
	State                string           `json:"state"`
	CreatedAt            uint64           `json:"created_at"`
	ExpiresAt            uint64           `json:"expires_at"`
	SettlementUnresolved bool             `json:"settlement_unresolved,omitempty"`
	ChallengeDeadline    uint64           `json:"challenge_deadline,omitempty"`
	AutoTopup            *autoTopupParams `json:"auto_topup,omitempty"`
	TopupsPerformed      uint32           `json:"topups_performed"`
}

type payParams struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
}

type paymentInfo struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
	Timestamp uint64 `json:"timestamp"`
}

type batchPayParams struct {
	ChannelID string           `json:"channel_id"`
	Items     []batchItemParam `json:"items"`
}

type batchItemParam struct {
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

type batchPayResponse struct {
	Payment    *paymentInfo `json:"payment"`
	ItemCount  int          `json:"item_count"`
	ItemNonces []uint64     `json:"item_nonces"`
}

type disputeParams struct {
	ChannelID string      `json:"channel_id"`
	Payment   paymentInfo `json:"payment"`
}

type topUpParams struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
}

type extendParams struct {
	ChannelID      string `json:"channel_id"`
	ExtensionHours int    `json:"extension_hours"`
}

type setAutoTopupParams struct {
	ChannelID string          `json:"channel_id"`
	Policy    autoTopupParams `json:"policy"`
}

type verifyParams struct {
	Payment        paymentInfo `json:"payment"`
	ExpectedSender string      `json:"expected_sender"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

type acknowledgeParams struct {
	Payment paymentInfo `json:"payment"`
}

type receiptInfo struct {
	ChannelID  string `json:"channel_id"`
	Amount     string `json:"amount"`
	Nonce      uint64 `json:"nonce"`
	Sender     string `json:"sender"`
	ReceivedAt uint64 `json:"received_at"`
}

type listChannelsResponse struct {
	Channels []*channelInfo `json:"channels"`
}

type statsResponse struct {
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

// --- Server ---

type Server struct {
	addr       string
	svc        interfaces.ChannelService
	corsConfig CORSConfig
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, svc interfaces.ChannelService) *Server {
	return &Server{addr: addr, svc: svc}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

func (s *Server) Handler() http.Handler {
	methods := s.buildMethodMap()
	jh := jhttp.NewBridge(methods, &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		jh.ServeHTTP(w, r)
	})
}

// Start serves the JSON-RPC bridge on /rpc. The listener runs in a
// panic-fatal goroutine: an engine without its RPC surface is useless, so a
// crashed listener brings the process down instead of lingering silently.
func (s *Server) Start() {
	http.Handle("/rpc", s.Handler())
	exception.SafeGoWithPanic("jsonrpc-listener", func() {
		if err := http.ListenAndServe(s.addr, nil); err != nil {
			logx.Error("RPC", "json-rpc server stopped", "addr", s.addr, "err", err)
		}
	})
	logx.Info("RPC", "json-rpc server listening", "addr", s.addr)
}

func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodChannelOpen: handler.New(func(ctx context.Context, p createChannelParams) (*channelInfo, error) {
			deposit, err := utils.ParseAmount(p.Deposit)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid deposit: %v", err)
			}
			var topup *types.AutoTopupConfig
			if p.AutoTopup != nil {
				topup, err = parseAutoTopup(*p.AutoTopup)
				if err != nil {
					return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid auto topup policy: %v", err)
				}
			}
			ch, err := s.svc.CreateChannel(ctx, p.Recipient, deposit, time.Duration(p.DurationHours)*time.Hour, topup)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelClose: handler.New(func(ctx context.Context, p channelIDParams) (*channelInfo, error) {
			ch, err := s.svc.CloseChannel(ctx, p.ChannelID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelDispute: handler.New(func(ctx context.Context, p disputeParams) (*channelInfo, error) {
			payment, err := fromPaymentInfo(p.Payment)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid payment: %v", err)
			}
			ch, err := s.svc.DisputeChannel(ctx, p.ChannelID, payment)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelTopUp: handler.New(func(ctx context.Context, p topUpParams) (*channelInfo, error) {
			amount, err := utils.ParseAmount(p.Amount)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid amount: %v", err)
			}
			ch, err := s.svc.TopUpChannel(ctx, p.ChannelID, amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelExtend: handler.New(func(ctx context.Context, p extendParams) (*channelInfo, error) {
			ch, err := s.svc.ExtendChannel(ctx, p.ChannelID, time.Duration(p.ExtensionHours)*time.Hour)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelPay: handler.New(func(ctx context.Context, p payParams) (*paymentInfo, error) {
			amount, err := utils.ParseAmount(p.Amount)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid amount: %v", err)
			}
			payment, err := s.svc.Pay(ctx, p.ChannelID, amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toPaymentInfo(payment), nil
		}),
		MethodChannelBatchPay: handler.New(func(ctx context.Context, p batchPayParams) (*batchPayResponse, error) {
			items := make([]types.BatchItem, 0, len(p.Items))
			for _, item := range p.Items {
				amount, err := utils.ParseAmount(item.Amount)
				if err != nil {
					return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid item amount: %v", err)
				}
				items = append(items, types.BatchItem{Amount: amount, Memo: item.Memo})
			}
			receipt, err := s.svc.BatchPay(ctx, p.ChannelID, items)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &batchPayResponse{
				Payment:    toPaymentInfo(receipt.Payment),
				ItemCount:  receipt.ItemCount,
				ItemNonces: receipt.ItemNonces,
			}, nil
		}),
		MethodChannelSetAutoTopup: handler.New(func(ctx context.Context, p setAutoTopupParams) (*channelInfo, error) {
			policy, err := parseAutoTopup(p.Policy)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid policy: %v", err)
			}
			if err := s.svc.SetAutoTopup(p.ChannelID, policy); err != nil {
				return nil, toJRPC2Error(err)
			}
			ch, err := s.svc.GetChannel(p.ChannelID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelRemoveAutoTopup: handler.New(func(ctx context.Context, p channelIDParams) (*channelInfo, error) {
			if err := s.svc.RemoveAutoTopup(p.ChannelID); err != nil {
				return nil, toJRPC2Error(err)
			}
			ch, err := s.svc.GetChannel(p.ChannelID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelGet: handler.New(func(ctx context.Context, p channelIDParams) (*channelInfo, error) {
			ch, err := s.svc.GetChannel(p.ChannelID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return toChannelInfo(ch), nil
		}),
		MethodChannelList: handler.New(func(ctx context.Context) (*listChannelsResponse, error) {
			channels := s.svc.ListChannels()
			out := make([]*channelInfo, 0, len(channels))
			for _, ch := range channels {
				out = append(out, toChannelInfo(ch))
			}
			return &listChannelsResponse{Channels: out}, nil
		}),
		MethodChannelStats: handler.New(func(ctx context.Context, p channelIDParams) (*statsResponse, error) {
			stats, err := s.svc.ChannelStats(p.ChannelID)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &statsResponse{
				ChannelID:       stats.ChannelID,
				PaymentCount:    stats.PaymentCount,
				TotalVolume:     utils.Uint256ToString(stats.TotalVolume),
				AveragePayment:  utils.Uint256ToString(stats.AveragePayment),
				LargestPayment:  utils.Uint256ToString(stats.LargestPayment),
				SmallestPayment: utils.Uint256ToString(stats.SmallestPayment),
				PaymentsPerHour: stats.PaymentsPerHour,
				TopupCount:      stats.TopupCount,
				DecimalScale:    utils.GetDecimalScale(),
			}, nil
		}),
		MethodPaymentVerify: handler.New(func(ctx context.Context, p verifyParams) (*verifyResponse, error) {
			payment, err := fromPaymentInfo(p.Payment)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid payment: %v", err)
			}
			valid, err := s.svc.VerifyPayment(payment, p.ExpectedSender)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &verifyResponse{Valid: valid}, nil
		}),
		MethodPaymentAcknowledge: handler.New(func(ctx context.Context, p acknowledgeParams) (*receiptInfo, error) {
			payment, err := fromPaymentInfo(p.Payment)
			if err != nil {
				return nil, jrpc2.Errorf(jrpc2.InvalidParams, "invalid payment: %v", err)
			}
			receipt, err := s.svc.AcknowledgePayment(payment)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &receiptInfo{
				ChannelID:  receipt.ChannelID,
				Amount:     receipt.Amount.Dec(),
				Nonce:      receipt.Nonce,
				Sender:     receipt.Sender,
				ReceivedAt: uint64(receipt.ReceivedAt.Unix()),
			}, nil
		}),
	}
}

// --- Helpers ---

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
	}
}

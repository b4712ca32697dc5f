package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	"paychan/jsonx"
	"paychan/types"
	"paychan/x402"
)

type Config struct {
	// Endpoint is the engine's JSON-RPC URL, e.g. http://127.0.0.1:8080/rpc
	Endpoint string
	Timeout  time.Duration
}

// PaychanClient drives a running engine over its JSON-RPC surface. It is the
// piece an application embeds to open channels, stream payments and fetch
// paywalled resources.
type PaychanClient struct {
	cfg   Config
	http  *http.Client
	reqID uint64
}

func NewClient(cfg Config) *PaychanClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PaychanClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Result  jsonx.RawMessage  `json:"result,omitempty"`
	Error   *rpcResponseError `json:"error,omitempty"`
}

type rpcResponseError struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Data    jsonx.RawMessage `json:"data,omitempty"`
}

func (e *rpcResponseError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *PaychanClient) call(ctx context.Context, method string, params, result interface{}) error {
	body, err := jsonx.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.reqID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return xerrors.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := jsonx.Unmarshal(raw, &rpcResp); err != nil {
		return xerrors.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := jsonx.Unmarshal(rpcResp.Result, result); err != nil {
			return xerrors.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// OpenChannel opens a channel to recipient with the given decimal deposit
func (c *PaychanClient) OpenChannel(ctx context.Context, recipient, deposit string, durationHours int) (*ChannelInfo, error) {
	var res ChannelInfo
	err := c.call(ctx, "channel.open", map[string]interface{}{
		"recipient":      recipient,
		"deposit":        deposit,
		"duration_hours": durationHours,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Pay signs the next cumulative payment on the channel
func (c *PaychanClient) Pay(ctx context.Context, channelID, amount string) (*PaymentInfo, error) {
	var res PaymentInfo
	err := c.call(ctx, "channel.pay", map[string]interface{}{
		"channel_id": channelID,
		"amount":     amount,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// BatchPay signs one payment covering all items
func (c *PaychanClient) BatchPay(ctx context.Context, channelID string, items []BatchItem) (*BatchPayResult, error) {
	var res BatchPayResult
	err := c.call(ctx, "channel.batchpay", map[string]interface{}{
		"channel_id": channelID,
		"items":      items,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CloseChannel settles the channel cooperatively
func (c *PaychanClient) CloseChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var res ChannelInfo
	err := c.call(ctx, "channel.close", map[string]interface{}{"channel_id": channelID}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetChannel fetches a channel snapshot
func (c *PaychanClient) GetChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var res ChannelInfo
	err := c.call(ctx, "channel.get", map[string]interface{}{"channel_id": channelID}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetStats fetches aggregated payment statistics for a channel
func (c *PaychanClient) GetStats(ctx context.Context, channelID string) (*StatsInfo, error) {
	var res StatsInfo
	err := c.call(ctx, "channel.stats", map[string]interface{}{"channel_id": channelID}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchPaid signs a payment on the channel and requests url with the
// X-Payment header attached, completing the 402 flow in one call.
func (c *PaychanClient) FetchPaid(ctx context.Context, channelID, amount, url string) (*http.Response, error) {
	info, err := c.Pay(ctx, channelID, amount)
	if err != nil {
		return nil, err
	}
	payment, err := info.ToSignedPayment()
	if err != nil {
		return nil, err
	}
	return c.fetchWith(ctx, payment, url)
}

func (c *PaychanClient) fetchWith(ctx context.Context, payment *types.SignedPayment, url string) (*http.Response, error) {
	header, err := x402.EncodeHeader(payment)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(x402.HeaderName, header)
	return c.http.Do(req)
}

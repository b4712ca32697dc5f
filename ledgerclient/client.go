package ledgerclient

import (
	"context"
	"net"
	"sync"

	"github.com/creachadair/jrpc2"
	jchannel "github.com/creachadair/jrpc2/channel"
	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"paychan/interfaces"
	"paychan/logx"
)

type Config struct {
	Endpoint string
}

// Client talks JSON-RPC to the settlement ledger node. It satisfies the
// Ledger interface by translating each typed ledger operation into the
// node's channel.* method family.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn net.Conn
	rpc  *jrpc2.Client
}

var _ interfaces.Ledger = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// client returns the live RPC client, dialing on first use and redialing
// after a broken connection was discarded.
func (c *Client) client(ctx context.Context) (*jrpc2.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		return c.rpc, nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Endpoint)
	if err != nil {
		return nil, xerrors.Errorf("dial ledger %s: %w", c.cfg.Endpoint, err)
	}
	c.conn = conn
	c.rpc = jrpc2.NewClient(jchannel.Line(conn, conn), nil)
	logx.Info("LEDGER", "connected to ledger node", "endpoint", c.cfg.Endpoint)
	return c.rpc, nil
}

func (c *Client) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
		c.conn = nil
	}
}

// --- Params/Results mirroring the node's channel.* methods ---

type openChannelParams struct {
	ChannelID string `json:"channel_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Deposit   string `json:"deposit"`
}

type settleChannelParams struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature []byte `json:"signature"`
}

type depositParams struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
}

type submitResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

type getBalanceParams struct {
	ChannelID string `json:"channel_id"`
}

type getBalanceResponse struct {
	Available string `json:"available"`
	Spent     string `json:"spent"`
	Error     string `json:"error"`
}

// Submit broadcasts one ledger operation and waits for the node to confirm
// it. The operation set is matched exhaustively; an unknown operation type is
// a programming error, not a wire error.
func (c *Client) Submit(ctx context.Context, op interfaces.LedgerOp) error {
	var params interface{}
	switch o := op.(type) {
	case interfaces.OpenChannelOp:
		params = openChannelParams{ChannelID: o.ChannelID, Sender: o.Sender, Recipient: o.Recipient, Deposit: o.Deposit.Dec()}
	case interfaces.CloseChannelOp:
		params = settleChannelParams{ChannelID: o.ChannelID, Amount: o.Amount.Dec(), Nonce: o.Nonce, Signature: o.Signature}
	case interfaces.DisputeChannelOp:
		params = settleChannelParams{ChannelID: o.ChannelID, Amount: o.Amount.Dec(), Nonce: o.Nonce, Signature: o.Signature}
	case interfaces.DepositOp:
		params = depositParams{ChannelID: o.ChannelID, Amount: o.Amount.Dec()}
	default:
		return xerrors.Errorf("unsupported ledger operation %T", op)
	}

	cli, err := c.client(ctx)
	if err != nil {
		return err
	}
	var res submitResponse
	if err := cli.CallResult(ctx, op.LedgerMethod(), params, &res); err != nil {
		c.discard()
		return xerrors.Errorf("%s: %w", op.LedgerMethod(), err)
	}
	if !res.Ok {
		return xerrors.Errorf("%s rejected: %s", op.LedgerMethod(), res.Error)
	}
	return nil
}

// GetChannelBalance reads the escrow state the node holds for a channel
func (c *Client) GetChannelBalance(ctx context.Context, channelID string) (*interfaces.ChannelBalance, error) {
	cli, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	var res getBalanceResponse
	if err := cli.CallResult(ctx, "channel.balance", getBalanceParams{ChannelID: channelID}, &res); err != nil {
		c.discard()
		return nil, xerrors.Errorf("channel.balance: %w", err)
	}
	if res.Error != "" {
		return nil, xerrors.Errorf("channel.balance: %s", res.Error)
	}
	available, err := uint256.FromDecimal(res.Available)
	if err != nil {
		return nil, xerrors.Errorf("parse available balance: %w", err)
	}
	spent, err := uint256.FromDecimal(res.Spent)
	if err != nil {
		return nil, xerrors.Errorf("parse spent balance: %w", err)
	}
	return &interfaces.ChannelBalance{Available: available, Spent: spent}, nil
}

// Close tears down the underlying connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

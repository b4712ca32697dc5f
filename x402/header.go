package x402

import (
	"encoding/base64"

	"golang.org/x/xerrors"

	"paychan/jsonx"
	"paychan/types"
)

// HeaderName carries the signed channel payment on HTTP requests
const HeaderName = "X-Payment"

// SchemeChannel is the only payment scheme this engine speaks
const SchemeChannel = "channel"

// PaymentEnvelope is the JSON payload of the X-Payment header. The header
// value is the base64 encoding of this structure.
type PaymentEnvelope struct {
	Scheme    string               `json:"scheme"`
	ChannelID string               `json:"channelId"`
	Payment   *types.SignedPayment `json:"payment"`
}

// EncodeHeader packs a signed payment into an X-Payment header value
func EncodeHeader(payment *types.SignedPayment) (string, error) {
	if payment == nil {
		return "", xerrors.New("nil payment")
	}
	env := PaymentEnvelope{
		Scheme:    SchemeChannel,
		ChannelID: payment.ChannelID,
		Payment:   payment,
	}
	raw, err := jsonx.Marshal(env)
	if err != nil {
		return "", xerrors.Errorf("marshal payment envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeHeader unpacks an X-Payment header value. It validates shape and
// scheme only; signature verification is the caller's job.
func DecodeHeader(value string) (*PaymentEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, xerrors.Errorf("decode payment header: %w", err)
	}
	var env PaymentEnvelope
	if err := jsonx.Unmarshal(raw, &env); err != nil {
		return nil, xerrors.Errorf("unmarshal payment envelope: %w", err)
	}
	if env.Scheme != SchemeChannel {
		return nil, xerrors.Errorf("unsupported payment scheme %q", env.Scheme)
	}
	if env.Payment == nil || env.Payment.ChannelID != env.ChannelID {
		return nil, xerrors.New("payment envelope does not match its channel id")
	}
	return &env, nil
}

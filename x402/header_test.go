package x402

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paychan/jsonx"
	"paychan/types"
)

func testPayment() *types.SignedPayment {
	return &types.SignedPayment{
		ChannelID: "8xKQbase58id",
		Amount:    uint256.NewInt(150),
		Nonce:     3,
		Signature: []byte{0x01, 0x02, 0x03},
		Timestamp: time.Now(),
	}
}

func TestHeaderRoundtrip(t *testing.T) {
	p := testPayment()

	value, err := EncodeHeader(p)
	require.NoError(t, err)

	env, err := DecodeHeader(value)
	require.NoError(t, err)
	assert.Equal(t, SchemeChannel, env.Scheme)
	assert.Equal(t, p.ChannelID, env.ChannelID)
	assert.True(t, env.Payment.Amount.Eq(p.Amount))
	assert.Equal(t, p.Nonce, env.Payment.Nonce)
	assert.Equal(t, p.Signature, env.Payment.Signature)
}

func TestDecodeHeaderRejectsGarbage(t *testing.T) {
	_, err := DecodeHeader("not base64 !!!")
	assert.Error(t, err)

	_, err = DecodeHeader(base64.StdEncoding.EncodeToString([]byte("not json")))
	assert.Error(t, err)
}

func TestDecodeHeaderRejectsWrongScheme(t *testing.T) {
	raw, err := jsonx.Marshal(PaymentEnvelope{
		Scheme:    "exact",
		ChannelID: "chan",
		Payment:   testPayment(),
	})
	require.NoError(t, err)

	_, err = DecodeHeader(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestDecodeHeaderRejectsChannelMismatch(t *testing.T) {
	raw, err := jsonx.Marshal(PaymentEnvelope{
		Scheme:    SchemeChannel,
		ChannelID: "some-other-channel",
		Payment:   testPayment(),
	})
	require.NoError(t, err)

	_, err = DecodeHeader(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestEncodeHeaderNilPayment(t *testing.T) {
	_, err := EncodeHeader(nil)
	assert.Error(t, err)
}

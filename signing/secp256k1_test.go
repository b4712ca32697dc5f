package signing

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) ([]byte, string) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	addr, err := AddressFromPrivateKey(priv.Serialize())
	require.NoError(t, err)
	return priv.Serialize(), addr
}

func TestSignRecoverRoundtrip(t *testing.T) {
	key, addr := newTestKey(t)
	signer := NewSecp256k1Signer()

	channelID := DeriveChannelID("0xaaaa", "0xbbbb", time.Now())
	hash, err := PaymentHash(channelID, uint256.NewInt(1234), 7)
	require.NoError(t, err)

	sig, err := signer.Sign(hash, key)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := signer.Recover(hash, sig)
	require.NoError(t, err)
	assert.True(t, AddressesEqual(recovered, addr))
}

func TestRecoverRejectsTamperedPayment(t *testing.T) {
	key, addr := newTestKey(t)
	signer := NewSecp256k1Signer()

	channelID := DeriveChannelID("0xaaaa", "0xbbbb", time.Now())
	hash, err := PaymentHash(channelID, uint256.NewInt(100), 1)
	require.NoError(t, err)
	sig, err := signer.Sign(hash, key)
	require.NoError(t, err)

	// Same signature against a different amount must not recover the signer.
	tampered, err := PaymentHash(channelID, uint256.NewInt(200), 1)
	require.NoError(t, err)
	recovered, err := signer.Recover(tampered, sig)
	if err == nil {
		assert.False(t, AddressesEqual(recovered, addr))
	}
}

func TestSignRejectsBadInputs(t *testing.T) {
	key, _ := newTestKey(t)
	signer := NewSecp256k1Signer()

	_, err := signer.Sign([]byte("short"), key)
	assert.Error(t, err)

	hash, err := PaymentHash(DeriveChannelID("a", "b", time.Now()), uint256.NewInt(1), 1)
	require.NoError(t, err)
	_, err = signer.Sign(hash, []byte("not a key"))
	assert.Error(t, err)
}

func TestPaymentHashDependsOnEveryField(t *testing.T) {
	id := DeriveChannelID("0xaaaa", "0xbbbb", time.Now())
	base, err := PaymentHash(id, uint256.NewInt(5), 1)
	require.NoError(t, err)

	otherAmount, err := PaymentHash(id, uint256.NewInt(6), 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherAmount)

	otherNonce, err := PaymentHash(id, uint256.NewInt(5), 2)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherNonce)

	otherChannel, err := PaymentHash(DeriveChannelID("0xcccc", "0xdddd", time.Now()), uint256.NewInt(5), 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherChannel)
}

func TestDeriveChannelIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := DeriveChannelID("0xaaaa", "0xbbbb", now)
		assert.False(t, seen[id], "duplicate channel id %s", id)
		seen[id] = true
	}
}

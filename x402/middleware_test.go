package x402

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paychan/errors"
	"paychan/interfaces"
	"paychan/types"
)

// fakeService accepts any payment whose nonce is strictly increasing and
// whose signature equals "good", mimicking the engine's verify/ack split.
// It tracks the last acknowledged cumulative amount the way the receipt
// store does.
type fakeService struct {
	interfaces.ChannelService
	highest uint64
	acked   *uint256.Int
}

func (f *fakeService) VerifyPayment(p *types.SignedPayment, expectedSender string) (bool, error) {
	return string(p.Signature) == "good", nil
}

func (f *fakeService) AcknowledgePayment(p *types.SignedPayment) (*types.PaymentReceipt, error) {
	if p.Nonce <= f.highest {
		return nil, errors.NewError(errors.ErrCodeStalePayment, errors.ErrMsgStalePayment)
	}
	f.highest = p.Nonce
	f.acked = new(uint256.Int).Set(p.Amount)
	return &types.PaymentReceipt{
		ChannelID:  p.ChannelID,
		Amount:     p.Amount,
		Nonce:      p.Nonce,
		Sender:     "0xsender",
		ReceivedAt: time.Now(),
	}, nil
}

func (f *fakeService) AcknowledgedAmount(channelID string) *uint256.Int {
	if f.acked == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(f.acked)
}

func paidHeaderAmount(t *testing.T, amount, nonce uint64, sig string) string {
	t.Helper()
	value, err := EncodeHeader(&types.SignedPayment{
		ChannelID: "chan-1",
		Amount:    uint256.NewInt(amount),
		Nonce:     nonce,
		Signature: []byte(sig),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return value
}

func paidHeader(t *testing.T, nonce uint64, sig string) string {
	return paidHeaderAmount(t, nonce*10, nonce, sig)
}

func servePaywalledPriced(svc interfaces.ChannelService, price *uint256.Int, header string) *httptest.ResponseRecorder {
	handler := Paywall(svc, "0xsender", price, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("premium"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/premium", nil).WithContext(context.Background())
	if header != "" {
		req.Header.Set(HeaderName, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func servePaywalled(svc interfaces.ChannelService, header string) *httptest.ResponseRecorder {
	return servePaywalledPriced(svc, nil, header)
}

func TestPaywallAcceptsValidPayment(t *testing.T) {
	svc := &fakeService{}
	rec := servePaywalled(svc, paidHeader(t, 1, "good"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "premium", rec.Body.String())
}

func TestPaywallRequiresHeader(t *testing.T) {
	svc := &fakeService{}
	rec := servePaywalled(svc, "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPaywallRejectsMalformedHeader(t *testing.T) {
	svc := &fakeService{}
	rec := servePaywalled(svc, "!!not a header!!")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPaywallRejectsBadSignature(t *testing.T) {
	svc := &fakeService{}
	rec := servePaywalled(svc, paidHeader(t, 1, "bad"))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPaywallRejectsReplay(t *testing.T) {
	svc := &fakeService{}
	header := paidHeader(t, 1, "good")

	rec := servePaywalled(svc, header)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same header again: the nonce was already acknowledged.
	rec = servePaywalled(svc, header)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	// A fresh payment goes through.
	rec = servePaywalled(svc, paidHeader(t, 2, "good"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaywallRejectsUnderpayment(t *testing.T) {
	svc := &fakeService{}
	price := uint256.NewInt(10)

	// Cumulative 10 on a fresh channel: exactly one request's worth.
	rec := servePaywalledPriced(svc, price, paidHeaderAmount(t, 10, 1, "good"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Cumulative 13 increments by only 3: valid signature, fresh nonce,
	// but the delta over the acknowledged amount is below the price.
	rec = servePaywalledPriced(svc, price, paidHeaderAmount(t, 13, 2, "good"))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient payment")

	// The underpaying header was never acknowledged, so paying the full
	// increment with the same nonce still works.
	rec = servePaywalledPriced(svc, price, paidHeaderAmount(t, 20, 2, "good"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaywallRejectsNonIncreasingAmount(t *testing.T) {
	svc := &fakeService{}
	price := uint256.NewInt(5)

	rec := servePaywalledPriced(svc, price, paidHeaderAmount(t, 50, 1, "good"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Fresh nonce but a cumulative amount at or below what was already
	// acknowledged pays nothing.
	rec = servePaywalledPriced(svc, price, paidHeaderAmount(t, 50, 2, "good"))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPaywallZeroPriceSkipsAmountCheck(t *testing.T) {
	svc := &fakeService{}
	rec := servePaywalledPriced(svc, uint256.NewInt(0), paidHeaderAmount(t, 1, 1, "good"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

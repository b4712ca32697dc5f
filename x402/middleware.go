package x402

import (
	"net/http"

	"github.com/holiman/uint256"

	"paychan/interfaces"
	"paychan/jsonx"
	"paychan/logx"
)

type paymentRequired struct {
	Error  string `json:"error"`
	Scheme string `json:"scheme"`
	Header string `json:"header"`
}

// Paywall gates an HTTP handler behind a valid channel payment. The request
// must carry an X-Payment header whose signature recovers to expectedSender
// and whose cumulative amount exceeds the last acknowledged amount by at
// least minIncrement (the price of one request; nil or zero disables the
// price check). The payment is acknowledged (receipt appended) before the
// wrapped handler runs, so a replayed header is rejected by the nonce guard.
//
// The self-reported header fields are never trusted: the amount delta is
// computed against the server's own receipt log, after the signature check.
func Paywall(svc interfaces.ChannelService, expectedSender string, minIncrement *uint256.Int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := r.Header.Get(HeaderName)
		if value == "" {
			writePaymentRequired(w, "payment required")
			return
		}
		env, err := DecodeHeader(value)
		if err != nil {
			logx.Warn("X402", "bad payment header", "err", err)
			writePaymentRequired(w, "malformed payment header")
			return
		}
		ok, err := svc.VerifyPayment(env.Payment, expectedSender)
		if err != nil || !ok {
			writePaymentRequired(w, "payment verification failed")
			return
		}
		if minIncrement != nil && !minIncrement.IsZero() {
			acked := svc.AcknowledgedAmount(env.Payment.ChannelID)
			if env.Payment.Amount == nil || env.Payment.Amount.Cmp(acked) <= 0 {
				writePaymentRequired(w, "insufficient payment")
				return
			}
			increment := new(uint256.Int).Sub(env.Payment.Amount, acked)
			if increment.Cmp(minIncrement) < 0 {
				writePaymentRequired(w, "insufficient payment")
				return
			}
		}
		if _, err := svc.AcknowledgePayment(env.Payment); err != nil {
			writePaymentRequired(w, "payment not accepted")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writePaymentRequired(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	body, _ := jsonx.Marshal(paymentRequired{Error: msg, Scheme: SchemeChannel, Header: HeaderName})
	w.Write(body)
}

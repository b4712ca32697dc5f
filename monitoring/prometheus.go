package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PaymentRejectedReason string

var (
	PaymentChannelNotFound     PaymentRejectedReason = "channel_not_found"
	PaymentInvalidState        PaymentRejectedReason = "invalid_state"
	PaymentChannelExpired      PaymentRejectedReason = "channel_expired"
	PaymentInsufficientBalance PaymentRejectedReason = "insufficient_channel_balance"
	PaymentEmptyBatch          PaymentRejectedReason = "empty_batch"
	PaymentBadSignature        PaymentRejectedReason = "signature_verification_failed"
	PaymentReplayed            PaymentRejectedReason = "stale_payment"
	PaymentSigningFailed       PaymentRejectedReason = "signing_failed"
	PaymentRejectedUnknown     PaymentRejectedReason = "other"
)

type enginePromMetrics struct {
	engineUpUnixSeconds  prometheus.Gauge
	openChannels         prometheus.Gauge
	signedPaymentCount   prometheus.Counter
	batchPaymentCount    prometheus.Counter
	rejectedPaymentCount *prometheus.CounterVec
	topupCount           prometheus.Counter
	settlementDuration   prometheus.Histogram
	disputeCount         prometheus.Counter
	receiptCount         prometheus.Counter
	panicCount           prometheus.Counter
}

func newEnginePromMetrics() *enginePromMetrics {
	return &enginePromMetrics{
		engineUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "paychan_engine_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the engine start",
			},
		),
		openChannels: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "paychan_engine_open_channels",
				Help: "The number of channels currently in the open state",
			},
		),
		signedPaymentCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_signed_payment_count",
				Help: "The total number of cumulative payments signed",
			},
		),
		batchPaymentCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_batch_payment_count",
				Help: "The total number of batch payments signed",
			},
		),
		rejectedPaymentCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paychan_engine_rejected_payment_count",
				Help: "The total number of rejected payments",
			},
			[]string{"reason"},
		),
		topupCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_topup_count",
				Help: "The total number of automatic channel top-ups performed",
			},
		),
		settlementDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "paychan_engine_settlement_duration_seconds",
				Help: "Latency in seconds of on-chain settlement calls (close/dispute)",
			},
		),
		disputeCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_dispute_count",
				Help: "The total number of disputes submitted on-chain",
			},
		),
		receiptCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_receipt_count",
				Help: "The total number of payments acknowledged on the recipient side",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paychan_engine_panic_count",
				Help: "The total number of recovered panics in background goroutines",
			},
		),
	}
}

var (
	engineMetrics *enginePromMetrics
	initOnce      sync.Once
)

// InitMetrics initializes metrics for the engine but does not expose them
// yet. Safe to call more than once; promauto registration must happen a
// single time per process.
func InitMetrics() {
	initOnce.Do(func() {
		engineMetrics = newEnginePromMetrics()
		engineMetrics.engineUpUnixSeconds.SetToCurrentTime()
	})
}

// Handler returns the prometheus scrape handler for mounting on a router
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetOpenChannels(n int) {
	engineMetrics.openChannels.Set(float64(n))
}

func IncreaseSignedPaymentCount() {
	engineMetrics.signedPaymentCount.Inc()
}

func IncreaseBatchPaymentCount() {
	engineMetrics.batchPaymentCount.Inc()
}

func RecordRejectedPayment(reason PaymentRejectedReason) {
	engineMetrics.rejectedPaymentCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func IncreaseTopupCount() {
	engineMetrics.topupCount.Inc()
}

func RecordSettlementDuration(duration time.Duration) {
	engineMetrics.settlementDuration.Observe(duration.Seconds())
}

func IncreaseDisputeCount() {
	engineMetrics.disputeCount.Inc()
}

func IncreaseReceiptCount() {
	engineMetrics.receiptCount.Inc()
}

func IncreasePanicCount() {
	engineMetrics.panicCount.Inc()
}

// internal/metrics/metrics.go
//
// Package metrics 以 Prometheus 指標記錄帳務操作：次數（依種類與結果）、
// 處理時間，以及成功入帳／出帳的金額總和。
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bankledger/internal/ledger"
)

// 操作結果標籤。
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeInsufficient = "insufficient_funds"
	OutcomeClosed       = "closed"
	OutcomeError        = "error"
)

// Recorder 實作 ledger.Observer。
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	volume     *prometheus.CounterVec
}

// NewRecorder 於 reg 註冊指標；reg 為 nil 時使用 prometheus.DefaultRegisterer。
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Total number of ledger operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"kind"},
		),
		volume: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_amount_total",
				Help: "Sum of successfully moved amounts by kind",
			},
			[]string{"kind"},
		),
	}
}

// Observe 記錄一次操作。
func (r *Recorder) Observe(e ledger.Event) {
	kind := string(e.Kind)
	r.operations.WithLabelValues(kind, Outcome(e.Err)).Inc()
	r.duration.WithLabelValues(kind).Observe(e.Elapsed.Seconds())
	if e.Err == nil {
		amt, _ := e.Amount.Float64()
		r.volume.WithLabelValues(kind).Add(amt)
	}
}

// Outcome 將錯誤分類為指標標籤。
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSameAccount):
		return OutcomeInvalid
	case errors.Is(err, ledger.ErrCustomerNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return OutcomeNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return OutcomeInsufficient
	case errors.Is(err, ledger.ErrStoreClosed):
		return OutcomeClosed
	default:
		return OutcomeError
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// WalletOps counts seamless-wallet callbacks by endpoint and result code.
var WalletOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wallet_requests_total",
		Help: "Seamless wallet callbacks by endpoint and result code.",
	},
	[]string{"endpoint", "code"},
)

// Transfers counts distribution and withdrawal operations by outcome.
var Transfers = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transfer_operations_total",
		Help: "Distribution engine operations by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(WalletOps, Transfers)
}

// Serve exposes /metrics on its own listener so the provider-facing port
// stays closed to scrapers. No-op when addr is empty.
func Serve(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("metrics listener stopped")
		}
	}()
}

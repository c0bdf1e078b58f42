// Package metrics exposes the controller's Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_orders_submitted_total",
		Help: "Order submissions by result (ok, queued, rejected)",
	}, []string{"result"})

	OrdersFlushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_orders_flushed_total",
		Help: "Queued orders retried by flush, by result (placed, failed)",
	}, []string{"result"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiry_order_queue_depth",
		Help: "Orders waiting for a valid broker session",
	})

	GateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_gate_rejections_total",
		Help: "Decision cycles stopped, by stage",
	}, []string{"stage"})

	Entries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_entries_total",
		Help: "Entries taken, by symbol",
	}, []string{"symbol"})

	GlobalExposure = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiry_global_exposure_rupees",
		Help: "Exposure reserved by authorized entries this session",
	})

	DailyRealized = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiry_daily_realized_pnl_rupees",
		Help: "Realized profit and loss since market open",
	})

	HealthState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "expiry_health_state",
		Help: "0=good, 1=degraded, 2=error per axis",
	}, []string{"axis"})

	Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_alerts_total",
		Help: "Alerts raised, by category and severity",
	}, []string{"category", "severity"})

	SessionValid = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiry_broker_session_valid",
		Help: "1 when the last session probe succeeded",
	})
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersFlushed,
		QueueDepth,
		GateRejections,
		Entries,
		GlobalExposure,
		DailyRealized,
		HealthState,
		Alerts,
		SessionValid,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

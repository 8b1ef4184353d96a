package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedge_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "action", "side"},
	)

	positionValue = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hedge_bot_position_value",
			Help:    "Distribution of opened position values",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// A gauge, not a counter: losing settlements subtract from the running
	// total and counters reject negative deltas.
	realizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedge_bot_realized_pnl",
			Help: "Cumulative realized profit and loss",
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedge_bot_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	// Allocation metrics
	pairAllocation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedge_bot_pair_allocation",
			Help: "Capital currently allocated to each pair",
		},
		[]string{"symbol"},
	)

	reserveBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hedge_bot_reserve_balance",
			Help: "Untouchable reserve portion of the account",
		},
	)

	selectedLeverage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedge_bot_selected_leverage",
			Help: "Leverage chosen for the most recent entry",
		},
		[]string{"symbol"},
	)

	// Risk metrics
	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hedge_bot_circuit_breaker_state",
			Help: "Circuit breaker state per symbol (0=closed, 1=soft, 2=hard)",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hedge_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(positionValue)
	prometheus.MustRegister(realizedPnL)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(pairAllocation)
	prometheus.MustRegister(reserveBalance)
	prometheus.MustRegister(selectedLeverage)
	prometheus.MustRegister(circuitBreakerState)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records an executed order.
func RecordTrade(symbol, action, side string, value float64) {
	tradesTotal.WithLabelValues(symbol, action, side).Inc()
	if action == "OPEN" {
		positionValue.WithLabelValues(symbol).Observe(value)
	}
}

// RecordRealizedPnL accumulates settled profit and loss.
func RecordRealizedPnL(symbol string, pnl float64) {
	realizedPnL.WithLabelValues(symbol).Add(pnl)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateAllocation updates the per-pair allocation gauge.
func UpdateAllocation(symbol string, allocated float64) {
	pairAllocation.WithLabelValues(symbol).Set(allocated)
}

// UpdateReserve updates the reserve gauge.
func UpdateReserve(reserve float64) {
	reserveBalance.Set(reserve)
}

// UpdateLeverage records the leverage chosen for an entry.
func UpdateLeverage(symbol string, leverage int) {
	selectedLeverage.WithLabelValues(symbol).Set(float64(leverage))
}

// UpdateCircuitBreaker records the breaker state for a symbol.
func UpdateCircuitBreaker(symbol string, state int) {
	circuitBreakerState.WithLabelValues(symbol).Set(float64(state))
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

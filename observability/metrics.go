package observability

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lockmint/core/events"
)

// Metrics is an event emitter that feeds prometheus collectors and forwards
// each event to the wrapped emitter.
type Metrics struct {
	next events.Emitter
	reg  *prometheus.Registry

	eventsTotal        *prometheus.CounterVec
	mintedTotal        prometheus.Counter
	loanPrincipal      prometheus.Counter
	activeLiquidations prometheus.Gauge
}

func NewMetrics(next events.Emitter) *Metrics {
	if next == nil {
		next = events.NoopEmitter{}
	}
	m := &Metrics{
		next: next,
		reg:  prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockmint_events_total",
			Help: "Engine events by type.",
		}, []string{"type"}),
		mintedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_minted_units_total",
			Help: "Reward token units minted through settlement.",
		}),
		loanPrincipal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockmint_loan_principal_total",
			Help: "Principal advanced across all opened loans.",
		}),
		activeLiquidations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockmint_active_liquidations",
			Help: "Auctions currently open.",
		}),
	}
	m.reg.MustRegister(m.eventsTotal, m.mintedTotal, m.loanPrincipal, m.activeLiquidations)
	return m
}

// Emit satisfies events.Emitter.
func (m *Metrics) Emit(evt events.Event) {
	if evt != nil {
		m.eventsTotal.WithLabelValues(evt.EventType()).Inc()
		switch payload := evt.(type) {
		case events.MintSettled:
			m.mintedTotal.Add(toFloat(payload.Amount))
		case events.LoanOpened:
			m.loanPrincipal.Add(toFloat(payload.Principal))
		case events.LiquidationStarted:
			m.activeLiquidations.Inc()
		case events.LiquidationSettled:
			m.activeLiquidations.Dec()
		}
	}
	m.next.Emit(evt)
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// Package metrics holds the Prometheus collectors shared by the bot's components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Scrape outcomes.
const (
	OutcomeTrackable    = "trackable"
	OutcomeNotTrackable = "not_trackable"
	OutcomeError        = "error"
	OutcomePanic        = "panic"
	OutcomeIncomplete   = "incomplete"
	OutcomeAbandoned    = "abandoned"
)

var (
	ScrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_scrapes_total",
			Help: "Total number of scrape requests by outcome",
		},
		[]string{"outcome"},
	)
	ScrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricetracker_scrape_duration_seconds",
			Help:    "Time spent in the scraping oracle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)
	ScrapesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricetracker_scrapes_in_flight",
			Help: "Number of oracle calls currently running",
		},
	)
	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_reconcile_passes_total",
			Help: "Total number of reconciliation passes by result",
		},
		[]string{"result"},
	)
	ItemsCheckedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_items_checked_total",
			Help: "Tracked items visited by reconciliation, by result",
		},
		[]string{"result"},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_alerts_total",
			Help: "Price alerts by delivery result",
		},
		[]string{"result"},
	)
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_updates_total",
			Help: "Inbound chat updates by kind",
		},
		[]string{"kind"},
	)
	FlowErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricetracker_flow_errors_total",
			Help: "Conversation flow failures caught by the error handler",
		},
		[]string{"flow"},
	)
)

func init() {
	prometheus.MustRegister(ScrapesTotal)
	prometheus.MustRegister(ScrapeDuration)
	prometheus.MustRegister(ScrapesInFlight)
	prometheus.MustRegister(PassesTotal)
	prometheus.MustRegister(ItemsCheckedTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(UpdatesTotal)
	prometheus.MustRegister(FlowErrorsTotal)
}

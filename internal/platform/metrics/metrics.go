package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineswipe_vote_requests_total",
		Help: "Vote submissions received, by outcome",
	}, []string{"status"})

	cardRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineswipe_card_requests_total",
		Help: "Next-card selections, by outcome",
	}, []string{"outcome"})

	leaderboardQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cineswipe_leaderboard_queries_total",
		Help: "Leaderboard queries served",
	})

	catalogRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cineswipe_catalog_refresh_total",
		Help: "Catalog refresh runs, by outcome",
	}, []string{"outcome"})

	catalogRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cineswipe_catalog_refresh_duration_seconds",
		Help:    "Time spent refreshing the catalog from the provider",
		Buckets: prometheus.DefBuckets,
	})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cineswipe_provider_request_duration_seconds",
		Help:    "Outbound catalog provider request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveCardRequest(outcome string) {
	cardRequestsTotal.WithLabelValues(outcome).Inc()
}

func IncLeaderboardQuery() {
	leaderboardQueriesTotal.Inc()
}

func ObserveCatalogRefresh(outcome string, seconds float64) {
	catalogRefreshTotal.WithLabelValues(outcome).Inc()
	catalogRefreshDuration.Observe(seconds)
}

func ObserveProviderRequest(endpoint, status string, seconds float64) {
	providerRequestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}

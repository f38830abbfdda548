// Package metrics exposes Prometheus collectors for the matchmaking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ListingsCreated counts listings written by the create operation
	ListingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsbuddy",
		Name:      "listings_created_total",
		Help:      "Match listings created.",
	})

	// JoinAttempts counts join attempts by outcome
	JoinAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsbuddy",
		Name:      "join_attempts_total",
		Help:      "Join attempts by outcome.",
	}, []string{"result"})

	// ListingsDeleted counts successful deletions
	ListingsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsbuddy",
		Name:      "listings_deleted_total",
		Help:      "Match listings deleted.",
	})

	// FeedSnapshots counts snapshots delivered by the listing stream
	FeedSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsbuddy",
		Name:      "feed_snapshots_total",
		Help:      "Full listing snapshots received from the store.",
	})

	// FeedListings is the size of the most recent snapshot
	FeedListings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsbuddy",
		Name:      "feed_listings",
		Help:      "Listings in the most recent snapshot.",
	})

	// WSConnections is the number of open WebSocket connections
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sportsbuddy",
		Name:      "ws_connections",
		Help:      "Open WebSocket connections.",
	})

	// PushDeliveries counts push notification attempts by outcome
	PushDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsbuddy",
		Name:      "push_deliveries_total",
		Help:      "Push notification attempts by outcome.",
	}, []string{"result"})
)

// Registry holds every collector of this package
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ListingsCreated,
		JoinAttempts,
		ListingsDeleted,
		FeedSnapshots,
		FeedListings,
		WSConnections,
		PushDeliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whiteboard_ws_connections",
		Help: "Current number of active websocket connections",
	})
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whiteboard_broadcasts_total",
		Help: "Total number of room broadcasts by event type",
	}, []string{"event"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whiteboard_cache_hits_total",
		Help: "Total number of drawing cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whiteboard_cache_misses_total",
		Help: "Total number of drawing cache misses",
	})
	CacheRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whiteboard_cache_retries_total",
		Help: "Total number of retried cache operations",
	})
)

func Register(reg *prometheus.Registry) {
	reg.MustRegister(WsConnections, BroadcastsTotal, CacheHitsTotal, CacheMissesTotal, CacheRetriesTotal)
}

package experiment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scandata_decode_total",
		Help: "Recordings decoded, by format and result",
	}, []string{"format", "result"})

	decodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scandata_decode_duration_seconds",
		Help:    "Time spent decoding and wrapping a recording",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"format"})

	chainApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scandata_chain_apply_total",
		Help: "Modifier chain passes, by result",
	}, []string{"result"})

	resultCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scandata_result_cache_total",
		Help: "Derived trace cache lookups, by result",
	}, []string{"result"})

	reloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scandata_reload_total",
		Help: "Live recording reloads, by result",
	}, []string{"result"})
)

const (
	resultOK    = "ok"
	resultError = "error"
	resultHit   = "hit"
	resultMiss  = "miss"
)

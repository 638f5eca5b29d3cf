package mapisync

import (
	"github.com/prometheus/client_golang/prometheus"
)

var MergedOperands = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "merged_operands",
})

var CorruptOperands = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "corrupt_operands",
})

var CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "cache_lookups",
}, []string{"result"})

var StateWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "state_writes",
}, []string{"tag", "op"})

var SessionResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "session_results",
}, []string{"result"})

var StateRanges = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "mapisync",
	Subsystem: "store",
	Name:      "state_ranges",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
}, []string{"tag"})

// Collectors lists everything the store exports, pebble internals included.
func (s *Store) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		MergedOperands,
		CorruptOperands,
		CacheLookups,
		StateWrites,
		SessionResults,
		StateRanges,
		NewPebbleCollector(s),
	}
}

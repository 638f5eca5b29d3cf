package mapisync

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

type pebbleMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(m *pebble.Metrics) float64
}

// PebbleCollector exports compaction, memtable and WAL figures of the
// state database.
type PebbleCollector struct {
	store   *Store
	metrics []pebbleMetric
}

func pebbleDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc("mapisync_pebble_"+name, help, nil, nil)
}

func NewPebbleCollector(store *Store) *PebbleCollector {
	return &PebbleCollector{
		store: store,
		metrics: []pebbleMetric{
			// Compaction metrics
			{pebbleDesc("compaction_count_total", "Total number of compactions performed"),
				prometheus.CounterValue, func(m *pebble.Metrics) float64 { return float64(m.Compact.Count) }},
			{pebbleDesc("compaction_move_total", "Total number of move compactions performed"),
				prometheus.CounterValue, func(m *pebble.Metrics) float64 { return float64(m.Compact.MoveCount) }},
			{pebbleDesc("compaction_rewrite_total", "Total number of rewrite compactions performed"),
				prometheus.CounterValue, func(m *pebble.Metrics) float64 { return float64(m.Compact.RewriteCount) }},
			{pebbleDesc("compaction_estimated_debt_bytes", "Estimated number of bytes that need to be compacted to reach a stable state"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.Compact.EstimatedDebt) }},
			{pebbleDesc("compaction_in_progress_bytes", "Number of bytes being compacted currently"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.Compact.InProgressBytes) }},

			// Memtable metrics
			{pebbleDesc("memtable_size_bytes", "Current size of the memtable in bytes"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.MemTable.Size) }},
			{pebbleDesc("memtable_count", "Current count of memtables"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.MemTable.Count) }},

			// WAL metrics
			{pebbleDesc("wal_files", "Number of live WAL files"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.WAL.Files) }},
			{pebbleDesc("wal_size_bytes", "Size of live WAL data in bytes"),
				prometheus.GaugeValue, func(m *pebble.Metrics) float64 { return float64(m.WAL.Size) }},
			{pebbleDesc("wal_bytes_written_total", "Total physical bytes written to the WAL"),
				prometheus.CounterValue, func(m *pebble.Metrics) float64 { return float64(m.WAL.BytesWritten) }},
		},
	}
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, pm := range pc.metrics {
		ch <- pm.desc
	}
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m, err := pc.store.Metrics()
	if err != nil {
		return
	}
	for _, pm := range pc.metrics {
		ch <- prometheus.MustNewConstMetric(pm.desc, pm.kind, pm.value(m))
	}
}

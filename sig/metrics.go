package sig

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Per-stage counts reported by the generator.
var (
	diffsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binsig_diffs_parsed_total",
			Help: "Total number of BinDiff result files parsed",
		},
	)

	functionCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binsig_function_candidates",
			Help: "Function candidates found in the last generation run",
		},
	)

	basicBlockCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binsig_basic_block_candidates",
			Help: "Basic block candidates found in the last generation run",
		},
	)

	overlapsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binsig_overlaps_filtered_total",
			Help: "Total number of candidates removed by the overlap filter",
		},
	)

	signatureBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "binsig_signature_bytes",
			Help: "Literal bytes in the last synthesized raw signature",
		},
	)
)

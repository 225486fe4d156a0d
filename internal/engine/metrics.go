package engine

import (
	"github.com/lazypower/strata/internal/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's collectors on a private registry so several
// engines can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	writes        prometheus.Counter
	searches      prometheus.Counter
	searchMatches prometheus.Counter
	pagingRuns    prometheus.Counter
	migrated      prometheus.Counter
	swept         *prometheus.CounterVec
	tierBytes     *prometheus.GaugeVec
	tierEntries   *prometheus.GaugeVec
}

// NewMetrics registers the strata collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		writes: f.NewCounter(prometheus.CounterOpts{
			Name: "strata_writes_total",
			Help: "Entries written to any tier.",
		}),
		searches: f.NewCounter(prometheus.CounterOpts{
			Name: "strata_searches_total",
			Help: "Searches executed.",
		}),
		searchMatches: f.NewCounter(prometheus.CounterOpts{
			Name: "strata_search_matches_total",
			Help: "Entries matched and materialized by searches.",
		}),
		pagingRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "strata_paging_runs_total",
			Help: "Paging checks that found working memory over threshold.",
		}),
		migrated: f.NewCounter(prometheus.CounterOpts{
			Name: "strata_entries_migrated_total",
			Help: "Entries paged out of working memory.",
		}),
		swept: f.NewCounterVec(prometheus.CounterOpts{
			Name: "strata_swept_entries_total",
			Help: "Entries removed by maintenance sweeps.",
		}, []string{"kind"}),
		tierBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strata_tier_bytes",
			Help: "Serialized size of each tier.",
		}, []string{"tier"}),
		tierEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strata_tier_entries",
			Help: "Number of entries in each tier.",
		}, []string{"tier"}),
	}
}

func (m *Metrics) observeTiers(stats []memory.TierStats) {
	for _, s := range stats {
		m.tierBytes.WithLabelValues(s.Name).Set(float64(s.Bytes))
		m.tierEntries.WithLabelValues(s.Name).Set(float64(s.Entries))
	}
}

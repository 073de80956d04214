package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceCalculationsTotal counts price calculations by pricing mode and outcome.
	PriceCalculationsTotal *prometheus.CounterVec
	// PriceCalculationLatency records calculation latency in milliseconds.
	PriceCalculationLatency *prometheus.HistogramVec
	// ComponentFailuresTotal counts formula components that failed to evaluate.
	ComponentFailuresTotal prometheus.Counter
	// RateLookupsTotal tracks rate cache lookups by result.
	RateLookupsTotal *prometheus.CounterVec
	// RecalcRunsTotal counts batch recalculation runs by outcome.
	RecalcRunsTotal *prometheus.CounterVec
	// RecalcSubjectsTotal counts subjects processed by batch runs by outcome.
	RecalcSubjectsTotal *prometheus.CounterVec
	// RecalcRunDuration records batch run duration in seconds.
	RecalcRunDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_calculations_total",
			Help:      "Count of price calculations by mode and result.",
		}, []string{"mode", "result"})
		PriceCalculationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_calculation_duration_ms",
			Help:      "Latency for price calculations in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"mode"})
		ComponentFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formula_component_failures_total",
			Help:      "Number of formula components that failed to evaluate.",
		})
		RateLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookups_total",
			Help:      "Count of currency rate lookups by cache result.",
		}, []string{"result"})
		RecalcRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_runs_total",
			Help:      "Count of batch recalculation runs by result.",
		}, []string{"result"})
		RecalcSubjectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_subjects_total",
			Help:      "Count of subjects handled by batch recalculation by result.",
		}, []string{"result"})
		RecalcRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalc_run_duration_seconds",
			Help:      "Duration of batch recalculation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		})

		mustRegisterCollector(reg, PriceCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceCalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, PriceCalculationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PriceCalculationLatency = v
			}
		})
		mustRegisterCollector(reg, ComponentFailuresTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ComponentFailuresTotal = v
			}
		})
		mustRegisterCollector(reg, RateLookupsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLookupsTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecalcRunsTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcSubjectsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RecalcSubjectsTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcRunDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				RecalcRunDuration = v
			}
		})
	})
}

// FormulaCacheStats reports the compiled-program memo counters.
type FormulaCacheStats func() (hits, misses uint64, entries int)

// MustRegisterFormulaCacheMetrics exposes the formula memo counters as
// collectors that read the current values at scrape time.
func MustRegisterFormulaCacheMetrics(namespace string, reg prometheus.Registerer, stats FormulaCacheStats) {
	if stats == nil {
		return
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "formula_cache_hits_total",
		Help:      "Compiled formula cache hits.",
	}, func() float64 {
		h, _, _ := stats()
		return float64(h)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "formula_cache_misses_total",
		Help:      "Compiled formula cache misses.",
	}, func() float64 {
		_, m, _ := stats()
		return float64(m)
	})
	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "formula_cache_entries",
		Help:      "Compiled formulas currently memoised.",
	}, func() float64 {
		_, _, n := stats()
		return float64(n)
	})
	mustRegisterCollector(reg, hits, nil)
	mustRegisterCollector(reg, misses, nil)
	mustRegisterCollector(reg, entries, nil)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

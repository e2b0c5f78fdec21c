package inspect

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes an Inspector's statistics as Prometheus metrics,
// satisfying prometheus.Collector so it can be registered directly.
type Collector struct {
	ins *Inspector
	tier string

	loadedModules *prometheus.Desc
	cacheHits     *prometheus.Desc
	cacheMisses   *prometheus.Desc
	cacheEvicts   *prometheus.Desc
	hooksRun      *prometheus.Desc
	hookFailures  *prometheus.Desc
}

// NewCollector builds a Collector reporting ins's stats under the given
// tier label (e.g. "bootstrap", "system", "application", "child").
func NewCollector(ins *Inspector, tier string) *Collector {
	constLabels := prometheus.Labels{"tier": tier}
	return &Collector{
		ins:  ins,
		tier: tier,
		loadedModules: prometheus.NewDesc("quillmod_loaded_modules", "Number of modules currently cached in this loader tier.", nil, constLabels),
		cacheHits:     prometheus.NewDesc("quillmod_cache_hits_total", "Total module cache hits.", nil, constLabels),
		cacheMisses:   prometheus.NewDesc("quillmod_cache_misses_total", "Total module cache misses.", nil, constLabels),
		cacheEvicts:   prometheus.NewDesc("quillmod_cache_evictions_total", "Total module cache evictions.", nil, constLabels),
		hooksRun:      prometheus.NewDesc("quillmod_hooks_run_total", "Total lifecycle hook executions.", nil, constLabels),
		hookFailures:  prometheus.NewDesc("quillmod_hook_failures_total", "Total lifecycle hook failures.", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loadedModules
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheEvicts
	ch <- c.hooksRun
	ch <- c.hookFailures
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.ins.Statistics()
	ch <- prometheus.MustNewConstMetric(c.loadedModules, prometheus.GaugeValue, float64(s.LoadedModules))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.cacheEvicts, prometheus.CounterValue, float64(s.CacheEvicts))
	ch <- prometheus.MustNewConstMetric(c.hooksRun, prometheus.CounterValue, float64(s.HooksRun))
	ch <- prometheus.MustNewConstMetric(c.hookFailures, prometheus.CounterValue, float64(s.HookFailures))
}

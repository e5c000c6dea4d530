package sched

import "github.com/prometheus/client_golang/prometheus"

// Collector exports pool Stats as Prometheus metrics.
type Collector struct {
	pool *Pool

	size          *prometheus.Desc
	running       *prometheus.Desc
	blocked       *prometheus.Desc
	submitted     *prometheus.Desc
	compensations *prometheus.Desc
}

// NewCollector returns a collector for p. name is attached as the "pool" label.
func NewCollector(p *Pool, name string) *Collector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("effex", "pool", metric), help, nil, labels)
	}
	return &Collector{
		pool:          p,
		size:          desc("size", "Number of worker slots."),
		running:       desc("running", "Workers currently holding a slot."),
		blocked:       desc("blocked", "Workers currently in a managed block."),
		submitted:     desc("submitted_total", "Work items that acquired a slot."),
		compensations: desc("compensations_total", "Slots handed back for managed blocks."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.running
	ch <- c.blocked
	ch <- c.submitted
	ch <- c.compensations
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(s.Running))
	ch <- prometheus.MustNewConstMetric(c.blocked, prometheus.GaugeValue, float64(s.Blocked))
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.Submitted))
	ch <- prometheus.MustNewConstMetric(c.compensations, prometheus.CounterValue, float64(s.Compensations))
}

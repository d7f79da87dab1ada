// SPDX-License-Identifier: GPL-3.0

// Package metrics exposes the running simulation's AQM and congestion
// state as Prometheus metrics: a pull-model prometheus.Collector reads a
// consistent snapshot from the single-threaded simulator rather than the
// simulator pushing updates through a channel.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heistp/l4ssim/aqm"
)

// DualQueueSource supplies the current DualQueue state for one bottleneck
// interface.
type DualQueueSource interface {
	Stats() aqm.Stats
}

// PISource supplies the current PI controller probabilities.
type PISource interface {
	P() float64
	PClassic() float64
	PL4S() float64
}

// FlowSource supplies a DCTCP sender's current alpha.
type FlowSource interface {
	Alpha() float64
}

// Collector is a prometheus.Collector over the simulation's AQM and
// congestion-control state, keyed by a run label (typically a UUID) so
// concurrent runs don't collide.
type Collector struct {
	mu sync.Mutex

	runLabel string
	dq       DualQueueSource
	pi       PISource
	flows    map[string]FlowSource

	forcedDrop          *prometheus.Desc
	unforcedClassicDrop *prometheus.Desc
	unforcedClassicMark *prometheus.Desc
	unforcedL4SMark     *prometheus.Desc
	p                   *prometheus.Desc
	pClassic            *prometheus.Desc
	pL4S                *prometheus.Desc
	alpha               *prometheus.Desc
}

// NewCollector returns a new Collector reading dq and pi, labeled with
// runLabel.
func NewCollector(runLabel string, dq DualQueueSource, pi PISource) *Collector {
	constLabels := prometheus.Labels{"run": runLabel}
	return &Collector{
		runLabel: runLabel,
		dq:       dq,
		pi:       pi,
		flows:    make(map[string]FlowSource),
		forcedDrop: prometheus.NewDesc(
			"l4ssim_forced_drop_total", "Packets dropped because the queue was full.",
			nil, constLabels),
		unforcedClassicDrop: prometheus.NewDesc(
			"l4ssim_unforced_classic_drop_total", "Classic coin-flip drops of non-ECN-capable items.",
			nil, constLabels),
		unforcedClassicMark: prometheus.NewDesc(
			"l4ssim_unforced_classic_mark_total", "Classic coin-flip marks.",
			nil, constLabels),
		unforcedL4SMark: prometheus.NewDesc(
			"l4ssim_unforced_l4s_mark_total", "L4S marks, by threshold or coin-flip.",
			nil, constLabels),
		p: prometheus.NewDesc(
			"l4ssim_pi_p", "Current PI controller base probability.",
			nil, constLabels),
		pClassic: prometheus.NewDesc(
			"l4ssim_pi_p_classic", "Current Classic marking/drop probability.",
			nil, constLabels),
		pL4S: prometheus.NewDesc(
			"l4ssim_pi_p_l4s", "Current L4S marking probability.",
			nil, constLabels),
		alpha: prometheus.NewDesc(
			"l4ssim_dctcp_alpha", "Current DCTCP smoothed ECN-marked-byte fraction.",
			[]string{"flow"}, constLabels),
	}
}

// AddFlow registers a DCTCP flow's alpha under the given label, for
// Collect to report on each scrape.
func (c *Collector) AddFlow(label string, f FlowSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flows[label] = f
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.forcedDrop
	ch <- c.unforcedClassicDrop
	ch <- c.unforcedClassicMark
	ch <- c.unforcedL4SMark
	ch <- c.p
	ch <- c.pClassic
	ch <- c.pL4S
	ch <- c.alpha
}

// Collect implements prometheus.Collector, reading a consistent snapshot
// of the simulator's current state.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.dq.Stats()
	ch <- prometheus.MustNewConstMetric(c.forcedDrop, prometheus.CounterValue, float64(st.ForcedDrop))
	ch <- prometheus.MustNewConstMetric(c.unforcedClassicDrop, prometheus.CounterValue, float64(st.UnforcedClassicDrop))
	ch <- prometheus.MustNewConstMetric(c.unforcedClassicMark, prometheus.CounterValue, float64(st.UnforcedClassicMark))
	ch <- prometheus.MustNewConstMetric(c.unforcedL4SMark, prometheus.CounterValue, float64(st.UnforcedL4SMark))

	ch <- prometheus.MustNewConstMetric(c.p, prometheus.GaugeValue, c.pi.P())
	ch <- prometheus.MustNewConstMetric(c.pClassic, prometheus.GaugeValue, c.pi.PClassic())
	ch <- prometheus.MustNewConstMetric(c.pL4S, prometheus.GaugeValue, c.pi.PL4S())

	for label, f := range c.flows {
		ch <- prometheus.MustNewConstMetric(c.alpha, prometheus.GaugeValue, f.Alpha(), label)
	}
}

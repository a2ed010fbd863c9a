// Package hsmetrics collects Prometheus metrics for the consensus engine
// (view duration, vote/QC/TC formation, DA certificate latency) plus
// process-level resource gauges, for the observability surface spec.md
// §7 ties error handling into.
//
// Grounded on onflow-flow-go's module/metrics package (e.g.
// module/metrics/herocache.go's Collector-struct-of-typed-metrics,
// constructed-and-registered-once, one update method per event shape),
// using github.com/prometheus/client_golang (promoted here from an
// indirect-only teacher dependency to direct) and
// github.com/shirou/gopsutil/v3 (present directly in both onflow-flow-go
// and canopy's go.mod) for process resource sampling.
package hsmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "hotshot"

// Collector holds every metric the consensus engine reports.
type Collector struct {
	viewDuration prometheus.Histogram

	votesCollected   prometheus.Counter
	qcFormedTotal    prometheus.Counter
	tcFormedTotal    prometheus.Counter
	daCertFormed     prometheus.Counter
	qcFormationTime  prometheus.Histogram
	tcFormationTime  prometheus.Histogram
	commitsTotal     prometheus.Counter
	currentView      prometheus.Gauge
	lastCommitHeight prometheus.Gauge

	processCPUPercent prometheus.Gauge
	processRSSBytes   prometheus.Gauge
}

// NewCollector builds and registers every metric against registrar.
func NewCollector(registrar prometheus.Registerer) *Collector {
	c := &Collector{
		viewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "view_duration_seconds",
			Help:      "wall-clock time spent in each view, from entry to advancement",
			Buckets:   prometheus.DefBuckets,
		}),
		votesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "votes_collected_total", Help: "total votes accepted by the aggregator",
		}),
		qcFormedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "qc_formed_total", Help: "total quorum certificates formed",
		}),
		tcFormedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "tc_formed_total", Help: "total timeout certificates formed",
		}),
		daCertFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "da",
			Name: "cert_formed_total", Help: "total data availability certificates formed",
		}),
		qcFormationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "qc_formation_seconds", Help: "time from first vote to quorum certificate formation",
			Buckets: prometheus.DefBuckets,
		}),
		tcFormationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "tc_formation_seconds", Help: "time from first timeout vote to timeout certificate formation",
			Buckets: prometheus.DefBuckets,
		}),
		commitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "commits_total", Help: "total blocks committed via the three-chain rule",
		}),
		currentView: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "current_view", Help: "the replica's current view number",
		}),
		lastCommitHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "consensus",
			Name: "last_commit_view", Help: "view of the most recently committed block",
		}),
		processCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "process",
			Name: "cpu_percent", Help: "process CPU utilization percentage",
		}),
		processRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "process",
			Name: "rss_bytes", Help: "process resident set size in bytes",
		}),
	}

	registrar.MustRegister(
		c.viewDuration,
		c.votesCollected, c.qcFormedTotal, c.tcFormedTotal, c.daCertFormed,
		c.qcFormationTime, c.tcFormationTime,
		c.commitsTotal, c.currentView, c.lastCommitHeight,
		c.processCPUPercent, c.processRSSBytes,
	)

	return c
}

// ObserveViewDuration records d as one view's duration.
func (c *Collector) ObserveViewDuration(d time.Duration) { c.viewDuration.Observe(d.Seconds()) }

// OnVoteCollected is called whenever the aggregator accepts a vote.
func (c *Collector) OnVoteCollected() { c.votesCollected.Inc() }

// OnQCFormed records a quorum certificate's formation, d after the first
// vote targeting it was accepted.
func (c *Collector) OnQCFormed(d time.Duration) {
	c.qcFormedTotal.Inc()
	c.qcFormationTime.Observe(d.Seconds())
}

// OnTCFormed records a timeout certificate's formation, d after the first
// timeout vote targeting it was accepted.
func (c *Collector) OnTCFormed(d time.Duration) {
	c.tcFormedTotal.Inc()
	c.tcFormationTime.Observe(d.Seconds())
}

// OnDACertFormed is called whenever the DA task finalizes a certificate.
func (c *Collector) OnDACertFormed() { c.daCertFormed.Inc() }

// OnCommit records a successful three-chain commit at view.
func (c *Collector) OnCommit(view uint64) {
	c.commitsTotal.Inc()
	c.lastCommitHeight.Set(float64(view))
}

// SetCurrentView records the replica's current view.
func (c *Collector) SetCurrentView(view uint64) { c.currentView.Set(float64(view)) }

// SampleProcess updates the process resource gauges by querying the OS
// via gopsutil. Intended to be called periodically from a background
// ticker, not from the hot consensus path.
func (c *Collector) SampleProcess(ctx context.Context, pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}

	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		c.processCPUPercent.Set(pct)
	}

	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		c.processRSSBytes.Set(float64(mem.RSS))
	}

	return nil
}

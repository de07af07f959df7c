package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dstcore"

var (
	pushedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pool", "tasks_pushed_total"),
		"Tasks accepted by the pool.",
		[]string{"pool"}, nil,
	)
	completedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pool", "tasks_completed_total"),
		"Tasks that finished executing, by outcome.",
		[]string{"pool", "outcome"}, nil,
	)
	latencyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pool", "task_latency_seconds"),
		"Task execution latency.",
		[]string{"pool", "stat"}, nil,
	)
	throughputDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pool", "throughput_tasks_per_second"),
		"Completed tasks per second since the last window reset.",
		[]string{"pool"}, nil,
	)
	gaugeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "pool", "gauge"),
		"Point in time pool gauges such as workers, queued and outstanding tasks.",
		[]string{"pool", "name"}, nil,
	)
)

// GaugeFunc はスクレイプ時に読み取るゲージ値を返す
type GaugeFunc func() map[string]float64

// Collector は Metrics を Prometheus の Collector として公開する
type Collector struct {
	pool    string
	metrics *Metrics
	gauges  GaugeFunc
}

// NewCollector は pool ラベル付きの Collector を作成する。
// gauges は nil でもよい。
func NewCollector(pool string, m *Metrics, gauges GaugeFunc) *Collector {
	return &Collector{pool: pool, metrics: m, gauges: gauges}
}

// Describe は prometheus.Collector を実装する
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pushedDesc
	ch <- completedDesc
	ch <- latencyDesc
	ch <- throughputDesc
	ch <- gaugeDesc
}

// Collect は prometheus.Collector を実装する
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(pushedDesc, prometheus.CounterValue,
		float64(snap.PushedTasks), c.pool)
	ch <- prometheus.MustNewConstMetric(completedDesc, prometheus.CounterValue,
		float64(snap.SucceededTasks), c.pool, "success")
	ch <- prometheus.MustNewConstMetric(completedDesc, prometheus.CounterValue,
		float64(snap.FailedTasks), c.pool, "failure")
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue,
		snap.AverageLatency.Seconds(), c.pool, "avg")
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue,
		snap.P99Latency.Seconds(), c.pool, "p99")
	ch <- prometheus.MustNewConstMetric(throughputDesc, prometheus.GaugeValue,
		snap.Throughput, c.pool)

	if c.gauges == nil {
		return
	}
	for name, v := range c.gauges() {
		ch <- prometheus.MustNewConstMetric(gaugeDesc, prometheus.GaugeValue, v, c.pool, name)
	}
}

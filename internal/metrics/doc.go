// Package metrics provides task execution metrics collection and reporting.
//
// Metrics collects statistics about task latency, success/failure counts,
// and throughput (tasks per second). It is thread-safe and optimized for
// high-concurrency scenarios; every worker of a pool records into the same
// Metrics.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	m.RecordPush()
//	t := timing.NewTimer()
//	// ... run the task ...
//	m.RecordSuccess(t.Total())
//
//	fmt.Printf("Completed: %d, Throughput: %.2f/s, P99: %v\n",
//	    m.CompletedTasks(), m.Throughput(), m.P99Latency())
//
//	snap := m.Snapshot()
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	m := metrics.NewWithConfig(config)
//
// # Prometheus
//
// Collector exposes a Metrics through the Prometheus client. Register it and
// serve the registry with promhttp:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector("pool-1a2b3c4d", m, nil))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Thread Safety
//
// Counters are atomic and latency samples are mutex guarded, so all
// operations are safe for concurrent access.
package metrics

package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := New()

	if m.CompletedTasks() != 0 {
		t.Errorf("expected 0 completed tasks, got %d", m.CompletedTasks())
	}
	if m.PushedTasks() != 0 {
		t.Errorf("expected 0 pushed tasks, got %d", m.PushedTasks())
	}
	if m.maxLatencySamples != DefaultConfig().MaxLatencySamples {
		t.Errorf("expected %d samples, got %d", DefaultConfig().MaxLatencySamples, m.maxLatencySamples)
	}
}

func TestNewWithConfig(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 5})
	for i := range 10 {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}
	if len(m.latencies) != 5 {
		t.Errorf("expected 5 samples kept, got %d", len(m.latencies))
	}

	if NewWithConfig(Config{}).maxLatencySamples != DefaultConfig().MaxLatencySamples {
		t.Error("expected zero MaxLatencySamples to use the default")
	}
}

func TestMetricsRecordSuccess(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	if m.CompletedTasks() != 3 {
		t.Errorf("expected 3 completed tasks, got %d", m.CompletedTasks())
	}
	if m.SucceededTasks() != 3 {
		t.Errorf("expected 3 succeeded tasks, got %d", m.SucceededTasks())
	}
	if m.FailedTasks() != 0 {
		t.Errorf("expected 0 failed tasks, got %d", m.FailedTasks())
	}
}

func TestMetricsRecordFailure(t *testing.T) {
	m := New()

	m.RecordFailure(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)

	if m.CompletedTasks() != 2 {
		t.Errorf("expected 2 completed tasks, got %d", m.CompletedTasks())
	}
	if m.FailedTasks() != 1 {
		t.Errorf("expected 1 failed task, got %d", m.FailedTasks())
	}
}

func TestMetricsRecordPush(t *testing.T) {
	m := New()

	for range 7 {
		m.RecordPush()
	}
	m.RecordSuccess(time.Millisecond)

	if m.PushedTasks() != 7 {
		t.Errorf("expected 7 pushed tasks, got %d", m.PushedTasks())
	}
	if m.CompletedTasks() != 1 {
		t.Errorf("expected 1 completed task, got %d", m.CompletedTasks())
	}
}

func TestMetricsAverageLatency(t *testing.T) {
	m := New()

	if m.AverageLatency() != 0 {
		t.Errorf("expected 0 average latency with no tasks, got %v", m.AverageLatency())
	}

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(30 * time.Millisecond)

	avg := m.AverageLatency()
	expected := 20 * time.Millisecond

	if avg != expected {
		t.Errorf("expected average latency %v, got %v", expected, avg)
	}
}

func TestMetricsErrorRate(t *testing.T) {
	m := New()

	if m.ErrorRate() != 0 {
		t.Errorf("expected error rate 0 with no tasks, got %f", m.ErrorRate())
	}

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(10 * time.Millisecond)

	rate := m.ErrorRate()
	if rate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", rate)
	}
}

func TestMetricsP99Latency(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	p99 := m.P99Latency()
	// P99 should be around 99ms or 100ms
	if p99 < 99*time.Millisecond || p99 > 100*time.Millisecond {
		t.Errorf("expected P99 around 99-100ms, got %v", p99)
	}
}

func TestMetricsReset(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)

	m.Reset()

	// Window metrics should be reset
	if m.Throughput() != 0 {
		t.Errorf("expected throughput 0 after reset, got %f", m.Throughput())
	}
	if m.P99Latency() != 0 {
		t.Errorf("expected P99 0 after reset, got %v", m.P99Latency())
	}

	// But totals should remain
	if m.CompletedTasks() != 2 {
		t.Errorf("expected total 2 after reset, got %d", m.CompletedTasks())
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordPush()
				m.RecordSuccess(time.Millisecond)
			}
		}()
	}

	wg.Wait()

	if m.CompletedTasks() != 10000 {
		t.Errorf("expected 10000 tasks, got %d", m.CompletedTasks())
	}
	if m.PushedTasks() != 10000 {
		t.Errorf("expected 10000 pushes, got %d", m.PushedTasks())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := New()

	m.RecordPush()
	m.RecordPush()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(20 * time.Millisecond)

	snap := m.Snapshot()

	if snap.PushedTasks != 2 {
		t.Errorf("expected 2 pushed, got %d", snap.PushedTasks)
	}
	if snap.CompletedTasks != 2 {
		t.Errorf("expected 2 completed, got %d", snap.CompletedTasks)
	}
	if snap.SucceededTasks != 1 {
		t.Errorf("expected 1 succeeded, got %d", snap.SucceededTasks)
	}
	if snap.FailedTasks != 1 {
		t.Errorf("expected 1 failed, got %d", snap.FailedTasks)
	}
	if snap.AverageLatency != 15*time.Millisecond {
		t.Errorf("expected 15ms average, got %v", snap.AverageLatency)
	}
}

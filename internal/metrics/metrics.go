package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Config はメトリクスの設定
type Config struct {
	// MaxLatencySamples はP99計算用に保持するレイテンシサンプル数の上限
	MaxLatencySamples int `json:"max_latency_samples" yaml:"max_latency_samples"`
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: 1000,
	}
}

// Metrics はタスク実行のメトリクスを収集する
type Metrics struct {
	pushedTasks    atomic.Uint64
	completedTasks atomic.Uint64
	succeededTasks atomic.Uint64
	failedTasks    atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowTasks       uint64
	latencies         []time.Duration
	maxLatencySamples int
}

// New はデフォルト設定でメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は指定した設定でメトリクスを作成する
func NewWithConfig(cfg Config) *Metrics {
	if cfg.MaxLatencySamples <= 0 {
		cfg.MaxLatencySamples = DefaultConfig().MaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, cfg.MaxLatencySamples),
		maxLatencySamples: cfg.MaxLatencySamples,
	}
}

// RecordPush はキューに受け付けたタスクを記録する
func (m *Metrics) RecordPush() {
	m.pushedTasks.Add(1)
}

// RecordSuccess は正常終了したタスクを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.record(latency)
	m.succeededTasks.Add(1)
}

// RecordFailure はpanicしたタスクを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.record(latency)
	m.failedTasks.Add(1)
}

func (m *Metrics) record(latency time.Duration) {
	m.completedTasks.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowTasks++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// PushedTasks は受け付けたタスク数を返す
func (m *Metrics) PushedTasks() uint64 {
	return m.pushedTasks.Load()
}

// CompletedTasks は実行を終えたタスク数を返す（成功・失敗の合計）
func (m *Metrics) CompletedTasks() uint64 {
	return m.completedTasks.Load()
}

// SucceededTasks は成功タスク数を返す
func (m *Metrics) SucceededTasks() uint64 {
	return m.succeededTasks.Load()
}

// FailedTasks は失敗タスク数を返す
func (m *Metrics) FailedTasks() uint64 {
	return m.failedTasks.Load()
}

// Throughput は直近ウィンドウの毎秒完了タスク数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowTasks) / elapsed
}

// OverallThroughput は開始からの平均スループットを返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.completedTasks.Load()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.completedTasks.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := slices.Clone(m.latencies)
	slices.Sort(sorted)

	idx := min(int(float64(len(sorted))*0.99), len(sorted)-1)
	return sorted[idx]
}

// ErrorRate は失敗率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.completedTasks.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedTasks.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowTasks = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	PushedTasks       uint64        `json:"pushed_tasks"`
	CompletedTasks    uint64        `json:"completed_tasks"`
	SucceededTasks    uint64        `json:"succeeded_tasks"`
	FailedTasks       uint64        `json:"failed_tasks"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
	P99Latency        time.Duration `json:"p99_latency_ns"`
	ErrorRate         float64       `json:"error_rate"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		PushedTasks:       m.PushedTasks(),
		CompletedTasks:    m.CompletedTasks(),
		SucceededTasks:    m.SucceededTasks(),
		FailedTasks:       m.FailedTasks(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageLatency:    m.AverageLatency(),
		P99Latency:        m.P99Latency(),
		ErrorRate:         m.ErrorRate(),
		Elapsed:           time.Since(m.startTime),
	}
}

package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dstcore/internal/events"
	"dstcore/internal/logger"
	"dstcore/internal/mathx"
	"dstcore/internal/random"
	"dstcore/internal/timing"
	"dstcore/internal/version"
	"dstcore/internal/worker"
)

// ErrAlreadyRunning は実行中のエンジンで Run が呼ばれたことを表す
var ErrAlreadyRunning = errors.New("scenario is already running")

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名
	Description string // 説明

	// プール設定（Logger と EventBus はエンジンが設定する）
	Pool worker.PoolConfig

	// 負荷設定
	Pushers        int           // 同時に Push するゴルーチン数
	TasksPerPusher int           // 1ゴルーチンあたりのタスク数
	TaskTime       time.Duration // タスク1件の実行時間
	TaskJitter     time.Duration // 実行時間の揺らぎ（±）
	FailRate       float64       // タスクが panic する確率（0〜1）

	Seed       uint64 // 乱数シード（0で時刻から生成）
	CheckOrder bool   // 実行順序が Push 順と一致するか検証する（ワーカー1・Pusher1のみ）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:           "default",
		Description:    "Default scenario",
		Pool:           worker.DefaultPoolConfig(),
		Pushers:        4,
		TasksPerPusher: 250,
		TaskTime:       time.Millisecond,
		TaskJitter:     0,
		FailRate:       0,
	}
}

// TotalTasks は投入予定のタスク総数を返す
func (c Config) TotalTasks() int {
	return c.Pushers * c.TasksPerPusher
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Pushers < 1 {
		return fmt.Errorf("pushers must be at least 1")
	}
	if c.TasksPerPusher < 0 {
		return fmt.Errorf("tasks per pusher must be non-negative")
	}
	if c.TaskTime < 0 || c.TaskJitter < 0 {
		return fmt.Errorf("task time and jitter must be non-negative")
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		return fmt.Errorf("fail rate must be between 0 and 1")
	}
	if c.Pool.Workers > worker.MaxWorkers {
		return fmt.Errorf("workers must be at most %d", worker.MaxWorkers)
	}
	if c.CheckOrder && (max(c.Pool.Workers, 1) != 1 || c.Pushers != 1) {
		return fmt.Errorf("order check requires exactly one worker and one pusher")
	}
	return nil
}

// Result はシナリオ実行結果
type Result struct {
	RunID        string        `json:"run_id"`
	ScenarioName string        `json:"scenario"`
	PoolID       string        `json:"pool_id"`
	Seed         uint64        `json:"seed"`
	Workers      int           `json:"workers"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration_ns"`
	Cancelled    bool          `json:"cancelled"`

	// タスク統計
	Expected   uint64        `json:"expected"`
	Pushed     uint64        `json:"pushed"`
	Executed   uint64        `json:"executed"`
	Succeeded  uint64        `json:"succeeded"`
	Failed     uint64        `json:"failed"`
	ErrorRate  float64       `json:"error_rate"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
	P99Latency time.Duration `json:"p99_latency_ns"`
	Throughput float64       `json:"throughput"`

	// 順序検証
	OrderChecked   bool `json:"order_checked"`
	OrderPreserved bool `json:"order_preserved"`
}

// ExactlyOnce は受け付けた全タスクがちょうど1回ずつ実行されたかを返す
func (r *Result) ExactlyOnce() bool {
	return r.Executed == r.Pushed
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger
	tracer   trace.Tracer

	mu      sync.RWMutex
	running bool
	pool    *worker.Pool
	last    *Result
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Default,
		tracer: otel.Tracer(tracerName),
	}
}

const tracerName = "dstcore/internal/scenario"

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l
}

// SetTracerProvider はスパンの出力先を設定する（未設定ならグローバルのプロバイダ）
func (e *Engine) SetTracerProvider(tp trace.TracerProvider) {
	e.tracer = tp.Tracer(tracerName)
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// run はタスク実行中に共有する状態
type run struct {
	executed atomic.Uint64
	pushed   atomic.Uint64

	orderMu sync.Mutex
	order   []int
}

// Run はシナリオを実行する
// ctx がキャンセルされると投入を打ち切り、投入済みのタスクを実行し終えてから戻る
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.pool = nil
		e.mu.Unlock()
	}()

	seed := e.config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	result := &Result{
		RunID:        uuid.NewString(),
		ScenarioName: e.config.Name,
		Seed:         seed,
		Expected:     uint64(e.config.TotalTasks()),
		StartTime:    time.Now(),
		OrderChecked: e.config.CheckOrder,
	}

	ctx, span := e.tracer.Start(ctx, "scenario.run", trace.WithAttributes(
		attribute.String("dstcore.run_id", result.RunID),
		attribute.String("dstcore.scenario", e.config.Name),
		attribute.String("dstcore.seed", fmt.Sprint(seed)),
		attribute.Int("dstcore.pushers", e.config.Pushers),
		attribute.Int64("dstcore.tasks.expected", int64(result.Expected)),
	))
	defer span.End()

	e.log.Info("", "=== Scenario '%s' started (run %s, seed %d) ===", e.config.Name, result.RunID[:8], seed)
	e.log.Info("", "Description: %s", e.config.Description)

	poolConfig := e.config.Pool
	poolConfig.Logger = e.log
	poolConfig.EventBus = e.eventBus

	state := &run{}
	timer := timing.NewTimer()
	err := worker.RunWithConfig(poolConfig, func(p *worker.Pool) error {
		e.mu.Lock()
		e.pool = p
		e.mu.Unlock()

		result.PoolID = p.ID()
		result.Workers = p.Workers()
		e.publish(events.NewRunStartedEvent(p.ID(), result.RunID, e.config.Name))

		span.SetAttributes(
			attribute.String("dstcore.pool_id", p.ID()),
			attribute.Int("dstcore.workers", p.Workers()),
		)

		pushErr := e.pushAll(ctx, p, seed, state)

		_, drain := e.tracer.Start(ctx, "scenario.drain", trace.WithAttributes(
			attribute.Int("dstcore.outstanding", p.Outstanding()),
		))
		p.Wait()
		drain.End()

		e.collectResults(p, state, result)
		e.publish(events.NewRunCompletedEvent(p.ID(), result.RunID, e.config.Name, pushErr))
		return pushErr
	})

	result.EndTime = time.Now()
	result.Duration = timer.Total()
	result.Cancelled = ctx.Err() != nil && result.Pushed < result.Expected
	if secs := result.Duration.Seconds(); secs > 0 {
		result.Throughput = float64(result.Executed) / secs
	}

	e.mu.Lock()
	e.last = result
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("dstcore.tasks.pushed", int64(result.Pushed)),
		attribute.Int64("dstcore.tasks.executed", int64(result.Executed)),
		attribute.Int64("dstcore.tasks.failed", int64(result.Failed)),
		attribute.Bool("dstcore.cancelled", result.Cancelled),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("scenario %q failed: %w", e.config.Name, err)
	}

	e.log.Info("", "=== Scenario '%s' completed ===", e.config.Name)
	return result, nil
}

// pushAll は Pushers 個のゴルーチンからタスクを投入する
// 各ゴルーチンは seed+番号 の乱数列を使うので、同じシードなら同じタスク列になる
func (e *Engine) pushAll(ctx context.Context, p *worker.Pool, seed uint64, state *run) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range e.config.Pushers {
		g.Go(func() error {
			_, span := e.tracer.Start(gctx, "scenario.pusher", trace.WithAttributes(attribute.Int("dstcore.pusher", i)))
			pushed := 0
			defer func() {
				span.SetAttributes(attribute.Int("dstcore.tasks.pushed", pushed))
				span.End()
			}()

			rng := random.New(seed + uint64(i))
			for j := range e.config.TasksPerPusher {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				seq := i*e.config.TasksPerPusher + j
				if err := p.Push(e.newTask(seq, rng, state)); err != nil {
					span.RecordError(err)
					return fmt.Errorf("pusher %d: push %d: %w", i, j, err)
				}
				state.pushed.Add(1)
				pushed++
			}
			return nil
		})
	}

	return g.Wait()
}

// newTask はシナリオ設定に従って動作するタスクを作る
func (e *Engine) newTask(seq int, rng *random.Generator, state *run) worker.Task {
	d := e.taskDuration(rng)
	fail := rng.Probability(e.config.FailRate)
	checkOrder := e.config.CheckOrder

	return func() {
		state.executed.Add(1)
		if checkOrder {
			state.orderMu.Lock()
			state.order = append(state.order, seq)
			state.orderMu.Unlock()
		}
		if d > 0 {
			time.Sleep(d)
		}
		if fail {
			panic(fmt.Sprintf("injected failure in task %d", seq))
		}
	}
}

// taskDuration は TaskTime ± TaskJitter の実行時間を返す
func (e *Engine) taskDuration(rng *random.Generator) time.Duration {
	d := e.config.TaskTime
	if j := e.config.TaskJitter; j > 0 {
		d += rng.Duration(2*j+1) - j
	}
	return mathx.Clamp(d, 0, e.config.TaskTime+e.config.TaskJitter)
}

// collectResults は結果を収集する
func (e *Engine) collectResults(p *worker.Pool, state *run, result *Result) {
	snapshot := p.Metrics().Snapshot()
	result.Pushed = state.pushed.Load()
	result.Executed = state.executed.Load()
	result.Succeeded = snapshot.SucceededTasks
	result.Failed = snapshot.FailedTasks
	result.ErrorRate = snapshot.ErrorRate
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency

	if result.OrderChecked {
		state.orderMu.Lock()
		result.OrderPreserved = slices.IsSorted(state.order) && len(state.order) == int(result.Executed)
		state.orderMu.Unlock()
	}
}

func (e *Engine) publish(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  dstcore:        %s
  Run ID:         %s
  Pool ID:        %s
  Seed:           %d
  Workers:        %d
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Cancelled:      %t

TASK METRICS
------------
  Expected:         %d
  Pushed:           %d
  Executed:         %d
  Succeeded:        %d
  Failed:           %d
  Error Rate:       %.2f%%
  Avg Latency:      %v
  P99 Latency:      %v
  Throughput:       %.2f tasks/s

INVARIANTS
----------
  Exactly Once:     %s
`,
		r.ScenarioName,
		version.Current,
		r.RunID,
		r.PoolID,
		r.Seed,
		r.Workers,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Cancelled,
		r.Expected,
		r.Pushed,
		r.Executed,
		r.Succeeded,
		r.Failed,
		r.ErrorRate*100,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.Throughput,
		passFail(r.ExactlyOnce()),
	)

	if r.OrderChecked {
		report += fmt.Sprintf("  FIFO Order:       %s\n", passFail(r.OrderPreserved))
	}

	report += "\n================================================================================"

	return report
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// PoolStats は実行中のプールの状態を返す（実行中でなければ nil）
func (e *Engine) PoolStats() *worker.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pool == nil {
		return nil
	}
	stats := e.pool.Stats()
	return &stats
}

// Pool は実行中のプールを返す（実行中でなければ nil）
func (e *Engine) Pool() *worker.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

// LastResult は直近の実行結果を返す
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"dstcore/internal/events"
	"dstcore/internal/logger"
	"dstcore/internal/metrics"
)

// MaxWorkers は1つのプールで起動できるワーカー数の上限
const MaxWorkers = 1 << 14

// Task はワーカーが実行するタスクを表す
type Task func()

// State はプールのライフサイクル状態
type State int32

const (
	StateRunning  State = iota // タスクを受け付けている
	StateDraining              // 受付を停止し、残りを実行中
	StateStopped               // 全ワーカーが終了した
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Workers    int  // ワーカー数（1未満は1に補正）
	PinWorkers bool // Linux で各ワーカーを CPU に固定する

	Logger    *logger.Logger // nil なら logger.Default
	OnFailure func(error)    // タスクが panic したときに *TaskError で呼ばれる
	EventBus  *events.Bus    // ライフサイクルイベントの通知先（任意）
	Metrics   metrics.Config
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers: DefaultWorkers(),
		Metrics: metrics.DefaultConfig(),
	}
}

// Pool は固定数のワーカーと共有タスクキューを管理する
type Pool struct {
	id         string
	scope      string
	numWorkers int
	queue      *taskQueue
	wg         sync.WaitGroup
	state      atomic.Int32
	closeOnce  sync.Once

	pin  bool
	cpus []int

	log         *logger.Logger
	metrics     *metrics.Metrics
	failures    *events.Signal[error]
	fireFailure func(error)
	onFailure   func(error)
	bus         atomic.Pointer[events.Bus]
}

// New は workers 個のワーカーでプールを作成し、起動する
func New(workers int) (*Pool, error) {
	config := DefaultPoolConfig()
	config.Workers = workers
	return NewWithConfig(config)
}

// NewWithConfig は設定を指定してプールを作成し、起動する
func NewWithConfig(config PoolConfig) (*Pool, error) {
	numWorkers := max(config.Workers, 1)
	if numWorkers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d workers requested, limit is %d",
			ErrResourceExhausted, numWorkers, MaxWorkers)
	}

	log := config.Logger
	if log == nil {
		log = logger.Default
	}

	id := uuid.NewString()
	failures, fire := events.NewSignal[error]()
	p := &Pool{
		id:          id,
		scope:       "pool-" + id[:8],
		numWorkers:  numWorkers,
		queue:       newTaskQueue(),
		pin:         config.PinWorkers,
		log:         log,
		metrics:     metrics.NewWithConfig(config.Metrics),
		failures:    failures,
		fireFailure: fire,
		onFailure:   config.OnFailure,
	}
	if config.EventBus != nil {
		p.bus.Store(config.EventBus)
	}
	if p.pin {
		p.cpus = affinityCPUs()
		if len(p.cpus) == 0 {
			log.Warn(p.scope, "CPU affinity unavailable, workers will not be pinned")
			p.pin = false
		}
	}

	p.wg.Add(numWorkers)
	for i := range numWorkers {
		go p.work(i)
	}

	p.log.Info(p.scope, "Pool started with %d workers", numWorkers)
	p.publish(events.NewPoolStartedEvent(p.id, numWorkers))
	return p, nil
}

// Push はタスクをキューの末尾に追加する。実行完了は待たない。
func (p *Pool) Push(task Task) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}
	if p.State() != StateRunning {
		return ErrInvalidState
	}
	// 状態チェック後に停止が始まった場合はキュー側で弾かれる
	if !p.queue.push(task) {
		return ErrInvalidState
	}
	p.metrics.RecordPush()
	return nil
}

// Wait はキュー内と実行中のタスクがすべて終わるまでブロックする
// 状態は変えないので何度でも呼べる
func (p *Pool) Wait() {
	p.queue.waitIdle()
}

// Close は受付を停止し、受け付け済みの全タスクの完了とワーカーの終了を待つ
// 複数回・並行に呼んでもよく、どの呼び出しも Stopped になるまで戻らない
// 自身のワーカーの終了を待つため、タスクの中から直接呼ぶとデッドロックする
// タスクから閉じる場合は別のゴルーチンで呼ぶこと（go p.Close()）
// 戻り値は io.Closer に合わせたもので、常に nil
func (p *Pool) Close() error {
	p.closeOnce.Do(p.teardown)
	return nil
}

func (p *Pool) teardown() {
	// キューを先に止めることで、Draining 遷移後に積まれるタスクがないことを保証する
	p.queue.stop()
	p.state.Store(int32(StateDraining))

	outstanding := p.queue.pending()
	p.log.Debug(p.scope, "Pool draining, %d tasks outstanding", outstanding)
	p.publish(events.NewPoolDrainingEvent(p.id, outstanding))

	p.wg.Wait()

	p.state.Store(int32(StateStopped))
	p.log.Info(p.scope, "Pool stopped")
	p.publish(events.NewPoolStoppedEvent(p.id))
}

// Run はプールを作成して fn を呼び、どのような終わり方でもプールを閉じる
// fn の panic は全タスクの完了後に再送出される
func Run(workers int, fn func(*Pool) error) error {
	config := DefaultPoolConfig()
	config.Workers = workers
	return RunWithConfig(config, fn)
}

// RunWithConfig は設定を指定して Run する
func RunWithConfig(config PoolConfig, fn func(*Pool) error) (err error) {
	p, err := NewWithConfig(config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(p)
}

// ID はプールの UUID を返す
func (p *Pool) ID() string {
	return p.id
}

// Scope はログやメトリクスのラベルに使う短いプール名を返す
func (p *Pool) Scope() string {
	return p.scope
}

// Workers はワーカー数を返す
func (p *Pool) Workers() int {
	return p.numWorkers
}

// State は現在のライフサイクル状態を返す
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Outstanding はキュー内と実行中のタスク数を返す
func (p *Pool) Outstanding() int {
	return p.queue.pending()
}

// QueueLen はまだ取り出されていないタスク数を返す
func (p *Pool) QueueLen() int {
	return p.queue.len()
}

// Metrics はプールのタスクメトリクスを返す
func (p *Pool) Metrics() *metrics.Metrics {
	return p.metrics
}

// Failures はタスクの panic を *TaskError で通知するイベントを返す
func (p *Pool) Failures() *events.Signal[error] {
	return p.failures
}

// SetEventBus はライフサイクルイベントの通知先を差し替える（nil で解除）
func (p *Pool) SetEventBus(bus *events.Bus) {
	p.bus.Store(bus)
}

// Collector はプールのメトリクスとゲージを公開する Prometheus Collector を返す
func (p *Pool) Collector() *metrics.Collector {
	return metrics.NewCollector(p.scope, p.metrics, func() map[string]float64 {
		return map[string]float64{
			"workers":     float64(p.numWorkers),
			"queued":      float64(p.QueueLen()),
			"outstanding": float64(p.Outstanding()),
		}
	})
}

// Stats はプールの状態のスナップショット
type Stats struct {
	PoolID      string           `json:"pool_id"`
	State       string           `json:"state"`
	Workers     int              `json:"workers"`
	Queued      int              `json:"queued"`
	Outstanding int              `json:"outstanding"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// Stats は現在の状態のスナップショットを返す
func (p *Pool) Stats() Stats {
	return Stats{
		PoolID:      p.id,
		State:       p.State().String(),
		Workers:     p.numWorkers,
		Queued:      p.QueueLen(),
		Outstanding: p.Outstanding(),
		Metrics:     p.metrics.Snapshot(),
	}
}

func (p *Pool) publish(event events.Event) {
	if bus := p.bus.Load(); bus != nil {
		bus.Publish(event)
	}
}

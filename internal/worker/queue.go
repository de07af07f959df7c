package worker

import (
	"sync"

	fifo "github.com/eapache/queue"
)

// taskQueue は上限なしの FIFO タスクキュー
// 1つのミューテックスと2つの条件変数で保護される
//   - available: タスクが積まれた、または停止が要求された
//   - idle: 未完了タスク（キュー内 + 実行中）が0になった
type taskQueue struct {
	mu        sync.Mutex
	available *sync.Cond
	idle      *sync.Cond

	tasks       *fifo.Queue
	outstanding int
	stopping    bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{tasks: fifo.New()}
	q.available = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	return q
}

// push はタスクを末尾に追加する
// 停止処理が始まっている場合は何も積まずに false を返す
func (q *taskQueue) push(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopping {
		return false
	}
	q.tasks.Add(task)
	q.outstanding++
	q.available.Signal()
	return true
}

// pop は先頭のタスクを取り出す（ワーカー専用）
// タスクが来るまでブロックし、停止中かつ空なら false を返す
func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.tasks.Length() == 0 && !q.stopping {
		q.available.Wait()
	}
	if q.tasks.Length() == 0 {
		return nil, false
	}
	return q.tasks.Remove().(Task), true
}

// done はタスク1件の完了を記録する
func (q *taskQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.outstanding--
	if q.outstanding == 0 {
		q.idle.Broadcast()
	}
}

// waitIdle は未完了タスクが0になるまでブロックする
func (q *taskQueue) waitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.outstanding > 0 {
		q.idle.Wait()
	}
}

// stop は停止フラグを立て、待機中の全ワーカーを起こす
func (q *taskQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopping = true
	q.available.Broadcast()
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Length()
}

func (q *taskQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

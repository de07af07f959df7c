package worker

import (
	"runtime"
	"runtime/debug"
	"time"

	"dstcore/internal/events"
	"dstcore/internal/timing"
)

// work は個々のワーカーゴルーチン
// 生存中は専用の OS スレッドに固定される
func (p *Pool) work(id int) {
	defer p.wg.Done()

	// タスクが runtime.Goexit するとこのゴルーチンごと終了するので、代わりを起動する
	stopped := false
	defer func() {
		if !stopped {
			p.log.Warn(p.scope, "worker %d terminated by a task, respawning", id)
			p.wg.Add(1)
			go p.work(id)
		}
	}()

	runtime.LockOSThread()
	pinned := false
	defer func() {
		// アフィニティを変えたスレッドはランタイムに返さず、ゴルーチン終了と共に破棄させる
		if !pinned {
			runtime.UnlockOSThread()
		}
	}()

	if p.pin {
		cpu := p.cpus[id%len(p.cpus)]
		if err := pinThread(cpu); err != nil {
			p.log.Warn(p.scope, "worker %d: failed to pin to CPU %d: %v", id, cpu, err)
		} else {
			pinned = true
			p.log.Debug(p.scope, "worker %d pinned to CPU %d", id, cpu)
		}
	}

	for {
		task, ok := p.queue.pop()
		if !ok {
			stopped = true
			return
		}
		p.execute(id, task)
	}
}

// execute はタスクを1件実行する
// panic は回復して *TaskError として報告し、ワーカーは処理を続ける
// runtime.Goexit で戻らなかったタスクも ErrTaskExited として報告する
// 完了の記録はどの終わり方でも必ず行う
func (p *Pool) execute(id int, task Task) {
	timer := timing.NewTimer()
	returned := false
	defer func() {
		defer p.queue.done()

		if r := recover(); r != nil {
			p.reportFailure(&TaskError{Worker: id, Value: r, Stack: debug.Stack()}, timer.Total())
			return
		}
		if !returned {
			p.reportFailure(&TaskError{Worker: id, Value: ErrTaskExited, Stack: debug.Stack()}, timer.Total())
			return
		}
		p.metrics.RecordSuccess(timer.Total())
	}()

	task()
	returned = true
}

func (p *Pool) reportFailure(err *TaskError, latency time.Duration) {
	p.metrics.RecordFailure(latency)
	p.log.Warn(p.scope, "worker %d: %v", err.Worker, err)

	p.notify(func() { p.fireFailure(err) })
	p.publish(events.NewTaskFailedEvent(p.id, err.Worker, err))
	if p.onFailure != nil {
		p.notify(func() { p.onFailure(err) })
	}
}

// notify は失敗ハンドラを呼ぶ。ハンドラ自身の panic でワーカーを落とさない
func (p *Pool) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(p.scope, "failure handler panicked: %v", r)
		}
	}()
	fn()
}

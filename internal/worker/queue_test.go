package worker

import (
	"testing"
	"time"
)

func TestTaskQueueFIFO(t *testing.T) {
	q := newTaskQueue()

	var order []int
	for i := range 3 {
		if !q.push(func() { order = append(order, i) }) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if q.len() != 3 || q.pending() != 3 {
		t.Fatalf("expected 3 queued and outstanding, got %d / %d", q.len(), q.pending())
	}

	for range 3 {
		task, ok := q.pop()
		if !ok {
			t.Fatal("expected a task")
		}
		task()
		q.done()
	}

	for i, v := range order {
		if v != i {
			t.Errorf("position %d ran task %d", i, v)
		}
	}
	if q.pending() != 0 {
		t.Errorf("expected 0 outstanding, got %d", q.pending())
	}
}

func TestTaskQueueStop(t *testing.T) {
	q := newTaskQueue()
	q.push(func() {})
	q.stop()

	if q.push(func() {}) {
		t.Error("push must fail once stopping")
	}
	if q.len() != 1 {
		t.Errorf("expected 1 queued, got %d", q.len())
	}

	// Remaining tasks are still handed out while stopping
	if _, ok := q.pop(); !ok {
		t.Error("expected remaining task to be popped")
	}
	q.done()
	if _, ok := q.pop(); ok {
		t.Error("expected pop to report stop on empty queue")
	}
}

func TestTaskQueuePopWakesOnStop(t *testing.T) {
	q := newTaskQueue()

	result := make(chan bool)
	go func() {
		_, ok := q.pop()
		result <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.stop()

	select {
	case ok := <-result:
		if ok {
			t.Error("expected pop to return false")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on stop")
	}
}

func TestTaskQueueWaitIdle(t *testing.T) {
	q := newTaskQueue()
	q.push(func() {})

	idle := make(chan struct{})
	go func() {
		q.waitIdle()
		close(idle)
	}()

	select {
	case <-idle:
		t.Fatal("waitIdle returned with a task outstanding")
	case <-time.After(10 * time.Millisecond):
	}

	q.pop()
	q.done()

	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("waitIdle did not return")
	}
}

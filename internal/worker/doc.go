// Package worker provides a fixed-size pool of OS-thread-bound workers
// executing tasks from a shared, unbounded FIFO queue.
//
// Push never blocks on execution, Wait blocks until every accepted task has
// finished, and Close stops accepting tasks, drains the queue and joins the
// workers. Every task accepted by Push runs exactly once.
//
// # Basic Usage
//
//	pool, err := worker.New(4) // 4 workers
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	for i := 0; i < 100; i++ {
//	    pool.Push(func() {
//	        // do work
//	    })
//	}
//	pool.Wait()
//
// Run scopes a pool to a function and closes it on every exit path,
// including a panic in fn:
//
//	err := worker.Run(0, func(p *worker.Pool) error {
//	    return p.Push(task)
//	})
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := worker.DefaultPoolConfig() // one worker per available CPU
//	config.PinWorkers = true             // Linux only
//	config.OnFailure = func(err error) { ... }
//	pool, err := worker.NewWithConfig(config)
//
// A worker count below 1 is treated as 1. Counts above MaxWorkers fail with
// ErrResourceExhausted.
//
// # Task Failures
//
// A panicking task does not take down its worker. The panic is recovered into
// a *TaskError and reported through the logger, the pool's Metrics, the
// Failures event, the optional event bus and PoolConfig.OnFailure. It never
// reaches Push, Wait or Close. A task that ends through runtime.Goexit is
// reported the same way with ErrTaskExited, and its worker is replaced.
//
// # Lifecycle
//
// A pool moves from StateRunning to StateDraining when Close begins and to
// StateStopped once all workers have exited. It never returns to Running;
// Push fails with ErrInvalidState from the moment Close begins.
//
// Close waits for every worker to exit, so a task must not call it
// directly; a task that wants to stop its own pool calls go p.Close().
package worker

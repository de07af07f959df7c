// Package events provides two notification mechanisms.
//
// Delegate and Signal are a typed, synchronous callback system. A Signal is
// created together with its fire function; only the owner keeps the fire
// function while anyone may subscribe delegates:
//
//	failures, fire := events.NewSignal[error]()
//	d := events.NewDelegate(func(err error) { log.Println(err) })
//	failures.Subscribe(d)
//	fire(errors.New("boom")) // calls d
//
// Bus is an asynchronous channel based pub/sub used for pool lifecycle and
// scenario run notifications. Publishing never blocks; events are dropped
// for subscribers whose buffer is full.
//
//	ch := bus.Subscribe(events.EventTaskFailed)
//	for ev := range ch { ... }
package events

// Package timing provides a Timer for measuring spans of work and a Clock
// for loops that advance in discrete updates.
//
//	t := timing.NewTimer()
//	doWork()
//	latency := t.Total()
//
//	c := timing.NewClock()
//	for running {
//		dt := c.Update()
//		step(dt)
//	}
//
// Both types are safe for concurrent use.
package timing

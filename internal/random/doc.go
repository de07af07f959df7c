// Package random provides a seedable, concurrency safe random number
// generator with helpers for ranges, indices, dice and probabilities.
//
// Scenarios create a Generator from their configured seed so a run can be
// replayed exactly:
//
//	g := random.New(42)
//	d6 := g.DieRoll(6)
//	if g.Probability(0.1) { ... }
//	g.Reset() // replays the same sequence
//
// Package level functions use Default, which is seeded from the clock.
package random

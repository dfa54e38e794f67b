// Package channel provides stateless channel operations for composing data
// pipelines. All functions are pure and create new channels without
// modifying inputs.
//
// # Quick Start
//
//	// Generate, filter, transform, consume
//	in := channel.FromRange(10)
//	filtered := channel.Filter(in, func(i int) bool { return i%2 == 0 })
//	transformed := channel.Transform(filtered, func(i int) string { return fmt.Sprint(i) })
//	out := channel.ToSlice(transformed)
//
// # Categories
//
// Sources: [FromSlice], [FromRange], [FromValues], [FromFunc]
//
// Transforms: [Filter], [Transform], [Process]
//
// Fan-out: [Broadcast]
//
// Sinks: [Drain], [ToSlice]
package channel

// Package workers implements the dispatch pool that bounds concurrent
// agent runs within a stage fan-out.
//
// The pool manages a fixed number of goroutines pulling submitted tasks
// from a shared queue. The health monitor tracks worker status and records
// the pool gauges.
package workers

// Package numa provides the NUMA-node binding collaborator referenced by
// spec.md 4.I. Topology discovery and enforcement are out of scope
// (spec.md "Non-goals"); this package only gives the worker tree a real
// call site to bind through, grounded on the bind-per-worker call the
// teacher's worker.go makes at goroutine startup.
package numa

import "runtime"

// Binder pins the calling goroutine to a NUMA node (or, absent real NUMA
// support, to an OS thread) before a worker begins its search loop.
type Binder interface {
	BindCurrentGoroutine(workerID int)
}

// defaultBinder locks the calling goroutine to its OS thread so repeated
// searches on one worker keep warm per-thread caches; it does not attempt
// cross-node memory affinity, which this module does not implement.
type defaultBinder struct{}

// NewDefaultBinder returns the binder used when no platform-specific NUMA
// library is wired in.
func NewDefaultBinder() Binder { return defaultBinder{} }

func (defaultBinder) BindCurrentGoroutine(workerID int) {
	runtime.LockOSThread()
}

// Package worker builds the fan-out tree of search workers described in
// spec.md 4.I. It does not import internal/engine: each node's actual
// negamax/iterative-deepening work is injected as a SearchFunc, so the
// dependency runs from internal/engine (which constructs the tree) down
// into this package, never the other way.
package worker

import (
	"sync/atomic"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/comm"
	"github.com/texelcore/texel/internal/numa"
)

// MaxChildrenPerNode bounds the fan-out arity of one tree node, grounded
// on the teacher's flat NumWorkers pool in engine.go restructured into a
// tree: a cap keeps any one node's command broadcast small instead of
// letting a single root fan out to hundreds of direct children.
const MaxChildrenPerNode = 4

// SearchResult is what a SearchFunc reports back up the tree.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Nodes uint64
}

// SearchFunc runs one worker's line of search for the job described by
// cmd, polling shouldStop for cooperative cancellation, and returns once
// finished or stopped. Implemented by an adapter in internal/engine
// wrapping Worker.RunIterative.
type SearchFunc func(pos *board.Position, depth int, shouldStop func() bool) SearchResult

// Worker is one node of the fan-out tree. down carries commands from its
// parent; up carries ReportResult/ReportStats/QuitAck back to the
// parent. Two separate links per edge, rather than one shared link, so
// the parent's Recv-downward loop and its Recv-upward aggregation never
// race over the same FIFO.
type Worker struct {
	ID       int
	down     comm.Communicator
	up       comm.Communicator
	children []*childLink
	search   SearchFunc
	binder   numa.Binder

	currentJobID atomic.Uint64
	stopFlag     atomic.Bool
}

type childLink struct {
	down comm.Communicator
	up   comm.Communicator
	w    *Worker
}

// CreateWorkers builds a tree rooted at firstNo..firstNo+n-1 workers. The
// root's down/up links are supplied by the caller (typically the engine
// front end); each node fans out to at most MaxChildrenPerNode children,
// allocating a fresh down/up link pair per edge. newSearch is called once
// per node with that node's ID, so each tree node gets its own SearchFunc
// bound to its own engine.Worker scratch (killer/history tables, per
// spec.md 5, are never shared across workers).
func CreateWorkers(firstNo int, down, up comm.Communicator, n int, newSearch func(id int) SearchFunc) *Worker {
	if n <= 0 {
		return nil
	}
	root := &Worker{ID: firstNo, down: down, up: up, search: newSearch(firstNo), binder: numa.NewDefaultBinder()}
	remaining := n - 1
	id := firstNo + 1
	for remaining > 0 && len(root.children) < MaxChildrenPerNode {
		take := remaining / (MaxChildrenPerNode - len(root.children))
		if take < 1 {
			take = 1
		}
		childDown := comm.NewInProcLink()
		childUp := comm.NewInProcLink()
		child := CreateWorkers(id, childDown, childUp, take, newSearch)
		if child == nil {
			break
		}
		root.children = append(root.children, &childLink{down: childDown, up: childUp, w: child})
		id += take
		remaining -= take
	}
	return root
}

// Run starts the node's main loop: bind to a NUMA node/OS thread, then
// drain commands from its parent link until QUIT, forwarding
// START_SEARCH/STOP_SEARCH to every child. It sends no STOP_ACK for a
// stop and does not wait for its children to acknowledge one.
func (w *Worker) Run() {
	w.binder.BindCurrentGoroutine(w.ID)
	for _, c := range w.children {
		go c.w.Run()
		go w.drainChildUp(c)
	}

	for {
		cmd, ok := w.down.Recv()
		if !ok {
			return
		}
		switch cmd.Type {
		case comm.Quit:
			for _, c := range w.children {
				c.down.Send(comm.Command{Type: comm.Quit})
			}
			w.up.Send(comm.Command{Type: comm.QuitAck, JobID: cmd.JobID})
			return
		case comm.StartSearch:
			w.currentJobID.Store(cmd.JobID)
			w.stopFlag.Store(false)
			for _, c := range w.children {
				c.down.Send(cmd)
			}
			go w.runSearch(cmd)
		case comm.StopSearch:
			w.stopFlag.Store(true)
			for _, c := range w.children {
				c.down.Send(cmd)
			}
		case comm.SetParam:
			for _, c := range w.children {
				c.down.Send(cmd)
			}
		}
	}
}

// drainChildUp relays one child's upward reports (ReportResult,
// ReportStats, QuitAck) onto this node's own up link, so the engine at
// the root only ever listens on a single aggregated stream regardless of
// tree depth.
func (w *Worker) drainChildUp(c *childLink) {
	for {
		cmd, ok := c.up.Recv()
		if !ok {
			return
		}
		w.up.Send(cmd)
		if cmd.Type == comm.QuitAck {
			return
		}
	}
}

func (w *Worker) runSearch(cmd comm.Command) {
	jobID := cmd.JobID
	shouldStop := func() bool {
		return w.shouldStop(jobID)
	}
	result := w.search(cmd.Position, cmd.Depth, shouldStop)
	if w.shouldStop(jobID) {
		return
	}
	w.up.Send(comm.Command{
		Type: comm.ReportResult, JobID: jobID, WorkerID: w.ID,
		Move: result.Move, Score: result.Score, PV: result.PV,
		Nodes: result.Nodes,
	})
}

// shouldStop reports whether the job currently running on this worker
// has been superseded (a newer START_SEARCH arrived) or explicitly
// stopped; either way, stale results are discarded rather than reported
// (spec.md 4.I).
func (w *Worker) shouldStop(jobID uint64) bool {
	if w.stopFlag.Load() {
		return true
	}
	return w.currentJobID.Load() != jobID
}

package book

import (
	"sync/atomic"
	"time"

	"github.com/texelcore/texel/internal/board"
)

// SearchFunc runs one book-extension search at pos for at most moveTime
// using threads workers, returning the move/score/elapsed the search
// settled on. Builder never imports internal/engine directly (that would
// cycle back through internal/engine/front.go's OwnBook wiring); the
// caller constructing a Builder supplies this closure over its own
// *engine.Engine, the same injection style internal/worker uses for its
// SearchFunc.
type SearchFunc func(pos *board.Position, moveTime time.Duration, threads int) (move board.Move, score int16, elapsed time.Duration)

// Builder drives the opening-book builder loop of spec.md 4.K-M.
type Builder struct {
	book   *Store
	search SearchFunc

	ComputationTime time.Duration
	Threads         int
	FocusHash       uint64 // 0 means "whole book"; else only descendants of this hash

	stopFlag  atomic.Bool
	abortFlag atomic.Bool
}

// NewBuilder creates a builder over book, dispatching searches via search.
func NewBuilder(book *Store, search SearchFunc) *Builder {
	return &Builder{book: book, search: search, ComputationTime: 5 * time.Second, Threads: 1}
}

// Stop requests the builder finish its current iteration but start no new
// one (spec.md's stopFlag=1 semantics).
func (bd *Builder) Stop() { bd.stopFlag.Store(true) }

// Stopped reports whether Stop has been called.
func (bd *Builder) Stopped() bool { return bd.stopFlag.Load() }

// AbortExtendBook discards the in-flight search's result: the current
// iteration clears the node's pending flag and folds nothing back. It does
// not interrupt the search itself, which runs until the SearchFunc
// returns. Stop, by contrast, lets the current iteration finish normally.
func (bd *Builder) AbortExtendBook() { bd.abortFlag.Store(true) }

// Run drives iterations until Stop is called or the book has nothing left
// to expand under FocusHash; intended to be run in its own goroutine.
func (bd *Builder) Run() {
	for !bd.stopFlag.Load() {
		if !bd.runOneIteration() {
			return
		}
	}
}

// runOneIteration performs one pass of the builder loop (spec.md 4.K-M):
// select the least-cost node, mark it pending, dispatch a search, and fold
// the result back into the DAG. Returns false if there was nothing to
// expand.
func (bd *Builder) runOneIteration() bool {
	node, pos := bd.selectLeast()
	if node == nil {
		return false
	}

	bd.book.MarkPending(node)
	bd.abortFlag.Store(false)

	move, score, elapsed := bd.search(pos, bd.ComputationTime, bd.Threads)

	if bd.abortFlag.Load() || move == board.NoMove {
		bd.book.mu.Lock()
		node.Pending = false
		bd.book.mu.Unlock()
		return true
	}

	bd.book.SetSearchResult(node, move, score, uint32(elapsed.Milliseconds()))

	if _, ok := node.Child(move); !ok {
		childPos := pos.Copy()
		childPos.MakeMove(move)
		childPos.UpdateCheckers()
		child := bd.book.NodeFor(childPos)
		bd.book.AddChild(node, move, child)
	}
	return true
}

// selectLeast walks the DAG from FocusHash (or the root if unset) and
// returns the node of least expansion cost along with the position that
// reaches it, or nil if every reachable node is pending.
func (bd *Builder) selectLeast() (*Node, *board.Position) {
	bd.book.mu.RLock()
	defer bd.book.mu.RUnlock()

	focus := bd.book.root
	focusPos := board.NewPosition()
	if bd.FocusHash != 0 {
		if n, pos, ok := locateByHash(bd.book.root, focusPos, bd.FocusHash); ok {
			focus, focusPos = n, pos
		}
	}

	type frame struct {
		node *Node
		pos  *board.Position
	}

	var best *Node
	var bestPos *board.Position
	var bestCost int32

	seen := map[*Node]bool{}
	queue := []frame{{focus, focusPos}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if seen[f.node] {
			continue
		}
		seen[f.node] = true

		cost := f.node.ExpansionCost(sideToMoveAt(f.node))
		if cost != IgnoreCost && (best == nil || cost < bestCost) {
			best, bestPos, bestCost = f.node, f.pos, cost
		}

		for _, e := range f.node.children {
			childPos := f.pos.Copy()
			childPos.MakeMove(e.move)
			childPos.UpdateCheckers()
			queue = append(queue, frame{e.node, childPos})
		}
	}
	return best, bestPos
}

// locateByHash finds the node reachable from (root, rootPos) by replaying
// child moves, along with the position that reaches it, stopping at the
// first node whose HashKey equals target. Node carries no stored position
// of its own (only a hash key), so reaching an arbitrary non-root node's
// actual position means replaying the path down from the root — the same
// technique store.go's LoadStore uses to rebuild parent/child links.
func locateByHash(root *Node, rootPos *board.Position, target uint64) (*Node, *board.Position, bool) {
	if root.HashKey == target {
		return root, rootPos, true
	}

	type frame struct {
		node *Node
		pos  *board.Position
	}

	seen := map[*Node]bool{root: true}
	queue := []frame{{root, rootPos}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, e := range f.node.children {
			if seen[e.node] {
				continue
			}
			seen[e.node] = true
			childPos := f.pos.Copy()
			childPos.MakeMove(e.move)
			childPos.UpdateCheckers()
			if e.node.HashKey == target {
				return e.node, childPos, true
			}
			queue = append(queue, frame{e.node, childPos})
		}
	}
	return nil, nil, false
}

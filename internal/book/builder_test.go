package book

import (
	"testing"
	"time"

	"github.com/texelcore/texel/internal/board"
)

func TestBuilderRunOneIterationExpandsLeastCostNode(t *testing.T) {
	s := NewStore()
	calls := 0
	search := func(pos *board.Position, moveTime time.Duration, threads int) (board.Move, int16, time.Duration) {
		calls++
		legal := pos.GenerateLegalMoves()
		return legal.Get(0), 10, time.Millisecond
	}
	bd := NewBuilder(s, search)

	if !bd.runOneIteration() {
		t.Fatal("expected the first iteration to expand the root")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one search call, got %d", calls)
	}

	n, pending := s.GetTreeData()
	if n != 2 {
		t.Fatalf("expected 2 nodes (root + new child) after one iteration, got %d", n)
	}
	if pending != 0 {
		t.Fatalf("expected no pending nodes once the iteration folds back, got %d", pending)
	}
}

func TestBuilderStopHaltsRunLoop(t *testing.T) {
	s := NewStore()
	search := func(pos *board.Position, moveTime time.Duration, threads int) (board.Move, int16, time.Duration) {
		legal := pos.GenerateLegalMoves()
		return legal.Get(0), 0, time.Millisecond
	}
	bd := NewBuilder(s, search)
	bd.Stop()

	done := make(chan struct{})
	go func() {
		bd.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop was called before the first iteration")
	}
}

func TestSelectLeastReplaysFromRootToTheFocusedNode(t *testing.T) {
	s := NewStore()
	root := s.Root()
	rootPos := board.NewPosition()
	legal := rootPos.GenerateLegalMoves()
	move := legal.Get(0)

	childPos := rootPos.Copy()
	childPos.MakeMove(move)
	childPos.UpdateCheckers()
	child := s.NodeFor(childPos)
	s.AddChild(root, move, child)

	bd := NewBuilder(s, nil)
	bd.FocusHash = child.HashKey

	node, pos := bd.selectLeast()
	if node != child {
		t.Fatalf("expected selectLeast to resolve FocusHash to the child node, got %+v", node)
	}
	if pos.Hash != childPos.Hash {
		t.Fatalf("expected the position reaching the focused node to be the post-move position (hash %x), got hash %x (still the start position if %x)",
			childPos.Hash, pos.Hash, rootPos.Hash)
	}
}

func TestSelectLeastFallsBackToRootOnUnknownFocusHash(t *testing.T) {
	s := NewStore()
	bd := NewBuilder(s, nil)
	bd.FocusHash = 0xdeadbeef

	node, pos := bd.selectLeast()
	if node != s.Root() {
		t.Fatalf("expected an unresolvable FocusHash to fall back to the root, got %+v", node)
	}
	if pos.Hash != board.NewPosition().Hash {
		t.Fatal("expected the fallback position to be the start position")
	}
}

func TestBuilderAbortDiscardsPendingSearch(t *testing.T) {
	s := NewStore()
	var bd *Builder
	search := func(pos *board.Position, moveTime time.Duration, threads int) (board.Move, int16, time.Duration) {
		bd.AbortExtendBook()
		legal := pos.GenerateLegalMoves()
		return legal.Get(0), 10, time.Millisecond
	}
	bd = NewBuilder(s, search)

	if !bd.runOneIteration() {
		t.Fatal("expected an iteration to run")
	}
	if s.Root().Pending {
		t.Fatal("an aborted iteration should clear the pending flag rather than leave it set")
	}
	n, _ := s.GetTreeData()
	if n != 1 {
		t.Fatalf("an aborted iteration should not add the searched child, got %d nodes", n)
	}
}

package book

import (
	"testing"

	"github.com/texelcore/texel/internal/board"
)

var testWeights = bookWeights{bookDepthCost: 1.0, ownPathErrorCost: 0.5, otherPathErrorCost: 0.25}

func TestNodeNegaMaxPropagatesFromChildren(t *testing.T) {
	root := NewNode(1)
	root.SearchScore = -50
	root.Pending = false
	root.recompute(testWeights)

	child := NewNode(2)
	child.SearchScore = 30
	child.recompute(testWeights)

	root.AddChild(board.Move(1), child, testWeights)

	// root's own score (-50) is worse than -child.negaMaxScore (-30), so
	// the negamax law should prefer the child's contribution.
	if got := root.NegaMaxScore(); got != -30 {
		t.Fatalf("NegaMaxScore() = %d, want -30", got)
	}
}

func TestNodeDepthIsShortestPathFromRoot(t *testing.T) {
	root := NewNode(1)
	a := NewNode(2)
	b := NewNode(3)
	shared := NewNode(4)

	root.AddChild(board.Move(1), a, testWeights)
	root.AddChild(board.Move(2), b, testWeights)

	a.AddChild(board.Move(3), shared, testWeights) // depth via a: 2
	if shared.Depth != 2 {
		t.Fatalf("shared.Depth = %d, want 2 after linking via a", shared.Depth)
	}

	b.Depth = 0 // simulate b being reachable at the root's depth directly
	b.relaxDepth(0, testWeights)
	b.AddChild(board.Move(4), shared, testWeights) // depth via b: 1, shorter
	if shared.Depth != 1 {
		t.Fatalf("shared.Depth = %d, want 1 after a shorter path via b", shared.Depth)
	}
}

func TestNodePendingHasIgnoreCost(t *testing.T) {
	n := NewNode(1)
	n.Pending = true
	if got := n.ExpansionCost(board.White); got != IgnoreCost {
		t.Fatalf("ExpansionCost() on pending node = %d, want IgnoreCost", got)
	}
}

func TestNodeLeafExpansionCostScalesWithDepth(t *testing.T) {
	shallow := NewNode(1)
	shallow.Depth = 0
	shallow.recompute(testWeights)

	deep := NewNode(2)
	deep.Depth = 5
	deep.recompute(testWeights)

	if shallow.ExpansionCost(board.White) >= deep.ExpansionCost(board.White) {
		t.Fatalf("expected a deeper leaf to cost more to expand: shallow=%d deep=%d",
			shallow.ExpansionCost(board.White), deep.ExpansionCost(board.White))
	}
}

func TestNodeChildLookup(t *testing.T) {
	root := NewNode(1)
	child := NewNode(2)
	root.AddChild(board.Move(7), child, testWeights)

	got, ok := root.Child(board.Move(7))
	if !ok || got != child {
		t.Fatalf("Child(7) = %v, %v; want the linked child", got, ok)
	}
	if _, ok := root.Child(board.Move(8)); ok {
		t.Fatal("Child(8) should not exist")
	}
}

func TestNodePropagatesScoreChangeToGrandparent(t *testing.T) {
	root := NewNode(1)
	mid := NewNode(2)
	leaf := NewNode(3)

	// Give root and mid poor own search scores so that their negamax
	// values are decided by their children: mid = max(-100, -leaf) and
	// root = max(-100, -mid). With leaf at 0, root is 0; with leaf at 500,
	// mid becomes -100 and root becomes 100.
	root.SearchScore = -100
	mid.SearchScore = -100

	root.AddChild(board.Move(1), mid, testWeights)
	mid.AddChild(board.Move(2), leaf, testWeights)

	before := root.NegaMaxScore()
	leaf.SetSearchResult(board.Move(9), 500, 100, testWeights)
	if root.NegaMaxScore() == before {
		t.Fatal("expected root's negamax score to change after a deep leaf's result propagated up")
	}
}

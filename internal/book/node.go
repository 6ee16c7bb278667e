package book

import "github.com/texelcore/texel/internal/board"

// IgnoreCost is the sentinel expansion cost a node advertises while a
// search result for it is still pending (spec.md 4.K-M): it is excluded
// from expansion-cost minimization and its subtree's contribution is
// skipped until the result arrives.
const IgnoreCost = int32(1<<31 - 1)

// edge is one child-move or parent-move link. The same (move, node) shape
// serves both directions: a child edge owns its node, a parent edge only
// references one (Node.parents never controls a parent's lifetime).
type edge struct {
	move board.Move
	node *Node
}

// Node is one position in the opening-book DAG. Children are owning
// references (the Node tree/store is responsible for their lifetime);
// parents are weak references used only to propagate score/depth changes
// upward, never to keep a parent alive (spec.md 9's cyclic-reference note).
type Node struct {
	HashKey         uint64
	Depth           int32 // shortest distance from the root position
	BestNonBookMove board.Move
	SearchScore     int16
	SearchTime      uint32
	Pending         bool

	negaMaxScore int32
	costWhite    int32
	costBlack    int32

	children []edge
	parents  []edge
}

// NewNode creates an unexpanded node for hashKey with no search result yet.
func NewNode(hashKey uint64) *Node {
	return &Node{HashKey: hashKey, BestNonBookMove: board.NoMove}
}

// NegaMaxScore returns the node's propagated score: the better of its own
// search result and the negation of its best child's negaMaxScore
// (spec.md 4.K-M's negamax law).
func (n *Node) NegaMaxScore() int32 { return n.negaMaxScore }

// ExpansionCost returns the node's expansion-cost from the perspective of
// color (board.White or board.Black), or IgnoreCost while the node itself
// is pending.
func (n *Node) ExpansionCost(color board.Color) int32 {
	if n.Pending {
		return IgnoreCost
	}
	if color == board.White {
		return n.costWhite
	}
	return n.costBlack
}

// Child returns the node reached by playing m from n, if any.
func (n *Node) Child(m board.Move) (*Node, bool) {
	for _, e := range n.children {
		if e.move == m {
			return e.node, true
		}
	}
	return nil, false
}

// ChildEdge is one outgoing (move, node) pair, exposed read-only to
// store.go/builder.go.
type ChildEdge struct {
	Move board.Move
	Node *Node
}

// Children returns every outgoing edge, in insertion order.
func (n *Node) Children() []ChildEdge {
	out := make([]ChildEdge, len(n.children))
	for i, e := range n.children {
		out[i] = ChildEdge{e.move, e.node}
	}
	return out
}

// AddChild links child as the node reached by playing m from n, updating
// child's depth if n offers a shorter path, and recomputing negamax/cost
// bottom-up from child (spec.md 4.K-M: "updated transitively when a
// parent is added").
func (n *Node) AddChild(m board.Move, child *Node, weights bookWeights) {
	if existing, ok := n.Child(m); ok {
		if existing == child {
			return
		}
	}
	n.children = append(n.children, edge{move: m, node: child})
	child.parents = append(child.parents, edge{move: m, node: n})
	child.relaxDepth(n.Depth+1, weights)
	n.recompute(weights)
	n.propagateToParents(weights)
}

// relaxDepth lowers n's depth if a shorter path was just discovered,
// propagating the relaxation to n's own children (spec.md's "depth is the
// minimum over parent depths plus one").
func (n *Node) relaxDepth(candidate int32, weights bookWeights) {
	first := len(n.parents) <= 1 // this call's AddChild just appended the first parent edge
	if !first && candidate >= n.Depth {
		return
	}
	n.Depth = candidate
	for _, e := range n.children {
		e.node.relaxDepth(n.Depth+1, weights)
	}
	n.recompute(weights)
}

// SetSearchResult records a completed search's outcome for a pending
// node (spec.md 4.K-M builder loop step 3) and recomputes negamax/cost
// bottom-up.
func (n *Node) SetSearchResult(move board.Move, score int16, timeMs uint32, weights bookWeights) {
	n.BestNonBookMove = move
	n.SearchScore = score
	n.SearchTime = timeMs
	n.Pending = false
	n.recompute(weights)
	n.propagateToParents(weights)
}

// recompute updates n.negaMaxScore and both expansion costs from n's own
// search result and its current children, per spec.md 4.K-M.
func (n *Node) recompute(weights bookWeights) {
	n.negaMaxScore = int32(n.SearchScore)
	for _, e := range n.children {
		if v := -e.node.negaMaxScore; v > n.negaMaxScore {
			n.negaMaxScore = v
		}
	}

	n.costWhite = n.expansionCost(board.White, weights)
	n.costBlack = n.expansionCost(board.Black, weights)
}

// expansionCost computes the cost of extending the book along n's best
// line from color's perspective: a leaf (its own best move is the
// expansion target) is penalized by depth; choosing a child that is not
// n's current best move incurs a path-error penalty scaled by the score
// gap, charged to the mover on one side and the opponent on the other.
func (n *Node) expansionCost(color board.Color, weights bookWeights) int32 {
	if len(n.children) == 0 {
		return int32(float64(n.Depth+1) * weights.bookDepthCost)
	}

	best := n.children[0]
	for _, e := range n.children[1:] {
		if -e.node.negaMaxScore > -best.node.negaMaxScore {
			best = e
		}
	}

	var total int32
	for _, e := range n.children {
		if e.node.Pending {
			continue
		}
		delta := float64(-best.node.negaMaxScore - (-e.node.negaMaxScore))
		child := e.node.ExpansionCost(oppositeColor(color))
		if child == IgnoreCost {
			continue
		}
		cost := child
		if e.move != best.move {
			if color == sideToMoveAt(n) {
				cost += int32(delta * weights.ownPathErrorCost)
			} else {
				cost += int32(delta * weights.otherPathErrorCost)
			}
		}
		total += cost
	}
	return total
}

// propagateToParents recomputes every ancestor's negamax/cost in
// topological order (parents before grandparents), per spec.md's "When
// any of {searchScore, searchTime, child-set, parent-set} changes,
// propagate scores to all parents."
func (n *Node) propagateToParents(weights bookWeights) {
	// A depth-first post-order over parent edges lists every ancestor
	// after all of its own ancestors; walking it backwards visits each
	// node only after every descendant of it on the way up from n.
	seen := map[*Node]bool{n: true}
	var order []*Node
	var visit func(c *Node)
	visit = func(c *Node) {
		for _, e := range c.parents {
			if !seen[e.node] {
				seen[e.node] = true
				visit(e.node)
			}
		}
		order = append(order, c)
	}
	visit(n)
	for i := len(order) - 2; i >= 0; i-- { // order[len-1] is n itself
		order[i].recompute(weights)
	}
}

// sideToMoveAt reports which color is to move at n, inferred from depth
// parity (the root position's side to move is White; spec.md's depth is
// measured in plies from the root).
func sideToMoveAt(n *Node) board.Color {
	if n.Depth%2 == 0 {
		return board.White
	}
	return board.Black
}

func oppositeColor(c board.Color) board.Color {
	if c == board.White {
		return board.Black
	}
	return board.White
}

// bookWeights is the subset of config.BookWeights node.go needs, passed
// by value so this package never imports internal/config (store.go is the
// only file that bridges the two).
type bookWeights struct {
	bookDepthCost      float64
	ownPathErrorCost   float64
	otherPathErrorCost float64
}

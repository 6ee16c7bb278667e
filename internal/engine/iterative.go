package engine

import (
	"errors"

	"github.com/texelcore/texel/internal/board"
)

// Listener receives progress notifications during a search, the sink the
// UCI dispatcher (internal/uci) wires up to "info depth/pv/currmove"
// output (spec.md 6).
type Listener interface {
	NotifyDepth(depth int, score int, pv []board.Move, nodes uint64)
	NotifyCurrMove(depth int, m board.Move, moveNumber int)
	NotifyStats(nodes uint64, hashFullPermille int)
	NotifyPlayedMove(best, ponder board.Move)
}

// NoopListener discards every notification; used when no UCI session is
// attached (e.g. book-builder and tests).
type NoopListener struct{}

func (NoopListener) NotifyDepth(int, int, []board.Move, uint64) {}
func (NoopListener) NotifyCurrMove(int, board.Move, int)        {}
func (NoopListener) NotifyStats(uint64, int)                    {}
func (NoopListener) NotifyPlayedMove(board.Move, board.Move)    {}

// aspirationWindow is the initial +/- margin around the previous
// iteration's score; it doubles on each fail-high/fail-low per spec.md 4.G.
const aspirationWindow = 25

// rootEntry tracks one root move's latest score and node spend, used to
// reorder the root move list at the end of each iteration.
type rootEntry struct {
	move  board.Move
	score int
	nodes uint64
}

// IterativeResult is what one call to RunIterative returns.
type IterativeResult struct {
	Move       board.Move
	Score      int
	PV         []board.Move
	Depth      int
	Nodes      uint64
	Candidates []RootCandidate // every root move considered at the final depth, sorted best-first
}

// RootCandidate is one root move's score/node spend at the final
// completed depth, exported so the engine front end's strength-weakening
// skip-move logic (spec.md 4.J) can pick among near-best alternatives
// instead of always the top entry.
type RootCandidate struct {
	Move  board.Move
	Score int
	Nodes uint64
}

// RunIterative drives w through increasing depths starting at 1, using
// aspiration windows from depth 5 onward, a full window for the first
// root move and a null window for the rest (reordered by score, then by
// nodes spent, after each iteration), stopping when depth reaches
// maxDepth, the node budget is exhausted, the deadline fires, or
// errStopSearch is observed. listener receives depth/PV/stat callbacks;
// it may be NoopListener{}.
func (w *Worker) RunIterative(maxDepth int, maxNodes uint64, shouldStop func() bool, listener Listener) IterativeResult {
	rootMoves := w.pos.GenerateLegalMoves()
	if rootMoves.Len() == 0 {
		return IterativeResult{}
	}

	entries := make([]rootEntry, rootMoves.Len())
	for i := 0; i < rootMoves.Len(); i++ {
		entries[i] = rootEntry{move: rootMoves.Get(i), score: -Infinity}
	}

	best := IterativeResult{Move: entries[0].move}
	prevScore := 0
	window := aspirationWindow

	for depth := 1; depth <= maxDepth; depth++ {
		if shouldStop() || (maxNodes > 0 && w.nodes >= maxNodes) {
			break
		}

		aspAlpha, aspBeta := -Infinity, Infinity
		if depth >= 5 {
			aspAlpha = prevScore - window
			aspBeta = prevScore + window
		}
		alpha, beta := aspAlpha, aspBeta

		var iterationBest rootEntry
		iterationBest.score = -Infinity
		failed := false

		for i := range entries {
			if shouldStop() {
				failed = true
				break
			}
			m := entries[i].move
			listener.NotifyCurrMove(depth, m, i+1)

			before := w.nodes
			undo := w.pos.MakeMove(m)
			w.pushHistory(w.pos.HistoryHash())

			var score int
			var err error
			if i == 0 {
				score, err = w.negamax(depth-1, 1, -beta, -alpha, false)
			} else {
				score, err = w.negamax(depth-1, 1, -alpha-1, -alpha, true)
				if err == nil && -score > alpha {
					score, err = w.negamax(depth-1, 1, -beta, -alpha, false)
				}
			}
			score = -score

			w.popHistory()
			w.pos.UnmakeMove(m, undo)

			if err != nil {
				if errors.Is(err, errStopSearch) {
					failed = true
					break
				}
				failed = true
				break
			}

			entries[i].score = score
			entries[i].nodes = w.nodes - before

			if score > iterationBest.score {
				iterationBest = entries[i]
				if score > alpha {
					alpha = score
				}
			}
			if score <= aspAlpha || score >= aspBeta {
				// Aspiration window missed; widen and retry this depth
				// from scratch next loop rather than trusting a partial pass.
				failed = true
				break
			}
		}

		if failed {
			if shouldStop() {
				break
			}
			if depth >= 5 {
				// Widen the window and retry the same depth once more.
				window *= 2
				depth--
				continue
			}
			break
		}

		window = aspirationWindow
		sortRootEntries(entries)
		prevScore = iterationBest.score

		candidates := make([]RootCandidate, len(entries))
		for i, e := range entries {
			candidates[i] = RootCandidate{Move: e.move, Score: e.score, Nodes: e.nodes}
		}

		best = IterativeResult{
			Move:       iterationBest.move,
			Score:      iterationBest.score,
			PV:         append([]board.Move{iterationBest.move}, w.pv.Line()...),
			Depth:      depth,
			Nodes:      w.nodes,
			Candidates: candidates,
		}
		listener.NotifyDepth(depth, best.Score, best.PV, best.Nodes)

		if IsMateScore(best.Score) {
			break
		}
	}

	return best
}

// sortRootEntries reorders by score descending, breaking ties by nodes
// spent descending (spec.md 4.G's end-of-iteration reordering rule).
func sortRootEntries(entries []rootEntry) {
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		j := i - 1
		for j >= 0 && rootEntryLess(entries[j], e) {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = e
	}
}

func rootEntryLess(a, b rootEntry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.nodes < b.nodes
}

package engine

import (
	"errors"
	"sync/atomic"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/tablebase"
	"github.com/texelcore/texel/sfnnue"
)

// errStopSearch is the sentinel error propagated up the call stack when a
// worker is asked to stop mid-search. Go has no exceptions; this is the
// "equivalent return-sentinel discipline" used in its place (spec.md 7/9).
var errStopSearch = errors.New("search stopped")

// PVTable stores the principal variation collected during a search, one
// line per ply, triangular-array style.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

func (t *PVTable) update(ply int, m board.Move) {
	t.moves[ply][0] = m
	copy(t.moves[ply][1:t.length[ply+1]+1], t.moves[ply+1][:t.length[ply+1]])
	t.length[ply] = t.length[ply+1] + 1
}

// Line returns the PV at the root (ply 0).
func (t *PVTable) Line() []board.Move {
	return t.moves[0][:t.length[0]]
}

// SearchStack holds per-ply scratch used by extensions/reductions, mirroring
// Stockfish-style continuation state.
type SearchStack struct {
	currentMove board.Move
	movedPiece  board.Piece
	staticEval  int
	reduction   int
}

// Worker runs one line of the negamax search tree. Field names are held
// stable across the rewrite because nnue_bridge.go reaches into pos,
// nnueAcc, nnueNet, dirtyState, activeIndicesBuffer, optimism and
// pawnTable directly.
type Worker struct {
	id int

	pos *board.Position

	orderer *MoveOrderer // wraps this worker's own History/KillerTable (never shared, spec.md 5)
	corr    *CorrectionHistory

	tt       *TranspositionTable
	pawnTable *PawnTable

	useNNUE bool
	nnueNet *sfnnue.Networks
	nnueAcc *sfnnue.AccumulatorStack

	activeIndicesBuffer [64]int
	dirtyState          DirtyState
	optimism            [2]int

	posHistory []uint64 // zobrist history from the game root, for repetition detection

	stack [MaxPly]SearchStack
	pv    PVTable

	nodes    uint64
	stopFlag *atomic.Bool
	jobID    *atomic.Uint64 // current search's job id
	myJobID  uint64         // job id this worker was dispatched with

	tbProber tablebase.Prober

	depth int // the iterative-deepening depth this worker is currently searching
}

// NewWorker creates a worker sharing tt/pawnTable with its siblings but
// owning its own move-ordering and correction-history state.
func NewWorker(id int, tt *TranspositionTable, pawnTable *PawnTable, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		id:        id,
		orderer:   NewMoveOrderer(),
		corr:      NewCorrectionHistory(),
		tt:        tt,
		pawnTable: pawnTable,
		stopFlag:  stopFlag,
	}
}

// InitSearch prepares the worker to search pos: it copies pos so the
// worker's own MakeMove/UnmakeMove churn never touches the caller's
// position, and seeds the repetition-detection history from the game's
// move list collected so far.
func (w *Worker) InitSearch(pos *board.Position, rootHistory []uint64) {
	w.pos = pos.Copy()
	w.posHistory = append(w.posHistory[:0], rootHistory...)
	w.nodes = 0
	w.pv = PVTable{}
}

// ID returns the worker's index in the tree.
func (w *Worker) ID() int { return w.id }

// Nodes returns the node count accumulated by this worker in its current search.
func (w *Worker) Nodes() uint64 { return w.nodes }

// Reset clears move-ordering and correction-history state for a new game.
func (w *Worker) Reset() {
	w.orderer.Clear()
	w.corr.Clear()
	w.nodes = 0
}

// SetTablebase installs the tablebase collaborator.
func (w *Worker) SetTablebase(tb tablebase.Prober) { w.tbProber = tb }

func (w *Worker) initNNUE(nets *sfnnue.Networks) {
	w.nnueNet = nets
	w.useNNUE = nets != nil
	if w.useNNUE {
		w.nnueAcc = sfnnue.NewAccumulatorStack()
	}
}

// checkStop polls the shared stop flag every 4096 nodes, matching the
// teacher's polling cadence, and returns errStopSearch if set.
func (w *Worker) checkStop() error {
	if w.nodes&4095 == 0 && w.stopFlag.Load() {
		return errStopSearch
	}
	return nil
}

// staticEval returns the position's static evaluation from the side to
// move's perspective, using NNUE when available and falling back to the
// classical evaluator with the worker's pawn hash table otherwise. The
// correction history's drift estimate is mixed in (spec.md "Evaluate").
func (w *Worker) staticEval(ply int) int {
	var eval int
	if w.useNNUE && w.nnueNet != nil {
		eval = w.nnueEvaluate()
	} else {
		eval = EvaluateWithPawnTable(w.pos, w.pawnTable)
	}
	eval += w.corr.Get(w.pos)
	w.stack[ply].staticEval = eval
	return eval
}

// pushHistory/popHistory maintain the zobrist history used for
// repetition detection across the current search line, seeded from the
// game's move history at SetPositionHistory time.
func (w *Worker) pushHistory(hash uint64) {
	w.posHistory = append(w.posHistory, hash)
}

func (w *Worker) popHistory() {
	w.posHistory = w.posHistory[:len(w.posHistory)-1]
}

// isRepetitionOrFiftyMove reports whether the current position is a draw
// by repetition (two earlier occurrences of the same historyHash since
// the last irreversible move) or the fifty-move rule, per spec.md 4.F.
func (w *Worker) isRepetitionOrFiftyMove() bool {
	if w.pos.HalfMoveClock >= 100 {
		return true
	}
	target := w.pos.HistoryHash()
	count := 0
	n := len(w.posHistory)
	// posHistory[n-1] is the current position; the position right after
	// the last irreversible move is at n-1-HalfMoveClock.
	limit := n - 1 - int(w.pos.HalfMoveClock)
	if limit < 0 {
		limit = 0
	}
	for i := n - 1; i >= limit; i-- {
		if w.posHistory[i] == target {
			count++
			if count >= 3 { // the current position plus two earlier occurrences
				return true
			}
		}
	}
	return false
}

func (w *Worker) isDraw() bool {
	return w.isRepetitionOrFiftyMove() || w.pos.IsInsufficientMaterial()
}

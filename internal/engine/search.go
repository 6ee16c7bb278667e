package engine

import (
	"math"

	"github.com/texelcore/texel/internal/board"
)

// Tunable margins for the pruning steps of spec.md 4.F. Named rather than
// inlined so the search reads as the staged sequence the spec describes.
const (
	razorMargin          = 300
	reverseFutilityBase  = 85
	nullMoveBaseReduction = 3
	futilityBase         = 150
	futilityPerDepth     = 60
	lmpBase              = 4
)

// negamax implements the main search of spec.md 4.F: node polling, draw
// detection, TT cutoff, the qsearch transition, razoring, reverse
// futility, null-move pruning with verification, internal iterative
// deepening, the move loop with extensions/LMR/LMP/futility, and the
// terminal/TT-store bookkeeping. Returns a score from the side to move's
// perspective, or errStopSearch if the search was cancelled mid-node.
func (w *Worker) negamax(depth, ply, alpha, beta int, cutNode bool) (int, error) {
	pvNode := beta-alpha > 1

	if err := w.checkStop(); err != nil {
		return 0, err
	}
	w.nodes++

	if ply > 0 {
		if w.isDraw() {
			return drawScore(w.nodes), nil
		}
		if ply >= MaxPly {
			return w.staticEval(ply), nil
		}
		// Mate-distance pruning.
		alpha = maxInt(alpha, -MateScore+ply)
		beta = minInt(beta, MateScore-ply)
		if alpha >= beta {
			return alpha, nil
		}
	}

	ttMove := board.NoMove
	ttHit, ttEntry := false, TTEntry{}
	if e, found := w.tt.Probe(w.pos.HistoryHash()); found {
		ttHit = true
		ttEntry = e
		ttMove = e.Move
		if !pvNode && e.Depth >= depth {
			score := AdjustScoreFromTT(e.Score, ply)
			switch e.Flag {
			case TTExact:
				return score, nil
			case TTLowerBound:
				if score >= beta {
					return score, nil
				}
			case TTUpperBound:
				if score <= alpha {
					return score, nil
				}
			}
		}
	}

	inCheck := w.pos.InCheck()

	if depth <= 0 {
		if inCheck {
			return w.checkEvasionQuiescence(alpha, beta, ply)
		}
		return w.quiescence(alpha, beta, ply, 0)
	}

	staticEval := Infinity
	if !inCheck {
		if ttHit && ttEntry.EvalScore != UnknownEval {
			staticEval = ttEntry.EvalScore
		} else {
			staticEval = w.staticEval(ply)
		}
	}
	w.stack[ply].staticEval = staticEval

	if !pvNode && !inCheck {
		// Razoring: a hopeless-looking quiet node drops straight to qsearch.
		if depth <= 2 && staticEval+razorMargin*depth < alpha {
			score, err := w.quiescence(alpha, beta, ply, 0)
			if err != nil {
				return 0, err
			}
			if score < alpha {
				return score, nil
			}
		}

		// Reverse futility pruning: a very strong static eval at shallow
		// depth is assumed to hold up, and the node is cut without search.
		if depth <= 8 && staticEval-reverseFutilityBase*depth >= beta && beta > -MateScore+MaxPly {
			return staticEval, nil
		}

		// Null-move pruning, with zugzwang guard (non-pawn material present)
		// and, at depth >= 12, a verification re-search without null move.
		if depth >= 3 && staticEval >= beta && w.hasNonPawnMaterial() {
			r := nullMoveBaseReduction + depth/6
			undo := w.pos.MakeNullMove()
			score, err := w.negamax(depth-1-r, ply+1, -beta, -beta+1, !cutNode)
			w.pos.UnmakeNullMove(undo)
			if err != nil {
				return 0, err
			}
			score = -score
			if score >= beta {
				if score >= MateScore-MaxPly {
					score = beta // don't return unproven mate scores
				}
				if depth < 12 {
					return score, nil
				}
				// Verification re-search at reduced depth without null-move.
				verify, err := w.negamax(depth-r, ply, beta-1, beta, false)
				if err != nil {
					return 0, err
				}
				if verify >= beta {
					return score, nil
				}
			}
		}
	}

	// Internal iterative deepening: no TT move at a sufficiently deep PV
	// node, so search shallower first to populate one for ordering.
	if ttMove == board.NoMove && depth >= 6 && pvNode {
		if _, err := w.negamax(depth-2, ply, alpha, beta, cutNode); err != nil {
			return 0, err
		}
		if e, found := w.tt.Probe(w.pos.HistoryHash()); found {
			ttMove = e.Move
		}
	}

	moves := w.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply, nil
		}
		return 0, nil
	}

	var prevMove board.Move = board.NoMove
	if ply > 0 {
		prevMove = w.stack[ply-1].currentMove
	}
	scores := w.orderer.ScoreMovesWithCounter(w.pos, moves, ply, ttMove, prevMove)

	best := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	legalCount := 0
	quietTried := make([]board.Move, 0, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)
		isCapture := m.IsCapture(w.pos)
		isQuiet := !isCapture && !m.IsPromotion()

		// Late move pruning: skip late quiet moves at shallow depth once
		// a reasonable alternative already exists.
		if !pvNode && !inCheck && isQuiet && depth <= 8 && legalCount >= lmpBase+depth*depth {
			continue
		}

		// Futility pruning: a quiet move can't plausibly recover from a
		// hopeless static eval at shallow depth.
		if !pvNode && !inCheck && isQuiet && depth <= 6 &&
			staticEval+futilityBase+futilityPerDepth*depth <= alpha && best > -MateScore+MaxPly {
			continue
		}

		movedPiece := w.pos.PieceAt(m.From())
		w.computeDirtyPieces(m)
		undo := w.pos.MakeMove(m)
		w.nnuePush()
		w.pushHistory(w.pos.HistoryHash())

		givesCheck := w.pos.InCheck()
		legalCount++

		newDepth := depth - 1
		// Check and recapture extensions.
		if givesCheck {
			newDepth++
		} else if isCapture && prevMove != board.NoMove && prevMove.To() == m.To() {
			newDepth++
		}

		w.stack[ply].currentMove = m
		w.stack[ply].movedPiece = movedPiece

		var score int
		var err error
		if legalCount == 1 {
			score, err = w.negamax(newDepth, ply+1, -beta, -alpha, false)
			score = -score
		} else {
			// Late move reductions on quiet, late moves outside the PV.
			reduction := 0
			if isQuiet && depth >= 3 && legalCount > 4 && !inCheck {
				reduction = lmrReduction(depth, legalCount)
				if pvNode {
					reduction--
				}
				if cutNode {
					reduction++
				}
				if reduction < 0 {
					reduction = 0
				}
				if reduction > newDepth-1 {
					reduction = newDepth - 1
				}
			}
			score, err = w.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha, true)
			score = -score
			if err == nil && score > alpha && reduction > 0 {
				score, err = w.negamax(newDepth, ply+1, -alpha-1, -alpha, !cutNode)
				score = -score
			}
			if err == nil && score > alpha && score < beta {
				score, err = w.negamax(newDepth, ply+1, -beta, -alpha, false)
				score = -score
			}
		}

		w.popHistory()
		w.nnuePop()
		w.pos.UnmakeMove(m, undo)

		if err != nil {
			return 0, err
		}

		if isQuiet {
			quietTried = append(quietTried, m)
		}

		if score > best {
			best = score
			bestMove = m
			if score > alpha {
				alpha = score
				flag = TTExact
				w.pv.update(ply, m)
				if score >= beta {
					flag = TTLowerBound
					if isQuiet {
						w.orderer.UpdateKillers(m, ply)
						w.orderer.UpdateHistory(m, w.pos, depth, true)
						for _, q := range quietTried[:len(quietTried)-1] {
							w.orderer.UpdateHistory(q, w.pos, depth, false)
						}
						if prevMove != board.NoMove {
							w.orderer.UpdateCounterMove(prevMove, m, w.pos)
						}
					}
					break
				}
			}
		}
	}

	if ply > 0 && !inCheck && bestMove != board.NoMove && !bestMove.IsCapture(w.pos) {
		w.corr.Update(w.pos, best, staticEval, depth)
	}

	w.tt.Insert(w.pos.HistoryHash(), bestMove, flag, ply, depth, best, staticEval, false)

	return best, nil
}

// checkEvasionQuiescence handles depth<=0 nodes where the side to move is
// in check: quiescence must search all legal evasions, not just captures.
func (w *Worker) checkEvasionQuiescence(alpha, beta, ply int) (int, error) {
	return w.quiescence(alpha, beta, ply, 0)
}

// hasNonPawnMaterial guards null-move pruning against zugzwang positions
// where passing is illegal in spirit (only king and pawns left).
func (w *Worker) hasNonPawnMaterial() bool {
	us := w.pos.SideToMove
	for pt := board.Knight; pt <= board.Queen; pt++ {
		if w.pos.Pieces[us][pt] != 0 {
			return true
		}
	}
	return false
}

// lmrReductions is the precomputed Stockfish-style logarithmic reduction
// table, grounded on the teacher's worker.go: 21.46*log(depth)*log(moveCount)/1024,
// built once at package init via math.Log rather than recomputed per call.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46 * math.Log(float64(d)) * math.Log(float64(m)) / 1024.0)
		}
	}
}

// lmrReduction looks up the table above, clamping depth/moveCount into its
// bounds (deep LMR candidates and very late moves both saturate at 63).
func lmrReduction(depth, moveCount int) int {
	if depth < 1 {
		depth = 1
	} else if depth > 63 {
		depth = 63
	}
	if moveCount < 1 {
		moveCount = 1
	} else if moveCount > 63 {
		moveCount = 63
	}
	return lmrReductions[depth][moveCount]
}

// drawScore adds a tiny node-count-dependent wobble so the search doesn't
// get stuck preferring the exact same repetition path every time.
func drawScore(nodes uint64) int {
	return int(nodes&1) - 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

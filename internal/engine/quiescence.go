package engine

import "github.com/texelcore/texel/internal/board"

// quiesceCheckDepth bounds how many plies into quiescence captures-and-
// checks are still generated; beyond it only captures are tried (spec.md
// 4.E: "captures and checks when depth >= -3, captures only beyond").
const quiesceCheckDepth = -3

// deltaMargin is the per-move delta-pruning margin added on top of the
// captured piece's value (spec.md 4.E).
const deltaMargin = 200

// quiescence resolves captures (and, shallow into the search, checks)
// until the position is quiet, returning a score from the side-to-move's
// perspective. qdepth is non-positive and decreases with recursion;
// depth 0 is the entry from the main search.
func (w *Worker) quiescence(alpha, beta, ply, qdepth int) (int, error) {
	if err := w.checkStop(); err != nil {
		return 0, err
	}
	w.nodes++

	inCheck := w.pos.InCheck()

	var standPat int
	if !inCheck {
		standPat = w.staticEval(ply)
		if standPat >= beta {
			return standPat, nil
		}
		bigDelta := QueenValue + deltaMargin
		if standPat < alpha-bigDelta {
			return alpha, nil
		}
		if alpha < standPat {
			alpha = standPat
		}
	}

	var moves *board.MoveList
	if inCheck {
		moves = w.pos.GenerateLegalMoves()
		if moves.Len() == 0 {
			return -MateScore + ply, nil
		}
	} else if qdepth >= quiesceCheckDepth {
		moves = generateCapturesAndChecks(w.pos)
	} else {
		moves = w.pos.GenerateCaptures()
	}

	scores := w.orderer.ScoreMoves(w.pos, moves, ply, board.NoMove)
	best := standPat
	if inCheck {
		best = -Infinity
	}

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)

		if !inCheck && m.IsCapture(w.pos) {
			if SEE(w.pos, m) < 0 {
				continue
			}
			if !m.IsPromotion() {
				capturedValue := pieceValues[capturedPieceType(w.pos, m)]
				if standPat+capturedValue+deltaMargin < alpha {
					continue
				}
			}
		}

		undo := w.pos.MakeMove(m)
		score, err := w.quiescence(-beta, -alpha, ply+1, qdepth-1)
		w.pos.UnmakeMove(m, undo)
		if err != nil {
			return 0, err
		}
		score = -score

		if score > best {
			best = score
			if score > alpha {
				alpha = score
				if alpha >= beta {
					return alpha, nil
				}
			}
		}
	}

	return best, nil
}

// capturedPieceType returns the type of piece m captures, handling en
// passant where the victim square differs from the destination square.
func capturedPieceType(pos *board.Position, m board.Move) board.PieceType {
	if m.IsEnPassant() {
		return board.Pawn
	}
	return pos.PieceAt(m.To()).Type()
}

// generateCapturesAndChecks extends the capture list with quiet
// check-giving moves, used only at the shallow edge of quiescence.
func generateCapturesAndChecks(pos *board.Position) *board.MoveList {
	captures := pos.GenerateCaptures()
	legal := pos.GenerateLegalMoves()
	out := board.NewMoveList()
	for i := 0; i < captures.Len(); i++ {
		out.Add(captures.Get(i))
	}
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.IsCapture(pos) {
			continue
		}
		undo := pos.MakeMove(m)
		givesCheck := pos.InCheck()
		pos.UnmakeMove(m, undo)
		if givesCheck {
			out.Add(m)
		}
	}
	return out
}

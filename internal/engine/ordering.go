package engine

import (
	"github.com/texelcore/texel/internal/board"
)

// Move ordering priorities. TTMoveScore hoists the hash move to the very
// front of the list regardless of any other scoring; everything else is
// scaled well below it (spec.md 4.D: hash-move at score 10000, all other
// scores fitting under that once capture/history scaling is folded in).
const (
	TTMoveScore     = 10000000 // TT move always sorts first
	GoodCaptureBase = 1000000  // Base score for captures, folded with SEE sign
	KillerScore1    = 900000   // First killer slot
	KillerScore2    = 800000   // Second killer slot
	BadCaptureBase  = -100000  // Losing captures (negative SEE)
)

// pieceOrder ranks PieceType by value, 1 (pawn) through 6 (king), for the
// capture-scoring formula 100*(8*pieceOrder[captured]-pieceOrder[mover]).
var pieceOrder = [7]int{
	board.Pawn:   1,
	board.Knight: 2,
	board.Bishop: 3,
	board.Rook:   4,
	board.Queen:  5,
	board.King:   6,
}

// MoveOrderer scores and sorts moves at one search node. The killer table
// and history table it wraps are per-worker (never shared, spec.md 5);
// MoveOrderer itself holds no state beyond a reference to them plus the
// counter-move/continuation-history tables carried over from the teacher.
type MoveOrderer struct {
	killers *KillerTable
	history *History

	// Counter move heuristic (indexed by [piece][to])
	counterMoves [12][64]board.Move

	// Capture history (indexed by [attackerPiece][toSquare][capturedPieceType])
	captureHistory [12][64][6]int

	// Countermove history (indexed by [prevPiece][prevTo][movePiece][moveTo])
	countermoveHistory [12][64][12][64]int
}

// NewMoveOrderer creates a move orderer backed by its own killer and
// history tables.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{
		killers: NewKillerTable(),
		history: NewHistory(),
	}
}

// Clear resets the move orderer for a new search.
func (mo *MoveOrderer) Clear() {
	mo.killers.Clear()
	mo.history.Clear()

	for i := range mo.counterMoves {
		for j := range mo.counterMoves[i] {
			mo.counterMoves[i][j] = board.NoMove
		}
	}

	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] /= 2
			}
		}
	}

	for i := range mo.countermoveHistory {
		for j := range mo.countermoveHistory[i] {
			for k := range mo.countermoveHistory[i][j] {
				for l := range mo.countermoveHistory[i][j][k] {
					mo.countermoveHistory[i][j][k][l] /= 2
				}
			}
		}
	}
}

// ScoreMoves assigns scores to moves for ordering.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	return scores
}

// ScoreMovesWithCounter assigns scores including counter-move and
// continuation-history bonuses, keyed off the move that led to this node.
func (mo *MoveOrderer) ScoreMovesWithCounter(pos *board.Position, moves *board.MoveList, ply int, ttMove, prevMove board.Move) []int {
	scores := make([]int, moves.Len())
	counterMove := mo.GetCounterMove(prevMove, pos)

	var prevPiece board.Piece = board.NoPiece
	if prevMove != board.NoMove {
		prevPiece = pos.PieceAt(prevMove.To())
	}

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		scores[i] = mo.scoreMove(pos, move, ply, ttMove)

		if move == counterMove && scores[i] < KillerScore2 {
			scores[i] = KillerScore2 - 10000 // just below the second killer
		}

		if !move.IsCapture(pos) && !move.IsPromotion() && move != ttMove {
			movePiece := pos.PieceAt(move.From())
			cmhScore := mo.GetCountermoveHistoryScore(prevMove, prevPiece, movePiece, move.To())
			scores[i] += cmhScore / 2
		}
	}

	return scores
}

// scoreMove returns the ordering score for a single move, per spec.md
// 4.D: hash move first, then captures scored by
// 100*(8*pieceOrder[captured]-pieceOrder[mover]) plus a SEE-sign bonus,
// then killers, then history.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if m.IsCapture(pos) {
		return mo.scoreCapture(pos, m)
	}

	if m.IsPromotion() {
		return GoodCaptureBase - 1000 + int(m.Promotion())*100
	}

	if score, ok := mo.killers.IsKiller(m, ply); ok {
		if score >= 3 {
			return KillerScore1
		}
		return KillerScore2
	}

	piece := pos.PieceAt(m.From())
	return mo.history.Score(piece, m.To())
}

// scoreCapture implements the 4.D capture-scoring formula directly,
// using the existing SEE implementation in eval.go for the sign bonus.
func (mo *MoveOrderer) scoreCapture(pos *board.Position, m board.Move) int {
	from, to := m.From(), m.To()
	attackerPiece := pos.PieceAt(from)
	if attackerPiece == board.NoPiece {
		return GoodCaptureBase
	}
	attacker := attackerPiece.Type()

	var victim board.PieceType
	if m.IsEnPassant() {
		victim = board.Pawn
	} else {
		capturedPiece := pos.PieceAt(to)
		if capturedPiece == board.NoPiece {
			return GoodCaptureBase
		}
		victim = capturedPiece.Type()
	}

	if victim > board.King || attacker > board.King {
		return GoodCaptureBase
	}

	base := 100 * (8*pieceOrder[victim] - pieceOrder[attacker])

	seeValue := SEE(pos, m)
	switch {
	case seeValue > 0:
		base += 100
	case seeValue < 0:
		base -= 50
	}

	score := GoodCaptureBase + base
	score += mo.GetCaptureHistoryScore(attackerPiece, to, victim) / 4
	if seeValue < 0 {
		score = BadCaptureBase + base
	}
	return score
}

// SortMoves sorts moves by their scores (descending).
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove selects the best remaining move and moves it to position
// index, allowing lazy move sorting (sort only as much as is searched).
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers records m as a killer at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	mo.killers.Update(m, ply)
}

// UpdateHistory records the outcome of a quiet move tried during the
// move loop as one success or failure count; depth is not used.
func (mo *MoveOrderer) UpdateHistory(m board.Move, pos *board.Position, depth int, isGood bool) {
	piece := pos.PieceAt(m.From())
	mo.history.Update(piece, m.To(), isGood)
}

// GetHistoryScore returns the history score for a move.
func (mo *MoveOrderer) GetHistoryScore(m board.Move, pos *board.Position) int {
	return mo.history.Score(pos.PieceAt(m.From()), m.To())
}

// UpdateCounterMove updates the counter move table.
func (mo *MoveOrderer) UpdateCounterMove(prevMove, counterMove board.Move, pos *board.Position) {
	if prevMove == board.NoMove {
		return
	}
	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return
	}
	mo.counterMoves[piece][prevMove.To()] = counterMove
}

// GetCounterMove returns the counter move for a previous move.
func (mo *MoveOrderer) GetCounterMove(prevMove board.Move, pos *board.Position) board.Move {
	if prevMove == board.NoMove {
		return board.NoMove
	}
	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return board.NoMove
	}
	return mo.counterMoves[piece][prevMove.To()]
}

// GetCaptureHistoryScore returns the capture history score for a capture.
func (mo *MoveOrderer) GetCaptureHistoryScore(attackerPiece board.Piece, toSq board.Square, capturedType board.PieceType) int {
	if attackerPiece == board.NoPiece || capturedType >= board.King {
		return 0
	}
	return mo.captureHistory[attackerPiece][toSq][capturedType]
}

// UpdateCaptureHistory updates the capture history for a capture move.
func (mo *MoveOrderer) UpdateCaptureHistory(attackerPiece board.Piece, toSq board.Square, capturedType board.PieceType, depth int, isGood bool) {
	if attackerPiece == board.NoPiece || capturedType >= board.King {
		return
	}
	bonus := depth * depth
	if isGood {
		mo.captureHistory[attackerPiece][toSq][capturedType] += bonus
		if mo.captureHistory[attackerPiece][toSq][capturedType] > 400000 {
			mo.scaleCaptureHistory()
		}
	} else {
		mo.captureHistory[attackerPiece][toSq][capturedType] -= bonus
		if mo.captureHistory[attackerPiece][toSq][capturedType] < -400000 {
			mo.captureHistory[attackerPiece][toSq][capturedType] = -400000
		}
	}
}

func (mo *MoveOrderer) scaleCaptureHistory() {
	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] /= 2
			}
		}
	}
}

// UpdateCountermoveHistory updates the countermove history for a quiet move.
func (mo *MoveOrderer) UpdateCountermoveHistory(prevMove, goodMove board.Move, prevPiece, movePiece board.Piece, depth int, isGood bool) {
	if prevMove == board.NoMove || prevPiece == board.NoPiece || movePiece == board.NoPiece {
		return
	}
	prevTo := prevMove.To()
	moveTo := goodMove.To()
	bonus := depth * depth

	if isGood {
		mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo] += bonus
		if mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo] > 400000 {
			mo.scaleCountermoveHistory()
		}
	} else {
		mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo] -= bonus
		if mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo] < -400000 {
			mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo] = -400000
		}
	}
}

func (mo *MoveOrderer) scaleCountermoveHistory() {
	for i := range mo.countermoveHistory {
		for j := range mo.countermoveHistory[i] {
			for k := range mo.countermoveHistory[i][j] {
				for l := range mo.countermoveHistory[i][j][k] {
					mo.countermoveHistory[i][j][k][l] /= 2
				}
			}
		}
	}
}

// GetCountermoveHistoryScore returns the CMH score for a move given the
// previous move.
func (mo *MoveOrderer) GetCountermoveHistoryScore(prevMove board.Move, prevPiece, movePiece board.Piece, moveTo board.Square) int {
	if prevMove == board.NoMove || prevPiece == board.NoPiece || movePiece == board.NoPiece {
		return 0
	}
	return mo.countermoveHistory[prevPiece][prevMove.To()][movePiece][moveTo]
}

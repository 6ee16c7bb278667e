package engine

import "github.com/texelcore/texel/internal/board"

// historyMaxScore bounds the 0..49 range History.Score returns, matching
// the spec's success*49/(success+fail) move-ordering weight.
const historyMaxScore = 49

// historyHalveThreshold ages a (piece,to) counter pair once the success
// count grows past this, keeping the ratio but bounding storage.
const historyHalveThreshold = 1 << 14

// History is a per-worker move-ordering table indexed by (piece, to-square)
// recording success/fail counts of quiet moves at a beta cutoff. Never
// shared across workers -- each Worker owns one.
type History struct {
	success [12][64]uint32
	fail    [12][64]uint32
}

// NewHistory creates an empty history table.
func NewHistory() *History {
	return &History{}
}

// Clear resets every counter.
func (h *History) Clear() {
	for i := range h.success {
		for j := range h.success[i] {
			h.success[i][j] = 0
			h.fail[i][j] = 0
		}
	}
}

func historyIndex(piece board.Piece) int {
	if piece == board.NoPiece {
		return 0
	}
	return int(piece)
}

// Score returns a move-ordering weight in 0..49 for (piece, to).
func (h *History) Score(piece board.Piece, to board.Square) int {
	i := historyIndex(piece)
	s, f := h.success[i][to], h.fail[i][to]
	total := s + f
	if total == 0 {
		return 0
	}
	return int(uint64(s) * historyMaxScore / uint64(total))
}

// Update records the outcome of a quiet move that was tried at a node.
// good is true for the move that caused the cutoff, false for every quiet
// move tried and rejected before it.
func (h *History) Update(piece board.Piece, to board.Square, good bool) {
	i := historyIndex(piece)
	if good {
		h.success[i][to]++
		if h.success[i][to] > historyHalveThreshold {
			h.success[i][to] /= 2
			h.fail[i][to] /= 2
		}
	} else {
		h.fail[i][to]++
		if h.fail[i][to] > historyHalveThreshold {
			h.success[i][to] /= 2
			h.fail[i][to] /= 2
		}
	}
}

// KillerTable holds, per ply, the two most recent quiet moves that caused
// a beta cutoff. Never shared across workers.
type KillerTable struct {
	moves [MaxPly][2]board.Move
}

// NewKillerTable creates an empty killer table.
func NewKillerTable() *KillerTable {
	return &KillerTable{}
}

// Clear resets every slot.
func (k *KillerTable) Clear() {
	for i := range k.moves {
		k.moves[i][0] = board.NoMove
		k.moves[i][1] = board.NoMove
	}
}

// Update records m as the newest killer at ply, shifting the previous
// first killer into the second slot.
func (k *KillerTable) Update(m board.Move, ply int) {
	if ply < 0 || ply >= MaxPly {
		return
	}
	if k.moves[ply][0] == m {
		return
	}
	k.moves[ply][1] = k.moves[ply][0]
	k.moves[ply][0] = m
}

// score ranks m 3/2/1/0 by slot and the parity of ply (IsKiller adds 1
// to give the 4/3/2/1 scale of spec.md 3).
// Slot 0 outranks slot 1; even plies outrank odd plies at the same slot,
// reflecting that a killer recorded for the mover is more relevant than
// one recorded for the opponent's reply.
func (k *KillerTable) score(m board.Move, ply int) (int, bool) {
	if ply < 0 || ply >= MaxPly {
		return 0, false
	}
	parityBonus := 0
	if ply%2 == 0 {
		parityBonus = 1
	}
	if k.moves[ply][0] == m {
		return 2 + parityBonus, true
	}
	if k.moves[ply][1] == m {
		return parityBonus, true
	}
	return 0, false
}

// IsKiller returns the killer score (1..4) and whether m is a killer at ply.
func (k *KillerTable) IsKiller(m board.Move, ply int) (int, bool) {
	score, ok := k.score(m, ply)
	if !ok {
		return 0, false
	}
	return score + 1, true
}

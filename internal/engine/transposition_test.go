package engine

import (
	"testing"

	"github.com/texelcore/texel/internal/board"
)

func TestTranspositionInsertAndProbeRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x1234567890abcdef)
	move := board.NewMove(board.E2, board.E4)

	tt.Insert(key, move, TTExact, 0, 8, 55, 40, false)

	entry, found := tt.Probe(key)
	if !found {
		t.Fatal("expected a hit after Insert")
	}
	if entry.Move != move || entry.Score != 55 || entry.Depth != 8 || entry.Flag != TTExact {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestTranspositionProbeMissOnUnknownKey(t *testing.T) {
	tt := NewTranspositionTable(1)
	if _, found := tt.Probe(0xdeadbeef); found {
		t.Fatal("expected a miss on an empty table")
	}
}

func TestTranspositionDeeperEntryReplacesShallower(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(42)
	m1 := board.NewMove(board.E2, board.E4)
	m2 := board.NewMove(board.D2, board.D4)

	tt.Insert(key, m1, TTExact, 0, 4, 10, 0, false)
	tt.Insert(key, m2, TTExact, 0, 12, 20, 0, false)

	entry, found := tt.Probe(key)
	if !found {
		t.Fatal("expected a hit")
	}
	if entry.Depth != 12 || entry.Move != m2 {
		t.Fatalf("expected the deeper search (depth 12, %v) to win, got depth=%d move=%v", m2, entry.Depth, entry.Move)
	}
}

// TestTranspositionInsertNeverEvictsABetterEntryOverAWorseOne fills all
// four slots of one bucket with distinct keys (no exact-key match
// possible), deliberately making slot 0 the deepest, current-generation,
// exact entry in the bucket and slot 1 a shallow entry. A fifth key
// landing in the same bucket must evict slot 1 (the genuinely worst
// entry), not slot 0, even though slot 0 happens to come first in
// iteration order.
func TestTranspositionInsertNeverEvictsABetterEntryOverAWorseOne(t *testing.T) {
	tt := NewTranspositionTable(1)
	move := board.NewMove(board.E2, board.E4)

	// Find four keys that collide into the same bucket.
	b := tt.bucketFor(tt.mixKey(0))
	var keys []uint64
	for k := uint64(0); len(keys) < 4; k++ {
		if tt.bucketFor(tt.mixKey(k)) == b {
			keys = append(keys, k)
		}
	}

	tt.Insert(keys[0], move, TTExact, 0, 20, 1, 0, false) // deep, exact: must survive
	tt.Insert(keys[1], move, TTUpperBound, 0, 1, 2, 0, false) // shallow, bound: the true worst
	tt.Insert(keys[2], move, TTExact, 0, 10, 3, 0, false)
	tt.Insert(keys[3], move, TTExact, 0, 12, 4, 0, false)

	// A fifth, distinct key forces an eviction in this already-full bucket.
	var fifth uint64
	for k := uint64(1000); ; k++ {
		if tt.bucketFor(tt.mixKey(k)) == b {
			fifth = k
			break
		}
	}
	tt.Insert(fifth, move, TTExact, 0, 5, 6, 0, false)

	if _, found := tt.Probe(keys[0]); !found {
		t.Fatal("the deepest, exact, current-generation entry must never be evicted while a worse slot exists")
	}
	if _, found := tt.Probe(keys[1]); found {
		t.Fatal("expected the shallow upper-bound entry to be the one evicted")
	}
}

func TestTranspositionClearRemovesEntries(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(7)
	tt.Insert(key, board.NewMove(board.E2, board.E4), TTExact, 0, 5, 1, 0, false)
	tt.Clear()
	if _, found := tt.Probe(key); found {
		t.Fatal("expected Clear to remove previously stored entries")
	}
}

func TestAdjustScoreToFromTTRoundTripsMateScores(t *testing.T) {
	mateIn3FromRoot := MateScore - 3
	ply := 5

	stored := AdjustScoreToTT(mateIn3FromRoot, ply)
	back := AdjustScoreFromTT(stored, ply)
	if back != mateIn3FromRoot {
		t.Fatalf("round trip mismatch: got %d, want %d", back, mateIn3FromRoot)
	}
}

func TestAdjustScorePassesThroughNonMateScores(t *testing.T) {
	if got := AdjustScoreToTT(57, 10); got != 57 {
		t.Fatalf("AdjustScoreToTT on a non-mate score should be a no-op, got %d", got)
	}
	if got := AdjustScoreFromTT(57, 10); got != 57 {
		t.Fatalf("AdjustScoreFromTT on a non-mate score should be a no-op, got %d", got)
	}
}

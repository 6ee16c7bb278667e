package engine

import "github.com/texelcore/texel/internal/board"

// Strength weakens play when the UCI layer sets LimitStrength or a
// Strength below maximum (spec.md 4.J): the engine front end clamps to a
// single search thread and, once a search completes, picks among the
// near-best root candidates with a hash-seeded logistic instead of
// always the top one.
type Strength struct {
	Enabled bool
	// Level is 0..1000, matching the UCI Strength option; 1000 is full
	// strength and disables weakening even if Enabled is true.
	Level int
	Seed  uint64
}

// FullStrength returns the unweakened configuration.
func FullStrength() Strength {
	return Strength{Level: 1000}
}

// active reports whether weakening actually changes anything for this
// configuration.
func (s Strength) active() bool {
	return s.Enabled && s.Level < 1000
}

// npsCapForElo maps an approximate strength level to a nodes/second
// ceiling, coarsely bucketed the way UCI_Elo brackets usually are;
// MaxNPS (when explicitly set by the user) always overrides this.
func npsCapForElo(level int) uint64 {
	switch {
	case level < 200:
		return 500
	case level < 400:
		return 2000
	case level < 600:
		return 10000
	case level < 800:
		return 50000
	default:
		return 0 // unlimited
	}
}

// pickMove selects the move the weakened engine actually plays out of
// pos's root candidates (best-first). skipScore runs a logistic over the
// position hash, the candidate's move hash, the configured seed and the
// search ply to decide whether to pass over it in favor of the next
// candidate; a candidate is never skipped if it is the last one left.
func (s Strength) pickMove(pos *board.Position, ply int, candidates []RootCandidate) board.Move {
	if len(candidates) == 0 {
		return board.NoMove
	}
	if !s.active() {
		return candidates[0].Move
	}

	base := pos.Hash
	for i := 0; i < len(candidates)-1; i++ {
		c := candidates[i]
		if !s.skipMove(base, c.Move, ply, i) {
			return c.Move
		}
	}
	return candidates[len(candidates)-1].Move
}

// skipMove mixes the position hash, the move's from/to/promotion bits, the
// configured random seed and the ply into an avalanche hash, then runs it
// through a logistic whose midpoint shifts with rank (the best move is
// hardest to skip; each successive alternative is progressively easier)
// and with s.Level (lower strength skips more readily).
func (s Strength) skipMove(posHash uint64, m board.Move, ply, rank int) bool {
	key := posHash ^ uint64(m)*0x9e3779b97f4a7c15
	key ^= s.Seed + uint64(ply)*0x100000001b3
	key = avalanche(key)

	// logistic threshold: lower Level and higher rank both raise the
	// chance of skipping past this candidate toward a weaker one.
	weakness := 1000 - s.Level
	threshold := uint64(weakness) * uint64(2+rank) * 40000
	return key%1000000 < threshold%1000000
}

// avalanche is a 64-bit splitmix64 finalizer, so two nearly-identical
// inputs spread across the full range instead of tracking each other.
func avalanche(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

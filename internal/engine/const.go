package engine

// Search-wide constants shared by the negamax core, quiescence and the
// iterative-deepening driver.
const (
	Infinity  = 30000
	MateScore = 29000 // MATE0 in the spec's glossary
	MaxPly    = 128
)

// IsMateScore returns true if score represents a forced mate (in either
// direction) rather than a centipawn evaluation.
func IsMateScore(score int) bool {
	return score > MateScore-MaxPly || score < -MateScore+MaxPly
}

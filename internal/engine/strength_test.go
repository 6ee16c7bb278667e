package engine

import (
	"testing"

	"github.com/texelcore/texel/internal/board"
)

func TestFullStrengthAlwaysPicksTopCandidate(t *testing.T) {
	s := FullStrength()
	candidates := []RootCandidate{
		{Move: board.Move(1), Score: 100},
		{Move: board.Move(2), Score: 50},
	}
	pos := board.NewPosition()
	if got := s.pickMove(pos, 0, candidates); got != candidates[0].Move {
		t.Fatalf("pickMove at full strength = %v, want top candidate %v", got, candidates[0].Move)
	}
}

func TestStrengthInactiveWhenDisabled(t *testing.T) {
	s := Strength{Enabled: false, Level: 100}
	if s.active() {
		t.Fatal("Strength with Enabled=false should never be active")
	}
}

func TestStrengthInactiveAtLevel1000(t *testing.T) {
	s := Strength{Enabled: true, Level: 1000}
	if s.active() {
		t.Fatal("Level 1000 disables weakening even when Enabled")
	}
}

func TestStrengthNeverSkipsTheLastCandidate(t *testing.T) {
	s := Strength{Enabled: true, Level: 0, Seed: 42}
	candidates := []RootCandidate{{Move: board.Move(1), Score: 10}}
	pos := board.NewPosition()
	got := s.pickMove(pos, 5, candidates)
	if got != candidates[0].Move {
		t.Fatalf("pickMove with a single candidate = %v, want %v", got, candidates[0].Move)
	}
}

func TestNPSCapForEloIsMonotonicallyRelaxedOrUnlimited(t *testing.T) {
	prev := npsCapForElo(0)
	for _, level := range []int{200, 400, 600, 800} {
		cap := npsCapForElo(level)
		if cap != 0 && cap < prev {
			t.Fatalf("expected the NPS cap to relax or go unlimited as level rises, got %d after %d at level %d", cap, prev, level)
		}
		prev = cap
	}
	if npsCapForElo(900) != 0 {
		t.Fatal("expected no NPS cap at high elo brackets")
	}
}

func TestAvalancheIsDeterministicAndSpreads(t *testing.T) {
	a := avalanche(12345)
	b := avalanche(12345)
	if a != b {
		t.Fatal("avalanche should be a pure function of its input")
	}
	if avalanche(12345) == avalanche(12346) {
		t.Fatal("avalanche should spread nearly-identical inputs apart")
	}
}

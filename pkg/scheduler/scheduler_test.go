package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/rmodel"
)

func TestRetrievabilityBoundaries(t *testing.T) {
	if r := Retrievability(0, 1.0); r != 1.0 {
		t.Fatalf("R(0,S) = %v, want 1.0", r)
	}
	r9 := Retrievability(9, 1.0)
	if math.Abs(r9-0.5) > 1e-9 {
		t.Fatalf("R(9S,S) = %v, want 0.5", r9)
	}
	r1 := Retrievability(1, 1.0)
	r2 := Retrievability(2, 1.0)
	if !(r1 > r2) {
		t.Fatalf("R must strictly decrease in t: R(1)=%v R(2)=%v", r1, r2)
	}
}

func TestGoodReviewIncreasesStabilityDecreasesDifficulty(t *testing.T) {
	s := New()
	start := rmodel.Strength{Stability: 1.0, Difficulty: 5.0}
	updated, lapse := s.Review(start, 1.0, Good)
	if lapse {
		t.Fatal("Good grade must not be a lapse")
	}
	if !(updated.Stability > start.Stability) {
		t.Fatalf("S' = %v, want > %v", updated.Stability, start.Stability)
	}
	if !(updated.Difficulty < start.Difficulty) {
		t.Fatalf("D' = %v, want < %v", updated.Difficulty, start.Difficulty)
	}
}

func TestLapseClampsStability(t *testing.T) {
	s := New()
	start := rmodel.Strength{Stability: 50.0, Difficulty: 3.0}
	updated, lapse := s.Review(start, 10.0, Again)
	if !lapse {
		t.Fatal("Again grade must be a lapse")
	}
	if updated.Stability < minStability || updated.Stability > maxStability {
		t.Fatalf("S' = %v out of bounds", updated.Stability)
	}
	if updated.Difficulty < minDifficulty || updated.Difficulty > maxDifficulty {
		t.Fatalf("D' = %v out of bounds", updated.Difficulty)
	}
}

func TestSuccessMonotoneInGrade(t *testing.T) {
	s := New()
	start := rmodel.Strength{Stability: 2.0, Difficulty: 5.0}
	hard, _ := s.Review(start, 2.0, Hard)
	good, _ := s.Review(start, 2.0, Good)
	easy, _ := s.Review(start, 2.0, Easy)
	if !(hard.Stability <= good.Stability && good.Stability <= easy.Stability) {
		t.Fatalf("stability not monotone in grade: hard=%v good=%v easy=%v", hard.Stability, good.Stability, easy.Stability)
	}
}

func TestArchivalCandidacy(t *testing.T) {
	s := New()
	now := time.Now()
	m := &rmodel.Memory{
		CreatedAt: now.Add(-30 * 24 * time.Hour),
		Strength:  rmodel.Strength{Stability: 0.2, Difficulty: 5},
		Counters:  rmodel.Counters{UsedCount: 0},
	}
	if !s.IsArchivalCandidate(m, now) {
		t.Fatalf("expected archival candidate, score=%v", s.ArchivalScore(m, now))
	}

	fresh := &rmodel.Memory{CreatedAt: now.Add(-1 * time.Hour), Strength: rmodel.Strength{Stability: 0.2, Difficulty: 5}}
	if s.IsArchivalCandidate(fresh, now) {
		t.Fatal("memory younger than 7 days must not be an archival candidate")
	}
}

func TestTagStrengthDecays(t *testing.T) {
	s := New()
	m := &rmodel.Memory{TagCreatedAt: time.Now().Add(-30 * time.Minute), SynapticTagStrength: 1.0}
	strength := s.TagStrengthAt(m, time.Now())
	if !(strength > 0 && strength < 1.0) {
		t.Fatalf("expected decayed tag strength in (0,1), got %v", strength)
	}
}

func TestPhaseBoundaries(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want rmodel.ConsolidationPhase
	}{
		{1 * time.Hour, rmodel.Immediate},
		{12 * time.Hour, rmodel.Early},
		{48 * time.Hour, rmodel.Late},
		{96 * time.Hour, rmodel.Consolidated},
	}
	for _, c := range cases {
		if got := rmodel.PhaseForAge(c.age); got != c.want {
			t.Errorf("PhaseForAge(%v) = %v, want %v", c.age, got, c.want)
		}
	}
}

// Package scheduler implements the FSRS-6-style dual-strength cognitive
// scheduler (spec §4.C): retrievability, grading, stability/difficulty
// update, due-time, STC consolidation phases, and archival candidacy.
package scheduler

import (
	"math"
	"time"

	"github.com/rookmem/rook/pkg/rmodel"
)

// Weights collects the tunable FSRS constants. Pinned here; a caller can pass
// its own through NewWithWeights. MemoryConfig has no fields for them.
type Weights struct {
	DifficultyDecay float64 // w_D
	LapseMinStability float64 // S_min
	LapseGrowth     float64 // w_l
	SuccessAlpha    float64 // alpha
	SuccessBeta     float64 // beta
	SuccessGamma    float64 // gamma
	HardPenalty     float64
	EasyBonus       float64
	RetrievabilityTarget float64 // R_target
	SynapticTagTau  time.Duration
	ArchivalScoreThreshold float64
	ArchivalMinAge  time.Duration
}

// DefaultWeights returns the constants named in spec §4.C.
func DefaultWeights() Weights {
	return Weights{
		DifficultyDecay:        0.1,
		LapseMinStability:      0.1,
		LapseGrowth:            1.5,
		SuccessAlpha:           1.0,
		SuccessBeta:            0.5,
		SuccessGamma:           1.0,
		HardPenalty:            0.29,
		EasyBonus:              1.3,
		RetrievabilityTarget:   0.9,
		SynapticTagTau:         60 * time.Minute,
		ArchivalScoreThreshold: 0.85,
		ArchivalMinAge:         7 * 24 * time.Hour,
	}
}

// Grade is the review outcome fed into the update formulas.
type Grade int

const (
	Again Grade = 1
	Hard  Grade = 2
	Good  Grade = 3
	Easy  Grade = 4
)

const (
	minStability = 0.1
	maxStability = 36500
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Retrievability computes R(t, S) = (1 + t/(9S))^-1, the instantaneous
// recall probability at elapsed time t (days) given stability S.
func Retrievability(tDays, stability float64) float64 {
	if stability <= 0 {
		stability = minStability
	}
	return 1.0 / (1.0 + tDays/(9.0*stability))
}

// Scheduler applies FSRS-6 updates using a fixed set of Weights.
type Scheduler struct {
	W Weights
}

// New builds a Scheduler with the default spec-pinned weights.
func New() *Scheduler { return &Scheduler{W: DefaultWeights()} }

// NewWithWeights builds a Scheduler with caller-supplied weights, so
// implementers can expose the constants via configuration per §9.
func NewWithWeights(w Weights) *Scheduler { return &Scheduler{W: w} }

// Review applies a graded review to strength at elapsed time since last
// review (in days), returning the updated strength and whether the review
// was a lapse (grade Again).
func (s *Scheduler) Review(strength rmodel.Strength, tDays float64, g Grade) (rmodel.Strength, bool) {
	w := s.W
	d := clamp(strength.Difficulty-w.DifficultyDecay*(float64(g)-3), minDifficulty, maxDifficulty)

	var newStability float64
	lapse := g == Again
	if lapse {
		newStability = w.LapseMinStability * math.Exp(w.LapseGrowth*(1-d/10))
	} else {
		r := Retrievability(tDays, strength.Stability)
		hardPenalty := 1.0
		if g == Hard {
			hardPenalty = w.HardPenalty
		}
		easyBonus := 1.0
		if g == Easy {
			easyBonus = w.EasyBonus
		}
		growth := math.Exp(w.SuccessAlpha) * (11 - d) * math.Pow(strength.Stability, -w.SuccessBeta) *
			(math.Exp(w.SuccessGamma*(1-r)) - 1) * hardPenalty * easyBonus
		newStability = strength.Stability * (1 + growth)
	}

	newStability = clamp(newStability, minStability, maxStability)
	return rmodel.Strength{Stability: newStability, Difficulty: d}, lapse
}

// DueAt computes due_at = last_reviewed + days(S * ln(1/R_target) * 9).
func (s *Scheduler) DueAt(lastReviewed time.Time, stability float64) time.Time {
	days := stability * math.Log(1/s.W.RetrievabilityTarget) * 9
	return lastReviewed.Add(time.Duration(days * 24 * float64(time.Hour)))
}

// TagStrength computes tag(t) = tag_0 * exp(-t/tau) for the synaptic tag.
func (s *Scheduler) TagStrength(tag0 float64, elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := float64(elapsed) / float64(s.W.SynapticTagTau)
	return tag0 * math.Exp(-ratio)
}

// captureThreshold is the minimum decayed tag strength allowing capture.
// Chosen at the midpoint of the unit interval: below it the tag has decayed
// past usefulness, matching the exponential half-life of SynapticTagTau.
const captureThreshold = 0.5

// IsStabilizable reports whether m's synaptic tag is still strong enough, at
// now, for a plasticity event to capture (stabilize) the memory.
func (s *Scheduler) IsStabilizable(m *rmodel.Memory, now time.Time) bool {
	return s.TagStrengthAt(m, now) >= captureThreshold
}

// TagStrengthAt is tag_strength(memory, now) from spec §4.C.
func (s *Scheduler) TagStrengthAt(m *rmodel.Memory, now time.Time) float64 {
	if m.TagCreatedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(m.TagCreatedAt)
	return s.TagStrength(m.SynapticTagStrength, elapsed)
}

// ArchivalScore computes archival_score = (1 - R(age,S)) * (1 - use_boost).
func (s *Scheduler) ArchivalScore(m *rmodel.Memory, now time.Time) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	r := Retrievability(ageDays, m.Strength.Stability)
	useBoost := math.Min(1, float64(m.Counters.UsedCount)/10)
	return (1 - r) * (1 - useBoost)
}

// IsArchivalCandidate reports whether m meets the archival_score > 0.85 AND
// age > 7 days rule. The caller (Memory Facade) decides the actual action.
func (s *Scheduler) IsArchivalCandidate(m *rmodel.Memory, now time.Time) bool {
	age := now.Sub(m.CreatedAt)
	if age <= s.W.ArchivalMinAge {
		return false
	}
	return s.ArchivalScore(m, now) > s.W.ArchivalScoreThreshold
}

// Phase buckets m's age into a consolidation phase.
func (s *Scheduler) Phase(m *rmodel.Memory, now time.Time) rmodel.ConsolidationPhase {
	return rmodel.PhaseForAge(now.Sub(m.CreatedAt))
}

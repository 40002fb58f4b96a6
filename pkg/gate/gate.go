// Package gate implements the Prediction-Error Gate (spec §4.E): it
// combines the ingestion layers' per-candidate signals into a single
// Decision, applying the five ordered rules and the tie-break order.
package gate

import (
	"context"
	"sort"

	"github.com/rookmem/rook/pkg/capability"
	"github.com/rookmem/rook/pkg/ingestion"
)

// Action is the tagged variant of the gate's decision.
type Action int

const (
	Skip Action = iota
	Create
	Update
	Supersede
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "Skip"
	case Create:
		return "Create"
	case Update:
		return "Update"
	default:
		return "Supersede"
	}
}

// Decision is the gate's output: an Action plus, for Update/Supersede, the
// target candidate id and the matched rule number for observability.
type Decision struct {
	Action      Action
	TargetID    string
	MatchedRule int
	Rationale   string
}

// candidateSignals bundles one candidate's per-layer outputs together for
// ranking and rule evaluation.
type candidateSignals struct {
	ingestion.Candidate
	Cosine           float64
	Contradicts      bool
	TemporalConflict bool
}

// Gate evaluates the ordered decision rules against layer outputs.
type Gate struct {
	Llm capability.Llm
}

// New builds a Gate. llm may be nil if the semantic layer is never needed
// (fast layers alone resolved every fact); with a nil llm, a decision that
// would invoke it falls back to Create (rule 3) without an error.
func New(llm capability.Llm) *Gate {
	return &Gate{Llm: llm}
}

// Decide runs the five ordered rules (first match wins) against newFact and
// its candidate neighbours, whose layer outputs have already been computed.
func (g *Gate) Decide(ctx context.Context, newFact string, candidates []ingestion.Candidate,
	sims []ingestion.SimilarityResult, negs []ingestion.NegationResult, temporals []ingestion.TemporalResult) (Decision, error) {

	signals := mergeSignals(candidates, sims, negs, temporals)
	if len(signals) == 0 {
		return Decision{Action: Create, MatchedRule: 5, Rationale: "no candidates"}, nil
	}

	ranked := rankCandidates(signals)
	best := ranked[0]

	// Rule 1: best candidate cosine >= 0.97, no contradiction, no temporal conflict -> Skip.
	if best.Cosine >= 0.97 && !best.Contradicts && !best.TemporalConflict {
		return Decision{Action: Skip, TargetID: best.ID, MatchedRule: 1, Rationale: "near-duplicate"}, nil
	}

	// Rule 2: negation or temporal conflict against a candidate with cosine >= 0.75 -> Supersede.
	for _, c := range ranked {
		if (c.Contradicts || c.TemporalConflict) && c.Cosine >= 0.75 {
			return Decision{Action: Supersede, TargetID: c.ID, MatchedRule: 2, Rationale: "contradiction/temporal conflict"}, nil
		}
	}

	// Rule 3: cosine in [0.85, 0.97) and no contradiction -> semantic LLM.
	if best.Cosine >= 0.85 && best.Cosine < 0.97 && !best.Contradicts {
		return g.invokeSemantic(ctx, newFact, best, 3, Create)
	}

	// Rule 4: cosine in [0.75, 0.85) -> semantic LLM, default Create when it declines.
	if best.Cosine >= 0.75 && best.Cosine < 0.85 {
		return g.invokeSemantic(ctx, newFact, best, 4, Create)
	}

	// Rule 5: otherwise -> Create.
	return Decision{Action: Create, MatchedRule: 5, Rationale: "no strong match"}, nil
}

func (g *Gate) invokeSemantic(ctx context.Context, newFact string, best candidateSignals, rule int, fallback Action) (Decision, error) {
	if g.Llm == nil {
		return Decision{Action: fallback, MatchedRule: rule, Rationale: "semantic layer unavailable, defaulting"}, nil
	}
	result, err := ingestion.SemanticLLM(ctx, g.Llm, newFact, best.Candidate)
	if err != nil {
		return Decision{}, err
	}
	switch result.Verdict {
	case ingestion.SemanticUpdate:
		return Decision{Action: Update, TargetID: best.ID, MatchedRule: rule, Rationale: result.Rationale}, nil
	case ingestion.SemanticSupersede:
		return Decision{Action: Supersede, TargetID: best.ID, MatchedRule: rule, Rationale: result.Rationale}, nil
	default:
		return Decision{Action: fallback, MatchedRule: rule, Rationale: result.Rationale}, nil
	}
}

func mergeSignals(candidates []ingestion.Candidate, sims []ingestion.SimilarityResult,
	negs []ingestion.NegationResult, temporals []ingestion.TemporalResult) []candidateSignals {

	cosineByID := map[string]float64{}
	for _, s := range sims {
		cosineByID[s.CandidateID] = s.Score
	}
	contradictsByID := map[string]bool{}
	for _, n := range negs {
		contradictsByID[n.CandidateID] = n.Contradicts
	}
	conflictByID := map[string]bool{}
	for _, tc := range temporals {
		conflictByID[tc.CandidateID] = tc.TemporalConflict
	}

	out := make([]candidateSignals, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateSignals{
			Candidate:        c,
			Cosine:           cosineByID[c.ID],
			Contradicts:      contradictsByID[c.ID],
			TemporalConflict: conflictByID[c.ID],
		})
	}
	return out
}

// rankCandidates orders by the gate's tie-break rule: higher cosine first,
// then more recent updated_at, then lexicographically smaller id.
func rankCandidates(signals []candidateSignals) []candidateSignals {
	ranked := make([]candidateSignals, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Cosine != b.Cosine {
			return a.Cosine > b.Cosine
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

package gate

import (
	"context"
	"testing"
	"time"

	"github.com/rookmem/rook/pkg/ingestion"
)

func candidates(ids ...string) []ingestion.Candidate {
	out := make([]ingestion.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, ingestion.Candidate{ID: id, UpdatedAt: time.Now()})
	}
	return out
}

func TestRule1Skip(t *testing.T) {
	g := New(nil)
	cands := candidates("m1")
	sims := []ingestion.SimilarityResult{{CandidateID: "m1", Score: 0.99}}
	negs := []ingestion.NegationResult{{CandidateID: "m1"}}
	temporals := []ingestion.TemporalResult{{CandidateID: "m1"}}

	d, err := g.Decide(context.Background(), "I love pizza", cands, sims, negs, temporals)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != Skip || d.TargetID != "m1" || d.MatchedRule != 1 {
		t.Fatalf("got %+v", d)
	}
}

func TestRule2SupersedeOnNegation(t *testing.T) {
	g := New(nil)
	cands := candidates("m2")
	sims := []ingestion.SimilarityResult{{CandidateID: "m2", Score: 0.86}}
	negs := []ingestion.NegationResult{{CandidateID: "m2", Contradicts: true}}
	temporals := []ingestion.TemporalResult{{CandidateID: "m2"}}

	d, err := g.Decide(context.Background(), "I no longer live in San Francisco; I moved to NYC", cands, sims, negs, temporals)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != Supersede || d.TargetID != "m2" || d.MatchedRule != 2 {
		t.Fatalf("got %+v", d)
	}
}

func TestRule5CreateWhenNoCandidates(t *testing.T) {
	g := New(nil)
	d, err := g.Decide(context.Background(), "brand new fact", nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != Create {
		t.Fatalf("got %+v", d)
	}
}

func TestRule3DefaultsCreateWithoutSemanticLayer(t *testing.T) {
	g := New(nil)
	cands := candidates("m4")
	sims := []ingestion.SimilarityResult{{CandidateID: "m4", Score: 0.88}}
	negs := []ingestion.NegationResult{{CandidateID: "m4"}}
	temporals := []ingestion.TemporalResult{{CandidateID: "m4"}}

	d, err := g.Decide(context.Background(), "I have a golden retriever named Max", cands, sims, negs, temporals)
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != Create || d.MatchedRule != 3 {
		t.Fatalf("got %+v", d)
	}
}

func TestTieBreakHigherCosineWins(t *testing.T) {
	g := New(nil)
	now := time.Now()
	cands := []ingestion.Candidate{
		{ID: "zz", UpdatedAt: now},
		{ID: "aa", UpdatedAt: now},
	}
	sims := []ingestion.SimilarityResult{
		{CandidateID: "zz", Score: 0.99},
		{CandidateID: "aa", Score: 0.80},
	}
	d, err := g.Decide(context.Background(), "x", cands, sims, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.TargetID != "zz" {
		t.Fatalf("expected higher-cosine candidate zz to win tie-break, got %+v", d)
	}
}

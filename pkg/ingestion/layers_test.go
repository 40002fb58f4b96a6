package ingestion

import "testing"

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	if got := CosineSimilarity(v, v); got < 0.999999 {
		t.Fatalf("identical vectors should have similarity ~1, got %v", got)
	}
}

func TestEmbeddingSimilarityThresholds(t *testing.T) {
	cands := []Candidate{
		{ID: "near", Embedding: []float32{1, 0, 0}},
		{ID: "related", Embedding: []float32{0.8, 0.6, 0}},
		{ID: "far", Embedding: []float32{0, 1, 0}},
	}
	results := EmbeddingSimilarity([]float32{1, 0, 0}, cands)
	byID := map[string]SimilarityResult{}
	for _, r := range results {
		byID[r.CandidateID] = r
	}
	if !byID["near"].IsNearDuplicate {
		t.Error("expected near to be a near-duplicate")
	}
	if byID["far"].IsRelated {
		t.Error("far should not be related")
	}
}

func TestKeywordNegationDetectsMarkers(t *testing.T) {
	cands := []Candidate{{ID: "c1"}}
	results := KeywordNegation("I no longer live in San Francisco", cands)
	if !results[0].Contradicts {
		t.Fatal("expected 'no longer' to trigger contradiction")
	}
	if results[0].MatchedSpan == "" {
		t.Fatal("expected a matched span for audit")
	}
}

func TestKeywordNegationNoMarker(t *testing.T) {
	cands := []Candidate{{ID: "c1"}}
	results := KeywordNegation("I have a golden retriever named Max", cands)
	if results[0].Contradicts {
		t.Fatal("did not expect a contradiction")
	}
}

func TestTemporalConflictDetectsDifferingDates(t *testing.T) {
	cands := []Candidate{{ID: "c1", Content: "Meeting scheduled for 2024-01-01"}}
	results := TemporalConflict("Meeting moved to 2024-03-15", cands)
	if !results[0].TemporalConflict {
		t.Fatal("expected differing date tokens to conflict")
	}
}

func TestTemporalConflictNoTokensNoConflict(t *testing.T) {
	cands := []Candidate{{ID: "c1", Content: "I have a dog"}}
	results := TemporalConflict("I have a golden retriever", cands)
	if results[0].TemporalConflict {
		t.Fatal("expected no conflict when neither text has a date token")
	}
}

func TestParseSemanticReply(t *testing.T) {
	cases := map[string]SemanticVerdict{
		"SUPERSEDE: the fact replaces the old one": SemanticSupersede,
		"UPDATE: refines detail":                   SemanticUpdate,
		"NOOP: unrelated":                           NoOp,
		"garbage":                                   NoOp,
	}
	for input, want := range cases {
		if got := parseSemanticReply(input).Verdict; got != want {
			t.Errorf("parseSemanticReply(%q) = %v, want %v", input, got, want)
		}
	}
}

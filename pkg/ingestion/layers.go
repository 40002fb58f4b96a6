// Package ingestion implements the Smart Ingestion Pipeline's fast layers
// (spec §4.D): embedding similarity, keyword negation, and temporal
// conflict. The optional semantic LLM layer lives in semantic.go.
package ingestion

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Candidate is one existing neighbour memory being compared against an
// incoming fact.
type Candidate struct {
	ID        string
	Content   string
	Embedding []float32
	UpdatedAt time.Time
}

// SimilarityResult is the embedding-layer verdict for one candidate.
type SimilarityResult struct {
	CandidateID   string
	Score         float64
	IsNearDuplicate bool
	IsRelated     bool
}

const (
	nearDuplicateThreshold = 0.92
	relatedThreshold       = 0.75
)

// CosineSimilarity computes cosine similarity between two equal-length
// vectors; 0 if either is empty or a dimension mismatch occurs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EmbeddingSimilarity scores newFact's embedding against every candidate.
func EmbeddingSimilarity(newEmbedding []float32, candidates []Candidate) []SimilarityResult {
	out := make([]SimilarityResult, 0, len(candidates))
	for _, c := range candidates {
		score := CosineSimilarity(newEmbedding, c.Embedding)
		out = append(out, SimilarityResult{
			CandidateID:     c.ID,
			Score:           score,
			IsNearDuplicate: score >= nearDuplicateThreshold,
			IsRelated:       score >= relatedThreshold,
		})
	}
	return out
}

// NegationResult is the keyword-negation layer's verdict against one
// candidate.
type NegationResult struct {
	CandidateID  string
	Contradicts  bool
	MatchedSpan  string
}

// negationCatalog matches paired statements expressing a reversal: negation
// markers, explicit contradiction adjectives, and simple polarity flips.
var negationCatalog = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bno longer\b`),
	regexp.MustCompile(`(?i)\bnot anymore\b`),
	regexp.MustCompile(`(?i)\binstead of\b`),
	regexp.MustCompile(`(?i)\bused to\b`),
	regexp.MustCompile(`(?i)\bdon'?t\s+\w+\s+anymore\b`),
	regexp.MustCompile(`(?i)\bnever\s+\w+\s+again\b`),
	regexp.MustCompile(`(?i)\bstopped\s+\w+ing\b`),
	regexp.MustCompile(`(?i)\bnot\s+\w+\s+anymore\b`),
}

// KeywordNegation checks the new fact's text for reversal markers and
// returns a contradiction verdict for every candidate (the layer is pure on
// its text inputs; it does not need the candidate's own text to detect a
// marker in the new fact, but records the matched span for audit).
func KeywordNegation(newFact string, candidates []Candidate) []NegationResult {
	span := ""
	contradicts := false
	for _, re := range negationCatalog {
		if loc := re.FindStringIndex(newFact); loc != nil {
			contradicts = true
			span = newFact[loc[0]:loc[1]]
			break
		}
	}
	out := make([]NegationResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, NegationResult{CandidateID: c.ID, Contradicts: contradicts, MatchedSpan: span})
	}
	return out
}

// TemporalResult is the temporal-conflict layer's verdict against one
// candidate.
type TemporalResult struct {
	CandidateID      string
	TemporalConflict bool
}

// dateToken matches common absolute date/time expressions: ISO dates,
// "Month Day[, Year]", and bare four-digit years.
var dateToken = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2}(?:,?\s+\d{4})?|\d{4})\b`)

// DefaultTemporalWindow is a 24-hour window constant. TemporalConflict does
// not take or apply a window.
const DefaultTemporalWindow = 24 * time.Hour

// TemporalConflict detects date/time tokens in both the new fact and each
// candidate; if both mention a token and the tokens differ, it flags a
// conflict, however close the two dates are: no time window is applied.
// This is a syntactic heuristic — exact date parsing/entity
// resolution is intentionally shallow, matching the layer's <1ms budget.
func TemporalConflict(newFact string, candidates []Candidate) []TemporalResult {
	newTokens := dateToken.FindAllString(newFact, -1)
	out := make([]TemporalResult, 0, len(candidates))
	for _, c := range candidates {
		candTokens := dateToken.FindAllString(c.Content, -1)
		conflict := false
		if len(newTokens) > 0 && len(candTokens) > 0 {
			conflict = !sameTokenSet(newTokens, candTokens)
		}
		out = append(out, TemporalResult{CandidateID: c.ID, TemporalConflict: conflict})
	}
	return out
}

func sameTokenSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

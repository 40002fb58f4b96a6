package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/rookmem/rook/pkg/capability"
)

// SemanticVerdict is the optional, slow layer's decision: §4.D names it
// {NoOp, Update, Supersede}.
type SemanticVerdict int

const (
	NoOp SemanticVerdict = iota
	SemanticUpdate
	SemanticSupersede
)

// SemanticResult carries the verdict plus an audit rationale.
type SemanticResult struct {
	Verdict   SemanticVerdict
	Rationale string
}

const semanticPrompt = `You are comparing a new fact against an existing stored memory to decide how they should reconcile.
Existing memory: %q
New fact: %q
Reply with exactly one line: "NOOP", "UPDATE", or "SUPERSEDE", followed by a short rationale after a colon.`

// SemanticLLM invokes the Llm capability to classify the relationship
// between newFact and one candidate's content. Called only when the fast
// layers disagree or land near a threshold (§4.D, §4.E rules 3-4).
func SemanticLLM(ctx context.Context, llm capability.Llm, newFact string, candidate Candidate) (SemanticResult, error) {
	messages := []capability.LlmMessage{
		{Role: "user", Content: fmt.Sprintf(semanticPrompt, candidate.Content, newFact)},
	}
	reply, err := llm.Generate(ctx, messages, capability.LlmOptions{ResponseFormat: capability.ResponseFree, Temperature: 0})
	if err != nil {
		return SemanticResult{}, err
	}
	return parseSemanticReply(reply), nil
}

func parseSemanticReply(reply string) SemanticResult {
	line := strings.TrimSpace(reply)
	verdict, rationale, _ := strings.Cut(line, ":")
	verdict = strings.ToUpper(strings.TrimSpace(verdict))
	rationale = strings.TrimSpace(rationale)

	switch {
	case strings.HasPrefix(verdict, "SUPERSEDE"):
		return SemanticResult{Verdict: SemanticSupersede, Rationale: rationale}
	case strings.HasPrefix(verdict, "UPDATE"):
		return SemanticResult{Verdict: SemanticUpdate, Rationale: rationale}
	default:
		return SemanticResult{Verdict: NoOp, Rationale: rationale}
	}
}

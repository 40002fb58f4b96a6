// Package capability defines the abstract external collaborators the memory
// core depends on. Every concrete provider (an embedding model, an LLM, a
// vector database, ...) is out of scope for this module; callers supply an
// implementation of the interface that fits their deployment.
package capability

import (
	"context"
	"time"
)

// EmbedAction distinguishes why a piece of text is being embedded, since some
// providers use asymmetric encoders for queries vs. stored documents.
type EmbedAction int

const (
	EmbedAdd EmbedAction = iota
	EmbedSearch
	EmbedUpdate
)

func (a EmbedAction) String() string {
	switch a {
	case EmbedAdd:
		return "add"
	case EmbedSearch:
		return "search"
	case EmbedUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Embed turns text into a fixed-dimension vector.
type Embed interface {
	EmbedText(ctx context.Context, text string, action EmbedAction) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, action EmbedAction) ([][]float32, error)
	Dimension() int
}

// ResponseFormat hints at how the caller wants to parse an Llm's reply.
type ResponseFormat int

const (
	ResponseFree ResponseFormat = iota
	ResponseJSON
)

// LlmOptions carries generation controls for an Llm call.
type LlmOptions struct {
	ResponseFormat ResponseFormat
	Temperature    float64
}

// LlmMessage is one turn of a chat-style prompt.
type LlmMessage struct {
	Role    string
	Content string
}

// Llm generates text from a list of chat messages.
type Llm interface {
	Generate(ctx context.Context, messages []LlmMessage, opts LlmOptions) (string, error)
}

// VectorMatch is one hit from a VectorStore search. Embedding is optional:
// stores that can cheaply return the stored vector alongside the score may
// populate it so callers (e.g. retrieval dedup) can compute cosine distance
// without a second round trip.
type VectorMatch struct {
	ID        string
	Score     float64
	Metadata  map[string]any
	Embedding []float32
}

// VectorStore is the dense-embedding index capability.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, vector []float32, k int, filter map[string]any) ([]VectorMatch, error)
	Get(ctx context.Context, id string) (*VectorMatch, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter map[string]any, limit int) ([]string, error)
}

// LexicalMatch is one hit from a LexicalIndex search.
type LexicalMatch struct {
	ID    string
	Score float64
}

// LexicalIndex is the BM25-style keyword search capability.
type LexicalIndex interface {
	Index(ctx context.Context, id string, text string, fields map[string]string) error
	Search(ctx context.Context, query string, k int, filter map[string]any) ([]LexicalMatch, error)
	Delete(ctx context.Context, id string) error
}

// GraphNeighbour is one edge endpoint returned by GraphStore.Neighbours.
type GraphNeighbour struct {
	ID     string
	Weight float64
}

// GraphStore is the entity/memory relationship-graph capability used for
// spreading activation.
type GraphStore interface {
	UpsertEdge(ctx context.Context, sourceID, targetID, relationKind string, weight float64) error
	Neighbours(ctx context.Context, id string, maxDegree int) ([]GraphNeighbour, error)
	DeleteSubtreeForScope(ctx context.Context, scopeKey string) error
}

// RerankItem is a single candidate passed to Reranker.Rerank.
type RerankItem struct {
	ID    string
	Text  string
	Score float64
}

// Reranker reorders a short candidate list. Absent, the identity order holds.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []RerankItem, limit int) ([]RerankItem, error)
}

// Clock abstracts wall-clock time so tests can control elapsed durations.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

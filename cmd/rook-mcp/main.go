// Command rook-mcp is the MCP binary (spec §6, §12): it wires the same
// Facade as rookd, but serves memory_add, memory_search, memory_get, and
// memory_delete as MCP tools over stdio via modelcontextprotocol/go-sdk.
// The tools cover the same operations as the REST routes, but their
// argument defaults and result shapes are their own (memory_search returns
// only id and score per hit; memory_add's infer defaults to false).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/storesqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := os.Getenv("ROOK_DATA_DIR")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".rook")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger := logging.NewStd(logging.LevelInfo)

	ctx := context.Background()
	store, err := storesqlite.Open(ctx, filepath.Join(dataDir, "rook.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// OPENAI_API_KEY is read (per §12) but no concrete Embed/Llm provider is
	// implemented here: spec §1 treats those as pluggable capabilities the
	// embedding caller supplies, not something this module implements.
	if os.Getenv("OPENAI_API_KEY") == "" {
		logger.Warn("OPENAI_API_KEY not set; running with no embed/llm provider, dense retrieval and LLM-assisted fact extraction disabled")
	}

	f := facade.New(store, nil, nil, store, store, store, nil, nil, logger)

	server := mcp.NewServer(&mcp.Implementation{Name: "rook", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_add",
		Description: "Add a memory (or infer distinct facts from text) scoped to a user/agent/run.",
	}, memoryAddHandler(f))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_search",
		Description: "Hybrid dense+lexical search over memories in a scope.",
	}, memorySearchHandler(f))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_get",
		Description: "Fetch a single memory by id.",
	}, memoryGetHandler(f))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_delete",
		Description: "Archive (logically delete) a memory by id.",
	}, memoryDeleteHandler(f))

	logger.Info("rook-mcp serving over stdio", "data_dir", dataDir)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

type memoryAddArgs struct {
	Text    string `json:"text" jsonschema:"the raw text to ingest"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Infer   bool   `json:"infer,omitempty" jsonschema:"extract distinct facts via the LLM capability instead of storing text verbatim"`
}

type memoryAddResult struct {
	Status string            `json:"status"`
	Events []facade.AddEvent `json:"events"`
}

func memoryAddHandler(f *facade.Facade) func(context.Context, *mcp.CallToolRequest, memoryAddArgs) (*mcp.CallToolResult, memoryAddResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args memoryAddArgs) (*mcp.CallToolResult, memoryAddResult, error) {
		scope := rmodel.Scope{UserID: args.UserID, AgentID: args.AgentID, RunID: args.RunID}
		result, err := f.Add(ctx, args.Text, scope, args.Infer)
		if err != nil {
			return nil, memoryAddResult{}, err
		}
		return nil, memoryAddResult{Status: "ok", Events: result.Events}, nil
	}
}

type memorySearchArgs struct {
	Query   string `json:"query"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type memorySearchResult struct {
	Status  string           `json:"status"`
	Results []memorySearchHit `json:"results"`
}

type memorySearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func memorySearchHandler(f *facade.Facade) func(context.Context, *mcp.CallToolRequest, memorySearchArgs) (*mcp.CallToolResult, memorySearchResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args memorySearchArgs) (*mcp.CallToolResult, memorySearchResult, error) {
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		scope := rmodel.Scope{UserID: args.UserID, AgentID: args.AgentID, RunID: args.RunID}
		res, err := f.Search(ctx, args.Query, scope, limit, nil, 0, false)
		if err != nil {
			return nil, memorySearchResult{}, err
		}
		hits := make([]memorySearchHit, len(res.Hits))
		for i, h := range res.Hits {
			hits[i] = memorySearchHit{ID: h.ID, Score: h.Score}
		}
		return nil, memorySearchResult{Status: "ok", Results: hits}, nil
	}
}

type memoryGetArgs struct {
	ID string `json:"id"`
}

type memoryGetResult struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Content string `json:"content"`
}

func memoryGetHandler(f *facade.Facade) func(context.Context, *mcp.CallToolRequest, memoryGetArgs) (*mcp.CallToolResult, memoryGetResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args memoryGetArgs) (*mcp.CallToolResult, memoryGetResult, error) {
		m, err := f.Get(ctx, args.ID)
		if err != nil {
			return nil, memoryGetResult{}, err
		}
		return nil, memoryGetResult{Status: "ok", ID: m.ID, Content: m.Content}, nil
	}
}

type memoryDeleteArgs struct {
	ID string `json:"id"`
}

type memoryDeleteResult struct {
	Status  string `json:"status"`
	Deleted string `json:"deleted"`
}

func memoryDeleteHandler(f *facade.Facade) func(context.Context, *mcp.CallToolRequest, memoryDeleteArgs) (*mcp.CallToolResult, memoryDeleteResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args memoryDeleteArgs) (*mcp.CallToolResult, memoryDeleteResult, error) {
		if err := f.Delete(ctx, args.ID); err != nil {
			return nil, memoryDeleteResult{}, err
		}
		return nil, memoryDeleteResult{Status: "ok", Deleted: args.ID}, nil
	}
}

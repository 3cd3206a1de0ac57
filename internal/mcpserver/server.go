// Package mcpserver exposes the Engine Facade over the Model Context
// Protocol: one Server wrapping the domain engine, one typed
// input/output struct pair per tool, registered via mcp.AddTool.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/internal/state"
)

// Server is the MCP server exposing the retrieval engine's public contract.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	log    *slog.Logger
}

// NewServer wraps eng and registers every rag_* tool.
func NewServer(eng *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine: eng,
		log:    log,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "kbengine",
			Version: "0.1.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, for Serve/transport wiring.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("starting MCP server", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.log.Error("MCP server stopped with error", "error", err)
		return err
	}
	s.log.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_query",
		Description: "Query the knowledge base retrieval engine and return a grounded context block with ranked matches.",
	}, s.queryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_list_kbs",
		Description: "List every loaded knowledge base, system and user, with its active flag.",
	}, s.listKBsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_add_kb",
		Description: "Ingest a text file as a new user knowledge base.",
	}, s.addKBHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_remove_kb",
		Description: "Remove a knowledge base by name.",
	}, s.removeKBHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_switch_kb",
		Description: "Mark a knowledge base as the active one for SINGLE-mode queries.",
	}, s.switchKBHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_status",
		Description: "Report the engine's enabled flag, mode, active KB, loaded KBs, and chunk totals.",
	}, s.statusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_set_mode",
		Description: "Switch between SINGLE and MULTI retrieval mode. Entering MULTI triggers the one-shot system KB load.",
	}, s.setModeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rag_set_enabled",
		Description: "Enable or disable the retrieval engine.",
	}, s.setEnabledHandler)
}

// QueryInput is the rag_query tool input.
type QueryInput struct {
	Text string `json:"text" jsonschema:"the natural-language query"`
	Mode string `json:"mode,omitempty" jsonschema:"optional mode override: single or multi"`
}

// DocumentOutput is one ranked match.
type DocumentOutput struct {
	Content string  `json:"content"`
	Score   float64 `json:"score" jsonschema:"normalized cosine similarity in [0,1]"`
	KBName  string  `json:"kb_name"`
}

// QueryOutput is the rag_query tool output.
type QueryOutput struct {
	Context    string           `json:"context"`
	Documents  []DocumentOutput `json:"documents"`
	MatchCount int              `json:"match_count"`
	KBSingle   *string          `json:"kb_single,omitempty"`
	KBMulti    []string         `json:"kb_multi,omitempty"`
}

func (s *Server) queryHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	var opts engine.QueryOptions
	if input.Mode != "" {
		m := state.Mode(input.Mode)
		opts.Mode = &m
	}

	res, err := s.engine.Query(ctx, input.Text, opts)
	if err != nil {
		return nil, QueryOutput{}, MapError(err)
	}

	docs := make([]DocumentOutput, len(res.Documents))
	for i, d := range res.Documents {
		docs[i] = DocumentOutput{Content: d.Content, Score: d.Score, KBName: d.KBName}
	}

	return nil, QueryOutput{
		Context:    res.Context,
		Documents:  docs,
		MatchCount: res.Metadata.MatchCount,
		KBSingle:   res.Metadata.KBSingle,
		KBMulti:    res.Metadata.KBMulti,
	}, nil
}

// ListKBsInput is the rag_list_kbs tool input (no parameters).
type ListKBsInput struct{}

// KBOutput is one row of the list_kbs result.
type KBOutput struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

// ListKBsOutput is the rag_list_kbs tool output.
type ListKBsOutput struct {
	KBs []KBOutput `json:"kbs"`
}

func (s *Server) listKBsHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListKBsInput) (*mcp.CallToolResult, ListKBsOutput, error) {
	listed := s.engine.ListKBs()
	out := make([]KBOutput, len(listed))
	for i, l := range listed {
		out[i] = KBOutput{Name: l.Name, Path: l.Path, Active: l.Active}
	}
	return nil, ListKBsOutput{KBs: out}, nil
}

// AddKBInput is the rag_add_kb tool input.
type AddKBInput struct {
	Path string `json:"path" jsonschema:"filesystem path to a UTF-8 text file"`
}

// AddKBOutput is the rag_add_kb tool output.
type AddKBOutput struct {
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
}

func (s *Server) addKBHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddKBInput) (*mcp.CallToolResult, AddKBOutput, error) {
	if input.Path == "" {
		return nil, AddKBOutput{}, NewInvalidParamsError("path is required")
	}
	entry, err := s.engine.AddKB(ctx, input.Path)
	if err != nil {
		return nil, AddKBOutput{}, MapError(err)
	}
	return nil, AddKBOutput{Name: entry.Name, ChunkCount: entry.Index.ChunkCount()}, nil
}

// RemoveKBInput is the rag_remove_kb tool input.
type RemoveKBInput struct {
	Name string `json:"name"`
}

// RemoveKBOutput is the rag_remove_kb tool output.
type RemoveKBOutput struct {
	OK bool `json:"ok"`
}

func (s *Server) removeKBHandler(_ context.Context, _ *mcp.CallToolRequest, input RemoveKBInput) (*mcp.CallToolResult, RemoveKBOutput, error) {
	if err := s.engine.RemoveKB(input.Name); err != nil {
		return nil, RemoveKBOutput{}, MapError(err)
	}
	return nil, RemoveKBOutput{OK: true}, nil
}

// SwitchKBInput is the rag_switch_kb tool input.
type SwitchKBInput struct {
	Name string `json:"name"`
}

// SwitchKBOutput is the rag_switch_kb tool output.
type SwitchKBOutput struct {
	OK bool `json:"ok"`
}

func (s *Server) switchKBHandler(_ context.Context, _ *mcp.CallToolRequest, input SwitchKBInput) (*mcp.CallToolResult, SwitchKBOutput, error) {
	if err := s.engine.SwitchKB(input.Name); err != nil {
		return nil, SwitchKBOutput{}, MapError(err)
	}
	return nil, SwitchKBOutput{OK: true}, nil
}

// StatusInput is the rag_status tool input (no parameters).
type StatusInput struct{}

// StatusOutput is the rag_status tool output.
type StatusOutput struct {
	Enabled      bool     `json:"enabled"`
	Mode         string   `json:"mode"`
	ActiveName   string   `json:"active_name"`
	LoadedNames  []string `json:"loaded_names"`
	TotalChunks  int      `json:"total_chunks"`
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
}

func (s *Server) statusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.engine.Status()
	return nil, StatusOutput{
		Enabled:      st.Enabled,
		Mode:         string(st.Mode),
		ActiveName:   st.ActiveName,
		LoadedNames:  st.LoadedNames,
		TotalChunks:  st.TotalChunks,
		ChunkSize:    st.ChunkSize,
		ChunkOverlap: st.ChunkOverlap,
	}, nil
}

// SetModeInput is the rag_set_mode tool input.
type SetModeInput struct {
	Mode string `json:"mode" jsonschema:"single or multi"`
}

// SetModeOutput is the rag_set_mode tool output.
type SetModeOutput struct {
	OK bool `json:"ok"`
}

func (s *Server) setModeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SetModeInput) (*mcp.CallToolResult, SetModeOutput, error) {
	if err := s.engine.SetMode(ctx, state.Mode(input.Mode)); err != nil {
		return nil, SetModeOutput{}, MapError(err)
	}
	return nil, SetModeOutput{OK: true}, nil
}

// SetEnabledInput is the rag_set_enabled tool input.
type SetEnabledInput struct {
	Enabled bool `json:"enabled"`
}

// SetEnabledOutput is the rag_set_enabled tool output.
type SetEnabledOutput struct {
	OK bool `json:"ok"`
}

func (s *Server) setEnabledHandler(ctx context.Context, _ *mcp.CallToolRequest, input SetEnabledInput) (*mcp.CallToolResult, SetEnabledOutput, error) {
	if err := s.engine.SetEnabled(ctx, input.Enabled); err != nil {
		return nil, SetEnabledOutput{}, MapError(err)
	}
	return nil, SetEnabledOutput{OK: true}, nil
}

// NewInvalidParamsError builds an MCPError for a missing/bad parameter.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

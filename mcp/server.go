// Package mcp provides the MCP (Model Context Protocol) server for invfind.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pangraphs/invfind/internal/detect"
	"github.com/pangraphs/invfind/internal/report"
	"github.com/pangraphs/invfind/internal/storage"
)

// serverVersion is reported during the initialize handshake.
const serverVersion = "0.1.0"

// noRunMessage is the soft answer for a store that has no run yet.
const noRunMessage = "No stored run. Run `invfind call` first."

// RunStore is the read surface of a stored run the server needs. The
// server never writes; the store stays valid for other readers.
type RunStore interface {
	Meta(ctx context.Context) (storage.RunMeta, error)
	RowRange(ctx context.Context, start, end int64) ([]detect.Row, error)
	Queries(ctx context.Context) ([]detect.QueryResult, error)
	Query(ctx context.Context, path string) (*detect.QueryResult, error)
	Diagnostics(ctx context.Context) ([]detect.Diagnostic, error)
}

// Server represents the MCP server.
type Server struct {
	store  RunStore
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over a stored run.
func NewServer(store RunStore) *Server {
	s := &Server{
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "invfind",
		Version: serverVersion,
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "invfind_table",
			Description: "Show the collated inversion table: reference segments with one call per analyzed query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"min_len":  {Type: "integer", Description: "Hide rows spanning fewer bases than this"},
					"assembly": {Type: "string", Description: "Only show columns of this assembly or path"},
					"limit":    {Type: "integer", Description: "Maximum number of rows (default 50)"},
				},
			},
		},
		{
			Name:        "invfind_region",
			Description: "List inversion calls overlapping a reference coordinate range.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"region": {Type: "string", Description: "1-based inclusive range, e.g. 15000..18500"},
				},
				Required: []string{"region"},
			},
		},
		{
			Name:        "invfind_paths",
			Description: "List analyzed query paths grouped by assembly, with shared-node and call counts.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "invfind_stats",
			Description: "Summarize the stored run: graph size, options used, timing, diagnostics.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "invfind://overview",
			Name:        "Run Overview",
			Description: "High-level description of the stored detection run",
			MimeType:    "text/plain",
		},
		{
			URI:         "invfind://table",
			Name:        "Inversion Table",
			Description: "The full collated table in TSV form",
			MimeType:    "text/plain",
		},
		{
			URI:         "invfind://diagnostics",
			Name:        "Diagnostics",
			Description: "Warnings recovered while analyzing the graph",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "invfind_table":
		minLen, _ := args["min_len"].(float64)
		assembly, _ := args["assembly"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 50
		}
		return handleTable(ctx, s.store, int(minLen), assembly, int(limit))
	case "invfind_region":
		region, _ := args["region"].(string)
		return handleRegion(ctx, s.store, region)
	case "invfind_paths":
		return handlePaths(ctx, s.store)
	case "invfind_stats":
		return handleStats(ctx, s.store)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "invfind://overview":
		return getOverview(ctx, s.store)
	case "invfind://table":
		return getTable(ctx, s.store)
	case "invfind://diagnostics":
		return getDiagnostics(ctx, s.store)
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "invfind",
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32603, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32603, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleTable(ctx context.Context, store RunStore, minLen int, assembly string, limit int) (string, error) {
	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage, nil
	}
	if err != nil {
		return "", err
	}

	cols := make([]int, 0, len(meta.Queries))
	for i, q := range meta.Queries {
		if assembly == "" || q == assembly || assemblyOf(q) == assembly {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return fmt.Sprintf("No analyzed query matches '%s'. Use `invfind_paths` to list them.", assembly), nil
	}

	rows, err := store.RowRange(ctx, 0, 0)
	if err != nil {
		return "", err
	}

	kept := make([]detect.Row, 0, len(rows))
	for _, row := range rows {
		if minLen > 0 && row.End-row.Start+1 < int64(minLen) {
			continue
		}
		flagged := false
		for _, c := range cols {
			if row.Calls[c] > 0 {
				flagged = true
				break
			}
		}
		if flagged {
			kept = append(kept, row)
		}
	}

	if len(kept) == 0 {
		return "No inversion calls match the given filters.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Inversion table for **%s** (%d rows):\n\n", meta.Reference, len(kept))

	sb.WriteString("| start | end | span |")
	for _, c := range cols {
		fmt.Fprintf(&sb, " %s |", meta.Queries[c])
	}
	sb.WriteString("\n|-------|-----|------|")
	for range cols {
		sb.WriteString("------|")
	}
	sb.WriteString("\n")

	shown := kept
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, row := range shown {
		fmt.Fprintf(&sb, "| %d | %d | %d |", row.Start, row.End, row.End-row.Start+1)
		for _, c := range cols {
			fmt.Fprintf(&sb, " %d |", row.Calls[c])
		}
		sb.WriteString("\n")
	}
	if len(shown) < len(kept) {
		fmt.Fprintf(&sb, "\nShowing %d of %d rows. Raise `limit` or narrow with `invfind_region`.\n", len(shown), len(kept))
	}

	sb.WriteString("\nNext: Use `invfind_region` to zoom into a coordinate range.")

	return sb.String(), nil
}

func handleRegion(ctx context.Context, store RunStore, region string) (string, error) {
	if region == "" {
		return "No region provided", nil
	}
	start, end, err := parseRegion(region)
	if err != nil {
		return err.Error(), nil
	}

	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage, nil
	}
	if err != nil {
		return "", err
	}

	rows, err := store.RowRange(ctx, start, end)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No inversion calls overlap %d..%d.", start, end), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Calls overlapping **%d..%d** on %s:\n\n", start, end, meta.Reference)

	for _, row := range rows {
		called := make([]string, 0, len(row.Calls))
		for i, c := range row.Calls {
			if c > 0 && i < len(meta.Queries) {
				called = append(called, meta.Queries[i])
			}
		}
		fmt.Fprintf(&sb, "- %d..%d (%d bases): %s\n",
			row.Start, row.End, row.End-row.Start+1, strings.Join(called, ", "))
	}

	sb.WriteString("\nNext: Use `invfind_paths` for per-query evidence.")

	return sb.String(), nil
}

func handlePaths(ctx context.Context, store RunStore) (string, error) {
	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage, nil
	}
	if err != nil {
		return "", err
	}
	queries, err := store.Queries(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyzed %d paths against **%s**:\n\n", len(queries), meta.Reference)

	byAssembly := make(map[string][]detect.QueryResult)
	var order []string
	for _, q := range queries {
		a := assemblyOf(q.Path)
		if _, seen := byAssembly[a]; !seen {
			order = append(order, a)
		}
		byAssembly[a] = append(byAssembly[a], q)
	}

	for _, a := range order {
		fmt.Fprintf(&sb, "## %s\n", a)
		for _, q := range byAssembly[a] {
			fmt.Fprintf(&sb, "- `%s`: shared=%d nodes, calls=%d\n", q.Path, q.Shared, len(q.Intervals))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `invfind_table` with an `assembly` filter to inspect one assembly.")

	return sb.String(), nil
}

func handleStats(ctx context.Context, store RunStore) (string, error) {
	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage, nil
	}
	if err != nil {
		return "", err
	}
	diags, err := store.Diagnostics(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run of %s\n\n", meta.GFA)
	fmt.Fprintf(&sb, "- **Reference:** %s\n", meta.Reference)
	fmt.Fprintf(&sb, "- **Queries:** %d\n", len(meta.Queries))
	fmt.Fprintf(&sb, "- **Rows:** %d\n", meta.Rows)
	fmt.Fprintf(&sb, "- **Graph:** %d nodes, %d paths, %d steps, %d bases\n",
		meta.Stats.Nodes, meta.Stats.Paths, meta.Stats.Steps, meta.Stats.Bases)
	fmt.Fprintf(&sb, "- **Diagnostics:** %d\n", len(diags))
	fmt.Fprintf(&sb, "- **Analyzed:** %s\n", meta.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration:** %.2fs\n", float64(meta.ElapsedMS)/1000)
	if meta.Options.MinSpan > 0 {
		fmt.Fprintf(&sb, "- **Min length:** %d bases\n", meta.Options.MinSpan)
	}
	if len(meta.Options.Exclude) > 0 {
		fmt.Fprintf(&sb, "- **Excluded:** %s\n", strings.Join(meta.Options.Exclude, ", "))
	}

	return sb.String(), nil
}

// Resource Handlers

func getOverview(ctx context.Context, store RunStore) (string, error) {
	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage + "\n", nil
	}
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Invfind Run Overview\n\n")
	fmt.Fprintf(&sb, "**Graph:** %s\n", meta.GFA)
	fmt.Fprintf(&sb, "**Reference:** %s\n", meta.Reference)
	fmt.Fprintf(&sb, "**Queries:** %d\n", len(meta.Queries))
	fmt.Fprintf(&sb, "**Rows:** %d\n", meta.Rows)
	sb.WriteString("\n## Graph Shape\n\n")
	fmt.Fprintf(&sb, "- Nodes: %d\n", meta.Stats.Nodes)
	fmt.Fprintf(&sb, "- Paths: %d\n", meta.Stats.Paths)
	fmt.Fprintf(&sb, "- Steps: %d\n", meta.Stats.Steps)
	fmt.Fprintf(&sb, "- Bases: %d\n", meta.Stats.Bases)
	sb.WriteString("\n## Output Model\n\n")
	sb.WriteString("Each row is one reference base range with a binary inversion call per\n")
	sb.WriteString("query. Ranges are 1-based and inclusive. Row boundaries come from the\n")
	sb.WriteString("union of all per-query interval endpoints, so columns stay comparable\n")
	sb.WriteString("across assemblies.\n")

	return sb.String(), nil
}

func getTable(ctx context.Context, store RunStore) (string, error) {
	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrNoRun) {
		return noRunMessage + "\n", nil
	}
	if err != nil {
		return "", err
	}
	rows, err := store.RowRange(ctx, 0, 0)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	rs := &detect.ResultSet{Reference: meta.Reference, Queries: meta.Queries, Rows: rows}
	if err := report.WriteTSV(&sb, rs); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func getDiagnostics(ctx context.Context, store RunStore) (string, error) {
	diags, err := store.Diagnostics(ctx)
	if err != nil {
		return "", err
	}
	if len(diags) == 0 {
		return "No diagnostics recorded.\n", nil
	}

	var sb strings.Builder
	if err := report.WriteDiagnostics(&sb, diags); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// parseRegion parses "start..end" into 1-based inclusive bounds.
func parseRegion(s string) (int64, int64, error) {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return 0, 0, fmt.Errorf("malformed region %q, want start..end", s)
	}
	start, err := strconv.ParseInt(lo, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed region %q: %w", s, err)
	}
	end, err := strconv.ParseInt(hi, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed region %q: %w", s, err)
	}
	if start <= 0 || end < start {
		return 0, 0, fmt.Errorf("malformed region %q: empty range", s)
	}
	return start, end, nil
}

// assemblyOf extracts the PanSN assembly component of a path name.
func assemblyOf(path string) string {
	if a, _, ok := strings.Cut(path, "#"); ok {
		return a
	}
	return path
}

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pangraphs/invfind/internal/detect"
	"github.com/pangraphs/invfind/internal/graph"
	"github.com/pangraphs/invfind/internal/storage"
)

// seededStore returns an in-memory store holding one small run with two
// queries and three rows.
func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()

	store := storage.NewMemoryStore()
	meta := storage.RunMeta{
		GFA:       "graph.gfa",
		Reference: "ref#1#chr1",
		Queries:   []string{"alpha#1#chr1", "beta#1#chr1"},
		Options:   detect.DefaultOptions(),
		Stats:     graph.Stats{Nodes: 40, Paths: 3, Steps: 120, Bases: 40000},
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		ElapsedMS: 1500,
	}
	rs := &detect.ResultSet{
		Reference: "ref#1#chr1",
		Queries:   meta.Queries,
		Rows: []detect.Row{
			{Start: 101, End: 142, Calls: []int{1, 0}},
			{Start: 500, End: 650, Calls: []int{1, 1}},
			{Start: 900, End: 950, Calls: []int{0, 1}},
		},
		PerQuery: []detect.QueryResult{
			{Path: "alpha#1#chr1", Shared: 42, Intervals: []detect.Interval{{Start: 101, End: 142}, {Start: 500, End: 650}}},
			{Path: "beta#1#chr1", Shared: 40, Intervals: []detect.Interval{{Start: 500, End: 650}, {Start: 900, End: 950}}},
		},
		Diagnostics: []detect.Diagnostic{
			{Kind: detect.DiagUnanalyzableQuery, Path: "gamma#1#chr1", Detail: "shares 1 reference nodes"},
		},
	}
	require.NoError(t, store.SaveRun(context.Background(), meta, rs))
	return store
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("CreatesServer", func(t *testing.T) {
		server := NewServer(seededStore(t))

		assert.NotNil(t, server)
		assert.NotNil(t, server.store)
	})
}

func TestServer_Tools(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStore(t))

	t.Run("ListTools", func(t *testing.T) {
		tools := server.ListTools()

		toolNames := make(map[string]bool)
		for _, tool := range tools {
			toolNames[tool.Name] = true
		}

		expectedTools := []string{
			"invfind_table",
			"invfind_region",
			"invfind_paths",
			"invfind_stats",
		}

		assert.Len(t, tools, len(expectedTools))
		for _, expected := range expectedTools {
			assert.True(t, toolNames[expected], "Should have tool: %s", expected)
		}
	})

	t.Run("ToolDescriptions", func(t *testing.T) {
		for _, tool := range server.ListTools() {
			assert.NotEmpty(t, tool.Description)
			assert.NotNil(t, tool.InputSchema)
		}
	})
}

func TestServer_HandleToolCalls(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStore(t))
	ctx := context.Background()

	t.Run("Table", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_table", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "alpha#1#chr1")
		assert.Contains(t, result, "beta#1#chr1")
		assert.Contains(t, result, "| 101 | 142 |")
		assert.Contains(t, result, "3 rows")
	})

	t.Run("TableMinLen", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_table", map[string]any{
			"min_len": float64(100),
		})
		require.NoError(t, err)
		assert.Contains(t, result, "| 500 | 650 |")
		assert.NotContains(t, result, "| 101 |")
		assert.NotContains(t, result, "| 900 |")
	})

	t.Run("TableAssemblyFilter", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_table", map[string]any{
			"assembly": "beta",
		})
		require.NoError(t, err)
		assert.Contains(t, result, "beta#1#chr1")
		assert.NotContains(t, result, "alpha#1#chr1")
		// The only alpha-exclusive row disappears with its column.
		assert.NotContains(t, result, "| 101 |")
	})

	t.Run("TableUnknownAssembly", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_table", map[string]any{
			"assembly": "nope",
		})
		require.NoError(t, err)
		assert.Contains(t, result, "No analyzed query matches")
	})

	t.Run("TableLimit", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_table", map[string]any{
			"limit": float64(1),
		})
		require.NoError(t, err)
		assert.Contains(t, result, "Showing 1 of 3 rows")
	})

	t.Run("Region", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_region", map[string]any{
			"region": "520..910",
		})
		require.NoError(t, err)
		assert.Contains(t, result, "500..650")
		assert.Contains(t, result, "900..950")
		assert.NotContains(t, result, "101..142")
	})

	t.Run("RegionMalformed", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_region", map[string]any{
			"region": "sideways",
		})
		require.NoError(t, err)
		assert.Contains(t, result, "malformed region")
	})

	t.Run("RegionMissing", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_region", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "No region provided")
	})

	t.Run("Paths", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_paths", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "## alpha")
		assert.Contains(t, result, "## beta")
		assert.Contains(t, result, "shared=42")
	})

	t.Run("Stats", func(t *testing.T) {
		result, err := server.CallTool(ctx, "invfind_stats", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "ref#1#chr1")
		assert.Contains(t, result, "**Rows:** 3")
		assert.Contains(t, result, "**Diagnostics:** 1")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		result, err := server.CallTool(ctx, "unknown_tool", map[string]any{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
		assert.Empty(t, result)
	})

	t.Run("EmptyStore", func(t *testing.T) {
		empty := NewServer(storage.NewMemoryStore())
		result, err := empty.CallTool(ctx, "invfind_table", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "No stored run")
	})
}

func TestServer_Resources(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStore(t))

	t.Run("ListResources", func(t *testing.T) {
		resources := server.ListResources()

		resourceURIs := make(map[string]bool)
		for _, res := range resources {
			resourceURIs[res.URI] = true
		}

		expectedResources := []string{
			"invfind://overview",
			"invfind://table",
			"invfind://diagnostics",
		}

		assert.Len(t, resources, len(expectedResources))
		for _, expected := range expectedResources {
			assert.True(t, resourceURIs[expected], "Should have resource: %s", expected)
		}
	})

	t.Run("ResourceMetadata", func(t *testing.T) {
		for _, res := range server.ListResources() {
			assert.NotEmpty(t, res.Name)
			assert.NotEmpty(t, res.Description)
			assert.NotEmpty(t, res.MimeType)
		}
	})
}

func TestServer_HandleResourceReads(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStore(t))
	ctx := context.Background()

	t.Run("ReadOverview", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "invfind://overview")
		require.NoError(t, err)
		assert.Contains(t, content, "ref#1#chr1")
		assert.Contains(t, content, "Nodes: 40")
	})

	t.Run("ReadTable", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "invfind://table")
		require.NoError(t, err)
		assert.Contains(t, content, "#ref\tstart\tend\talpha#1#chr1\tbeta#1#chr1\n")
		assert.Contains(t, content, "ref#1#chr1\t101\t142\t1\t0\n")
	})

	t.Run("ReadDiagnostics", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "invfind://diagnostics")
		require.NoError(t, err)
		assert.Contains(t, content, "gamma#1#chr1")
	})

	t.Run("ReadUnknownResource", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "invfind://unknown")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown resource")
		assert.Empty(t, content)
	})
}

func TestServer_HandleRequest(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStore(t))
	ctx := context.Background()

	t.Run("Initialize", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(1), "method": "initialize",
		})

		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "2024-11-05", result["protocolVersion"])

		info, ok := result["serverInfo"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "invfind", info["name"])
	})

	t.Run("ToolsList", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(2), "method": "tools/list",
		})

		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		tools, ok := result["tools"].([]map[string]any)
		require.True(t, ok)
		assert.Len(t, tools, 4)
	})

	t.Run("ToolsCall", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(3), "method": "tools/call",
			"params": map[string]any{
				"name":      "invfind_stats",
				"arguments": map[string]any{},
			},
		})

		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		content, ok := result["content"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, content, 1)
		assert.Contains(t, content[0]["text"], "ref#1#chr1")
	})

	t.Run("ToolsCallMissingParams", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(4), "method": "tools/call",
		})

		errObj, ok := resp["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, -32602, errObj["code"])
	})

	t.Run("UnknownToolFails", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(5), "method": "tools/call",
			"params": map[string]any{"name": "bogus"},
		})

		errObj, ok := resp["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, -32603, errObj["code"])
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		resp := server.handleRequest(ctx, map[string]any{
			"jsonrpc": "2.0", "id": float64(6), "method": "bogus/method",
		})

		errObj, ok := resp["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, -32601, errObj["code"])
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	t.Run("NilStreamsRejected", func(t *testing.T) {
		server := NewServer(seededStore(t))
		err := server.Run(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("EOFExitsClean", func(t *testing.T) {
		server := NewServer(seededStore(t))
		err := server.Run(context.Background(), strings.NewReader(""), &bytes.Buffer{})
		assert.NoError(t, err)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		server := NewServer(seededStore(t))

		input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"invfind://overview"}}` + "\n"
		var out bytes.Buffer

		require.NoError(t, server.Run(context.Background(), strings.NewReader(input), &out))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)

		var first, second map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
		assert.Equal(t, float64(1), first["id"])
		assert.Equal(t, float64(2), second["id"])
		assert.Contains(t, lines[1], "ref#1#chr1")
	})
}

package functional_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gigboard/internal/testserver"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0xa11ce00000000000000000000000000000000001"
	bob   = "0xb0b0000000000000000000000000000000000002"
)

// connectHTTP opens an MCP client session against the server's /mcp endpoint.
func connectHTTP(t *testing.T, ts *testserver.TestServer) *sdkmcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: ts.Server.URL + "/mcp"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool calls a tool and returns its JSON text content.
func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (json.RawMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)

	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return json.RawMessage(text.Text), result.IsError
		}
	}
	t.Fatalf("Tool %s returned no text content", name)
	return nil, false
}

func mustCall(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	raw, isError := callTool(t, session, name, args)
	require.False(t, isError, "Tool %s returned error: %s", name, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func TestHTTPFunctional_MarketplaceOverMCP(t *testing.T) {
	ts := testserver.New(t, alice)
	session := connectHTTP(t, ts)

	var created struct {
		State     string  `json:"state"`
		ProjectID *uint64 `json:"project_id"`
	}
	mustCall(t, session, "create_project", map[string]any{
		"name": "Audit", "description": "Review a contract", "amount": "1.5",
	}, &created)
	require.Equal(t, "REBUILD_TRIGGERED", created.State)
	require.NotNil(t, created.ProjectID)

	var market struct {
		Count    int `json:"count"`
		Projects []struct {
			Name   string `json:"name"`
			Amount string `json:"amount"`
		} `json:"projects"`
	}
	mustCall(t, session, "list_marketplace", map[string]any{"filter_by": "all", "sort_by": "newest"}, &market)
	require.Equal(t, 1, market.Count)
	require.Equal(t, "1.5", market.Projects[0].Amount)

	// The HTTP API sees the same session.
	var status struct {
		Account string `json:"account"`
	}
	mustCall(t, session, "switch_account", map[string]any{"account": bob}, &status)
	require.Equal(t, bob, status.Account)

	code, body := ts.Do(t, "POST", "/v1/projects/0/accept", nil)
	require.Equal(t, 200, code, "body: %s", body)

	var stats struct {
		ActiveProjects int `json:"active_projects"`
	}
	mustCall(t, session, "get_account_stats", map[string]any{"account": alice}, &stats)
	require.Equal(t, 1, stats.ActiveProjects)
}

func TestHTTPFunctional_ToolErrors(t *testing.T) {
	ts := testserver.New(t, "")
	session := connectHTTP(t, ts)

	raw, isError := callTool(t, session, "accept_project", map[string]any{"id": 0})
	require.True(t, isError)

	var apiErr struct {
		Code         string `json:"code"`
		RecoveryHint string `json:"recovery_hint"`
	}
	require.NoError(t, json.Unmarshal(raw, &apiErr))
	require.Equal(t, "NO_ACCOUNT", apiErr.Code)
	require.NotEmpty(t, apiErr.RecoveryHint)
}

package functional_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// stdioSession wraps an MCP client session for stdio transport testing
type stdioSession struct {
	session *sdkmcp.ClientSession
	cancel  context.CancelFunc
}

func newStdioSession(t *testing.T) *stdioSession {
	t.Helper()

	// Find the binary
	binaryPath := "./bin/gigboard"
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		binaryPath = "../../bin/gigboard"
		if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
			t.Skip("Server binary not found. Run 'make build' first.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"GIGBOARD_TRANSPORT_MODE=stdio",
		"GIGBOARD_STORE_PATH=:memory:",
		"GIGBOARD_LEDGER_DRIVER=dev",
		"GIGBOARD_LEDGER_DEV_ACCOUNT="+alice,
	)

	transport := &sdkmcp.CommandTransport{Command: cmd}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
	})

	return &stdioSession{session: session, cancel: cancel}
}

func (s *stdioSession) callTool(t *testing.T, name string, args map[string]any) json.RawMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	require.False(t, result.IsError, "Tool %s returned error", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)

	// Extract text content
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			return json.RawMessage(textContent.Text)
		}
	}
	t.Fatalf("Tool %s returned no text content", name)
	return nil
}

func TestStdioFunctional_CreateAndBrowse(t *testing.T) {
	s := newStdioSession(t)

	var status struct {
		Account string `json:"account"`
		Ready   bool   `json:"ready"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "session_status", map[string]any{}), &status))
	require.Equal(t, alice, status.Account)
	require.True(t, status.Ready)

	s.callTool(t, "create_project", map[string]any{
		"name": "Logo", "description": "Design a logo", "amount": "0.1",
	})

	var market struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "list_marketplace", map[string]any{"search_term": "logo"}), &market))
	require.Equal(t, 1, market.Count)

	var overview struct {
		Open      int    `json:"open"`
		OpenValue string `json:"open_value"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "get_overview", map[string]any{}), &overview))
	require.Equal(t, 1, overview.Open)
	require.Equal(t, "0.1", overview.OpenValue)
}

func TestStdioFunctional_AccountSwitch(t *testing.T) {
	s := newStdioSession(t)

	s.callTool(t, "create_project", map[string]any{
		"name": "Logo", "description": "Design a logo", "amount": "0.1",
	})
	s.callTool(t, "switch_account", map[string]any{"account": bob})
	s.callTool(t, "accept_project", map[string]any{"id": 0})
	s.callTool(t, "complete_project", map[string]any{"id": 0})

	var stats struct {
		Completed int    `json:"completed_projects"`
		Earnings  string `json:"total_earnings"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "get_account_stats", map[string]any{"account": alice}), &stats))
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, "0.1", stats.Earnings)

	require.NoError(t, json.Unmarshal(s.callTool(t, "get_account_stats", map[string]any{}), &stats))
	require.Zero(t, stats.Completed)
	require.Equal(t, "0", stats.Earnings)

	var actions struct {
		Actions []struct {
			Kind string `json:"kind"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(s.callTool(t, "list_actions", map[string]any{}), &actions))
	require.Len(t, actions.Actions, 2)
	require.Equal(t, "complete", actions.Actions[0].Kind)
}

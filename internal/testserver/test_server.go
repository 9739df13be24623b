package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/mcp"
	"github.com/rpggio/gigboard/internal/sqlite"
	"github.com/rpggio/gigboard/internal/transport"
	"github.com/stretchr/testify/require"
)

// TestServer runs the HTTP API and MCP endpoint over a dev ledger.
type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Ledger   *sqlite.Ledger
	Sessions *session.Manager
}

// New starts a server whose session is connected as account. An unset
// account starts read-only.
func New(t *testing.T, account ledger.Account) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	l := sqlite.NewLedger(db)
	manager := session.NewManager(
		l,
		ledger.StaticIdentity(account),
		activity.NewService(sqlite.NewActivityRepository(db), nil),
		session.Config{SettlementTimeout: 5 * time.Second},
	)
	_, err = manager.Start(context.Background())
	require.NoError(t, err)

	mcpServer := mcp.NewServer(mcp.Config{Sessions: manager, TransportMode: "http"})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Sessions: manager,
		MCP:      mcpHandler,
	}))

	t.Cleanup(func() {
		server.Close()
		manager.Disconnect()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		DB:       db,
		Ledger:   l,
		Sessions: manager,
	}
}

// Do sends a JSON request and returns the status and raw body.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// JSON sends a request, requires status, and decodes the body into out.
func (ts *TestServer) JSON(t *testing.T, method, path string, body any, status int, out any) {
	t.Helper()
	code, data := ts.Do(t, method, path, body)
	require.Equal(t, status, code, "body: %s", data)
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

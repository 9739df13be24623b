package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const (
	accountKey contextKey = iota
	sessionIDKey
)

// getAccount returns the connected account recorded for the request.
func getAccount(ctx context.Context) string {
	v, _ := ctx.Value(accountKey).(string)
	return v
}

// getSessionID returns the marketplace session serving the request.
func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// accountMiddleware tags each request with the current session and account.
// Requests still proceed without a session so tools can report NO_SESSION.
func accountMiddleware(sessions SessionProvider) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if sessions != nil {
				if s, err := sessions.Current(); err == nil {
					ctx = context.WithValue(ctx, sessionIDKey, s.ID())
					account := s.Account().Key()
					if account == "" {
						account = "read-only"
					}
					ctx = context.WithValue(ctx, accountKey, account)
				}
			}
			return next(ctx, method, req)
		}
	}
}

package transport

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
)

const (
	sessionKey      = "gigboard.session"
	sessionIDHeader = "Gigboard-Session-Id"
)

// SessionProvider supplies the current session and replaces it on account changes.
type SessionProvider interface {
	Current() (*session.Session, error)
	SwitchAccount(ctx context.Context, account ledger.Account) (*session.Session, error)
}

// SessionFromContext returns the session resolved for the request, if present.
func SessionFromContext(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

// sessionMiddleware resolves the current session and echoes its ID in the
// response. Requests without a session are rejected.
func sessionMiddleware(sessions SessionProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.Current()
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Header(sessionIDHeader, s.ID())
		c.Next()
	}
}

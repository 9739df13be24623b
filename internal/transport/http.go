// Package transport serves the marketplace over HTTP with gin.
package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/query"
)

// Config wires the HTTP server.
type Config struct {
	Sessions SessionProvider
	// MCP, when set, is mounted at /mcp.
	MCP    http.Handler
	Logger *slog.Logger
}

type server struct {
	sessions SessionProvider
	logger   *slog.Logger
}

// NewServer creates the HTTP router.
func NewServer(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Logger))

	srv := &server{sessions: cfg.Sessions, logger: cfg.Logger}

	r.GET("/health", srv.handleHealth)
	if cfg.MCP != nil {
		r.Any("/mcp", gin.WrapH(cfg.MCP))
	}

	v1 := r.Group("/v1")
	v1.PUT("/session/account", srv.switchAccount)

	api := v1.Group("", sessionMiddleware(cfg.Sessions))
	api.GET("/session", srv.getSession)
	api.POST("/session/refresh", srv.refresh)

	api.GET("/marketplace", srv.listMarketplace)
	api.GET("/overview", srv.getOverview)
	api.GET("/projects/:id", srv.getProject)
	api.POST("/projects", srv.createProject)
	api.POST("/projects/:id/accept", srv.acceptProject)
	api.POST("/projects/:id/complete", srv.completeProject)

	api.GET("/accounts/:account/created", srv.listCreated)
	api.GET("/accounts/:account/purchased", srv.listPurchased)
	api.GET("/accounts/:account/stats", srv.getStatistics)
	api.GET("/accounts/:account/profile", srv.getProfile)
	api.PUT("/profile", srv.updateProfile)

	api.GET("/actions", srv.listActions)
	api.GET("/actions/:id", srv.getAction)
	api.GET("/activity", srv.listActivity)

	return r
}

func (s *server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *server) getSession(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	c.JSON(http.StatusOK, sess.Info())
}

func (s *server) switchAccount(c *gin.Context) {
	var req SwitchAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := s.sessions.SwitchAccount(c.Request.Context(), ledger.Account(req.Account))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header(sessionIDHeader, sess.ID())
	c.JSON(http.StatusOK, sess.Info())
}

func (s *server) refresh(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	if _, err := sess.Refresh(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

func (s *server) listMarketplace(c *gin.Context) {
	var q MarketplaceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", query.ErrInvalidParams, err))
		return
	}
	sess, _ := SessionFromContext(c)
	listing, err := sess.Marketplace(query.Params{
		SearchTerm: q.Search,
		FilterBy:   query.FilterBy(q.Filter),
		SortBy:     query.SortBy(q.Sort),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectList(listing))
}

func (s *server) getOverview(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	o, err := sess.Overview()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) getProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	sess, _ := SessionFromContext(c)
	p, err := sess.Project(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) createProject(c *gin.Context) {
	var req CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, _ := SessionFromContext(c)
	a, err := sess.Create(c.Request.Context(), req.Name, req.Description, req.Amount)
	writeAction(c, http.StatusCreated, a, err)
}

func (s *server) acceptProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var req AcceptProjectRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	sess, _ := SessionFromContext(c)
	a, err := sess.Accept(c.Request.Context(), id, req.Escrow)
	writeAction(c, http.StatusOK, a, err)
}

func (s *server) completeProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	sess, _ := SessionFromContext(c)
	a, err := sess.Complete(c.Request.Context(), id)
	writeAction(c, http.StatusOK, a, err)
}

func (s *server) listCreated(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	listing, err := sess.Created(accountParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectList(listing))
}

func (s *server) listPurchased(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	listing, err := sess.Purchased(accountParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectList(listing))
}

func (s *server) getStatistics(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	stats, err := sess.Statistics(accountParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *server) getProfile(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	summary, err := sess.Profile(c.Request.Context(), accountParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfile(summary))
}

func (s *server) updateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, _ := SessionFromContext(c)
	a, err := sess.UpdateProfile(c.Request.Context(), action.ProfileRequest{
		Name:   req.Name,
		Bio:    req.Bio,
		Avatar: req.Avatar,
	})
	writeAction(c, http.StatusOK, a, err)
}

func (s *server) listActions(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	c.JSON(http.StatusOK, gin.H{"actions": sess.Actions()})
}

func (s *server) getAction(c *gin.Context) {
	sess, _ := SessionFromContext(c)
	a, ok := sess.Action(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Code:    "ACTION_NOT_FOUND",
			Message: fmt.Sprintf("no action %q in this session", c.Param("id")),
		})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *server) listActivity(c *gin.Context) {
	var q ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err))
		return
	}
	opts := activity.ListActivityOptions{
		ProjectID: q.ProjectID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if q.ActionID != "" {
		opts.ActionID = &q.ActionID
	}
	if q.Type != "" {
		t := activity.ActivityType(q.Type)
		opts.ActivityType = &t
	}
	sess, _ := SessionFromContext(c)
	entries, err := sess.Activity(c.Request.Context(), opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func projectID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: project id %q", ledger.ErrInvalidInput, c.Param("id")))
		return 0, false
	}
	return id, true
}

// accountParam treats "me" as the session's own account.
func accountParam(c *gin.Context) ledger.Account {
	acct := c.Param("account")
	if acct == "me" {
		return ""
	}
	return ledger.Account(acct)
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err))
		return false
	}
	return true
}

// writeAction reports a write. Failed writes carry the action in details.
func writeAction(c *gin.Context, status int, a action.Action, err error) {
	if err != nil {
		code, resp := MapErrorToHTTP(err)
		if a.ID != "" {
			resp.Details = a
		}
		c.AbortWithStatusJSON(code, resp)
		return
	}
	c.JSON(status, a)
}

func abortWithError(c *gin.Context, err error) {
	code, resp := MapErrorToHTTP(err)
	c.AbortWithStatusJSON(code, resp)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		logger.Debug("http request", attrs...)
	}
}

package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/query"
)

type toolHandlers struct {
	sessions SessionProvider
}

func registerTools(server *sdkmcp.Server, sessions SessionProvider) {
	h := &toolHandlers{sessions: sessions}

	// Session
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "session_status",
		Description: "Report the connected account and the freshness of the marketplace snapshot",
	}, h.sessionStatus)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "switch_account",
		Description: "Connect a different account. Replaces the session and rebuilds the snapshot",
	}, h.switchAccount)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_marketplace",
		Description: "Rebuild the snapshot from the ledger. On failure the previous snapshot stays visible and is marked stale",
	}, h.refresh)

	// Browse
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_marketplace",
		Description: "List open projects with optional search, filter and sort",
	}, h.listMarketplace)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get one project by ID from the current snapshot",
	}, h.getProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_created_projects",
		Description: "List projects created by an account",
	}, h.listCreated)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_purchased_projects",
		Description: "List projects accepted by an account",
	}, h.listPurchased)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_account_stats",
		Description: "Get project counts, earnings and reputation for an account",
	}, h.accountStats)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_overview",
		Description: "Get ledger-wide project counts and values",
	}, h.overview)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_profile",
		Description: "Get an account's published profile and statistics",
	}, h.getProfile)

	// Write
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Publish a new project. Waits for settlement and refreshes the snapshot",
	}, h.createProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "accept_project",
		Description: "Accept an open project, escrowing exactly its amount",
	}, h.acceptProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "complete_project",
		Description: "Mark an accepted project complete, releasing escrow to the creator",
	}, h.completeProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_profile",
		Description: "Publish the connected account's profile",
	}, h.updateProfile)

	// Actions
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_action",
		Description: "Get the lifecycle of a write action",
	}, h.getAction)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_actions",
		Description: "List this session's write actions, newest first",
	}, h.listActions)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_activity",
		Description: "List the connected account's recent activity",
	}, h.listActivity)
}

func (h *toolHandlers) current() (*session.Session, error) {
	return h.sessions.Current()
}

func (h *toolHandlers) sessionStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, SessionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, SessionResult{}, toolError(err)
	}
	return nil, toSessionResult(s.Info()), nil
}

func (h *toolHandlers) switchAccount(ctx context.Context, _ *sdkmcp.CallToolRequest, in SwitchAccountParams) (*sdkmcp.CallToolResult, SessionResult, error) {
	s, err := h.sessions.SwitchAccount(ctx, ledger.Account(in.Account))
	if err != nil {
		return nil, SessionResult{}, toolError(err)
	}
	return nil, toSessionResult(s.Info()), nil
}

func (h *toolHandlers) refresh(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, SessionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, SessionResult{}, toolError(err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, SessionResult{}, toolError(err)
	}
	return nil, toSessionResult(s.Info()), nil
}

func (h *toolHandlers) listMarketplace(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListMarketplaceParams) (*sdkmcp.CallToolResult, ProjectListResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	listing, err := s.Marketplace(query.Params{
		SearchTerm: in.SearchTerm,
		FilterBy:   query.FilterBy(in.FilterBy),
		SortBy:     query.SortBy(in.SortBy),
	})
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	return nil, toProjectList(listing), nil
}

func (h *toolHandlers) getProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectIDParams) (*sdkmcp.CallToolResult, ProjectView, error) {
	s, err := h.current()
	if err != nil {
		return nil, ProjectView{}, toolError(err)
	}
	p, err := s.Project(in.ID)
	if err != nil {
		return nil, ProjectView{}, toolError(err)
	}
	return nil, toProjectView(p), nil
}

func (h *toolHandlers) listCreated(ctx context.Context, _ *sdkmcp.CallToolRequest, in AccountParams) (*sdkmcp.CallToolResult, ProjectListResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	listing, err := s.Created(ledger.Account(in.Account))
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	return nil, toProjectList(listing), nil
}

func (h *toolHandlers) listPurchased(ctx context.Context, _ *sdkmcp.CallToolRequest, in AccountParams) (*sdkmcp.CallToolResult, ProjectListResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	listing, err := s.Purchased(ledger.Account(in.Account))
	if err != nil {
		return nil, ProjectListResult{}, toolError(err)
	}
	return nil, toProjectList(listing), nil
}

func (h *toolHandlers) accountStats(ctx context.Context, _ *sdkmcp.CallToolRequest, in AccountParams) (*sdkmcp.CallToolResult, StatisticsResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, StatisticsResult{}, toolError(err)
	}
	stats, err := s.Statistics(ledger.Account(in.Account))
	if err != nil {
		return nil, StatisticsResult{}, toolError(err)
	}
	return nil, toStatistics(stats), nil
}

func (h *toolHandlers) overview(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, OverviewResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, OverviewResult{}, toolError(err)
	}
	o, err := s.Overview()
	if err != nil {
		return nil, OverviewResult{}, toolError(err)
	}
	return nil, toOverview(o), nil
}

func (h *toolHandlers) getProfile(ctx context.Context, _ *sdkmcp.CallToolRequest, in AccountParams) (*sdkmcp.CallToolResult, ProfileResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ProfileResult{}, toolError(err)
	}
	summary, err := s.Profile(ctx, ledger.Account(in.Account))
	if err != nil {
		return nil, ProfileResult{}, toolError(err)
	}
	return nil, toProfile(summary), nil
}

func (h *toolHandlers) createProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateProjectParams) (*sdkmcp.CallToolResult, ActionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionResult{}, toolError(err)
	}
	return writeResult(s.Create(ctx, in.Name, in.Description, in.Amount))
}

func (h *toolHandlers) acceptProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in AcceptProjectParams) (*sdkmcp.CallToolResult, ActionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionResult{}, toolError(err)
	}
	return writeResult(s.Accept(ctx, in.ID, in.Escrow))
}

func (h *toolHandlers) completeProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectIDParams) (*sdkmcp.CallToolResult, ActionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionResult{}, toolError(err)
	}
	return writeResult(s.Complete(ctx, in.ID))
}

func (h *toolHandlers) updateProfile(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpdateProfileParams) (*sdkmcp.CallToolResult, ActionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionResult{}, toolError(err)
	}
	return writeResult(s.UpdateProfile(ctx, action.ProfileRequest{Name: in.Name, Bio: in.Bio, Avatar: in.Avatar}))
}

func (h *toolHandlers) getAction(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetActionParams) (*sdkmcp.CallToolResult, ActionResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionResult{}, toolError(err)
	}
	a, ok := s.Action(in.ID)
	if !ok {
		return nil, ActionResult{}, toolError(&APIError{
			Code:         "ACTION_NOT_FOUND",
			Message:      fmt.Sprintf("no action %q in this session", in.ID),
			RecoveryHint: "Use list_actions to see tracked actions",
		})
	}
	return nil, toActionResult(a), nil
}

func (h *toolHandlers) listActions(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, ActionListResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActionListResult{}, toolError(err)
	}
	actions := s.Actions()
	out := ActionListResult{Actions: make([]ActionResult, 0, len(actions))}
	for _, a := range actions {
		out.Actions = append(out.Actions, toActionResult(a))
	}
	return nil, out, nil
}

func (h *toolHandlers) listActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListActivityParams) (*sdkmcp.CallToolResult, ActivityListResult, error) {
	s, err := h.current()
	if err != nil {
		return nil, ActivityListResult{}, toolError(err)
	}
	opts := activity.ListActivityOptions{
		ProjectID: in.ProjectID,
		Limit:     in.Limit,
		Offset:    in.Offset,
	}
	if in.ActionID != "" {
		opts.ActionID = &in.ActionID
	}
	if in.ActivityType != "" {
		t := activity.ActivityType(in.ActivityType)
		opts.ActivityType = &t
	}
	entries, err := s.Activity(ctx, opts)
	if err != nil {
		return nil, ActivityListResult{}, toolError(err)
	}
	out := ActivityListResult{Entries: make([]ActivityView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toActivityView(e))
	}
	return nil, out, nil
}

// writeResult attaches the failed action to the error so callers can look it up.
func writeResult(a action.Action, err error) (*sdkmcp.CallToolResult, ActionResult, error) {
	if err != nil {
		apiErr := MapError(err)
		if a.ID != "" {
			apiErr.Details = toActionResult(a)
		}
		return nil, ActionResult{}, toolFailure{apiErr}
	}
	return nil, toActionResult(a), nil
}

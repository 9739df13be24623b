package mcp

import (
	"time"

	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/readmodel"
)

type EmptyParams struct{}

type ListMarketplaceParams struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"case-insensitive substring matched against name and description"`
	FilterBy   string `json:"filter_by,omitempty" jsonschema:"all, recent or today"`
	SortBy     string `json:"sort_by,omitempty" jsonschema:"newest, oldest, price-high or price-low"`
}

type ProjectIDParams struct {
	ID uint64 `json:"id" jsonschema:"project ID (ledger index)"`
}

type AccountParams struct {
	Account string `json:"account,omitempty" jsonschema:"account address; omit for the connected account"`
}

type CreateProjectParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      string `json:"amount" jsonschema:"price in major units, for example 0.1"`
}

type AcceptProjectParams struct {
	ID     uint64 `json:"id" jsonschema:"project ID (ledger index)"`
	Escrow string `json:"escrow,omitempty" jsonschema:"escrow in major units; omit to use the listed amount"`
}

type UpdateProfileParams struct {
	Name   string `json:"name"`
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type GetActionParams struct {
	ID string `json:"id" jsonschema:"action ID returned by a write tool"`
}

type ListActivityParams struct {
	ActionID     string  `json:"action_id,omitempty"`
	ProjectID    *uint64 `json:"project_id,omitempty"`
	ActivityType string  `json:"activity_type,omitempty"`
	Limit        int     `json:"limit,omitempty"`
	Offset       int     `json:"offset,omitempty"`
}

type SwitchAccountParams struct {
	Account string `json:"account" jsonschema:"account address to connect"`
}

type ProjectView struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	Creator      string `json:"creator"`
	Counterparty string `json:"counterparty,omitempty"`
	Deadline     uint64 `json:"deadline"`
	AgeLabel     string `json:"age_label"`
	State        string `json:"state"`
	IsAccepted   bool   `json:"is_accepted"`
	IsCompleted  bool   `json:"is_completed"`
}

type ProjectListResult struct {
	Projects    []ProjectView `json:"projects"`
	Count       int           `json:"count"`
	Stale       bool          `json:"stale"`
	LastError   string        `json:"last_error,omitempty"`
	RefreshedAt string        `json:"refreshed_at,omitempty"`
}

type SessionResult struct {
	ID          string `json:"id"`
	Account     string `json:"account,omitempty"`
	ReadOnly    bool   `json:"read_only"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
	Ready       bool   `json:"ready"`
	Stale       bool   `json:"stale"`
	LastError   string `json:"last_error,omitempty"`
	RefreshedAt string `json:"refreshed_at,omitempty"`
	Generation  uint64 `json:"generation"`
	InFlight    int    `json:"in_flight"`
}

type StatisticsResult struct {
	Account        string `json:"account"`
	TotalProjects  int    `json:"total_projects"`
	ActiveProjects int    `json:"active_projects"`
	Completed      int    `json:"completed_projects"`
	Earnings       string `json:"total_earnings"`
	Reputation     int    `json:"reputation"`
}

type OverviewResult struct {
	TotalRecords int    `json:"total_records"`
	Open         int    `json:"open"`
	Accepted     int    `json:"accepted"`
	Completed    int    `json:"completed"`
	OpenValue    string `json:"open_value"`
	EscrowValue  string `json:"escrow_value"`
}

type ProfileResult struct {
	Account    string           `json:"account"`
	Name       string           `json:"name"`
	Bio        string           `json:"bio,omitempty"`
	Avatar     string           `json:"avatar,omitempty"`
	Published  bool             `json:"published"`
	Statistics StatisticsResult `json:"statistics"`
}

type TransitionView struct {
	State string `json:"state"`
	At    string `json:"at"`
}

type ActionResult struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Account      string           `json:"account"`
	ProjectID    *uint64          `json:"project_id,omitempty"`
	State        string           `json:"state"`
	Handle       string           `json:"handle,omitempty"`
	FailureKind  string           `json:"failure_kind,omitempty"`
	Error        string           `json:"error,omitempty"`
	RevertReason string           `json:"revert_reason,omitempty"`
	RebuildError string           `json:"rebuild_error,omitempty"`
	Transitions  []TransitionView `json:"transitions"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
}

type ActionListResult struct {
	Actions []ActionResult `json:"actions"`
}

type ActivityView struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id,omitempty"`
	ActionID  string  `json:"action_id,omitempty"`
	ProjectID *uint64 `json:"project_id,omitempty"`
	Type      string  `json:"type"`
	Summary   string  `json:"summary"`
	Details   string  `json:"details,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type ActivityListResult struct {
	Entries []ActivityView `json:"entries"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toProjectView(p project.Project) ProjectView {
	return ProjectView{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Amount:       p.FormattedAmount,
		Creator:      p.Creator.String(),
		Counterparty: p.Counterparty.String(),
		Deadline:     p.Deadline,
		AgeLabel:     p.AgeLabel,
		State:        string(p.State),
		IsAccepted:   p.IsAccepted,
		IsCompleted:  p.IsCompleted,
	}
}

func toProjectList(l session.Listing) ProjectListResult {
	out := ProjectListResult{
		Projects:    make([]ProjectView, 0, len(l.Projects)),
		Count:       len(l.Projects),
		Stale:       l.Stale,
		RefreshedAt: formatTime(l.RefreshedAt),
	}
	if l.LastError != nil {
		out.LastError = l.LastError.Error()
	}
	for _, p := range l.Projects {
		out.Projects = append(out.Projects, toProjectView(p))
	}
	return out
}

func toSessionResult(info session.Info) SessionResult {
	return SessionResult{
		ID:          info.ID,
		Account:     info.Account.String(),
		ReadOnly:    info.ReadOnly,
		Status:      string(info.Status),
		StartedAt:   formatTime(info.StartedAt),
		Ready:       info.Ready,
		Stale:       info.Stale,
		LastError:   info.LastError,
		RefreshedAt: formatTime(info.RefreshedAt),
		Generation:  info.Generation,
		InFlight:    info.InFlight,
	}
}

func toStatistics(s readmodel.AccountStatistics) StatisticsResult {
	return StatisticsResult{
		Account:        s.Account.String(),
		TotalProjects:  s.TotalProjects,
		ActiveProjects: s.ActiveProjects,
		Completed:      s.Completed,
		Earnings:       s.Earnings,
		Reputation:     s.Reputation,
	}
}

func toOverview(o readmodel.Overview) OverviewResult {
	return OverviewResult(o)
}

func toProfile(s session.ProfileSummary) ProfileResult {
	return ProfileResult{
		Account:    s.Statistics.Account.String(),
		Name:       s.Profile.Name,
		Bio:        s.Profile.Bio,
		Avatar:     s.Profile.Avatar,
		Published:  !s.Profile.IsEmpty(),
		Statistics: toStatistics(s.Statistics),
	}
}

func toActionResult(a action.Action) ActionResult {
	out := ActionResult{
		ID:           a.ID,
		Kind:         string(a.Kind),
		Account:      a.Account.String(),
		ProjectID:    a.ProjectID,
		State:        string(a.State),
		Handle:       string(a.Handle),
		FailureKind:  string(a.FailureKind),
		Error:        a.Error,
		RevertReason: a.RevertReason,
		RebuildError: a.RebuildError,
		Transitions:  make([]TransitionView, 0, len(a.Transitions)),
		CreatedAt:    formatTime(a.CreatedAt),
		UpdatedAt:    formatTime(a.UpdatedAt),
	}
	for _, t := range a.Transitions {
		out.Transitions = append(out.Transitions, TransitionView{State: string(t.State), At: formatTime(t.At)})
	}
	return out
}

func toActivityView(e activity.ActivityEntry) ActivityView {
	v := ActivityView{
		ID:        e.ID,
		SessionID: e.SessionID,
		ProjectID: e.ProjectID,
		Type:      string(e.ActivityType),
		Summary:   e.Summary,
		Details:   e.Details,
		CreatedAt: formatTime(e.CreatedAt),
	}
	if e.ActionID != nil {
		v.ActionID = *e.ActionID
	}
	return v
}

package transport

import (
	"time"

	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/readmodel"
)

// MarketplaceQuery holds the marketplace query string.
type MarketplaceQuery struct {
	Search string `form:"search"`
	Filter string `form:"filter"`
	Sort   string `form:"sort"`
}

// ActivityQuery holds the activity query string.
type ActivityQuery struct {
	Type      string  `form:"type"`
	ActionID  string  `form:"action_id"`
	ProjectID *uint64 `form:"project_id"`
	Limit     int     `form:"limit" binding:"gte=0,lte=500"`
	Offset    int     `form:"offset" binding:"gte=0"`
}

// CreateProjectRequest is the body of POST /v1/projects.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"` // major units, e.g. "0.1"
}

// AcceptProjectRequest is the optional body of POST /v1/projects/:id/accept.
type AcceptProjectRequest struct {
	Escrow string `json:"escrow"` // empty uses the listed amount
}

// UpdateProfileRequest is the body of PUT /v1/profile.
type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"required"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar"`
}

// SwitchAccountRequest is the body of PUT /v1/session/account.
type SwitchAccountRequest struct {
	Account string `json:"account" binding:"required"`
}

// ProjectListResponse is a listing with snapshot freshness.
type ProjectListResponse struct {
	Projects    []project.Project `json:"projects"`
	Count       int               `json:"count"`
	Stale       bool              `json:"stale"`
	LastError   string            `json:"last_error,omitempty"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// ProfileResponse pairs a profile with account statistics.
type ProfileResponse struct {
	Account    ledger.Account              `json:"account"`
	Name       string                      `json:"name"`
	Bio        string                      `json:"bio,omitempty"`
	Avatar     string                      `json:"avatar,omitempty"`
	Published  bool                        `json:"published"`
	Statistics readmodel.AccountStatistics `json:"statistics"`
}

func toProjectList(l session.Listing) ProjectListResponse {
	projects := l.Projects
	if projects == nil {
		projects = []project.Project{}
	}
	resp := ProjectListResponse{
		Projects:    projects,
		Count:       len(projects),
		Stale:       l.Stale,
		RefreshedAt: l.RefreshedAt,
	}
	if l.LastError != nil {
		resp.LastError = l.LastError.Error()
	}
	return resp
}

func toProfile(s session.ProfileSummary) ProfileResponse {
	return ProfileResponse{
		Account:    s.Statistics.Account,
		Name:       s.Profile.Name,
		Bio:        s.Profile.Bio,
		Avatar:     s.Profile.Avatar,
		Published:  !s.Profile.IsEmpty(),
		Statistics: s.Statistics,
	}
}

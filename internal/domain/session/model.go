package session

import (
	"time"

	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/readmodel"
)

// SessionStatus represents the lifecycle status of a session
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// Info describes a session and the freshness of its read model.
type Info struct {
	ID          string         `json:"id"`
	Account     ledger.Account `json:"account,omitempty"`
	ReadOnly    bool           `json:"read_only"`
	Status      SessionStatus  `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	Ready       bool           `json:"ready"`
	Stale       bool           `json:"stale"`
	LastError   string         `json:"last_error,omitempty"`
	RefreshedAt time.Time      `json:"refreshed_at,omitempty"`
	Generation  uint64         `json:"generation"`
	InFlight    int            `json:"in_flight"`
}

// Listing is a query result with the freshness of the snapshot it came from.
type Listing struct {
	Projects    []project.Project
	Stale       bool
	LastError   error
	RefreshedAt time.Time
}

// ProfileSummary pairs a published profile with derived statistics.
type ProfileSummary struct {
	Profile    ledger.Profile
	Statistics readmodel.AccountStatistics
}

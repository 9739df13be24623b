package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeSessionStarted   ActivityType = "session_started"
	TypeSessionClosed    ActivityType = "session_closed"
	TypeAccountSwitched  ActivityType = "account_switched"
	TypeActionTransition ActivityType = "action_transition"
	TypeSnapshotRebuilt  ActivityType = "snapshot_rebuilt"
	TypeSnapshotFailed   ActivityType = "snapshot_failed"
)

// ActivityEntry represents an event in an account's activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	Account      string       `json:"account"`
	SessionID    string       `json:"session_id,omitempty"`
	ActionID     *string      `json:"action_id,omitempty"`
	ProjectID    *uint64      `json:"project_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}

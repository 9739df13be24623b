package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	SessionID    string
	ActionID     *string
	ProjectID    *uint64
	ActivityType *ActivityType
	Limit        int
	Offset       int
}

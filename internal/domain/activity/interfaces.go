package activity

import "context"

// Repository provides persistence operations for activity entries.
type Repository interface {
	Log(ctx context.Context, account string, entry *ActivityEntry) error
	List(ctx context.Context, account string, opts ListActivityOptions) ([]ActivityEntry, error)
}

// Package query filters, searches, and sorts normalized projects.
package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/ledger"
)

// FilterBy selects records by their age label.
type FilterBy string

const (
	FilterAll    FilterBy = "all"
	FilterRecent FilterBy = "recent"
	FilterToday  FilterBy = "today"
)

// SortBy orders the result set.
type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortOldest    SortBy = "oldest"
	SortPriceHigh SortBy = "price-high"
	SortPriceLow  SortBy = "price-low"
)

// ErrInvalidParams indicates an unknown filter or sort value.
var ErrInvalidParams = fmt.Errorf("%w: invalid query parameters", ledger.ErrInvalidInput)

// Params are the caller's query options. Zero values mean all and newest.
type Params struct {
	SearchTerm string   `json:"search_term,omitempty"`
	FilterBy   FilterBy `json:"filter_by,omitempty"`
	SortBy     SortBy   `json:"sort_by,omitempty"`
}

// Normalized fills defaults for empty fields.
func (p Params) Normalized() Params {
	if p.FilterBy == "" {
		p.FilterBy = FilterAll
	}
	if p.SortBy == "" {
		p.SortBy = SortNewest
	}
	return p
}

// Validate rejects unknown filter and sort values.
func (p Params) Validate() error {
	p = p.Normalized()
	switch p.FilterBy {
	case FilterAll, FilterRecent, FilterToday:
	default:
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidParams, p.FilterBy)
	}
	switch p.SortBy {
	case SortNewest, SortOldest, SortPriceHigh, SortPriceLow:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidParams, p.SortBy)
	}
	return nil
}

// Apply returns the projects matching params in the requested order.
// The input slice is not modified. Ties keep ascending ID order.
func Apply(projects []project.Project, params Params) []project.Project {
	params = params.Normalized()
	term := strings.ToLower(params.SearchTerm)

	out := make([]project.Project, 0, len(projects))
	for _, p := range projects {
		if matchesSearch(p, term) && matchesFilter(p, params.FilterBy) {
			out = append(out, p)
		}
	}

	cmp := comparator(params.SortBy)
	slices.SortStableFunc(out, func(a, b project.Project) int {
		if c := cmp(a, b); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func matchesSearch(p project.Project, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term)
}

// Filters match on the rendered age label, so "recent" holds the same day
// and "today" holds anything at least a day old.
func matchesFilter(p project.Project, filter FilterBy) bool {
	switch filter {
	case FilterRecent:
		return strings.Contains(p.AgeLabel, "hour")
	case FilterToday:
		return strings.Contains(p.AgeLabel, "day")
	default:
		return true
	}
}

func comparator(sortBy SortBy) func(a, b project.Project) int {
	switch sortBy {
	case SortNewest:
		return func(a, b project.Project) int { return compareUint(b.Deadline, a.Deadline) }
	case SortOldest:
		return func(a, b project.Project) int { return compareUint(a.Deadline, b.Deadline) }
	case SortPriceHigh:
		return func(a, b project.Project) int { return b.Amount.Cmp(a.Amount) }
	case SortPriceLow:
		return func(a, b project.Project) int { return a.Amount.Cmp(b.Amount) }
	default:
		return func(a, b project.Project) int { return 0 }
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

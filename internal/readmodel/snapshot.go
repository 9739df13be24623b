package readmodel

import (
	"math/big"
	"time"

	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/ledger"
)

// ReputationPerCompletion is the placeholder reputation weight of one completed project.
const ReputationPerCompletion = 10

// Snapshot is an immutable, fully built view of every ledger record.
type Snapshot struct {
	builtAt        time.Time
	projects       []project.Project
	open           []int
	byCreator      map[string][]int
	byCounterparty map[string][]int
}

// AccountStatistics summarizes the projects an account created. Earnings are
// the amounts of its completed projects, paid out of escrow to the creator.
type AccountStatistics struct {
	Account        ledger.Account `json:"account"`
	TotalProjects  int            `json:"total_projects"`
	ActiveProjects int            `json:"active_projects"`
	Completed      int            `json:"completed_projects"`
	EarningsMinor  *big.Int       `json:"-"`
	Earnings       string         `json:"total_earnings"`
	Reputation     int            `json:"reputation"`
}

// Overview aggregates the whole ledger.
type Overview struct {
	TotalRecords int    `json:"total_records"`
	Open         int    `json:"open"`
	Accepted     int    `json:"accepted"`
	Completed    int    `json:"completed"`
	OpenValue    string `json:"open_value"`
	EscrowValue  string `json:"escrow_value"`
}

func newSnapshot(projects []project.Project, builtAt time.Time) *Snapshot {
	s := &Snapshot{
		builtAt:        builtAt,
		projects:       projects,
		byCreator:      make(map[string][]int),
		byCounterparty: make(map[string][]int),
	}
	for i, p := range projects {
		if p.State == project.StateOpen {
			s.open = append(s.open, i)
		}
		if key := p.Creator.Key(); key != "" {
			s.byCreator[key] = append(s.byCreator[key], i)
		}
		if key := p.Counterparty.Key(); key != "" {
			s.byCounterparty[key] = append(s.byCounterparty[key], i)
		}
	}
	return s
}

// BuiltAt is the observation time the snapshot was normalized against.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.projects)
}

// All returns every record in ledger index order.
func (s *Snapshot) All() []project.Project {
	out := make([]project.Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

// Marketplace returns open records in ledger index order.
func (s *Snapshot) Marketplace() []project.Project {
	return s.pick(s.open)
}

// CreatedBy returns records whose creator is account.
func (s *Snapshot) CreatedBy(account ledger.Account) []project.Project {
	return s.pick(s.byCreator[account.Key()])
}

// PurchasedBy returns records whose counterparty is account.
func (s *Snapshot) PurchasedBy(account ledger.Account) []project.Project {
	return s.pick(s.byCounterparty[account.Key()])
}

// Project looks up a record by ID.
func (s *Snapshot) Project(id uint64) (project.Project, bool) {
	if id >= uint64(len(s.projects)) {
		return project.Project{}, false
	}
	return s.projects[id].Clone(), true
}

// Statistics computes account statistics from the counterparty partition.
func (s *Snapshot) Statistics(account ledger.Account) AccountStatistics {
	stats := AccountStatistics{Account: account, EarningsMinor: new(big.Int)}
	for _, i := range s.byCreator[account.Key()] {
		p := s.projects[i]
		stats.TotalProjects++
		switch p.State {
		case project.StateAccepted:
			stats.ActiveProjects++
		case project.StateCompleted:
			stats.Completed++
			stats.EarningsMinor.Add(stats.EarningsMinor, p.Amount)
		}
	}
	stats.Earnings = project.FormatAmount(stats.EarningsMinor)
	stats.Reputation = stats.Completed * ReputationPerCompletion
	return stats
}

// Overview computes ledger-wide totals.
func (s *Snapshot) Overview() Overview {
	openValue := new(big.Int)
	escrow := new(big.Int)
	o := Overview{TotalRecords: len(s.projects)}
	for _, p := range s.projects {
		switch p.State {
		case project.StateOpen:
			o.Open++
			openValue.Add(openValue, p.Amount)
		case project.StateAccepted:
			o.Accepted++
			escrow.Add(escrow, p.Amount)
		case project.StateCompleted:
			o.Completed++
		}
	}
	o.OpenValue = project.FormatAmount(openValue)
	o.EscrowValue = project.FormatAmount(escrow)
	return o
}

func (s *Snapshot) pick(indices []int) []project.Project {
	out := make([]project.Project, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.projects[i].Clone())
	}
	return out
}

package models

import "time"

// Snapshot is the merged result of one refresh cycle. It is built once and
// never mutated after being installed; the next cycle replaces it wholesale.
type Snapshot struct {
	Accounts           []Account              `json:"accounts"`
	BaseCurrency       string                 `json:"base_currency,omitempty"`
	GlobalPerformance  Performance            `json:"global_performance"`
	AccountPerformance map[string]Performance `json:"account_performance"`
	HoldingsByAccount  map[string][]Holding   `json:"holdings_by_account"`
	Watchlist          []WatchlistItem        `json:"watchlist"`
	Degraded           []string               `json:"degraded,omitempty"` // sub-fetches that failed this cycle
	FetchedAt          time.Time              `json:"fetched_at"`
	Elapsed            time.Duration          `json:"elapsed"`
}

// ActiveAccounts returns the accounts that are not excluded, in upstream order.
func (s *Snapshot) ActiveAccounts() []Account {
	if s == nil {
		return nil
	}
	out := make([]Account, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		if !a.IsExcluded {
			out = append(out, a)
		}
	}
	return out
}

// FindAccount returns the account with the given ID.
func (s *Snapshot) FindAccount(id string) (Account, bool) {
	if s == nil {
		return Account{}, false
	}
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Holdings returns the raw holdings for an account, including inert ones.
func (s *Snapshot) Holdings(accountID string) []Holding {
	if s == nil {
		return nil
	}
	return s.HoldingsByAccount[accountID]
}

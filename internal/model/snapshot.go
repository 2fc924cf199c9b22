package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable pair of source tables. Passes read a snapshot and
// never modify it; a reload produces a new one with a new Version.
type Snapshot struct {
	Version   string      `json:"version"`
	LoadedAt  time.Time   `json:"loaded_at"`
	Equipment []Equipment `json:"equipment"`
	Customers []Customer  `json:"customers"`
}

// NewSnapshot stamps the tables with a fresh version.
func NewSnapshot(equipment []Equipment, customers []Customer) *Snapshot {
	return &Snapshot{
		Version:   uuid.New().String(),
		LoadedAt:  time.Now().UTC(),
		Equipment: equipment,
		Customers: customers,
	}
}

// CompanyNames returns the distinct equipment company names in first-seen order.
func (s *Snapshot) CompanyNames() []string {
	seen := make(map[string]struct{}, len(s.Equipment))
	var names []string
	for _, e := range s.Equipment {
		if _, ok := seen[e.Company]; ok {
			continue
		}
		seen[e.Company] = struct{}{}
		names = append(names, e.Company)
	}
	return names
}

// CustomerNames returns the customer names in table order.
func (s *Snapshot) CustomerNames() []string {
	names := make([]string, len(s.Customers))
	for i, c := range s.Customers {
		names[i] = c.Name
	}
	return names
}

// CustomerByName returns the first customer with exactly this name.
func (s *Snapshot) CustomerByName(name string) (Customer, bool) {
	for _, c := range s.Customers {
		if c.Name == name {
			return c, true
		}
	}
	return Customer{}, false
}

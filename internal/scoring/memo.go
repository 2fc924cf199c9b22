package scoring

import (
	"sync"
	"time"

	"github.com/sells-group/hitrate-cli/internal/model"
)

type memoKey struct {
	equipmentID string
	customerID  string
	version     string
	asOf        string
}

// Memo caches Scorer results per (equipment, customer, snapshot version,
// as-of day). Snapshots are immutable, so an entry never goes stale; a new
// snapshot gets a new version and therefore new keys.
type Memo struct {
	scorer *Scorer

	mu      sync.RWMutex
	entries map[memoKey]Result
}

// NewMemo wraps a Scorer with a result cache.
func NewMemo(s *Scorer) *Memo {
	return &Memo{scorer: s, entries: make(map[memoKey]Result)}
}

// Score returns the cached result for the key or computes and stores it.
// The returned Drivers slice is a copy.
func (m *Memo) Score(version string, eq model.Equipment, customer *model.Customer, asOf time.Time) Result {
	key := memoKey{
		equipmentID: eq.ID,
		version:     version,
		asOf:        asOf.Format("2006-01-02"),
	}
	if customer != nil {
		key.customerID = customer.ID + "\x00" + customer.Name
	}

	m.mu.RLock()
	res, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		res = m.scorer.Score(eq, customer, asOf)
		m.mu.Lock()
		m.entries[key] = res
		m.mu.Unlock()
	}

	out := Result{Score: res.Score, Drivers: make([]Driver, len(res.Drivers))}
	copy(out.Drivers, res.Drivers)
	return out
}

// Len returns the number of cached results.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

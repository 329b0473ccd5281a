// Package policy holds the cost and admission rules applied by the LRU
// engine before an entry is allowed to consume budget.
package policy

// AdmissionPolicy decides whether an entry may be stored.
// Implementations must be safe for concurrent use.
type AdmissionPolicy interface {
	// Allow returns true if an entry of the given cost may be admitted.
	Allow(key string, cost int64) bool
}

// NoopAdmission always admits.
type NoopAdmission struct{}

func (NoopAdmission) Allow(key string, cost int64) bool { return true }

// MaxEntryCost rejects entries whose cost exceeds Limit.
type MaxEntryCost struct {
	Limit int64
}

func (m MaxEntryCost) Allow(key string, cost int64) bool {
	return m.Limit <= 0 || cost <= m.Limit
}

// Chain admits an entry only when every policy admits it.
type Chain []AdmissionPolicy

func (c Chain) Allow(key string, cost int64) bool {
	for _, p := range c {
		if !p.Allow(key, cost) {
			return false
		}
	}
	return true
}

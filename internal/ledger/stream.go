package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
)

// stream is the ledger-wide, timestamp-ordered view over every committed
// record. Entries are kept ascending by (timestamp, insertion sequence), so
// readers walk it backwards to get newest-first results.
type stream struct {
	mu      sync.RWMutex
	entries []domain.Transaction
}

func (s *stream) insert(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First entry strictly newer than tx; equal timestamps keep insertion order.
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Timestamp.After(tx.Timestamp)
	})
	s.entries = append(s.entries, domain.Transaction{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = tx
}

// recent returns up to limit records, newest first. limit <= 0 means all.
func (s *stream) recent(limit int) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Transaction, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// between returns records whose amount lies in [min, max], newest first.
func (s *stream) between(min, max decimal.Decimal) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		amount := s.entries[i].Amount
		if amount.GreaterThanOrEqual(min) && amount.LessThanOrEqual(max) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *stream) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

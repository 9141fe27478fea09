package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the risk-event log in process memory. Entries are
// held in ascending timestamp order so window queries stay cheap.
type MemoryStore struct {
	mu      sync.RWMutex
	metrics []RiskMetric
	nextID  int64
}

// NewMemoryStore creates an empty in-memory risk-event log
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append writes one event and returns its assigned ID
func (s *MemoryStore) Append(ctx context.Context, metric RiskMetric) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metric.ID = s.nextID
	s.nextID++
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = metric.Timestamp
	}

	// Most appends arrive in order; re-sort only on out-of-order inserts.
	s.metrics = append(s.metrics, metric)
	n := len(s.metrics)
	if n > 1 && s.metrics[n-1].Timestamp.Before(s.metrics[n-2].Timestamp) {
		sort.SliceStable(s.metrics, func(i, j int) bool {
			return s.metrics[i].Timestamp.Before(s.metrics[j].Timestamp)
		})
	}

	return metric.ID, nil
}

// Window retrieves events in the range, most recent first
func (s *MemoryStore) Window(ctx context.Context, tr TimeRange, limit int) ([]RiskMetric, error) {
	return s.filter(ctx, tr, limit, func(RiskMetric) bool { return true })
}

// BySymbol retrieves events for one underlying, most recent first
func (s *MemoryStore) BySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]RiskMetric, error) {
	return s.filter(ctx, tr, limit, func(m RiskMetric) bool { return m.Symbol == symbol })
}

// Count returns the number of events in the range
func (s *MemoryStore) Count(ctx context.Context, tr TimeRange) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.metrics {
		if tr.Contains(m.Timestamp) {
			count++
		}
	}
	return count, nil
}

// Ping always succeeds for the in-memory backend
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory backend
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the total number of stored events
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metrics)
}

func (s *MemoryStore) filter(ctx context.Context, tr TimeRange, limit int, keep func(RiskMetric) bool) ([]RiskMetric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RiskMetric
	for i := len(s.metrics) - 1; i >= 0; i-- {
		m := s.metrics[i]
		if !tr.Contains(m.Timestamp) || !keep(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

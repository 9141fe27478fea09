// Package store persists the append-only risk-event log. Two backends
// share one interface: an in-memory store for tests and single-process
// runs, and a PostgreSQL store for durable deployments.
package store

import (
	"context"
	"time"
)

// TimeRange bounds a query window, inclusive on both ends
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether ts falls inside the range
func (tr TimeRange) Contains(ts time.Time) bool {
	return !ts.Before(tr.From) && !ts.After(tr.To)
}

// RiskMetric is one immutable row of the risk-event log. Trigger and
// Reason are empty when no stop-loss condition fired for the event.
type RiskMetric struct {
	ID         int64     `json:"id" db:"id"`
	Timestamp  time.Time `json:"ts" db:"ts"`
	Symbol     string    `json:"symbol" db:"symbol"`
	PositionID string    `json:"position_id" db:"position_id"`
	LossAmount float64   `json:"loss_amount" db:"loss_amount"`
	Trigger    string    `json:"trigger,omitempty" db:"trigger_type"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Store is the risk-event log backend. Append is the only write path;
// rows are never updated or deleted.
type Store interface {
	// Append writes one event and returns its assigned ID
	Append(ctx context.Context, metric RiskMetric) (int64, error)

	// Window retrieves events in the range, most recent first.
	// A limit <= 0 means no limit.
	Window(ctx context.Context, tr TimeRange, limit int) ([]RiskMetric, error)

	// BySymbol retrieves events for one underlying, most recent first
	BySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]RiskMetric, error)

	// Count returns the number of events in the range
	Count(ctx context.Context, tr TimeRange) (int64, error)

	// Ping tests backend connectivity
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

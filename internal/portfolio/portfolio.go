package portfolio

import (
	"sort"
	"sync"

	"github.com/htn332805/RemDarwin-sub003/internal/options"
)

// Portfolio is a point-in-time snapshot of the open short-options book
// plus the collateral backing it. The trade-management layer owns the
// authoritative state; the risk engine only reads snapshots and never
// mutates positions in place.
type Portfolio struct {
	Positions    []options.Position `json:"positions"`
	Value        float64            `json:"value"`
	ReservedCash float64            `json:"reserved_cash"`
	SharesHeld   map[string]float64 `json:"shares_held,omitempty"`
}

// New builds an empty portfolio with the given total value
func New(value float64) *Portfolio {
	return &Portfolio{
		Value:      value,
		SharesHeld: make(map[string]float64),
	}
}

// OpenCount returns the number of open positions
func (p *Portfolio) OpenCount() int {
	return len(p.Positions)
}

// TotalNotional sums the underlying exposure across all open positions
func (p *Portfolio) TotalNotional() float64 {
	total := 0.0
	for _, pos := range p.Positions {
		total += pos.Notional()
	}
	return total
}

// SectorNotional sums exposure for one sector
func (p *Portfolio) SectorNotional(sector options.Sector) float64 {
	total := 0.0
	for _, pos := range p.Positions {
		if pos.Sector == sector {
			total += pos.Notional()
		}
	}
	return total
}

// SectorConcentration returns the portfolio-value share a sector would
// hold after adding extraNotional of new exposure. A zero-value
// portfolio reports full concentration.
func (p *Portfolio) SectorConcentration(sector options.Sector, extraNotional float64) float64 {
	if p.Value <= 0 {
		return 1.0
	}
	return (p.SectorNotional(sector) + extraNotional) / p.Value
}

// BrokerExposure returns each broker's share of total notional.
// Positions without a broker tag are grouped under "default".
func (p *Portfolio) BrokerExposure() map[string]float64 {
	total := p.TotalNotional()
	exposure := make(map[string]float64)
	if total <= 0 {
		return exposure
	}
	for _, pos := range p.Positions {
		broker := pos.Broker
		if broker == "" {
			broker = "default"
		}
		exposure[broker] += pos.Notional() / total
	}
	return exposure
}

// Symbols returns the sorted set of distinct underlying symbols
func (p *Portfolio) Symbols() []string {
	seen := make(map[string]struct{})
	for _, pos := range p.Positions {
		seen[pos.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// SharesFor returns the underlying shares held for a symbol
func (p *Portfolio) SharesFor(symbol string) float64 {
	if p.SharesHeld == nil {
		return 0
	}
	return p.SharesHeld[symbol]
}

// Snapshot returns a deep copy safe to hand to parallel readers
func (p *Portfolio) Snapshot() *Portfolio {
	clone := &Portfolio{
		Positions:    make([]options.Position, 0, len(p.Positions)),
		Value:        p.Value,
		ReservedCash: p.ReservedCash,
		SharesHeld:   make(map[string]float64, len(p.SharesHeld)),
	}
	for _, pos := range p.Positions {
		clone.Positions = append(clone.Positions, pos.Clone())
	}
	for sym, shares := range p.SharesHeld {
		clone.SharesHeld[sym] = shares
	}
	return clone
}

// Tracker holds the latest portfolio snapshot pushed by the
// trade-management layer and serves consistent copies to readers.
type Tracker struct {
	mu      sync.RWMutex
	current *Portfolio
}

// NewTracker starts with an empty zero-value portfolio
func NewTracker() *Tracker {
	return &Tracker{current: New(0)}
}

// Set replaces the tracked snapshot
func (t *Tracker) Set(p *Portfolio) {
	if p == nil {
		return
	}
	snapshot := p.Snapshot()
	t.mu.Lock()
	t.current = snapshot
	t.mu.Unlock()
}

// Current returns a deep copy of the tracked snapshot
func (t *Tracker) Current() *Portfolio {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Snapshot()
}

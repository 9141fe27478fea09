package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htn332805/RemDarwin-sub003/internal/options"
)

func buildPortfolio(t *testing.T) *Portfolio {
	t.Helper()

	p := New(100000)
	p.ReservedCash = 25000
	p.SharesHeld["AAPL"] = 500

	aapl := options.NewPosition("AAPL", options.OptionCall, 110, 2.5, 100, 5)
	aapl.Sector = options.SectorTechnology
	aapl.Broker = "ibkr"

	msft := options.NewPosition("MSFT", options.OptionCall, 320, 4.0, 300, 1)
	msft.Sector = options.SectorTechnology
	msft.Broker = "ibkr"

	xom := options.NewPosition("XOM", options.OptionPut, 95, 3.0, 100, 2)
	xom.Sector = options.SectorEnergy

	p.Positions = append(p.Positions, aapl, msft, xom)
	return p
}

func TestPortfolio_Notional(t *testing.T) {
	p := buildPortfolio(t)

	// 100*100*5 + 300*100*1 + 100*100*2
	assert.InDelta(t, 100000.0, p.TotalNotional(), 1e-9)
	assert.InDelta(t, 80000.0, p.SectorNotional(options.SectorTechnology), 1e-9)
	assert.InDelta(t, 20000.0, p.SectorNotional(options.SectorEnergy), 1e-9)
	assert.Zero(t, p.SectorNotional(options.SectorUtilities))
}

func TestPortfolio_SectorConcentration(t *testing.T) {
	p := buildPortfolio(t)

	assert.InDelta(t, 0.80, p.SectorConcentration(options.SectorTechnology, 0), 1e-9)
	assert.InDelta(t, 0.90, p.SectorConcentration(options.SectorTechnology, 10000), 1e-9)
	assert.InDelta(t, 0.20, p.SectorConcentration(options.SectorEnergy, 0), 1e-9)

	empty := New(0)
	assert.Equal(t, 1.0, empty.SectorConcentration(options.SectorTechnology, 5000))
}

func TestPortfolio_BrokerExposure(t *testing.T) {
	p := buildPortfolio(t)

	exposure := p.BrokerExposure()
	require.Len(t, exposure, 2)
	assert.InDelta(t, 0.80, exposure["ibkr"], 1e-9)
	assert.InDelta(t, 0.20, exposure["default"], 1e-9)

	assert.Empty(t, New(0).BrokerExposure())
}

func TestPortfolio_Symbols(t *testing.T) {
	p := buildPortfolio(t)
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, p.Symbols())
	assert.Equal(t, 3, p.OpenCount())
}

func TestPortfolio_SharesFor(t *testing.T) {
	p := buildPortfolio(t)
	assert.Equal(t, 500.0, p.SharesFor("AAPL"))
	assert.Zero(t, p.SharesFor("MSFT"))

	var bare Portfolio
	assert.Zero(t, bare.SharesFor("AAPL"))
}

func TestPortfolio_SnapshotIsDeepCopy(t *testing.T) {
	p := buildPortfolio(t)
	p.Positions[0].Greeks = &options.Greeks{Delta: 0.3}

	snap := p.Snapshot()
	require.Equal(t, p.OpenCount(), snap.OpenCount())

	snap.Positions[0].Greeks.Delta = 0.9
	snap.Positions[0].Contracts = 99
	snap.SharesHeld["AAPL"] = 1

	assert.InDelta(t, 0.3, p.Positions[0].Greeks.Delta, 1e-9)
	assert.Equal(t, 5, p.Positions[0].Contracts)
	assert.Equal(t, 500.0, p.SharesHeld["AAPL"])
}

func TestTracker_SetAndCurrent(t *testing.T) {
	tracker := NewTracker()
	assert.Zero(t, tracker.Current().OpenCount())

	p := buildPortfolio(t)
	tracker.Set(p)

	// Mutating the source after Set must not leak into the tracker.
	p.Positions[0].Contracts = 1
	got := tracker.Current()
	assert.Equal(t, 5, got.Positions[0].Contracts)

	// Mutating a returned copy must not leak either.
	got.Value = 1
	assert.Equal(t, 100000.0, tracker.Current().Value)

	tracker.Set(nil)
	assert.Equal(t, 3, tracker.Current().OpenCount())
}

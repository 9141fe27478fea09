package options

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptionType(t *testing.T) {
	tests := []struct {
		input    string
		expected OptionType
		wantErr  bool
	}{
		{"call", OptionCall, false},
		{"CALL", OptionCall, false},
		{"c", OptionCall, false},
		{"put", OptionPut, false},
		{" Put ", OptionPut, false},
		{"p", OptionPut, false},
		{"straddle", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOptionType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSector_RoundTrip(t *testing.T) {
	for sector, name := range sectorNames {
		assert.Equal(t, sector, ParseSector(name), "sector %s should round-trip", name)
	}
	assert.Equal(t, SectorUnknown, ParseSector("crypto"))
	assert.Equal(t, SectorUnknown, ParseSector(""))
}

func TestSector_JSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(SectorRealEstate)
	assert.NoError(t, err)
	assert.Equal(t, `"real_estate"`, string(raw))

	var s Sector
	assert.NoError(t, json.Unmarshal([]byte(`"energy"`), &s))
	assert.Equal(t, SectorEnergy, s)

	// Unrecognized labels decode to unknown rather than failing
	assert.NoError(t, json.Unmarshal([]byte(`"crypto"`), &s))
	assert.Equal(t, SectorUnknown, s)
}

func TestPosition_Notional(t *testing.T) {
	p := Position{UnderlyingPrice: 100, Contracts: 5}
	assert.Equal(t, 50000.0, p.Notional())
}

func TestPosition_SpreadFraction(t *testing.T) {
	tests := []struct {
		name     string
		bid      float64
		ask      float64
		expected float64
	}{
		{"tight quote", 1.95, 2.05, 0.05},
		{"no quote", 0, 0, 1.0},
		{"crossed quote", 2.10, 2.00, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Position{Bid: tt.bid, Ask: tt.ask}
			assert.InDelta(t, tt.expected, p.SpreadFraction(), 1e-9)
		})
	}
}

func TestPosition_Validate(t *testing.T) {
	valid := Position{
		Symbol:           "AAPL",
		OptionType:       OptionPut,
		StrikePrice:      90,
		PremiumCollected: 1,
		UnderlyingPrice:  100,
		Contracts:        1,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Position)
	}{
		{"missing symbol", func(p *Position) { p.Symbol = "" }},
		{"bad option type", func(p *Position) { p.OptionType = "swap" }},
		{"zero strike", func(p *Position) { p.StrikePrice = 0 }},
		{"negative underlying", func(p *Position) { p.UnderlyingPrice = -1 }},
		{"negative contracts", func(p *Position) { p.Contracts = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestPosition_Clone_IndependentGreeks(t *testing.T) {
	original := Position{
		Symbol:    "MSFT",
		Greeks:    &Greeks{Delta: 0.3, Vega: 0.1},
		Contracts: 2,
	}

	clone := original.Clone()
	clone.Greeks.Delta = 0.9
	clone.Contracts = 7

	assert.Equal(t, 0.3, original.Greeks.Delta)
	assert.Equal(t, 2, original.Contracts)
}

func TestGreeks_AddScale(t *testing.T) {
	a := Greeks{Delta: 0.2, Gamma: 0.05, Theta: -0.1, Vega: 0.3, Rho: 0.01}
	b := Greeks{Delta: -0.1, Gamma: 0.02, Theta: -0.05, Vega: 0.1, Rho: 0.02}

	sum := a.Add(b)
	assert.InDelta(t, 0.1, sum.Delta, 1e-9)
	assert.InDelta(t, 0.07, sum.Gamma, 1e-9)
	assert.InDelta(t, -0.15, sum.Theta, 1e-9)

	scaled := a.Scale(0.5)
	assert.InDelta(t, 0.1, scaled.Delta, 1e-9)
	assert.InDelta(t, 0.15, scaled.Vega, 1e-9)
}

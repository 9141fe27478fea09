package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContractMultiplier is the standard number of shares per option contract.
const ContractMultiplier = 100.0

// OptionType identifies the side of a short-premium position
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// ParseOptionType converts free text into an OptionType
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return OptionCall, nil
	case "put", "p":
		return OptionPut, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}

// Valid reports whether the option type is one of the closed set
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// Sector is the closed set of sector labels used for concentration limits
type Sector int

const (
	SectorUnknown Sector = iota
	SectorTechnology
	SectorFinancials
	SectorHealthcare
	SectorEnergy
	SectorConsumer
	SectorIndustrials
	SectorUtilities
	SectorMaterials
	SectorRealEstate
	SectorCommunications
)

var sectorNames = map[Sector]string{
	SectorUnknown:        "unknown",
	SectorTechnology:     "technology",
	SectorFinancials:     "financials",
	SectorHealthcare:     "healthcare",
	SectorEnergy:         "energy",
	SectorConsumer:       "consumer",
	SectorIndustrials:    "industrials",
	SectorUtilities:      "utilities",
	SectorMaterials:      "materials",
	SectorRealEstate:     "real_estate",
	SectorCommunications: "communications",
}

func (s Sector) String() string {
	if name, ok := sectorNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the sector label so JSON output carries
// "technology" instead of an enum ordinal.
func (s Sector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the same labels as ParseSector
func (s *Sector) UnmarshalText(text []byte) error {
	*s = ParseSector(string(text))
	return nil
}

// ParseSector maps a sector label onto the closed enumeration.
// Unrecognized labels map to SectorUnknown rather than failing.
func ParseSector(s string) Sector {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for sector, name := range sectorNames {
		if name == normalized {
			return sector
		}
	}
	return SectorUnknown
}

// Greeks holds option sensitivities as supplied by the pricing layer.
// A nil *Greeks on a position means the values were not available and
// any check depending on them must fail closed.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Add returns the element-wise sum of two Greek sets
func (g Greeks) Add(other Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + other.Delta,
		Gamma: g.Gamma + other.Gamma,
		Theta: g.Theta + other.Theta,
		Vega:  g.Vega + other.Vega,
		Rho:   g.Rho + other.Rho,
	}
}

// Scale returns the Greeks multiplied by a factor
func (g Greeks) Scale(factor float64) Greeks {
	return Greeks{
		Delta: g.Delta * factor,
		Gamma: g.Gamma * factor,
		Theta: g.Theta * factor,
		Vega:  g.Vega * factor,
		Rho:   g.Rho * factor,
	}
}

// Position is one short-options position, candidate or open.
// Records are owned by the caller; sizing and adjustment operations
// return modified copies and never mutate in place.
type Position struct {
	ID                string     `json:"id"`
	Symbol            string     `json:"symbol"`
	OptionType        OptionType `json:"option_type"`
	StrikePrice       float64    `json:"strike_price"`
	PremiumCollected  float64    `json:"premium_collected"`
	UnderlyingPrice   float64    `json:"underlying_price"`
	Contracts         int        `json:"contracts"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Greeks            *Greeks    `json:"greeks,omitempty"`
	Sector            Sector     `json:"sector"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Volume            int64      `json:"volume"`
	Broker            string     `json:"broker,omitempty"`
	ExecutionRatio    float64    `json:"execution_ratio,omitempty"`
	OpenedAt          time.Time  `json:"opened_at,omitempty"`
}

// NewPosition builds a position with a generated ID
func NewPosition(symbol string, optionType OptionType, strike, premium, underlying float64, contracts int) Position {
	return Position{
		ID:               uuid.New().String(),
		Symbol:           strings.ToUpper(symbol),
		OptionType:       optionType,
		StrikePrice:      strike,
		PremiumCollected: premium,
		UnderlyingPrice:  underlying,
		Contracts:        contracts,
		OpenedAt:         time.Now().UTC(),
	}
}

// Clone returns a deep copy of the position
func (p Position) Clone() Position {
	clone := p
	if p.Greeks != nil {
		greeks := *p.Greeks
		clone.Greeks = &greeks
	}
	return clone
}

// Notional returns the underlying exposure controlled by the position
func (p Position) Notional() float64 {
	return p.UnderlyingPrice * ContractMultiplier * float64(p.Contracts)
}

// SpreadFraction returns the bid-ask spread relative to the mid price.
// Positions without a usable quote report a full-width spread of 1.
func (p Position) SpreadFraction() float64 {
	mid := (p.Bid + p.Ask) / 2
	if mid <= 0 || p.Ask < p.Bid {
		return 1.0
	}
	return (p.Ask - p.Bid) / mid
}

// Validate checks structural field constraints
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !p.OptionType.Valid() {
		return fmt.Errorf("option type %q is not call or put", p.OptionType)
	}
	if p.StrikePrice <= 0 {
		return fmt.Errorf("strike price must be positive, got %.4f", p.StrikePrice)
	}
	if p.UnderlyingPrice <= 0 {
		return fmt.Errorf("underlying price must be positive, got %.4f", p.UnderlyingPrice)
	}
	if p.Contracts < 0 {
		return fmt.Errorf("contracts must not be negative, got %d", p.Contracts)
	}
	return nil
}

// MarketSnapshot carries point-in-time market state for trigger checks.
// It is never persisted as position state.
type MarketSnapshot struct {
	CurrentPremium    float64   `json:"current_premium"`
	CurrentVolatility float64   `json:"current_volatility"`
	UnderlyingPrice   float64   `json:"underlying_price"`
	Timestamp         time.Time `json:"timestamp"`
}

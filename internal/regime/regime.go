package regime

import (
	"fmt"
	"strings"
)

// Regime classifies market conditions for risk-parameter scaling
type Regime int

const (
	RegimeNormal Regime = iota
	RegimeBull
	RegimeBear
	RegimeHighVolatility
	RegimeCrisis
)

func (r Regime) String() string {
	switch r {
	case RegimeNormal:
		return "normal"
	case RegimeBull:
		return "bull"
	case RegimeBear:
		return "bear"
	case RegimeHighVolatility:
		return "high_volatility"
	case RegimeCrisis:
		return "crisis"
	default:
		return "unknown"
	}
}

// MarshalText renders the regime label so JSON output carries "bear"
// instead of an enum ordinal.
func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts the same labels and aliases as Parse.
func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Parse converts a regime label into the closed enumeration
func Parse(s string) (Regime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return RegimeNormal, nil
	case "bull":
		return RegimeBull, nil
	case "bear":
		return RegimeBear, nil
	case "high_volatility", "high-volatility", "high_vol", "volatile":
		return RegimeHighVolatility, nil
	case "crisis":
		return RegimeCrisis, nil
	default:
		return RegimeNormal, fmt.Errorf("unknown regime %q", s)
	}
}

// All returns every regime in the closed set
func All() []Regime {
	return []Regime{RegimeNormal, RegimeBull, RegimeBear, RegimeHighVolatility, RegimeCrisis}
}

// AllocationScale returns the multiplier applied to the base portfolio
// allocation limit in this regime. Normal and bull markets keep the base
// limit; stressed regimes shrink it.
func (r Regime) AllocationScale() float64 {
	switch r {
	case RegimeBear:
		return 0.6
	case RegimeHighVolatility:
		return 0.5
	case RegimeCrisis:
		return 0.3
	default:
		return 1.0
	}
}

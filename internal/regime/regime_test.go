package regime

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Regime
		wantErr  bool
	}{
		{"normal", RegimeNormal, false},
		{"Bull", RegimeBull, false},
		{"bear", RegimeBear, false},
		{"high_volatility", RegimeHighVolatility, false},
		{"high-volatility", RegimeHighVolatility, false},
		{"volatile", RegimeHighVolatility, false},
		{"crisis", RegimeCrisis, false},
		{"sideways", RegimeNormal, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_RoundTripsAll(t *testing.T) {
	for _, r := range All() {
		parsed, err := Parse(r.String())
		assert.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestRegime_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(RegimeHighVolatility)
	assert.NoError(t, err)
	assert.Equal(t, `"high_volatility"`, string(data))

	var r Regime
	assert.NoError(t, json.Unmarshal([]byte(`"bear"`), &r))
	assert.Equal(t, RegimeBear, r)

	assert.Error(t, json.Unmarshal([]byte(`"sideways"`), &r))
}

func TestAllocationScale(t *testing.T) {
	assert.Equal(t, 1.0, RegimeNormal.AllocationScale())
	assert.Equal(t, 1.0, RegimeBull.AllocationScale())
	assert.Less(t, RegimeBear.AllocationScale(), 1.0)
	assert.Less(t, RegimeHighVolatility.AllocationScale(), 1.0)
	assert.Less(t, RegimeCrisis.AllocationScale(), RegimeBear.AllocationScale())
}

func TestClassifier_InsufficientData(t *testing.T) {
	c := NewClassifier(20)
	assert.Equal(t, RegimeNormal, c.Classify(nil))
	assert.Equal(t, RegimeNormal, c.Classify([]float64{0.01, -0.01}))
}

func TestClassifier_LabelsRegimes(t *testing.T) {
	c := NewClassifier(20)

	flat := repeat(0.0001, 20)
	assert.Equal(t, RegimeNormal, c.Classify(flat))

	rising := repeat(0.005, 20)
	assert.Equal(t, RegimeBull, c.Classify(rising))

	falling := repeat(-0.005, 20)
	assert.Equal(t, RegimeBear, c.Classify(falling))

	// Alternating large moves: near-zero trend, high dispersion.
	choppy := make([]float64, 20)
	for i := range choppy {
		if i%2 == 0 {
			choppy[i] = 0.04
		} else {
			choppy[i] = -0.04
		}
	}
	assert.Equal(t, RegimeHighVolatility, c.Classify(choppy))

	// Steep drawdown with extreme dispersion.
	crash := make([]float64, 20)
	for i := range crash {
		crash[i] = -0.02 + 0.12*math.Sin(float64(i))
		crash[i] -= 0.05
	}
	assert.Equal(t, RegimeCrisis, c.Classify(crash))
}

func TestClassifySeries_Length(t *testing.T) {
	c := NewClassifier(10)
	returns := repeat(0.001, 30)
	labels := c.ClassifySeries(returns)
	assert.Len(t, labels, 30)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

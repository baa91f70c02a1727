package pricing

import (
	"testing"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_PositiveEdge(t *testing.T) {
	r, err := Evaluate(0.60, 0.50)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, r.Edge, 1e-9)
	// EV/$ = (0.6 − 0.5)/0.5 = 0.2
	assert.InDelta(t, 0.20, r.EVPerUSD, 1e-9)
	// ROI% = 0.2 / 0.5 × 100 = 40
	assert.InDelta(t, 40.0, r.ROIPct, 1e-9)
}

func TestEvaluate_ZeroEdge(t *testing.T) {
	r, err := Evaluate(0.50, 0.50)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r.Edge, 1e-9)
	assert.InDelta(t, 0.0, r.EVPerUSD, 1e-9)
	assert.InDelta(t, 0.0, r.ROIPct, 1e-9)
}

func TestEvaluate_NegativeEdge(t *testing.T) {
	r, err := Evaluate(0.40, 0.55)
	require.NoError(t, err)
	assert.InDelta(t, -0.15, r.Edge, 1e-9)
	assert.Negative(t, r.EVPerUSD)
	assert.Negative(t, r.ROIPct)
}

func TestEvaluate_EVFormulaEquivalence(t *testing.T) {
	// p̂·(1/q−1) − (1−p̂) debe coincidir con (p̂−q)/q
	for _, tc := range []struct{ p, q float64 }{
		{0.60, 0.55}, {0.30, 0.70}, {0.95, 0.10}, {0.50, 0.50},
	} {
		r, err := Evaluate(tc.p, tc.q)
		require.NoError(t, err)
		assert.InDelta(t, (tc.p-tc.q)/tc.q, r.EVPerUSD, 1e-9, "p=%v q=%v", tc.p, tc.q)
	}
}

func TestEvaluate_UndefinedQEff(t *testing.T) {
	_, err := Evaluate(0.5, 0)
	assert.ErrorIs(t, err, ErrUnpriceable)
	_, err = Evaluate(0.5, 1)
	assert.ErrorIs(t, err, ErrUnpriceable)
	_, err = Evaluate(0.5, -0.2)
	assert.ErrorIs(t, err, ErrUnpriceable)
}

func TestFilterOutcome(t *testing.T) {
	cases := []struct {
		name                       string
		edge, depth, minEdge, minL float64
		want                       domain.ReasonCode
	}{
		{"passes all", 0.05, 1000, 0.02, 500, domain.ReasonNone},
		{"below min edge", 0.01, 1000, 0.02, 500, domain.ReasonMinEdge},
		{"below min liquidity", 0.05, 100, 0.02, 500, domain.ReasonMinLiquidity},
		{"filters disabled", -0.10, 0, 0, 0, domain.ReasonNone},
		{"min edge checked first", 0.01, 100, 0.02, 500, domain.ReasonMinEdge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterOutcome(tc.edge, tc.depth, tc.minEdge, tc.minL)
			assert.Equal(t, tc.want, got)
		})
	}
}

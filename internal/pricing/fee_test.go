package pricing

import (
	"testing"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveBuyPrice_ZeroFee(t *testing.T) {
	ep, err := EffectiveBuyPrice(0.50, 0, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.50, ep.Eff, 1e-9)
	assert.InDelta(t, 0.0, ep.FeeComponent, 1e-9)
}

func TestEffectiveBuyPrice_WithFee(t *testing.T) {
	// r=0.02, q=0.50 → denom = 1 − 0.02·0.5·0.5 = 0.995
	ep, err := EffectiveBuyPrice(0.50, 0.02, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.50/0.995, ep.Eff, 1e-9)
	assert.Greater(t, ep.Eff, 0.50)
}

func TestEffectiveBuyPrice_WorkedExample(t *testing.T) {
	// q=0.55, r=0.02 → denom = 1 − 0.02·0.45·0.55 = 0.99505
	ep, err := EffectiveBuyPrice(0.55, 0.02, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.55276, ep.Eff, 0.00001)
}

func TestEffectiveBuyPrice_HighPrice(t *testing.T) {
	// q=0.90 → min(q,1−q)=0.10 → denom = 1 − 0.02·0.1·0.9 = 0.9982
	ep, err := EffectiveBuyPrice(0.90, 0.02, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.90/0.9982, ep.Eff, 1e-9)
}

func TestEffectiveBuyPrice_FeesNeverImprovePrice(t *testing.T) {
	// Propiedad: q_eff >= q para todo q en (0,1), r >= 0
	for _, q := range []float64{0.01, 0.10, 0.25, 0.50, 0.75, 0.90, 0.99} {
		for _, r := range []float64{0, 0.005, 0.02, 0.10} {
			ep, err := EffectiveBuyPrice(q, r, 0, nil)
			require.NoError(t, err, "q=%v r=%v", q, r)
			assert.GreaterOrEqual(t, ep.Eff, q, "q=%v r=%v", q, r)
		}
	}
}

func TestEffectiveBuyPrice_StrictlyIncreasingInFee(t *testing.T) {
	prev := 0.0
	for _, r := range []float64{0, 0.01, 0.02, 0.05, 0.10} {
		ep, err := EffectiveBuyPrice(0.55, r, 0, nil)
		require.NoError(t, err)
		if r > 0 {
			assert.Greater(t, ep.Eff, prev, "r=%v", r)
		}
		prev = ep.Eff
	}
}

func TestEffectiveBuyPrice_UndefinedInputs(t *testing.T) {
	cases := []struct {
		name string
		q, r float64
	}{
		{"ask zero", 0, 0.02},
		{"ask one", 1, 0.02},
		{"ask negative", -0.5, 0.02},
		{"ask above one", 1.2, 0.02},
		{"negative fee", 0.5, -0.01},
		{"denominator non positive", 0.5, 5000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EffectiveBuyPrice(tc.q, tc.r, 0, nil)
			assert.ErrorIs(t, err, ErrUnpriceable)
		})
	}
}

func TestEffectiveBuyPrice_Slippage(t *testing.T) {
	asks := []domain.BookLevel{
		{Price: 0.50, Size: 100},
		{Price: 0.52, Size: 100},
	}
	// VWAP de 150 shares: (100·0.50 + 50·0.52)/150 ≈ 0.50667
	ep, err := EffectiveBuyPrice(0.50, 0, 150, asks)
	require.NoError(t, err)
	assert.InDelta(t, 0.50667-0.50, ep.Slippage, 0.0001)
	assert.Greater(t, ep.Eff, 0.50)
}

func TestEffectiveBuyPrice_SlippageZeroWhenBookCoversAtBest(t *testing.T) {
	asks := []domain.BookLevel{{Price: 0.50, Size: 1000}}
	ep, err := EffectiveBuyPrice(0.50, 0, 100, asks)
	require.NoError(t, err)
	assert.Zero(t, ep.Slippage)
}

package riskai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

func TestParseAnnotation(t *testing.T) {
	payload := `{
		"summary": "Star player questionable",
		"key_factors": ["injury report", "back-to-back game"],
		"risk_flags": [{"flag": "injury_news", "severity": "warning", "detail": "GTD listing"}],
		"suggested_p_adj": -0.02,
		"confidence_note": "moderate"
	}`

	t.Run("plain json", func(t *testing.T) {
		ann, err := parseAnnotation(payload)
		require.NoError(t, err)
		assert.Equal(t, "Star player questionable", ann.Summary)
		assert.Len(t, ann.KeyFactors, 2)
		require.Len(t, ann.RiskFlags, 1)
		assert.Equal(t, "warning", ann.RiskFlags[0].Severity)
		assert.Equal(t, -0.02, ann.SuggestedPAdj)
	})

	t.Run("fenced json", func(t *testing.T) {
		ann, err := parseAnnotation("```json\n" + payload + "\n```")
		require.NoError(t, err)
		assert.Equal(t, -0.02, ann.SuggestedPAdj)
	})

	t.Run("adjustment clamped to bound", func(t *testing.T) {
		ann, err := parseAnnotation(`{"summary":"x","suggested_p_adj":0.30}`)
		require.NoError(t, err)
		assert.Equal(t, maxPAdj, ann.SuggestedPAdj)
	})

	t.Run("unknown severity becomes info", func(t *testing.T) {
		ann, err := parseAnnotation(`{"risk_flags":[{"flag":"x","severity":"BAD"}]}`)
		require.NoError(t, err)
		assert.Equal(t, "info", ann.RiskFlags[0].Severity)
	})

	t.Run("non-json fails", func(t *testing.T) {
		_, err := parseAnnotation("I think the Lakers will win.")
		assert.Error(t, err)
	})
}

func TestAdjustedProbability(t *testing.T) {
	a := NewAnnotator("test-key", "")

	assert.InDelta(t, 0.58, a.AdjustedProbability(0.60, domain.RiskAnnotation{SuggestedPAdj: -0.02}), 1e-12)
	// Out-of-bound adjustments are clamped before applying.
	assert.InDelta(t, 0.65, a.AdjustedProbability(0.60, domain.RiskAnnotation{SuggestedPAdj: 0.40}), 1e-12)
	// The result never leaves the open unit interval.
	assert.Equal(t, 0.01, a.AdjustedProbability(0.02, domain.RiskAnnotation{SuggestedPAdj: -0.05}))
	assert.Equal(t, 0.99, a.AdjustedProbability(0.98, domain.RiskAnnotation{SuggestedPAdj: 0.05}))
}

func TestCacheKeyBuckets(t *testing.T) {
	m := domain.Market{ConditionID: "0xabc"}

	// Ticks dentro del mismo bucket de 0.05 comparten entrada
	assert.Equal(t, cacheKey(m, 0.551), cacheKey(m, 0.562))
	// Un movimiento de precio real invalida
	assert.NotEqual(t, cacheKey(m, 0.55), cacheKey(m, 0.62))
	// Mercados distintos nunca comparten
	assert.NotEqual(t, cacheKey(m, 0.55), cacheKey(domain.Market{ConditionID: "0xdef"}, 0.55))
}

func TestTTLCache(t *testing.T) {
	c := newTTLCache[string, int](20 * time.Millisecond)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Len())

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

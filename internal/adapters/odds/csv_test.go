package odds

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `event_key,outcome,decimal_odds
lakers-celtics,Yes,1.91
lakers-celtics,No,2.10
heat-bulls,Yes,1.50
heat-bulls,No,2.80
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "odds.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProviderProbabilities(t *testing.T) {
	p := NewCSVProvider(writeTempCSV(t, sampleCSV))
	ctx := context.Background()

	probs, err := p.Probabilities(ctx, "lakers-celtics")
	require.NoError(t, err)

	// 1/1.91 = 0.5236, 1/2.10 = 0.4762, suma 0.9998 → normalizado a 1
	assert.InDelta(t, 1.0, probs["Yes"]+probs["No"], 1e-9)
	assert.InDelta(t, 0.5237, probs["Yes"], 1e-3)
	assert.Greater(t, probs["Yes"], probs["No"])
}

func TestCSVProviderVigRemoval(t *testing.T) {
	// Cuotas con overround fuerte: 1.80/1.80 → implícitas 0.5556+0.5556 > 1.
	csv := "e1,Yes,1.80\ne1,No,1.80\n"
	p := NewCSVProvider(writeTempCSV(t, csv))

	probs, err := p.Probabilities(context.Background(), "e1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs["Yes"], 1e-9)
	assert.InDelta(t, 0.5, probs["No"], 1e-9)
}

func TestCSVProviderUnknownEvent(t *testing.T) {
	p := NewCSVProvider(writeTempCSV(t, sampleCSV))

	_, err := p.Probabilities(context.Background(), "nope")
	assert.ErrorContains(t, err, "no odds for event")
}

func TestCSVProviderMissingFile(t *testing.T) {
	p := NewCSVProvider(filepath.Join(t.TempDir(), "missing.csv"))

	_, err := p.Probabilities(context.Background(), "e1")
	assert.Error(t, err)
}

func TestCSVProviderInvalidOdds(t *testing.T) {
	cases := []string{
		"e1,Yes,0.90\ne1,No,2.00\n",  // odds <= 1
		"e1,Yes,abc\ne1,No,2.00\n",   // no numérico
		"e1,Yes\n",                   // columnas de menos
	}
	for _, c := range cases {
		p := NewCSVProvider(writeTempCSV(t, c))
		_, err := p.Probabilities(context.Background(), "e1")
		assert.Error(t, err, c)
	}
}

func TestCSVProviderReloadsOnChange(t *testing.T) {
	path := writeTempCSV(t, "e1,Yes,2.00\ne1,No,2.00\n")
	p := NewCSVProvider(path)
	ctx := context.Background()

	probs, err := p.Probabilities(ctx, "e1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, probs["Yes"], 1e-9)

	// mtime con resolución gruesa en algunos FS: forzarlo explícitamente
	require.NoError(t, os.WriteFile(path, []byte("e1,Yes,4.00\ne1,No,1.34\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	probs, err = p.Probabilities(ctx, "e1")
	require.NoError(t, err)
	assert.Less(t, probs["Yes"], 0.3)
}

func TestParseOddsCSVClampsExtremes(t *testing.T) {
	// Una cuota enorme da una implícita por debajo del floor tras normalizar.
	probs, err := parseOddsCSV(strings.NewReader("e1,Yes,1000.0\ne1,No,1.001\n"))
	require.NoError(t, err)
	assert.Equal(t, probFloor, probs["e1"]["Yes"])
	assert.Equal(t, probCeil, probs["e1"]["No"])
}

package pricing

import (
	"testing"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weights() map[domain.SignalSource]float64 {
	return map[domain.SignalSource]float64{
		domain.SignalMarket:     0.4,
		domain.SignalSportsbook: 0.4,
		domain.SignalModel:      0.15,
		domain.SignalAI:         0.05,
	}
}

func TestFuse_AllSources(t *testing.T) {
	s := domain.NewSignalSet(weights())
	s.Add(domain.SignalMarket, 0.60)
	s.Add(domain.SignalSportsbook, 0.58)
	s.Add(domain.SignalModel, 0.62)
	s.Add(domain.SignalAI, 0.61)

	p, err := Fuse(s)
	require.NoError(t, err)
	want := (0.4*0.60 + 0.4*0.58 + 0.15*0.62 + 0.05*0.61) / 1.0
	assert.InDelta(t, want, p, 1e-9)
}

func TestFuse_RenormalizesOverPresentSources(t *testing.T) {
	// Una fuente ausente no cuenta como 0: {market: 0.6} con pesos
	// {market:1, ai:1} debe dar exactamente 0.6.
	s := domain.NewSignalSet(map[domain.SignalSource]float64{
		domain.SignalMarket: 1,
		domain.SignalAI:     1,
	})
	s.Add(domain.SignalMarket, 0.6)

	p, err := Fuse(s)
	require.NoError(t, err)
	assert.Equal(t, 0.6, p)
}

func TestFuse_PartialSources(t *testing.T) {
	s := domain.NewSignalSet(weights())
	s.Add(domain.SignalMarket, 0.50)
	s.Add(domain.SignalSportsbook, 0.70)

	p, err := Fuse(s)
	require.NoError(t, err)
	// Pesos iguales (0.4 y 0.4) → media simple
	assert.InDelta(t, 0.60, p, 1e-9)
}

func TestFuse_NoSources(t *testing.T) {
	s := domain.NewSignalSet(weights())
	_, err := Fuse(s)
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestFuse_ZeroWeights(t *testing.T) {
	s := domain.NewSignalSet(map[domain.SignalSource]float64{
		domain.SignalMarket: 0,
	})
	s.Add(domain.SignalMarket, 0.6)
	_, err := Fuse(s)
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestSignalSet_AddRejectsOutOfRange(t *testing.T) {
	s := domain.NewSignalSet(weights())
	s.Add(domain.SignalMarket, 0)
	s.Add(domain.SignalMarket, 1)
	s.Add(domain.SignalMarket, -0.3)
	s.Add(domain.SignalMarket, 1.5)
	assert.Zero(t, s.Len())
}

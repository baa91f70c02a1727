package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// SignalProvider produce estimaciones de probabilidad para un evento.
//
// Es la interfaz de capacidad que abstrae las fuentes externas (odds de
// sportsbooks, modelo estadístico, cliente AI). Cada provider puede fallar
// de forma independiente: un error se trata como señal ausente para ese
// ciclo, nunca afecta a los demás providers ni detiene el pipeline.
type SignalProvider interface {
	// Name identifica la fuente dentro del SignalSet.
	Name() domain.SignalSource

	// Probabilities devuelve outcome label → probabilidad justa en (0,1)
	// para el evento dado, o un error si el evento no está cubierto.
	Probabilities(ctx context.Context, eventKey string) (map[string]float64, error)
}

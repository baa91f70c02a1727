package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Publisher entrega cada ResultSet completo a la capa de presentación.
//
// El set llega ya ordenado y etiquetado (filtered / no_data / stale con sus
// reason codes); el consumidor renderiza, nunca recalcula.
type Publisher interface {
	Publish(ctx context.Context, set *domain.ResultSet) error
}

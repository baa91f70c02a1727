package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// BookProvider obtiene snapshots REST del orderbook.
//
// Se usa para sembrar el estado antes de confiar en los deltas del stream,
// tras cada reconexión, y como modo de polling cuando el stream no está
// disponible.
type BookProvider interface {
	// FetchOrderBooks devuelve los snapshots para los token_ids dados.
	// Internamente agrupa los IDs en batches para minimizar requests.
	FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]*domain.OrderBookSnapshot, error)

	// FetchFeeRateBps devuelve el fee del token en basis points.
	FetchFeeRateBps(ctx context.Context, tokenID string) (float64, error)
}

package ports

import (
	"context"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// MarketProvider descubre los mercados deportivos activos.
type MarketProvider interface {
	// FetchSportsMarkets devuelve los mercados deportivos binarios activos.
	// Pagina automáticamente hasta agotar los resultados. Los registros
	// malformados se saltan con log, nunca rompen el pipeline.
	FetchSportsMarkets(ctx context.Context) ([]domain.Market, error)
}

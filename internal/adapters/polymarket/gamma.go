package polymarket

// gamma.go — discovery de mercados deportivos vía la Gamma events API.
//
// GET /events?tag=sports devuelve eventos con sus mercados embebidos, lo que
// evita una segunda ronda de requests por mercado. Se filtran los cerrados,
// los que no aceptan órdenes y cualquier registro malformado.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	gammaEventsPath = "/events"
	gammaPageSize   = 50
	gammaMaxPages   = 5
	sportsTag       = "sports"
)

// FetchSportsMarkets devuelve los mercados deportivos binarios activos.
// Implementa ports.MarketProvider.
func (c *Client) FetchSportsMarkets(ctx context.Context) ([]domain.Market, error) {
	now := time.Now().UTC()
	var all []domain.Market

	for page := 0; page < gammaMaxPages; page++ {
		url := fmt.Sprintf("%s%s?tag=%s&closed=false&order=liquidityClob&ascending=false&limit=%d&offset=%d",
			c.gammaBase, gammaEventsPath, sportsTag, gammaPageSize, page*gammaPageSize)

		var events []gammaEvent
		if err := c.get(ctx, c.gammaLimiter, url, &events); err != nil {
			// La primera página fallida es fallo de discovery; con páginas
			// parciales seguimos con lo que hay.
			if page == 0 {
				return nil, fmt.Errorf("gamma.FetchSportsMarkets: %w", err)
			}
			slog.Warn("gamma page failed, continuing with partial discovery",
				"page", page, "err", err)
			break
		}

		if len(events) == 0 {
			break
		}

		for _, ev := range events {
			for _, gm := range ev.Markets {
				if gm.Closed || !gm.AcceptingOrders {
					continue
				}
				m, ok := mapGammaMarket(ev, gm, c.feeDefault, now)
				if !ok {
					continue
				}
				all = append(all, m)
			}
		}

		if len(events) < gammaPageSize {
			break
		}
	}

	slog.Info("sports markets discovered", "total", len(all))
	return all, nil
}

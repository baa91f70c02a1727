package polymarket

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// mapGammaMarket convierte un mercado Gamma a domain.Market.
//
// Input no confiable: devuelve false (y loguea la razón) para registros que
// no cumplen la forma esperada — mercados no binarios, tokens ilegibles,
// outcomes que no son Yes/No. Saltar el registro nunca rompe el pipeline.
func mapGammaMarket(ev gammaEvent, gm gammaMarket, feeDefaultBps float64, now time.Time) (domain.Market, bool) {
	if gm.ConditionID == "" {
		slog.Debug("skipping market without condition id", "question", gm.Question)
		return domain.Market{}, false
	}

	tokenIDs, ok := decodeStringArray(gm.ClobTokenIDs)
	if !ok || len(tokenIDs) != 2 {
		slog.Debug("skipping market with malformed token ids",
			"condition_id", gm.ConditionID,
			"raw", gm.ClobTokenIDs,
		)
		return domain.Market{}, false
	}

	labels, ok := decodeStringArray(gm.Outcomes)
	if !ok || len(labels) != 2 {
		slog.Debug("skipping market with malformed outcomes",
			"condition_id", gm.ConditionID,
			"raw", gm.Outcomes,
		)
		return domain.Market{}, false
	}

	m := domain.Market{
		ConditionID:  gm.ConditionID,
		Question:     gm.Question,
		Slug:         gm.Slug,
		EventTitle:   ev.Title,
		EventSlug:    ev.Slug,
		Active:       true,
		DiscoveredAt: now,
	}

	for i := 0; i < 2; i++ {
		side, ok := parseSide(labels[i])
		if !ok {
			slog.Debug("skipping market with non-binary outcome",
				"condition_id", gm.ConditionID,
				"outcome", labels[i],
			)
			return domain.Market{}, false
		}
		m.Outcomes[i] = domain.Outcome{
			TokenID:    tokenIDs[i],
			Side:       side,
			FeeRateBps: feeDefaultBps,
		}
	}

	if m.Outcomes[0].Side == m.Outcomes[1].Side {
		slog.Debug("skipping market with duplicated side", "condition_id", gm.ConditionID)
		return domain.Market{}, false
	}

	return m, true
}

// parseSide acepta solo outcomes binarios Yes/No.
func parseSide(label string) (domain.Side, bool) {
	switch label {
	case "Yes", "YES", "yes":
		return domain.SideYes, true
	case "No", "NO", "no":
		return domain.SideNo, true
	}
	return "", false
}

// decodeStringArray decodifica los arrays JSON-en-string de Gamma
// (p.ej. `"[\"123\", \"456\"]"`).
func decodeStringArray(raw string) ([]string, bool) {
	if raw == "" {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}

// mapOrderBook convierte la respuesta REST de un book a un snapshot de dominio.
// Devuelve false si el snapshot viola las invariantes (book cruzado, sizes
// negativos): input no confiable, se descarta con log.
func mapOrderBook(r orderBookResponse, now time.Time) (*domain.OrderBookSnapshot, bool) {
	snap := &domain.OrderBookSnapshot{
		TokenID:    r.AssetID,
		Bids:       mapBookLevels(r.Bids, false),
		Asks:       mapBookLevels(r.Asks, true),
		Seq:        parseSeq(r.Timestamp),
		ReceivedAt: now,
	}
	if err := snap.Validate(); err != nil {
		slog.Warn("discarding invalid book snapshot", "token_id", r.AssetID, "err", err)
		return nil, false
	}
	return snap, true
}

// mapBookLevels convierte niveles raw a domain.BookLevel y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookLevels(raw []bookLevelRaw, ascending bool) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Size: size})
	}

	sort.Slice(levels, func(i, j int) bool {
		if ascending {
			return levels[i].Price < levels[j].Price
		}
		return levels[i].Price > levels[j].Price
	})

	return levels
}

// parseSeq convierte el timestamp en milisegundos del mensaje en el sequence
// number del snapshot. Si falta, usa 0: el primer update real lo supera.
func parseSeq(ts string) int64 {
	if ts == "" {
		return 0
	}
	v, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

package pricing

import (
	"fmt"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// EdgeResult son las métricas de valor esperado de un outcome.
type EdgeResult struct {
	Edge     float64 // p̂ − q_eff
	EVPerUSD float64 // EV de $1 apostado a q_eff con payoff binario
	ROIPct   float64 // EVPerUSD / q_eff × 100
}

// Evaluate calcula edge, EV por dólar y ROI a partir de p̂ y q_eff.
//
// EV_per_dollar = p̂·(1/q_eff − 1) − (1 − p̂), que se reduce a
// (p̂ − q_eff) / q_eff para un share que paga $1 al ganar.
func Evaluate(pHat, qEff float64) (EdgeResult, error) {
	if qEff <= 0 || qEff >= 1 {
		return EdgeResult{}, fmt.Errorf("pricing.Evaluate: q_eff %.4f outside (0,1): %w", qEff, ErrUnpriceable)
	}

	edge := pHat - qEff
	ev := pHat*(1/qEff-1) - (1 - pHat)
	return EdgeResult{
		Edge:     edge,
		EVPerUSD: ev,
		ROIPct:   ev / qEff * 100,
	}, nil
}

// FilterOutcome aplica los filtros de min edge y min liquidez de la
// configuración del ciclo. Devuelve el reason code del primer filtro que no
// se supera, o ReasonNone si el outcome pasa todos. El outcome filtrado se
// publica igualmente con su razón — la capa de presentación decide cómo
// mostrarlo.
func FilterOutcome(edge, depth, minEdge, minLiquidity float64) domain.ReasonCode {
	if minEdge > 0 && edge < minEdge {
		return domain.ReasonMinEdge
	}
	if minLiquidity > 0 && depth < minLiquidity {
		return domain.ReasonMinLiquidity
	}
	return domain.ReasonNone
}

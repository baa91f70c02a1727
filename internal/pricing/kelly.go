package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// KellyFraction devuelve la fracción de Kelly cruda para una apuesta binaria
// comprada a q_eff que paga $1: f* = edge / (1 − q_eff).
//
// Falla (ErrUnpriceable) si q_eff no está en (0,1). Un f* negativo se
// recorta a cero: no hay posiciones cortas.
func KellyFraction(edge, qEff float64) (float64, error) {
	if qEff <= 0 || qEff >= 1 {
		return 0, fmt.Errorf("pricing.KellyFraction: q_eff %.4f outside (0,1): %w", qEff, ErrUnpriceable)
	}
	f := edge / (1 - qEff)
	if f < 0 {
		return 0, nil
	}
	return f, nil
}

// Stake calcula el stake recomendado en USDC:
//
//	stake = min(bankroll × f* × kellyMultiplier, bankroll × maxBetPct)
//
// Ambos factores se limitan inferiormente a cero y el resultado se redondea
// a céntimos. Esta es la única función que consume el bankroll; no guarda
// ningún estado y se llama una vez por outcome por ciclo.
func Stake(fStar, bankroll, kellyMultiplier, maxBetPct float64) float64 {
	if fStar < 0 {
		fStar = 0
	}
	stake := bankroll * fStar * kellyMultiplier
	cap := bankroll * maxBetPct
	if stake > cap {
		stake = cap
	}
	if stake < 0 {
		stake = 0
	}
	return decimal.NewFromFloat(stake).Round(2).InexactFloat64()
}

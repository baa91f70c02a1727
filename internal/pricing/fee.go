package pricing

// fee.go — precio efectivo de compra: curva de fees + slippage estimado.
//
// La curva de fees de Polymarket para una compra taker se aproxima con
//   q_eff = q / (1 − r·min(q, 1−q)·q)
// donde q es el best ask y r el fee rate decimal. El slippage se estima
// caminando los niveles ask para el tamaño de orden configurado.

import (
	"errors"
	"fmt"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// ErrUnpriceable indica un fallo de dominio numérico: el outcome no se puede
// valorar este ciclo. El caller lo marca como unpriceable y sigue con el resto.
var ErrUnpriceable = errors.New("pricing: undefined for given inputs")

// EffectiveBuyPrice calcula el precio efectivo de comprar un share al best
// ask dado. Falla explícitamente (ErrUnpriceable) cuando q está fuera de
// (0,1), el fee es negativo, o el denominador de la curva no es positivo —
// nunca devuelve una aproximación numérica.
//
// orderSize > 0 con niveles ask disponibles añade el slippage estimado.
func EffectiveBuyPrice(bestAsk, feeRate, orderSize float64, asks []domain.BookLevel) (domain.EffectivePrice, error) {
	q := bestAsk
	if q <= 0 || q >= 1 {
		return domain.EffectivePrice{}, fmt.Errorf("pricing.EffectiveBuyPrice: ask %.4f outside (0,1): %w", q, ErrUnpriceable)
	}
	if feeRate < 0 {
		return domain.EffectivePrice{}, fmt.Errorf("pricing.EffectiveBuyPrice: negative fee rate %.4f: %w", feeRate, ErrUnpriceable)
	}

	minSide := q
	if 1-q < minSide {
		minSide = 1 - q
	}
	denom := 1 - feeRate*minSide*q
	if denom <= 0 {
		return domain.EffectivePrice{}, fmt.Errorf("pricing.EffectiveBuyPrice: fee curve denominator %.6f: %w", denom, ErrUnpriceable)
	}

	afterFee := q / denom
	slippage := estimateSlippage(orderSize, asks, q)

	return domain.EffectivePrice{
		Raw:          q,
		Eff:          afterFee + slippage,
		FeeComponent: afterFee - q,
		Slippage:     slippage,
	}, nil
}

// estimateSlippage devuelve el coste medio por encima del best ask al llenar
// orderSize shares contra los niveles dados (VWAP − best ask, mínimo 0).
func estimateSlippage(orderSize float64, asks []domain.BookLevel, bestAsk float64) float64 {
	if orderSize <= 0 || len(asks) == 0 {
		return 0
	}

	remaining := orderSize
	var weighted, filled float64
	for _, lv := range asks {
		if remaining <= 0 {
			break
		}
		fill := lv.Size
		if remaining < fill {
			fill = remaining
		}
		weighted += fill * lv.Price
		filled += fill
		remaining -= fill
	}
	if filled <= 0 {
		return 0
	}

	vwap := weighted / filled
	if vwap <= bestAsk {
		return 0
	}
	return vwap - bestAsk
}

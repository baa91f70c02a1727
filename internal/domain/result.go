package domain

import "time"

// ResultStatus indica cómo terminó el cálculo de un outcome en un ciclo.
// Los outcomes problemáticos se publican igualmente con su status y razón —
// nunca se omiten en silencio.
type ResultStatus string

const (
	StatusOK          ResultStatus = "ok"
	StatusFiltered    ResultStatus = "filtered"    // pasó el cálculo pero no los filtros
	StatusUnpriceable ResultStatus = "unpriceable" // fallo de dominio numérico
	StatusNoData      ResultStatus = "no_data"     // sin book disponible este ciclo
	StatusStale       ResultStatus = "stale"       // calculado sobre un book viejo
)

// ReasonCode explica un status distinto de ok.
type ReasonCode string

const (
	ReasonNone          ReasonCode = ""
	ReasonMinEdge       ReasonCode = "min_edge"
	ReasonMinLiquidity  ReasonCode = "min_liquidity"
	ReasonFeeUndefined  ReasonCode = "fee_undefined"
	ReasonNoSignal      ReasonCode = "insufficient_signal"
	ReasonKellyDomain   ReasonCode = "kelly_undefined"
	ReasonBookUnfetched ReasonCode = "book_unavailable"
	ReasonFeedSilent    ReasonCode = "feed_silent"
)

// EffectivePrice descompone el precio efectivo de compra de un outcome.
type EffectivePrice struct {
	Raw          float64 // best ask citado
	Eff          float64 // precio tras fee y slippage
	FeeComponent float64
	Slippage     float64
}

// PricingResult es la recomendación derivada para un outcome en un ciclo.
// Inmutable: cada refresh construye resultados nuevos que reemplazan a los
// anteriores, evitando lecturas parciales desde la capa de presentación.
type PricingResult struct {
	Market  Market
	Outcome Outcome

	Status ResultStatus
	Reason ReasonCode

	BestBid  float64
	BestAsk  float64
	Mid      float64
	BidDepth float64
	AskDepth float64
	BookAge  time.Duration

	PHat       float64
	Price      EffectivePrice
	Edge       float64
	EVPerUSD   float64
	ROIPct     float64
	KellyRaw   float64
	Stake      float64
	Signals    SignalSet
	RiskFlags  []RiskFlag
	ComputedAt time.Time
}

// Actionable devuelve true si el resultado representa una apuesta recomendable.
func (r PricingResult) Actionable() bool {
	return r.Status == StatusOK && r.Edge > 0 && r.Stake > 0
}

// ServiceHealth describe el estado de los upstreams al publicar un set.
type ServiceHealth string

const (
	HealthOK                ServiceHealth = "ok"
	HealthDiscoveryDegraded ServiceHealth = "discovery_degraded"
	HealthFeedDegraded      ServiceHealth = "feed_degraded"
)

// ResultSet es el conjunto completo de resultados de un ciclo.
//
// Se publica de forma atómica: los consumidores ven o el set anterior
// completo o este, nunca una mezcla. Todos los resultados de un set
// comparten CycleID y ComputedAt.
type ResultSet struct {
	CycleID    string
	ComputedAt time.Time
	Health     []ServiceHealth
	Results    []PricingResult
}

// Degraded devuelve true si algún upstream superó su presupuesto de backoff.
func (rs *ResultSet) Degraded() bool {
	for _, h := range rs.Health {
		if h != HealthOK {
			return true
		}
	}
	return false
}

// RiskFlag es una señal de riesgo producida por el cliente AI.
type RiskFlag struct {
	Flag     string
	Severity string // info | warning | critical
	Detail   string
}

// RiskAnnotation es el análisis estructurado de contexto de un mercado.
// Se consume como anotación cacheada; nunca bloquea el pipeline de pricing.
type RiskAnnotation struct {
	Summary        string
	KeyFactors     []string
	RiskFlags      []RiskFlag
	SuggestedPAdj  float64 // micro-ajuste en [-0.05, 0.05], 0 = sin ajuste
	ConfidenceNote string
	Cached         bool
}

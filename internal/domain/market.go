package domain

import "time"

// Side identifica el lado de un outcome binario.
type Side string

const (
	SideYes Side = "Yes"
	SideNo  Side = "No"
)

// Market representa un mercado deportivo binario de Polymarket.
// Es propiedad de discovery; el feed y el orchestrator solo lo referencian.
type Market struct {
	ConditionID  string
	Question     string
	Slug         string
	EventTitle   string
	EventSlug    string
	Active       bool
	DiscoveredAt time.Time
	Outcomes     [2]Outcome
}

// Outcome es uno de los dos lados (YES/NO) de un mercado.
type Outcome struct {
	TokenID    string
	Side       Side
	FeeRateBps float64 // fee en basis points (200 = 2%)
}

// FeeRate devuelve el fee como fracción decimal (bps / 10000).
func (o Outcome) FeeRate() float64 {
	return o.FeeRateBps / 10000
}

// YesOutcome devuelve el outcome YES del mercado.
func (m Market) YesOutcome() Outcome {
	for _, o := range m.Outcomes {
		if o.Side == SideYes {
			return o
		}
	}
	return m.Outcomes[0]
}

// NoOutcome devuelve el outcome NO del mercado.
func (m Market) NoOutcome() Outcome {
	for _, o := range m.Outcomes {
		if o.Side == SideNo {
			return o
		}
	}
	return m.Outcomes[1]
}

// EventKey devuelve la clave con la que los signal providers identifican
// el evento (slug si existe, condition ID como fallback).
func (m Market) EventKey() string {
	if m.Slug != "" {
		return m.Slug
	}
	return m.ConditionID
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si está vacía usa el principio del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}

package domain

// SignalSource es el nombre de una fuente de probabilidad.
type SignalSource string

const (
	SignalMarket     SignalSource = "market"     // implícita en el mid del book
	SignalSportsbook SignalSource = "sportsbook" // odds externas sin vig
	SignalModel      SignalSource = "model"      // modelo estadístico
	SignalAI         SignalSource = "ai"         // ajuste del cliente de riesgo AI
)

// SignalSet agrupa las estimaciones de probabilidad disponibles para un
// outcome. Una fuente ausente simplemente no aparece en el map — nunca se
// representa como 0, que sesgaría la fusión.
type SignalSet struct {
	Values  map[SignalSource]float64
	Weights map[SignalSource]float64
}

// NewSignalSet crea un SignalSet vacío con los pesos configurados.
func NewSignalSet(weights map[SignalSource]float64) SignalSet {
	return SignalSet{
		Values:  make(map[SignalSource]float64, len(weights)),
		Weights: weights,
	}
}

// Add registra la estimación de una fuente. Valores fuera de (0,1) se
// descartan: las fuentes son input no confiable.
func (s SignalSet) Add(src SignalSource, p float64) {
	if p <= 0 || p >= 1 {
		return
	}
	s.Values[src] = p
}

// Has devuelve true si la fuente aportó una estimación.
func (s SignalSet) Has(src SignalSource) bool {
	_, ok := s.Values[src]
	return ok
}

// Len devuelve cuántas fuentes están presentes.
func (s SignalSet) Len() int {
	return len(s.Values)
}

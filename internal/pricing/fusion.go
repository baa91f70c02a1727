package pricing

import (
	"errors"
	"fmt"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// ErrNoSignal indica que no hay señales suficientes para estimar p̂.
var ErrNoSignal = errors.New("pricing: insufficient signal")

// Fuse combina las estimaciones presentes en el SignalSet en una sola
// probabilidad: media ponderada renormalizada sobre las fuentes disponibles.
//
// La renormalización es obligatoria: una fuente opcional ausente (p.ej. AI)
// no debe arrastrar el denominador hacia cero probabilidad. Falla con
// ErrNoSignal si no hay ninguna fuente o si los pesos presentes suman cero.
func Fuse(s domain.SignalSet) (float64, error) {
	if s.Len() == 0 {
		return 0, fmt.Errorf("pricing.Fuse: no sources present: %w", ErrNoSignal)
	}

	var sum, totalW float64
	for src, v := range s.Values {
		w := s.Weights[src]
		if w <= 0 {
			continue
		}
		sum += w * v
		totalW += w
	}
	if totalW <= 0 {
		return 0, fmt.Errorf("pricing.Fuse: present weights sum to zero: %w", ErrNoSignal)
	}

	return sum / totalW, nil
}

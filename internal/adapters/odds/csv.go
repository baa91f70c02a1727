// Package odds implementa providers de probabilidad a partir de cuotas
// externas de sportsbooks. Las cuotas decimales se convierten a
// probabilidades implícitas (1/odds) y se les quita el vig normalizando
// la suma del evento a 1.
package odds

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Probabilidades clampeadas a este rango: una cuota extrema sigue siendo
// una opinión, no una certeza.
const (
	probFloor = 0.01
	probCeil  = 0.99
)

// CSVProvider lee cuotas desde un CSV con columnas
// event_key,outcome,decimal_odds. El archivo se relee solo cuando cambia
// su mtime, así se puede editar en caliente entre ciclos.
type CSVProvider struct {
	path string

	mu      sync.Mutex
	loaded  map[string]map[string]float64 // event key → outcome → prob sin vig
	modTime time.Time
}

// NewCSVProvider crea el provider para la ruta dada. No valida el archivo
// hasta la primera lectura: un CSV ausente es señal ausente, no fallo fatal.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

// Name implementa ports.SignalProvider.
func (p *CSVProvider) Name() domain.SignalSource {
	return domain.SignalSportsbook
}

// Probabilities devuelve outcome → probabilidad sin vig para el evento.
func (p *CSVProvider) Probabilities(ctx context.Context, eventKey string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.refreshLocked(); err != nil {
		return nil, fmt.Errorf("odds.CSVProvider: %w", err)
	}

	probs, ok := p.loaded[eventKey]
	if !ok {
		return nil, fmt.Errorf("odds.CSVProvider: no odds for event %q", eventKey)
	}
	return probs, nil
}

// refreshLocked relee el CSV si cambió desde la última carga.
func (p *CSVProvider) refreshLocked() error {
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", p.path, err)
	}
	if p.loaded != nil && info.ModTime().Equal(p.modTime) {
		return nil
	}

	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("open %q: %w", p.path, err)
	}
	defer f.Close()

	loaded, err := parseOddsCSV(f)
	if err != nil {
		return err
	}

	p.loaded = loaded
	p.modTime = info.ModTime()
	return nil
}

// parseOddsCSV parsea el CSV completo y devuelve probabilidades sin vig
// por evento. Filas malformadas u odds <= 1 invalidan el archivo entero:
// mejor fallar la fuente que fusionar números a medias.
func parseOddsCSV(r io.Reader) (map[string]map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	implied := make(map[string]map[string]float64)
	for i, row := range rows {
		if i == 0 && row[0] == "event_key" {
			continue // header
		}
		eventKey, outcome := row[0], row[1]
		oddsVal, err := strconv.ParseFloat(row[2], 64)
		if err != nil || oddsVal <= 1 {
			return nil, fmt.Errorf("row %d: invalid decimal odds %q", i+1, row[2])
		}
		if implied[eventKey] == nil {
			implied[eventKey] = make(map[string]float64, 2)
		}
		implied[eventKey][outcome] = 1 / oddsVal
	}

	for eventKey, probs := range implied {
		normalizeEvent(probs)
		implied[eventKey] = probs
	}
	return implied, nil
}

// normalizeEvent quita el overround repartiendo proporcionalmente y clampea
// al rango permitido.
func normalizeEvent(probs map[string]float64) {
	var sum float64
	for _, q := range probs {
		sum += q
	}
	if sum <= 0 {
		return
	}
	for outcome, q := range probs {
		probs[outcome] = clampProb(q / sum)
	}
}

func clampProb(p float64) float64 {
	if p < probFloor {
		return probFloor
	}
	if p > probCeil {
		return probCeil
	}
	return p
}

package monitor

import (
	"sync"
	"sync/atomic"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Registry mantiene el conjunto de mercados trackeados y el último snapshot
// de book por outcome.
//
// Los snapshots se publican por reemplazo atómico del puntero: el pipeline
// de pricing lee la referencia que haya en ese instante sin bloquear a los
// writers. En modo degradado el feed y el poll REST del ciclo pueden
// escribir a la vez, así que la publicación usa CAS para que la secuencia
// de un token nunca retroceda.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]domain.Market // por condition id
	books   map[string]*atomic.Pointer[domain.OrderBookSnapshot]
}

// Delta resume el resultado de aplicar un discovery al registry.
type Delta struct {
	Added   int
	Removed int
	Kept    int
}

// Changed devuelve true si el conjunto de mercados cambió.
func (d Delta) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// NewRegistry crea un registry vacío.
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]domain.Market),
		books:   make(map[string]*atomic.Pointer[domain.OrderBookSnapshot]),
	}
}

// SetMarkets reemplaza el conjunto trackeado con el resultado de un
// discovery. Los books de mercados que siguen presentes se conservan — un
// re-discovery no borra datos de precio válidos. Devuelve el delta.
func (r *Registry) SetMarkets(markets []domain.Market) Delta {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]domain.Market, len(markets))
	var delta Delta
	for _, m := range markets {
		next[m.ConditionID] = m
		if _, ok := r.markets[m.ConditionID]; ok {
			delta.Kept++
		} else {
			delta.Added++
		}
	}
	delta.Removed = len(r.markets) - delta.Kept

	keep := make(map[string]struct{}, len(markets)*2)
	for _, m := range markets {
		for _, o := range m.Outcomes {
			keep[o.TokenID] = struct{}{}
			if _, ok := r.books[o.TokenID]; !ok {
				r.books[o.TokenID] = &atomic.Pointer[domain.OrderBookSnapshot]{}
			}
		}
	}
	for token := range r.books {
		if _, ok := keep[token]; !ok {
			delete(r.books, token)
		}
	}

	r.markets = next
	return delta
}

// Markets devuelve una copia del conjunto trackeado.
func (r *Registry) Markets() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// TokenIDs devuelve los token ids de todos los outcomes trackeados.
func (r *Registry) TokenIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.books))
	for token := range r.books {
		out = append(out, token)
	}
	return out
}

// Len devuelve cuántos mercados hay trackeados.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// ApplyUpdate publica un snapshot si su sequence supera al último aplicado
// para ese token. Updates duplicados o fuera de orden se descartan y
// devuelven false. Snapshots de tokens no trackeados también se descartan.
func (r *Registry) ApplyUpdate(snap *domain.OrderBookSnapshot) bool {
	if snap == nil {
		return false
	}

	r.mu.RLock()
	slot, ok := r.books[snap.TokenID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	for {
		prev := slot.Load()
		if prev != nil && snap.Seq <= prev.Seq {
			return false
		}
		if slot.CompareAndSwap(prev, snap) {
			return true
		}
	}
}

// Book devuelve el último snapshot publicado para el token, o nil si no hay.
func (r *Registry) Book(tokenID string) *domain.OrderBookSnapshot {
	r.mu.RLock()
	slot, ok := r.books[tokenID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return slot.Load()
}

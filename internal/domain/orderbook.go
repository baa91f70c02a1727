package domain

import (
	"fmt"
	"time"
)

// BookLevel es un nivel de precio en el orderbook.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot es el estado del book de un outcome en un instante.
//
// Es inmutable: el feed lo construye completo y lo publica reemplazando la
// referencia anterior, nunca mutando campos. Seq es monotónico por outcome
// y se usa para descartar updates duplicados o fuera de orden.
type OrderBookSnapshot struct {
	TokenID    string
	Bids       []BookLevel // ordenados de mayor a menor precio
	Asks       []BookLevel // ordenados de menor a mayor precio
	Seq        int64
	ReceivedAt time.Time
}

// BestBid devuelve el mejor precio de compra, 0 si no hay bids.
func (s *OrderBookSnapshot) BestBid() float64 {
	if s == nil || len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta, 0 si no hay asks.
func (s *OrderBookSnapshot) BestAsk() float64 {
	if s == nil || len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// Mid devuelve el punto medio entre best bid y best ask, 0 si falta un lado.
func (s *OrderBookSnapshot) Mid() float64 {
	bid := s.BestBid()
	ask := s.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// BidDepth devuelve el volumen total del lado bid en shares.
func (s *OrderBookSnapshot) BidDepth() float64 {
	if s == nil {
		return 0
	}
	var total float64
	for _, b := range s.Bids {
		total += b.Size
	}
	return total
}

// AskDepth devuelve el volumen total del lado ask en shares.
func (s *OrderBookSnapshot) AskDepth() float64 {
	if s == nil {
		return 0
	}
	var total float64
	for _, a := range s.Asks {
		total += a.Size
	}
	return total
}

// Depth devuelve la profundidad total (bids + asks).
func (s *OrderBookSnapshot) Depth() float64 {
	return s.BidDepth() + s.AskDepth()
}

// Age devuelve cuánto tiempo ha pasado desde que se recibió el snapshot.
func (s *OrderBookSnapshot) Age(now time.Time) time.Duration {
	if s == nil || s.ReceivedAt.IsZero() {
		return 0
	}
	return now.Sub(s.ReceivedAt)
}

// Validate comprueba las invariantes del snapshot: bid <= ask cuando ambos
// lados existen, y tamaños no negativos en todos los niveles.
func (s *OrderBookSnapshot) Validate() error {
	bid := s.BestBid()
	ask := s.BestAsk()
	if bid > 0 && ask > 0 && bid > ask {
		return fmt.Errorf("crossed book: bid %.4f > ask %.4f", bid, ask)
	}
	for _, lv := range s.Bids {
		if lv.Size < 0 {
			return fmt.Errorf("negative bid size at %.4f", lv.Price)
		}
	}
	for _, lv := range s.Asks {
		if lv.Size < 0 {
			return fmt.Errorf("negative ask size at %.4f", lv.Price)
		}
	}
	return nil
}

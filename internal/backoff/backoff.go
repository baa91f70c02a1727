package backoff

// backoff.go — política única de backoff exponencial acotado con full jitter.
//
// El retry de discovery y la reconexión del feed son instancias de la misma
// política, parametrizada por delay base, cap y número máximo de intentos.

import (
	"context"
	"math/rand"
	"time"
)

// Policy define un backoff exponencial con full jitter.
type Policy struct {
	Base        time.Duration // delay del primer intento
	Cap         time.Duration // delay máximo tras crecer
	MaxAttempts int           // 0 = sin límite
}

// Delay devuelve el delay para el intento dado (0-indexed): un valor
// uniforme en [0, min(cap, base·2^attempt)] (full jitter).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Exhausted devuelve true si el intento supera el máximo configurado.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Sleep espera el delay del intento respetando la cancelación del contexto.
// Devuelve false si el contexto se canceló durante la espera.
func (p Policy) Sleep(ctx context.Context, attempt int) bool {
	d := p.Delay(attempt)
	if d == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polyedge/internal/backoff"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
)

// BookStream es una conexión de streaming ya suscrita. La implementa el
// adapter de Polymarket; el feed solo consume el canal.
type BookStream interface {
	Updates() <-chan *domain.OrderBookSnapshot
	Err() error
	Close()
}

// DialFunc abre un BookStream suscrito a los tokens dados.
type DialFunc func(ctx context.Context, wsURL string, tokenIDs []string) (BookStream, error)

// FeedState es el estado de la máquina de conexión del feed.
type FeedState string

const (
	FeedDisconnected FeedState = "disconnected"
	FeedConnecting   FeedState = "connecting"
	FeedLive         FeedState = "live"
	FeedReconnecting FeedState = "reconnecting"
)

// Feed mantiene los books del registry al día vía streaming, con fallback
// a polling REST cuando el presupuesto de reconexión se agota.
//
// Máquina de estados: Disconnected → Connecting → Live, y Live →
// Reconnecting → Live en cada caída. Antes de confiar en el stream se
// siembran los books por REST: entre la suscripción y el primer mensaje el
// estado sería desconocido sin ese seed. Un silencio prolongado se trata
// como conexión muerta aunque el socket siga abierto.
type Feed struct {
	books    ports.BookProvider
	registry *Registry
	dial     DialFunc
	wsURL    string
	silence  time.Duration
	policy   backoff.Policy
	pollGap  time.Duration

	state       atomic.Value // FeedState
	degraded    atomic.Bool
	lastMsgUnix atomic.Int64
	kick        chan struct{}
	changes     chan struct{}
}

// NewFeed crea el feed. pollGap es la cadencia del fallback REST cuando el
// stream no está disponible.
func NewFeed(books ports.BookProvider, registry *Registry, dial DialFunc, wsURL string,
	silence time.Duration, policy backoff.Policy, pollGap time.Duration) *Feed {

	f := &Feed{
		books:    books,
		registry: registry,
		dial:     dial,
		wsURL:    wsURL,
		silence:  silence,
		policy:   policy,
		pollGap:  pollGap,
		kick:     make(chan struct{}, 1),
		changes:  make(chan struct{}, 1),
	}
	f.state.Store(FeedDisconnected)
	return f
}

// State devuelve el estado actual de la conexión.
func (f *Feed) State() FeedState {
	return f.state.Load().(FeedState)
}

// Degraded devuelve true si el feed agotó su presupuesto de reconexión y
// está operando en fallback REST.
func (f *Feed) Degraded() bool {
	return f.degraded.Load()
}

// Silent devuelve true si el stream lleva más del timeout sin mensajes.
func (f *Feed) Silent(now time.Time) bool {
	last := f.lastMsgUnix.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) > f.silence
}

// Changes señala (coalescido) que se aplicaron updates de book. El
// orchestrator lo usa para refrescar antes del siguiente tick.
func (f *Feed) Changes() <-chan struct{} {
	return f.changes
}

// Resubscribe fuerza una reconexión para recoger el conjunto actual de
// tokens del registry. Lo llama el orchestrator tras un discovery con
// cambios.
func (f *Feed) Resubscribe() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Run ejecuta la máquina de conexión hasta que el contexto se cancele.
func (f *Feed) Run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		if f.policy.Exhausted(attempt) {
			// Presupuesto agotado: fallback REST, y tras un periodo de
			// gracia se abre una ventana de intentos nueva.
			if !f.degraded.Swap(true) {
				slog.Error("stream reconnect budget exhausted, falling back to REST polling",
					"attempts", attempt)
			}
			f.pollOnce(ctx)
			if !sleepCtx(ctx, f.pollGap) {
				return
			}
			attempt = 0
			continue
		}

		f.state.Store(FeedConnecting)
		if err := f.seedBooks(ctx); err != nil {
			slog.Warn("book seed failed", "err", err)
			f.policy.Sleep(ctx, attempt)
			attempt++
			continue
		}

		tokens := f.registry.TokenIDs()
		if len(tokens) == 0 {
			if !sleepCtx(ctx, f.pollGap) {
				return
			}
			continue
		}

		stream, err := f.dial(ctx, f.wsURL, tokens)
		if err != nil {
			slog.Warn("stream dial failed", "attempt", attempt+1, "err", err)
			f.state.Store(FeedReconnecting)
			f.policy.Sleep(ctx, attempt)
			attempt++
			continue
		}

		f.state.Store(FeedLive)
		f.degraded.Store(false)
		attempt = 0

		f.consume(ctx, stream)
		f.state.Store(FeedReconnecting)
	}
	f.state.Store(FeedDisconnected)
}

// consume lee el stream hasta que muera, el silencio supere el timeout, o
// llegue un Resubscribe.
func (f *Feed) consume(ctx context.Context, stream BookStream) {
	defer stream.Close()

	f.lastMsgUnix.Store(time.Now().UnixNano())
	silenceTimer := time.NewTimer(f.silence)
	defer silenceTimer.Stop()

	applied, discarded := 0, 0
	for {
		select {
		case <-ctx.Done():
			return

		case <-f.kick:
			slog.Info("resubscribing stream with updated market set")
			return

		case <-silenceTimer.C:
			slog.Warn("stream silent past timeout, reconnecting",
				"timeout", f.silence, "applied", applied)
			return

		case snap, ok := <-stream.Updates():
			if !ok {
				if err := stream.Err(); err != nil {
					slog.Warn("stream closed", "err", err, "applied", applied, "discarded", discarded)
				}
				return
			}
			f.lastMsgUnix.Store(time.Now().UnixNano())
			if !silenceTimer.Stop() {
				select {
				case <-silenceTimer.C:
				default:
				}
			}
			silenceTimer.Reset(f.silence)

			if f.registry.ApplyUpdate(snap) {
				applied++
				select {
				case f.changes <- struct{}{}:
				default:
				}
			} else {
				discarded++
			}
		}
	}
}

// seedBooks siembra el registry con snapshots REST antes de confiar en el
// stream.
func (f *Feed) seedBooks(ctx context.Context) error {
	tokens := f.registry.TokenIDs()
	if len(tokens) == 0 {
		return nil
	}
	snaps, err := f.books.FetchOrderBooks(ctx, tokens)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		f.registry.ApplyUpdate(snap)
	}
	slog.Debug("books seeded", "requested", len(tokens), "fetched", len(snaps))
	return nil
}

// pollOnce es una iteración del fallback REST.
func (f *Feed) pollOnce(ctx context.Context) {
	if err := f.seedBooks(ctx); err != nil {
		slog.Warn("fallback poll failed", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

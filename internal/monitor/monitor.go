// Package monitor contiene el loop de aplicación: discovery periódico,
// feed de books y el ciclo de refresh que convierte señales en
// recomendaciones de stake.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyedge/config"
	"github.com/alejandrodnm/polyedge/internal/backoff"
	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/alejandrodnm/polyedge/internal/ports"
	"github.com/alejandrodnm/polyedge/internal/pricing"
)

// RiskAnnotator entrega anotaciones de riesgo cacheadas. Nunca debe
// bloquear: un cache miss devuelve ok=false y el ciclo sigue sin señal AI.
// mid es el precio actual del outcome YES, usado para el bucket de cache.
type RiskAnnotator interface {
	Annotate(ctx context.Context, m domain.Market, mid float64) (domain.RiskAnnotation, bool)
	AdjustedProbability(base float64, ann domain.RiskAnnotation) float64
}

// Monitor orquesta discovery, feed y los ciclos de refresh.
type Monitor struct {
	marketSrc ports.MarketProvider
	bookSrc   ports.BookProvider
	providers []ports.SignalProvider
	annotator RiskAnnotator // nil = AI deshabilitada
	publisher ports.Publisher
	registry  *Registry
	feed      *Feed // nil = solo polling REST

	cfg    atomic.Pointer[config.Config]
	latest atomic.Pointer[domain.ResultSet]

	retry backoff.Policy // reintentos de discovery periódico

	inCycle           atomic.Bool
	discoveryDegraded atomic.Bool
}

// New crea el monitor. feed y annotator pueden ser nil.
func New(cfg *config.Config, markets ports.MarketProvider, books ports.BookProvider,
	providers []ports.SignalProvider, annotator RiskAnnotator,
	publisher ports.Publisher, registry *Registry, feed *Feed) *Monitor {

	m := &Monitor{
		marketSrc: markets,
		bookSrc:   books,
		providers: providers,
		annotator: annotator,
		publisher: publisher,
		registry:  registry,
		feed:      feed,
		retry:     backoff.Policy{Base: 2 * time.Second, Cap: time.Minute, MaxAttempts: 5},
	}
	m.cfg.Store(cfg)
	return m
}

// Latest devuelve el último result set publicado, o nil si aún no hay.
// Seguro para llamar desde cualquier goroutine.
func (m *Monitor) Latest() *domain.ResultSet {
	return m.latest.Load()
}

// UpdateConfig instala una nueva configuración. El ciclo en curso termina
// con la anterior; el siguiente la recoge completa.
func (m *Monitor) UpdateConfig(cfg *config.Config) {
	m.cfg.Store(cfg)
}

// Run ejecuta discovery inicial, arranca el feed y entra en el loop de
// refresh hasta que el contexto se cancele.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.discover(ctx); err != nil {
		// Sin un discovery inicial no hay nada que monitorizar.
		return err
	}

	if m.feed != nil {
		go m.feed.Run(ctx)
	}

	cfg := m.cfg.Load()
	refresh := time.NewTicker(cfg.RefreshInterval())
	defer refresh.Stop()
	discovery := time.NewTicker(cfg.DiscoveryInterval())
	defer discovery.Stop()

	var feedCh <-chan struct{} // nil bloquea para siempre en el select
	if m.feed != nil {
		feedCh = m.feed.Changes()
	}

	m.refreshCycle(ctx)
	lastCycle := time.Now()

	for {
		// Una recarga de configuración se recoge en el siguiente despertar:
		// ajusta los tickers y el debounce sin reiniciar el proceso.
		cfg = retuneTickers(cfg, m.cfg.Load(), refresh, discovery)

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-discovery.C:
			if err := m.discoverWithRetry(ctx); err != nil {
				slog.Warn("periodic discovery failed, keeping tracked set", "err", err)
			}

		case <-refresh.C:
			m.refreshCycle(ctx)
			lastCycle = time.Now()

		case <-feedCh:
			// Updates del stream adelantan el ciclo, con debounce para no
			// recalcular en cada mensaje.
			if time.Since(lastCycle) < cfg.RefreshInterval()/2 {
				continue
			}
			m.refreshCycle(ctx)
			lastCycle = time.Now()
		}
	}
}

// retuneTickers aplica los intervalos de una configuración recargada a los
// tickers del loop. Devuelve la configuración vigente.
func retuneTickers(prev, cur *config.Config, refresh, discovery *time.Ticker) *config.Config {
	if cur == prev {
		return prev
	}
	if cur.RefreshInterval() != prev.RefreshInterval() {
		refresh.Reset(cur.RefreshInterval())
	}
	if cur.DiscoveryInterval() != prev.DiscoveryInterval() {
		discovery.Reset(cur.DiscoveryInterval())
	}
	return cur
}

// discoverWithRetry reintenta el discovery con backoff acotado. Agotar los
// reintentos conserva el conjunto anterior y deja discovery degradado hasta
// el próximo timer.
func (m *Monitor) discoverWithRetry(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := m.discover(ctx)
		if err == nil {
			return nil
		}
		if m.retry.Exhausted(attempt + 1) {
			return err
		}
		slog.Warn("discovery failed, retrying", "attempt", attempt+1, "err", err)
		if !m.retry.Sleep(ctx, attempt) {
			return ctx.Err()
		}
	}
}

// RunOnce ejecuta un único discovery + ciclo de refresh y termina.
func (m *Monitor) RunOnce(ctx context.Context) error {
	if err := m.discover(ctx); err != nil {
		return err
	}
	m.refreshCycle(ctx)
	return nil
}

// discover refresca el conjunto de mercados trackeados. Un fallo conserva
// el conjunto anterior y marca discovery como degradado hasta el próximo
// éxito.
func (m *Monitor) discover(ctx context.Context) error {
	markets, err := m.marketSrc.FetchSportsMarkets(ctx)
	if err != nil {
		m.discoveryDegraded.Store(true)
		return err
	}

	cfg := m.cfg.Load()
	if max := cfg.Monitor.MaxMarkets; max > 0 && len(markets) > max {
		markets = markets[:max]
	}

	m.enrichFees(ctx, markets)

	delta := m.registry.SetMarkets(markets)
	m.discoveryDegraded.Store(false)

	slog.Info("discovery applied",
		"tracked", m.registry.Len(),
		"added", delta.Added,
		"removed", delta.Removed,
	)

	if delta.Changed() && m.feed != nil {
		m.feed.Resubscribe()
	}
	return nil
}

// feeWorkers acota las consultas concurrentes de fee rate en discovery.
const feeWorkers = 8

// enrichFees reemplaza el fee default de cada outcome por el real de la
// API cuando está disponible. Un fallo deja el default conservador.
func (m *Monitor) enrichFees(ctx context.Context, markets []domain.Market) {
	sem := make(chan struct{}, feeWorkers)
	var wg sync.WaitGroup

	for i := range markets {
		for j := range markets[i].Outcomes {
			o := &markets[i].Outcomes[j]
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				bps, err := m.bookSrc.FetchFeeRateBps(ctx, o.TokenID)
				if err != nil || bps < 0 {
					return
				}
				o.FeeRateBps = bps
			}()
		}
	}
	wg.Wait()
}

// refreshCycle calcula y publica un result set completo. Si el ciclo
// anterior sigue en curso, este tick se salta: nunca hay dos ciclos
// solapados escribiendo resultados.
func (m *Monitor) refreshCycle(ctx context.Context) {
	if !m.inCycle.CompareAndSwap(false, true) {
		slog.Warn("previous cycle still running, skipping tick")
		return
	}
	defer m.inCycle.Store(false)

	cfg := m.cfg.Load() // snapshot: el ciclo entero usa esta configuración
	now := time.Now().UTC()
	markets := m.registry.Markets()

	if m.feed == nil || m.feed.Degraded() {
		m.pollBooks(ctx)
	}

	signals := m.gatherSignals(ctx, markets)

	results := make([]domain.PricingResult, 0, len(markets)*2)
	for _, market := range markets {
		for _, outcome := range market.Outcomes {
			results = append(results, m.computeOutcome(ctx, cfg, market, outcome, signals[market.ConditionID], now))
		}
	}

	rs := &domain.ResultSet{
		CycleID:    uuid.NewString(),
		ComputedAt: now,
		Health:     m.health(now),
		Results:    results,
	}

	m.latest.Store(rs)
	if err := m.publisher.Publish(ctx, rs); err != nil {
		slog.Error("publish failed", "cycle_id", rs.CycleID, "err", err)
	}

	slog.Debug("cycle complete",
		"cycle_id", rs.CycleID,
		"outcomes", len(results),
		"elapsed", time.Since(now),
	)
}

// pollBooks trae snapshots frescos por REST para todos los tokens. Se usa
// cuando no hay feed o cuando está degradado.
func (m *Monitor) pollBooks(ctx context.Context) {
	tokens := m.registry.TokenIDs()
	if len(tokens) == 0 {
		return
	}
	snaps, err := m.bookSrc.FetchOrderBooks(ctx, tokens)
	if err != nil {
		slog.Warn("book poll failed", "err", err)
		return
	}
	for _, snap := range snaps {
		m.registry.ApplyUpdate(snap)
	}
}

// marketSignals son las probabilidades externas de un mercado, por fuente
// y por outcome label.
type marketSignals map[domain.SignalSource]map[string]float64

// gatherSignals consulta cada signal provider una vez por mercado. Un
// provider que falla es señal ausente para ese mercado, nunca detiene el
// ciclo.
func (m *Monitor) gatherSignals(ctx context.Context, markets []domain.Market) map[string]marketSignals {
	out := make(map[string]marketSignals, len(markets))
	for _, market := range markets {
		sigs := make(marketSignals, len(m.providers))
		for _, p := range m.providers {
			probs, err := p.Probabilities(ctx, market.EventKey())
			if err != nil {
				slog.Debug("signal unavailable",
					"source", p.Name(), "event", market.EventKey(), "err", err)
				continue
			}
			sigs[p.Name()] = probs
		}
		out[market.ConditionID] = sigs
	}
	return out
}

// computeOutcome ejecuta el pipeline completo para un outcome:
// book → señales → fusión → precio efectivo → edge → filtros → stake.
// Nunca devuelve error: los fallos se expresan como status + reason.
func (m *Monitor) computeOutcome(ctx context.Context, cfg *config.Config,
	market domain.Market, outcome domain.Outcome, external marketSignals, now time.Time) domain.PricingResult {

	r := domain.PricingResult{
		Market:     market,
		Outcome:    outcome,
		ComputedAt: now,
	}

	snap := m.registry.Book(outcome.TokenID)
	if snap == nil {
		r.Status = domain.StatusNoData
		r.Reason = domain.ReasonBookUnfetched
		return r
	}

	r.BestBid = snap.BestBid()
	r.BestAsk = snap.BestAsk()
	r.Mid = snap.Mid()
	r.BidDepth = snap.BidDepth()
	r.AskDepth = snap.AskDepth()
	r.BookAge = snap.Age(now)

	set := m.buildSignalSet(ctx, cfg, market, outcome, snap, external)
	r.Signals = set

	pHat, err := pricing.Fuse(set)
	if err != nil {
		r.Status = domain.StatusUnpriceable
		r.Reason = domain.ReasonNoSignal
		return r
	}
	r.PHat = pHat

	shares := 0.0
	if r.BestAsk > 0 {
		shares = cfg.Monitor.OrderSizeUSDC / r.BestAsk
	}
	price, err := pricing.EffectiveBuyPrice(r.BestAsk, outcome.FeeRate(), shares, snap.Asks)
	if err != nil {
		r.Status = domain.StatusUnpriceable
		r.Reason = domain.ReasonFeeUndefined
		return r
	}
	r.Price = price

	ev, err := pricing.Evaluate(pHat, price.Eff)
	if err != nil {
		r.Status = domain.StatusUnpriceable
		r.Reason = domain.ReasonFeeUndefined
		return r
	}
	r.Edge = ev.Edge
	r.EVPerUSD = ev.EVPerUSD
	r.ROIPct = ev.ROIPct

	fStar, err := pricing.KellyFraction(ev.Edge, price.Eff)
	if err != nil {
		r.Status = domain.StatusUnpriceable
		r.Reason = domain.ReasonKellyDomain
		return r
	}
	r.KellyRaw = fStar

	if ann, ok := m.annotation(ctx, market, yesMid(outcome, r.Mid)); ok {
		r.RiskFlags = ann.RiskFlags
	}

	if r.BookAge > cfg.StaleAfter() {
		r.Status = domain.StatusStale
		if m.feed != nil && m.feed.Silent(now) {
			r.Reason = domain.ReasonFeedSilent
		}
		return r
	}

	s := cfg.Staking
	if reason := pricing.FilterOutcome(ev.Edge, snap.Depth(), s.MinEdge, s.MinLiquidity); reason != domain.ReasonNone {
		r.Status = domain.StatusFiltered
		r.Reason = reason
		return r
	}

	r.Stake = pricing.Stake(fStar, s.Bankroll, s.KellyMultiplier, s.MaxBetPct)
	r.Status = domain.StatusOK
	return r
}

// buildSignalSet construye el SignalSet de un outcome con las fuentes
// disponibles: mid del book como señal de mercado, providers externos por
// label, y el ajuste AI sobre el mid si hay anotación cacheada.
func (m *Monitor) buildSignalSet(ctx context.Context, cfg *config.Config,
	market domain.Market, outcome domain.Outcome, snap *domain.OrderBookSnapshot,
	external marketSignals) domain.SignalSet {

	w := cfg.Signals.Weights
	set := domain.NewSignalSet(map[domain.SignalSource]float64{
		domain.SignalMarket:     w.Market,
		domain.SignalSportsbook: w.Sportsbook,
		domain.SignalModel:      w.Model,
		domain.SignalAI:         w.AI,
	})

	mid := snap.Mid()
	set.Add(domain.SignalMarket, mid)

	for src, probs := range external {
		if p, ok := lookupOutcomeProb(probs, outcome.Side); ok {
			set.Add(src, p)
		}
	}

	if mid > 0 {
		if ann, ok := m.annotation(ctx, market, yesMid(outcome, mid)); ok {
			// El ajuste sugerido está definido sobre la probabilidad YES;
			// para el outcome NO se aplica con signo invertido.
			adj := ann
			if outcome.Side == domain.SideNo {
				adj.SuggestedPAdj = -ann.SuggestedPAdj
			}
			set.Add(domain.SignalAI, m.annotator.AdjustedProbability(mid, adj))
		}
	}

	return set
}

// yesMid traduce el mid de un outcome al mid del lado YES, que es el precio
// con el que trabaja el annotator. Ambos outcomes de un mercado comparten
// así la misma entrada de cache.
func yesMid(outcome domain.Outcome, mid float64) float64 {
	if mid > 0 && outcome.Side == domain.SideNo {
		return 1 - mid
	}
	return mid
}

// annotation devuelve la anotación cacheada del mercado, si la AI está
// habilitada y hay una disponible.
func (m *Monitor) annotation(ctx context.Context, market domain.Market, mid float64) (domain.RiskAnnotation, bool) {
	if m.annotator == nil {
		return domain.RiskAnnotation{}, false
	}
	return m.annotator.Annotate(ctx, market, mid)
}

// lookupOutcomeProb busca la probabilidad del outcome por su label. Si el
// provider solo cubre el lado contrario, usa el complemento.
func lookupOutcomeProb(probs map[string]float64, side domain.Side) (float64, bool) {
	if p, ok := probs[string(side)]; ok {
		return p, true
	}
	other := domain.SideNo
	if side == domain.SideNo {
		other = domain.SideYes
	}
	if p, ok := probs[string(other)]; ok {
		return 1 - p, true
	}
	return 0, false
}

// health resume el estado de los upstreams para el result set.
func (m *Monitor) health(now time.Time) []domain.ServiceHealth {
	var hs []domain.ServiceHealth
	if m.discoveryDegraded.Load() {
		hs = append(hs, domain.HealthDiscoveryDegraded)
	}
	if m.feed != nil && (m.feed.Degraded() || m.feed.Silent(now)) {
		hs = append(hs, domain.HealthFeedDegraded)
	}
	if len(hs) == 0 {
		hs = append(hs, domain.HealthOK)
	}
	return hs
}

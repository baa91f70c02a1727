// Package riskai annotates markets with qualitative risk context using the
// Anthropic Messages API. Annotations are advisory: the pricing pipeline
// reads whatever is cached and never waits on a network call.
package riskai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
	defaultModel     = "claude-3-5-haiku-latest"

	annotationTTL  = 5 * time.Minute
	requestTimeout = 30 * time.Second
	maxTokens      = 1024

	// Hard bound on the probability micro-adjustment the model may suggest.
	maxPAdj = 0.05
)

// Annotator fetches and caches risk annotations per market. Fetches run in
// background goroutines; Annotate only ever returns cached data.
type Annotator struct {
	http    *resty.Client
	apiKey  string
	model   string
	limiter *rate.Limiter
	cache   *ttlCache[string, domain.RiskAnnotation]

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAnnotator creates an Annotator. baseURL empty means production.
func NewAnnotator(apiKey, baseURL string) *Annotator {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json")

	return &Annotator{
		http:   client,
		apiKey: apiKey,
		model:  defaultModel,
		// One request every 2s: annotations are slow-moving context, not
		// tick data, and the budget is shared across all markets.
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
		cache:    newTTLCache[string, domain.RiskAnnotation](annotationTTL),
		inFlight: make(map[string]struct{}),
	}
}

// Annotate returns the cached annotation for a market at the current price
// level, if any. The cache key buckets the mid price so a meaningful move
// invalidates stale context while small ticks reuse the cached entry. On a
// miss it schedules a background fetch and reports no annotation for now;
// a later cycle picks up the result.
func (a *Annotator) Annotate(ctx context.Context, m domain.Market, mid float64) (domain.RiskAnnotation, bool) {
	key := cacheKey(m, mid)
	if ann, ok := a.cache.Get(key); ok {
		ann.Cached = true
		return ann, true
	}

	a.mu.Lock()
	if _, busy := a.inFlight[key]; busy {
		a.mu.Unlock()
		return domain.RiskAnnotation{}, false
	}
	a.inFlight[key] = struct{}{}
	a.mu.Unlock()

	go a.fetch(ctx, m, mid, key)
	return domain.RiskAnnotation{}, false
}

// cacheKey agrupa el mid en buckets de 0.05.
func cacheKey(m domain.Market, mid float64) string {
	bucket := math.Round(mid*20) / 20
	return fmt.Sprintf("%s|%.2f", m.ConditionID, bucket)
}

// AdjustedProbability applies the cached suggested adjustment to a base
// probability, keeping the result inside the open unit interval.
func (a *Annotator) AdjustedProbability(base float64, ann domain.RiskAnnotation) float64 {
	adj := math.Max(-maxPAdj, math.Min(maxPAdj, ann.SuggestedPAdj))
	p := base + adj
	if p <= 0.01 {
		return 0.01
	}
	if p >= 0.99 {
		return 0.99
	}
	return p
}

func (a *Annotator) fetch(ctx context.Context, m domain.Market, mid float64, key string) {
	defer func() {
		a.mu.Lock()
		delete(a.inFlight, key)
		a.mu.Unlock()
	}()

	if err := a.limiter.Wait(ctx); err != nil {
		return
	}

	ann, err := a.requestAnnotation(ctx, m, mid)
	if err != nil {
		slog.Warn("risk annotation failed", "condition_id", m.ConditionID, "err", err)
		return
	}

	a.cache.Set(key, ann)
	slog.Debug("risk annotation cached",
		"condition_id", m.ConditionID,
		"flags", len(ann.RiskFlags),
		"p_adj", ann.SuggestedPAdj,
	)
}

func (a *Annotator) requestAnnotation(ctx context.Context, m domain.Market, mid float64) (domain.RiskAnnotation, error) {
	req := messagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(m, mid)},
		},
	}

	var resp messagesResponse
	r, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(messagesPath)
	if err != nil {
		return domain.RiskAnnotation{}, fmt.Errorf("riskai: post: %w", err)
	}
	if r.IsError() {
		return domain.RiskAnnotation{}, fmt.Errorf("riskai: status %d: %s", r.StatusCode(), r.String())
	}
	if len(resp.Content) == 0 {
		return domain.RiskAnnotation{}, fmt.Errorf("riskai: empty response")
	}

	return parseAnnotation(resp.Content[0].Text)
}

const systemPrompt = `You are a sports betting risk analyst. Given a prediction
market, respond ONLY with a JSON object with fields: summary (string),
key_factors (array of strings), risk_flags (array of {flag, severity, detail}
with severity one of info|warning|critical), suggested_p_adj (number in
[-0.05, 0.05] adjusting the YES probability), confidence_note (string).`

func buildPrompt(m domain.Market, mid float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", m.Question)
	fmt.Fprintf(&b, "Event: %s\n", m.EventTitle)
	fmt.Fprintf(&b, "Slug: %s\n", m.Slug)
	if mid > 0 {
		fmt.Fprintf(&b, "Current YES mid price: %.3f\n", mid)
	}
	b.WriteString("Assess injury news exposure, schedule context, and any structural risks for this market.")
	return b.String()
}

// parseAnnotation decodes the model output, tolerating markdown code fences
// around the JSON body.
func parseAnnotation(text string) (domain.RiskAnnotation, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw annotationPayload
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return domain.RiskAnnotation{}, fmt.Errorf("riskai: parse annotation: %w", err)
	}

	ann := domain.RiskAnnotation{
		Summary:        raw.Summary,
		KeyFactors:     raw.KeyFactors,
		SuggestedPAdj:  math.Max(-maxPAdj, math.Min(maxPAdj, raw.SuggestedPAdj)),
		ConfidenceNote: raw.ConfidenceNote,
	}
	for _, f := range raw.RiskFlags {
		ann.RiskFlags = append(ann.RiskFlags, domain.RiskFlag{
			Flag:     f.Flag,
			Severity: normalizeSeverity(f.Severity),
			Detail:   f.Detail,
		})
	}
	return ann, nil
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(s) {
	case "warning":
		return "warning"
	case "critical":
		return "critical"
	default:
		return "info"
	}
}

// --- wire types ---

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type annotationPayload struct {
	Summary        string         `json:"summary"`
	KeyFactors     []string       `json:"key_factors"`
	RiskFlags      []riskFlagWire `json:"risk_flags"`
	SuggestedPAdj  float64        `json:"suggested_p_adj"`
	ConfidenceNote string         `json:"confidence_note"`
}

type riskFlagWire struct {
	Flag     string `json:"flag"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

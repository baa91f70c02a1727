package polymarket

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaEvent es un evento con sus mercados embebidos de GET /events.
type gammaEvent struct {
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket es un mercado dentro de un evento Gamma.
// Gamma codifica clobTokenIds y outcomes como strings JSON anidados.
type gammaMarket struct {
	ConditionID     string `json:"conditionId"`
	Question        string `json:"question"`
	Slug            string `json:"slug"`
	ClobTokenIDs    string `json:"clobTokenIds"`
	Outcomes        string `json:"outcomes"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	AcceptingOrders bool   `json:"acceptingOrders"`
}

// --- CLOB API ---

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
// El timestamp en milisegundos es monotónico por asset y hace de sequence.
type orderBookResponse struct {
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []bookLevelRaw `json:"bids"`
	Asks      []bookLevelRaw `json:"asks"`
}

// bookLevelRaw es un nivel de precio raw de la API (strings para precisión).
type bookLevelRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// feeRateResponse es la respuesta de GET /fee-rate.
type feeRateResponse struct {
	FeeRateBps float64 `json:"fee_rate_bps"`
}

// --- WebSocket market channel ---

// wsSubscribe es el mensaje de suscripción al canal market.
type wsSubscribe struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

// wsBookMessage es un mensaje "book" del stream: snapshot completo del book
// de un asset. El canal también emite "price_change", que señala que hay
// delta pero sin book completo; ambos llevan asset_id y timestamp.
type wsBookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []bookLevelRaw `json:"bids"`
	Asks      []bookLevelRaw `json:"asks"`
}

package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	booksPath    = "/books"
	feeRatePath  = "/fee-rate"
	booksPerCall = 20
)

// FetchOrderBooks obtiene snapshots de book para los tokens dados vía el
// endpoint batch POST /books, en lotes concurrentes. Implementa la parte de
// snapshots de ports.BookProvider.
//
// Los tokens cuyo book no se pudo obtener simplemente no aparecen en el mapa:
// el caller los marca data-unavailable para el ciclo.
func (c *Client) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]*domain.OrderBookSnapshot, error) {
	if len(tokenIDs) == 0 {
		return map[string]*domain.OrderBookSnapshot{}, nil
	}

	batches := make([][]string, 0, (len(tokenIDs)+booksPerCall-1)/booksPerCall)
	for i := 0; i < len(tokenIDs); i += booksPerCall {
		end := i + booksPerCall
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}

	resultCh := make(chan []orderBookResponse, len(batches))
	var wg sync.WaitGroup

	for _, batch := range batches {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			books, err := c.fetchBooksBatch(ctx, ids)
			if err != nil {
				slog.Warn("books batch failed", "tokens", len(ids), "err", err)
				return
			}
			resultCh <- books
		}(batch)
	}

	wg.Wait()
	close(resultCh)

	now := time.Now().UTC()
	out := make(map[string]*domain.OrderBookSnapshot, len(tokenIDs))
	for books := range resultCh {
		for _, r := range books {
			snap, ok := mapOrderBook(r, now)
			if !ok {
				continue
			}
			out[snap.TokenID] = snap
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("clob.FetchOrderBooks: no books fetched for %d tokens", len(tokenIDs))
	}
	return out, nil
}

// fetchBooksBatch hace un POST /books para un lote de tokens.
func (c *Client) fetchBooksBatch(ctx context.Context, tokenIDs []string) ([]orderBookResponse, error) {
	reqs := make([]orderBookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		reqs[i] = orderBookRequest{TokenID: id}
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal books request: %w", err)
	}

	url := c.clobBase + booksPath
	var books []orderBookResponse
	err = c.doWithRetry(ctx, c.booksLimiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, &books)
	if err != nil {
		return nil, err
	}
	return books, nil
}

// FetchFeeRateBps devuelve el fee rate en basis points para un token.
// Si la API falla o no devuelve fee, usa el default conservador configurado.
func (c *Client) FetchFeeRateBps(ctx context.Context, tokenID string) (float64, error) {
	url := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, feeRatePath, tokenID)

	var resp feeRateResponse
	if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
		slog.Debug("fee rate unavailable, using default",
			"token_id", tokenID, "default_bps", c.feeDefault, "err", err)
		return c.feeDefault, nil
	}
	if resp.FeeRateBps < 0 {
		return c.feeDefault, nil
	}
	return resp.FeeRateBps, nil
}

package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 5 * time.Second
	wsPingInterval     = 10 * time.Second

	subscribeTypeMarket = "market"
	eventTypeBook       = "book"
)

// Stream is a single websocket connection to the CLOB market channel.
// It decodes "book" events into domain snapshots and pushes them on Updates.
// Reconnection policy lives in the caller; when the connection dies the
// stream closes its updates channel and reports the error via Err.
type Stream struct {
	conn    *websocket.Conn
	updates chan *domain.OrderBookSnapshot
	done    chan struct{}
	err     error
}

// DialStream opens a market-channel connection and subscribes to the given
// asset ids. The returned stream is already reading; consume Updates until
// it closes.
func DialStream(ctx context.Context, wsURL string, tokenIDs []string) (*Stream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket.DialStream: dial %s: %w", wsURL, err)
	}

	sub := wsSubscribe{Type: subscribeTypeMarket, AssetsIDs: tokenIDs}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarket.DialStream: subscribe: %w", err)
	}

	s := &Stream{
		conn:    conn,
		updates: make(chan *domain.OrderBookSnapshot, 256),
		done:    make(chan struct{}),
	}

	go s.readLoop(ctx)
	go s.pingLoop(ctx)

	slog.Info("market stream connected", "assets", len(tokenIDs))
	return s, nil
}

// Updates returns the snapshot channel. It is closed when the connection
// ends, after which Err reports the terminal error.
func (s *Stream) Updates() <-chan *domain.OrderBookSnapshot {
	return s.updates
}

// Err returns the error that terminated the stream, if any. Only valid
// after Updates has been closed.
func (s *Stream) Err() error {
	return s.err
}

// Close tears down the connection. Safe to call more than once.
func (s *Stream) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.conn.Close()
}

// readLoop decodes incoming frames until the connection drops. The server
// sends full book snapshots per asset, so each "book" event maps to one
// complete domain snapshot; other event types carry no book and are skipped.
func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.updates)
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		case <-s.done:
			return
		default:
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.err = fmt.Errorf("read: %w", err)
			}
			return
		}

		for _, snap := range decodeBookFrames(raw) {
			select {
			case s.updates <- snap:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			case <-s.done:
				return
			}
		}
	}
}

// pingLoop keeps the connection alive; the server drops idle clients.
func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// decodeBookFrames parses a raw frame into book snapshots. The channel
// batches events as a JSON array; single objects also appear.
func decodeBookFrames(raw []byte) []*domain.OrderBookSnapshot {
	var msgs []wsBookMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		var single wsBookMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			slog.Debug("undecodable stream frame", "len", len(raw))
			return nil
		}
		msgs = []wsBookMessage{single}
	}

	now := time.Now().UTC()
	out := make([]*domain.OrderBookSnapshot, 0, len(msgs))
	for _, m := range msgs {
		if m.EventType != eventTypeBook || m.AssetID == "" {
			continue
		}
		snap, ok := mapOrderBook(orderBookResponse{
			AssetID:   m.AssetID,
			Timestamp: m.Timestamp,
			Bids:      m.Bids,
			Asks:      m.Asks,
		}, now)
		if !ok {
			continue
		}
		out = append(out, snap)
	}
	return out
}

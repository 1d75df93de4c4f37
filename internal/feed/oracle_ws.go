// Package feed streams oracle prices over WebSocket into the price cache.
// The feed is a display aid for live provisional scores; settlement never
// depends on it.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Tick is one oracle price update.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// TickHandler is called for each price update received.
type TickHandler func(Tick)

// tickMessage is the oracle's wire format.
type tickMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts"` // unix milliseconds
}

// subscribeCommand asks the oracle to stream the given symbols.
type subscribeCommand struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// WSClient is a WebSocket client for the price oracle. It manages one
// connection: the reconnect policy lives in the Feed runner above it.
type WSClient struct {
	url  string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	onTick TickHandler

	done chan struct{}
}

// NewWSClient creates a client for the given oracle WebSocket endpoint.
func NewWSClient(url string, onTick TickHandler) *WSClient {
	return &WSClient{
		url:    url,
		onTick: onTick,
		done:   make(chan struct{}),
	}
}

// Connect dials the oracle and starts the read and ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("feed: client closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", w.url, err)
	}
	w.conn = conn

	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go w.pingLoop()
	return nil
}

// Subscribe asks for tick streams for the given symbols.
func (w *WSClient) Subscribe(symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	cmd := subscribeCommand{Type: "subscribe", Symbols: symbols}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

// ReadLoop reads until the connection drops or Close is called. It returns
// the read error so the caller can decide whether to reconnect.
func (w *WSClient) ReadLoop() error {
	for {
		select {
		case <-w.done:
			return nil
		default:
		}

		_, message, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			default:
				return fmt.Errorf("feed: read: %w", err)
			}
		}
		w.handleMessage(message)
	}
}

// Close shuts the connection down.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()
			if conn == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *WSClient) handleMessage(raw []byte) {
	var msg tickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // drop unparseable messages
	}
	if msg.Type != "tick" || msg.Symbol == "" || msg.Price <= 0 {
		return
	}
	if w.onTick != nil {
		w.onTick(Tick{
			Symbol: msg.Symbol,
			Price:  msg.Price,
			Time:   time.UnixMilli(msg.TS),
		})
	}
}

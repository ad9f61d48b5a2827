package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"VoltX/internal/domain/models"
	drepo "VoltX/internal/domain/repository"
	"VoltX/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Client implements a CandleStream over an exchange kline WebSocket using the
// combined stream protocol (SUBSCRIBE requests, {stream, data} frames).
type Client struct {
	websocketURL   string
	timeframes     []models.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu         sync.Mutex // guards conn writes and subscribed
	conn       *websocket.Conn
	subscribed map[string]struct{}
	connected  atomic.Bool
	reqID      atomic.Int64
	skipped    atomic.Int64
}

var _ drepo.CandleStream = (*Client)(nil)

// New creates a kline stream that subscribes every symbol on each timeframe.
func New(websocketURL string, timeframes []models.Timeframe, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &Client{
		websocketURL:   websocketURL,
		timeframes:     dedupe(timeframes),
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		subscribed:     make(map[string]struct{}),
	}
}

func dedupe(tfs []models.Timeframe) []models.Timeframe {
	seen := make(map[models.Timeframe]struct{}, len(tfs))
	out := make([]models.Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	return out
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("exchange connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("exchange stream connected", logger.String("url", c.websocketURL))
	return nil
}

// StreamName is the exchange stream identifier of a symbol's klines.
func StreamName(symbol string, tf models.Timeframe) string {
	return strings.ToLower(symbol) + "@kline_" + string(tf)
}

// Subscribe adds symbols on every configured timeframe.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	params := make([]string, 0, len(symbols)*len(c.timeframes))
	for _, s := range symbols {
		for _, tf := range c.timeframes {
			params = append(params, StreamName(s, tf))
		}
	}
	if err := c.send(params); err != nil {
		return err
	}
	c.mu.Lock()
	for _, p := range params {
		c.subscribed[p] = struct{}{}
	}
	c.mu.Unlock()
	c.log.Info("exchange stream subscribed", logger.Strings("symbols", symbols))
	return nil
}

func (c *Client) send(params []string) error {
	if len(params) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return fmt.Errorf("exchange stream not connected")
	}
	msg := map[string]interface{}{"method": "SUBSCRIBE", "params": params, "id": c.reqID.Add(1)}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

type klineFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// klineEvent names the upper-case keys too: encoding/json falls back to a
// case-insensitive match, so "E" would land in Event and "T" in Start.
type klineEvent struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		Start       int64           `json:"t"`
		CloseTime   int64           `json:"T"`
		Interval    string          `json:"i"`
		Open        decimal.Decimal `json:"o"`
		High        decimal.Decimal `json:"h"`
		Low         decimal.Decimal `json:"l"`
		LastTradeID int64           `json:"L"`
		Close       decimal.Decimal `json:"c"`
		Volume      decimal.Decimal `json:"v"`
		TakerVolume decimal.Decimal `json:"V"`
		Closed      bool            `json:"x"`
	} `json:"k"`
}

// ParseKline decodes a kline frame, wrapped or raw. Non-kline frames such as
// subscription acks return nil without error.
func ParseKline(b []byte) (*models.Candle, error) {
	var f klineFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	payload := []byte(f.Data)
	if len(payload) == 0 {
		payload = b
	}
	var ev klineEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode kline: %w", err)
	}
	if ev.Event != "kline" {
		return nil, nil
	}
	tf := models.Timeframe(ev.K.Interval)
	if !models.IsValidTimeframe(tf) {
		return nil, fmt.Errorf("kline interval %q not supported", ev.K.Interval)
	}
	return &models.Candle{
		Symbol:    strings.ToUpper(ev.Symbol),
		Timeframe: tf,
		Open:      ev.K.Open.InexactFloat64(),
		High:      ev.K.High.InexactFloat64(),
		Low:       ev.K.Low.InexactFloat64(),
		Close:     ev.K.Close.InexactFloat64(),
		Volume:    ev.K.Volume.InexactFloat64(),
		OpenTime:  time.UnixMilli(ev.K.Start).UTC(),
		Closed:    ev.K.Closed,
	}, nil
}

// Skipped returns how many frames failed to decode since start.
func (c *Client) Skipped() int64 { return c.skipped.Load() }

// Read streams candles and errors until the connection fails or ctx is done.
// A new Read is needed after Reconnect.
func (c *Client) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	// read loop
	go func() {
		defer close(done)
		defer close(candles)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("exchange conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				errs <- fmt.Errorf("exchange read: %w", err)
				return
			}
			cd, err := ParseKline(b)
			if err != nil {
				n := c.skipped.Add(1)
				c.log.Warn("exchange frame undecodable", logger.Int64("skipped_total", n), logger.Error(err))
				continue
			}
			if cd == nil {
				continue
			}
			select {
			case candles <- cd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return candles, errs
}

// Reconnect closes, dials again and restores every subscription.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	params := make([]string, 0, len(c.subscribed))
	for p := range c.subscribed {
		params = append(params, p)
	}
	c.mu.Unlock()
	return c.send(params)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

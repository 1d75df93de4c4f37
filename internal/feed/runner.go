package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// OracleFeed keeps a WebSocket subscription to the price oracle alive and
// writes every tick into the price cache. It reconnects with exponential
// backoff on disconnect.
type OracleFeed struct {
	url     string
	symbols []string
	prices  domain.PriceCache
	log     *slog.Logger
}

// NewOracleFeed creates a feed for the given symbols.
func NewOracleFeed(url string, symbols []string, prices domain.PriceCache, logger *slog.Logger) *OracleFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &OracleFeed{
		url:     url,
		symbols: symbols,
		prices:  prices,
		log:     logger.With(slog.String("component", "oracle_feed")),
	}
}

// Run connects, subscribes, and streams until ctx is cancelled.
func (f *OracleFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.log.Info("no symbols to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	delay := reconnectDelay
	for {
		if err := f.runConnection(ctx); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			f.log.Warn("oracle feed disconnected, reconnecting",
				slog.Duration("delay", delay),
				slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *OracleFeed) runConnection(ctx context.Context) error {
	client := NewWSClient(f.url, func(t Tick) {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f.prices.SetPrice(cctx, t.Symbol, t.Price, t.Time); err != nil {
			f.log.Warn("cache write failed", slog.String("symbol", t.Symbol), slog.Any("error", err))
		}
	})
	defer client.Close()

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := client.Subscribe(f.symbols); err != nil {
		return err
	}
	f.log.Info("oracle feed subscribed", slog.Int("symbols", len(f.symbols)))

	// Tear the connection down when ctx ends so ReadLoop unblocks.
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	return client.ReadLoop()
}

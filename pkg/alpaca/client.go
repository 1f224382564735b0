package alpaca

import (
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"
)

// Client reads crypto snapshots for a fixed list of pairs such as "BTC/USD".
type Client struct {
	data    snapshotAPI
	symbols []string
	logger  *zap.Logger
}

// NewClient sets up an Alpaca market data client. Crypto data does not need
// credentials; they only raise the rate limit.
func NewClient(apiKey, apiSecret string, symbols []string, logger *zap.Logger) *Client {
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return newClient(data, symbols, logger)
}

func newClient(data snapshotAPI, symbols []string, logger *zap.Logger) *Client {
	return &Client{data: data, symbols: symbols, logger: logger}
}

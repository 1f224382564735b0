package alpaca

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

// FetchQuotes returns one quote per configured pair, ranked in configuration
// order. Alpaca has no market cap, so it is left at zero.
func (c *Client) FetchQuotes(ctx context.Context) ([]types.CoinQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstreamConnection, err)
	}

	snapshots, err := c.data.GetCryptoSnapshots(c.symbols, marketdata.GetCryptoSnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: error getting crypto snapshots: %v", apperrors.ErrUpstreamConnection, err)
	}

	quotes := make([]types.CoinQuote, 0, len(c.symbols))
	for i, symbol := range c.symbols {
		snap, ok := snapshots[symbol]
		if !ok {
			c.logger.Warn("no snapshot returned", zap.String("symbol", symbol))
			continue
		}

		price, ok := latestPrice(snap)
		if !ok {
			return nil, fmt.Errorf("%w: no price in snapshot for %s", apperrors.ErrUpstreamDecode, symbol)
		}

		base := baseAsset(symbol)
		quotes = append(quotes, types.CoinQuote{
			ID:                       strings.ToLower(strings.ReplaceAll(symbol, "/", "-")),
			Name:                     symbol,
			Symbol:                   base,
			CurrentPrice:             types.NewAmount(price),
			MarketCap:                types.NewAmount(decimal.Zero),
			MarketCapRank:            i + 1,
			PriceChangePercentage24h: types.NewAmount(dailyChange(snap)),
		})
	}

	c.logger.Info("fetched alpaca crypto snapshots", zap.Int("coins", len(quotes)))
	return quotes, nil
}

func latestPrice(snap marketdata.CryptoSnapshot) (decimal.Decimal, bool) {
	switch {
	case snap.LatestTrade != nil && snap.LatestTrade.Price > 0:
		return decimal.NewFromFloat(snap.LatestTrade.Price), true
	case snap.DailyBar != nil && snap.DailyBar.Close > 0:
		return decimal.NewFromFloat(snap.DailyBar.Close), true
	default:
		return decimal.Zero, false
	}
}

// dailyChange is the percent move from the previous daily close to the
// current one, or zero when either bar is missing.
func dailyChange(snap marketdata.CryptoSnapshot) decimal.Decimal {
	if snap.DailyBar == nil || snap.PrevDailyBar == nil || snap.PrevDailyBar.Close <= 0 {
		return decimal.Zero
	}
	prev := decimal.NewFromFloat(snap.PrevDailyBar.Close)
	curr := decimal.NewFromFloat(snap.DailyBar.Close)
	return curr.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
}

func baseAsset(symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	return strings.ToUpper(base)
}

package coingecko

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vignesh-goutham/coinledger/pkg/types"
)

// marketCoin is one element of the /coins/markets response. Nullable numbers
// decode to zero.
type marketCoin struct {
	ID                       string          `json:"id" validate:"required"`
	Name                     string          `json:"name" validate:"required"`
	Symbol                   string          `json:"symbol" validate:"required"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	MarketCapRank            *int            `json:"market_cap_rank"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

func (c marketCoin) quote() types.CoinQuote {
	q := types.CoinQuote{
		ID:                       c.ID,
		Name:                     c.Name,
		Symbol:                   strings.ToUpper(c.Symbol),
		CurrentPrice:             types.NewAmount(c.CurrentPrice),
		MarketCap:                types.NewAmount(c.MarketCap),
		PriceChangePercentage24h: types.NewAmount(c.PriceChangePercentage24h),
	}
	if c.MarketCapRank != nil {
		q.MarketCapRank = *c.MarketCapRank
	}
	return q
}

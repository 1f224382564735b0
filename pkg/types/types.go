package types

// User is a row of the users table.
type User struct {
	ID    string `dynamodbav:"id" json:"id"`
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
}

// EmailGuard reserves an email address. It shares the users table and is
// written in the same transaction as the user it points to.
type EmailGuard struct {
	ID     string `dynamodbav:"id"`
	UserID string `dynamodbav:"user_id"`
}

// CoinQuote is one coin as reported by a market-data source, normalized.
type CoinQuote struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Symbol                   string `json:"symbol"`
	CurrentPrice             Amount `json:"current_price"`
	MarketCap                Amount `json:"market_cap"`
	MarketCapRank            int    `json:"market_cap_rank"`
	PriceChangePercentage24h Amount `json:"price_change_percentage_24h"`
}

// CryptoPrice is a row of the prices table, keyed by (crypto_id, timestamp).
type CryptoPrice struct {
	// Core fields
	CryptoID  string `dynamodbav:"crypto_id"`
	Timestamp string `dynamodbav:"timestamp"`
	Name      string `dynamodbav:"name"`
	Symbol    string `dynamodbav:"symbol"`

	// Market figures
	Price          Amount `dynamodbav:"price"`
	MarketCap      Amount `dynamodbav:"market_cap"`
	MarketCapRank  int    `dynamodbav:"market_cap_rank"`
	PriceChange24h Amount `dynamodbav:"price_change_24h"`
}

// NewCryptoPrice builds the row stored for quote in the run stamped timestamp.
func NewCryptoPrice(quote CoinQuote, timestamp string) CryptoPrice {
	return CryptoPrice{
		CryptoID:       quote.ID,
		Timestamp:      timestamp,
		Name:           quote.Name,
		Symbol:         quote.Symbol,
		Price:          quote.CurrentPrice,
		MarketCap:      quote.MarketCap,
		MarketCapRank:  quote.MarketCapRank,
		PriceChange24h: quote.PriceChangePercentage24h,
	}
}

// VersionPointer marks which run timestamp of the prices table is current.
type VersionPointer struct {
	CryptoID  string `dynamodbav:"crypto_id"`
	Timestamp string `dynamodbav:"timestamp"`
	Version   string `dynamodbav:"version"`
}

const (
	// PointerID and PointerSort form the key of the version pointer row.
	PointerID   = "__current__"
	PointerSort = "__pointer__"
)

package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
	"github.com/vignesh-goutham/coinledger/pkg/types"
	"github.com/vignesh-goutham/coinledger/pkg/validation"
)

var (
	// ErrConnection covers transport failures and non-2xx answers.
	ErrConnection = apperrors.ErrUpstreamConnection
	// ErrDecode covers bodies that are not the expected coin array.
	ErrDecode = apperrors.ErrUpstreamDecode
)

// Client fetches the top coins by market cap.
type Client struct {
	baseURL    string
	perPage    int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL (e.g. https://api.coingecko.com/api/v3)
// asking for perPage coins.
func NewClient(baseURL string, perPage int, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		perPage: perPage,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchQuotes returns the first page of coins ordered by market cap.
func (c *Client) FetchQuotes(ctx context.Context) ([]types.CoinQuote, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	endpoint := c.baseURL + "/coins/markets?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrConnection, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	var coins []marketCoin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	quotes := make([]types.CoinQuote, 0, len(coins))
	for i, coin := range coins {
		if err := validation.Struct(coin); err != nil {
			return nil, fmt.Errorf("%w: coin %d: %v", ErrDecode, i, err)
		}
		quotes = append(quotes, coin.quote())
	}

	c.logger.Info("fetched market data", zap.Int("coins", len(quotes)))
	return quotes, nil
}

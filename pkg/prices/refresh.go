package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
	"github.com/vignesh-goutham/coinledger/pkg/config"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

// runTimestampLayout matches the ISO-8601 form with microseconds and no zone
// used by existing rows.
const runTimestampLayout = "2006-01-02T15:04:05.000000"

// Source supplies the market data a refresh stores.
type Source interface {
	FetchQuotes(ctx context.Context) ([]types.CoinQuote, error)
}

// RefreshResult describes one refresh. Quotes is set as soon as the fetch
// succeeded, even when a later step failed.
type RefreshResult struct {
	Quotes    []types.CoinQuote
	Timestamp string
	Cleared   int
	Stored    int
	Message   string
}

// Refresher replaces the contents of the prices table with fresh market data.
type Refresher struct {
	source Source
	repo   *Repository
	mode   config.RefreshMode
	logger *zap.Logger
	now    func() time.Time
}

// NewRefresher builds a refresher running in mode. Unknown modes run as
// swap.
func NewRefresher(source Source, repo *Repository, mode config.RefreshMode, logger *zap.Logger) *Refresher {
	return &Refresher{
		source: source,
		repo:   repo,
		mode:   mode,
		logger: logger,
		now:    time.Now,
	}
}

// Run performs one refresh in the configured mode.
func (r *Refresher) Run(ctx context.Context) (*RefreshResult, error) {
	if r.mode == config.RefreshLegacy {
		return r.runLegacy(ctx)
	}
	return r.runSwap(ctx)
}

// runLegacy clears the table, then fetches, then inserts. A failure after
// the clear leaves the table empty; nothing is rolled back.
func (r *Refresher) runLegacy(ctx context.Context) (*RefreshResult, error) {
	res := &RefreshResult{}

	cleared, err := r.repo.Clear(ctx)
	if err != nil {
		r.logger.Error("failed to clear prices table", zap.Error(err))
		return res, apperrors.Store("Failed to clear old data", err)
	}
	res.Cleared = cleared
	r.logger.Info("cleared prices table", zap.Int("deleted", cleared))

	quotes, err := r.fetch(ctx)
	if err != nil {
		return res, err
	}
	res.Quotes = quotes

	res.Timestamp = r.now().UTC().Format(runTimestampLayout)
	if err := r.repo.Insert(ctx, quotes, res.Timestamp); err != nil {
		r.logger.Error("failed to insert prices", zap.String("timestamp", res.Timestamp), zap.Error(err))
		return res, apperrors.Store("Error saving to DynamoDB", err)
	}
	res.Stored = len(quotes)
	res.Message = fmt.Sprintf("Replaced all data with %d fresh cryptocurrencies in DynamoDB", len(quotes))
	return res, nil
}

// runSwap writes the new data set under its own version, then repoints the
// current version at it and drops older versions. Until the repoint readers
// keep seeing the previous version.
func (r *Refresher) runSwap(ctx context.Context) (*RefreshResult, error) {
	res := &RefreshResult{}

	quotes, err := r.fetch(ctx)
	if err != nil {
		return res, err
	}
	res.Quotes = quotes

	version := r.now().UTC().Format(runTimestampLayout)
	res.Timestamp = version
	if err := r.repo.Insert(ctx, quotes, version); err != nil {
		r.logger.Error("failed to insert prices", zap.String("version", version), zap.Error(err))
		return res, apperrors.Store("Error saving to DynamoDB", err)
	}
	res.Stored = len(quotes)

	if err := r.repo.SetCurrentVersion(ctx, version); err != nil {
		r.logger.Error("failed to switch current version", zap.String("version", version), zap.Error(err))
		return res, apperrors.Store("Failed to switch current version", err)
	}

	cleared, err := r.repo.DeleteStale(ctx, version)
	if err != nil {
		// Stale rows are invisible to readers and go on the next run.
		r.logger.Warn("failed to delete stale versions", zap.String("version", version), zap.Error(err))
	}
	res.Cleared = cleared
	res.Message = fmt.Sprintf("Replaced all data with %d fresh cryptocurrencies in DynamoDB (version %s)", len(quotes), version)
	return res, nil
}

func (r *Refresher) fetch(ctx context.Context) ([]types.CoinQuote, error) {
	quotes, err := r.source.FetchQuotes(ctx)
	if err != nil {
		r.logger.Error("failed to fetch market data", zap.Error(err))
		return nil, apperrors.Upstream(fetchMessage(err), err)
	}
	r.logger.Info("fetched market data", zap.Int("coins", len(quotes)))
	return quotes, nil
}

func fetchMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUpstreamConnection):
		return "Connection error"
	case errors.Is(err, apperrors.ErrUpstreamDecode):
		return "JSON decode error"
	default:
		return "Unexpected error"
	}
}

package prices

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

const (
	idAttr        = "crypto_id"
	timestampAttr = "timestamp"
)

// Repository reads and writes the prices table. Rows are keyed by
// (crypto_id, timestamp); every row written by one refresh shares its
// timestamp, which doubles as the version tag in swap mode.
type Repository struct {
	table  *dynamo.Table
	logger *zap.Logger
}

// NewRepository binds a repository to the prices table.
func NewRepository(api dynamo.API, tableName string, logger *zap.Logger) *Repository {
	return &Repository{
		table:  dynamo.NewTable(api, tableName, idAttr, timestampAttr),
		logger: logger,
	}
}

// Clear deletes every row of the table, the version pointer included. A
// failed batch aborts the clear; rows already deleted stay deleted.
func (r *Repository) Clear(ctx context.Context) (int, error) {
	items, err := r.table.ScanAll(ctx)
	if err != nil {
		return 0, err
	}
	keys, err := r.keysOf(items)
	if err != nil {
		return 0, err
	}
	if err := r.table.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Insert writes one row per quote, all stamped with timestamp.
func (r *Repository) Insert(ctx context.Context, quotes []types.CoinQuote, timestamp string) error {
	items := make([]dynamo.Item, 0, len(quotes))
	for _, q := range quotes {
		item, err := dynamo.Encode(types.NewCryptoPrice(q, timestamp))
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	return r.table.BatchPut(ctx, items)
}

// CurrentVersion returns the version the pointer designates, if there is one.
func (r *Repository) CurrentVersion(ctx context.Context) (string, bool, error) {
	item, found, err := r.table.Get(ctx, r.table.StringKey(types.PointerID, types.PointerSort))
	if err != nil || !found {
		return "", false, err
	}
	ptr, err := dynamo.Decode[types.VersionPointer](item)
	if err != nil {
		return "", false, err
	}
	return ptr.Version, ptr.Version != "", nil
}

// SetCurrentVersion repoints readers at version. It is a single-item put and
// therefore atomic.
func (r *Repository) SetCurrentVersion(ctx context.Context, version string) error {
	item, err := dynamo.Encode(types.VersionPointer{
		CryptoID:  types.PointerID,
		Timestamp: types.PointerSort,
		Version:   version,
	})
	if err != nil {
		return err
	}
	return r.table.Put(ctx, item)
}

// DeleteStale removes every price row whose timestamp is not keep. The
// pointer row is left alone.
func (r *Repository) DeleteStale(ctx context.Context, keep string) (int, error) {
	items, err := r.table.ScanAll(ctx)
	if err != nil {
		return 0, err
	}
	var stale []dynamo.Item
	for _, item := range items {
		if isPointer(item) || dynamo.StringAttr(item, timestampAttr) == keep {
			continue
		}
		stale = append(stale, item)
	}
	keys, err := r.keysOf(stale)
	if err != nil {
		return 0, err
	}
	if err := r.table.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// CurrentItems returns the raw rows of the current data set. With a pointer
// present only rows of the designated version are returned; without one
// (legacy mode) every row is. The pointer row itself is never returned.
func (r *Repository) CurrentItems(ctx context.Context) ([]dynamo.Item, error) {
	version, pointed, err := r.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	items, err := r.table.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dynamo.Item, 0, len(items))
	for _, item := range items {
		if isPointer(item) {
			continue
		}
		if pointed && dynamo.StringAttr(item, timestampAttr) != version {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Current returns the current data set decoded into rows.
func (r *Repository) Current(ctx context.Context) ([]types.CryptoPrice, error) {
	items, err := r.CurrentItems(ctx)
	if err != nil {
		return nil, err
	}
	return dynamo.DecodeAll[types.CryptoPrice](items)
}

func (r *Repository) keysOf(items []dynamo.Item) ([]dynamo.Key, error) {
	keys := make([]dynamo.Key, 0, len(items))
	var errs []error
	for _, item := range items {
		key, err := r.table.KeyOf(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, key)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("malformed rows in %s: %w", r.table.Name(), errors.Join(errs...))
	}
	return keys, nil
}

func isPointer(item dynamo.Item) bool {
	return dynamo.StringAttr(item, idAttr) == types.PointerID
}

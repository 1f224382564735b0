package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

const (
	exportPrefix     = "exports/crypto_"
	exportKeyLayout  = "2006-01-02T15-04-05"
	exportURLTTL     = time.Hour
	exportMediaType  = "application/json"
	defaultSortField = "name"
)

// ObjectStore is where export artifacts go.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ExportResult describes one export artifact.
type ExportResult struct {
	Key         string
	DownloadURL string
	Count       int
}

// Exporter snapshots the current prices to object storage.
type Exporter struct {
	repo      *Repository
	store     ObjectStore
	sortField string
	logger    *zap.Logger
	now       func() time.Time
}

// NewExporter builds an exporter sorting rows by sortField, or by name when
// sortField is empty.
func NewExporter(repo *Repository, store ObjectStore, sortField string, logger *zap.Logger) *Exporter {
	if sortField == "" {
		sortField = defaultSortField
	}
	return &Exporter{
		repo:      repo,
		store:     store,
		sortField: sortField,
		logger:    logger,
		now:       time.Now,
	}
}

// Run reads the current data set, writes it as a JSON artifact and returns
// a download link valid for one hour. Keys have one-second resolution and
// the store only creates objects, so a second export within the same second
// fails instead of replacing the first artifact.
func (e *Exporter) Run(ctx context.Context) (*ExportResult, error) {
	items, err := e.repo.CurrentItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read prices: %w", err)
	}

	rows := make([]map[string]any, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	sortRows(rows, e.sortField)

	body, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	key := exportPrefix + e.now().UTC().Format(exportKeyLayout) + ".json"
	if err := e.store.Put(ctx, key, body, exportMediaType); err != nil {
		return nil, err
	}
	url, err := e.store.PresignGet(ctx, key, exportURLTTL)
	if err != nil {
		return nil, err
	}

	e.logger.Info("exported prices", zap.String("key", key), zap.Int("rows", len(rows)))
	return &ExportResult{Key: key, DownloadURL: url, Count: len(rows)}, nil
}

// sortRows orders rows by the lowercased value of field. Rows without the
// field sort as the empty string; ties keep scan order.
func sortRows(rows []map[string]any, field string) {
	sortKey := func(row map[string]any) string {
		v, ok := row[field]
		if !ok || v == nil {
			return ""
		}
		return strings.ToLower(fmt.Sprint(v))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return sortKey(rows[i]) < sortKey(rows[j])
	})
}

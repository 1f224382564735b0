package alpaca

import (
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// snapshotAPI is the part of the Alpaca market data client this package uses.
type snapshotAPI interface {
	GetCryptoSnapshots(symbols []string, req marketdata.GetCryptoSnapshotRequest) (map[string]marketdata.CryptoSnapshot, error)
}

var _ snapshotAPI = (*marketdata.Client)(nil)

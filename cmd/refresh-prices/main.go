package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/alpaca"
	"github.com/vignesh-goutham/coinledger/pkg/coingecko"
	"github.com/vignesh-goutham/coinledger/pkg/config"
	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/logger"
	"github.com/vignesh-goutham/coinledger/pkg/prices"
)

var refresher *prices.Refresher

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatal(err)
	}

	client, err := dynamo.NewClient(context.Background(), cfg.Region)
	if err != nil {
		zl.Fatal("failed to create dynamodb client", zap.Error(err))
	}

	var source prices.Source
	switch cfg.MarketSource {
	case config.SourceAlpaca:
		source = alpaca.NewClient(cfg.AlpacaKey, cfg.AlpacaSecret, cfg.AlpacaSymbols, zl)
	default:
		source = coingecko.NewClient(cfg.CoinGeckoURL, cfg.CoinLimit, cfg.MarketTimeout, zl)
	}

	zl.Info("price refresh configured",
		zap.String("mode", string(cfg.RefreshMode)),
		zap.String("source", cfg.MarketSource),
		zap.String("table", cfg.PricesTable))

	repo := prices.NewRepository(client, cfg.PricesTable, zl)
	refresher = prices.NewRefresher(source, repo, cfg.RefreshMode, zl)
}

func main() {
	lambda.Start(refresher.Handle)
}

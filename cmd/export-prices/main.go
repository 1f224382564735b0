package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/blob"
	"github.com/vignesh-goutham/coinledger/pkg/config"
	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/logger"
	"github.com/vignesh-goutham/coinledger/pkg/prices"
)

var exporter *prices.Exporter

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireExport(); err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	client, err := dynamo.NewClient(ctx, cfg.Region)
	if err != nil {
		zl.Fatal("failed to create dynamodb client", zap.Error(err))
	}
	store, err := blob.NewStore(ctx, cfg.Region, cfg.ExportBucket)
	if err != nil {
		zl.Fatal("failed to create s3 client", zap.Error(err))
	}

	repo := prices.NewRepository(client, cfg.PricesTable, zl)
	exporter = prices.NewExporter(repo, store, cfg.ExportSortField, zl)
}

func main() {
	lambda.Start(exporter.Handle)
}

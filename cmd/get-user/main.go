package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/api"
	"github.com/vignesh-goutham/coinledger/pkg/config"
	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/logger"
	"github.com/vignesh-goutham/coinledger/pkg/users"
)

var handler api.ProxyHandler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireUsers(); err != nil {
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

	table := dynamo.NewTable(client, cfg.UsersTable, "id")
	repo := users.NewRepository(table, cfg.EmailIndex, cfg.UniqueEmailGuard, zl)
	h := users.NewHandler(users.NewService(repo, zl), zl)
	handler = api.NewProxyHandler(api.NewSingleRouter(h.GetUser, zl))
}

func main() {
	lambda.Start(handler)
}

package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/logger"
)

const service = "catalog-delete-sync-api"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		unavailable(logger.Fallback(service), err)
		return
	}

	lg, err := logger.New(cfg.Log, service)
	if err != nil {
		unavailable(logger.Fallback(service), err)
		return
	}
	defer lg.Sync()

	h, err := handlers.NewDeleteSyncFromConfig(ctx, cfg, lg)
	if err != nil {
		unavailable(lg, err)
		return
	}

	lambda.Start(h.HandleHTTP)
}

// unavailable keeps the function up and answers every invocation with err.
func unavailable(lg *zap.Logger, err error) {
	lg.Error("catalog delete sync unavailable", zap.Error(err))
	lambda.Start(handlers.Unavailable{Err: err}.HandleHTTP)
}

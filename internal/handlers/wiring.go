package handlers

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"storefront/internal/adcatalog"
	"storefront/internal/config"
	"storefront/internal/credentials"
	"storefront/internal/db"
	"storefront/internal/diagnostics"
	"storefront/internal/metrics"
	"storefront/internal/queue"
	"storefront/internal/reconcile"
)

const diagnosticsSource = "catalog-delete-sync"

// NewDeleteSyncFromConfig validates cfg and builds every collaborator of
// the reconciler. It is called once per cold start.
func NewDeleteSyncFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DeleteSync, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	ddb := db.NewDynamoClient(awsCfg)

	var store queue.Store
	switch cfg.Queue.Backend {
	case config.BackendPostgres:
		if cfg.Queue.Migrate {
			if err := queue.MigratePostgres(cfg.Queue.DatabaseURL); err != nil {
				return nil, err
			}
		}
		sqlDB, err := queue.OpenPostgres(ctx, cfg.Queue.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = queue.NewPostgresStore(sqlDB)
	default:
		store = queue.NewDynamoStore(ddb, cfg.Queue.Table)
	}

	var ps credentials.ParameterAPI
	if cfg.Catalog.AccessTokenParam != "" {
		ps = ssm.NewFromConfig(awsCfg)
	}
	token, err := credentials.ResolveCatalogToken(ctx, cfg.Catalog, ps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	client := adcatalog.NewClient(cfg.Catalog.BaseURL, token, cfg.Catalog.Timeout)
	deleter := adcatalog.NewBreakerClient(client, cfg.Catalog.BreakerFailures, cfg.Catalog.BreakerCooldown, logger)

	sinks := diagnostics.Multi{diagnostics.NewLogSink(logger)}
	if cfg.Diagnostics.DebugLogTable != "" {
		sinks = append(sinks, diagnostics.NewDynamoSink(ddb, cfg.Diagnostics.DebugLogTable, diagnosticsSource))
	}
	if cfg.Diagnostics.AlertsTopicArn != "" {
		sinks = append(sinks, diagnostics.NewSNSSink(sns.NewFromConfig(awsCfg), cfg.Diagnostics.AlertsTopicArn, "Storefront: catalog delete failed"))
	}

	m := metrics.New()
	rec := reconcile.New(store, deleter, sinks, logger, cfg.Reconcile.Concurrency, reconcile.Hooks{
		OnRecord: m.ObserveRecord,
	})

	logger.Info("catalog delete sync ready",
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.String("catalog_base_url", cfg.Catalog.BaseURL),
		zap.Int("concurrency", cfg.Reconcile.Concurrency),
		zap.Int("diagnostic_sinks", len(sinks)))

	return NewDeleteSync(rec, m, logger, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job), nil
}

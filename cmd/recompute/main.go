package main

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	envconfig "github.com/yoshidumi/attendance-ledger/internal/common/config"
	"github.com/yoshidumi/attendance-ledger/internal/domain/report"
	dynamoClient "github.com/yoshidumi/attendance-ledger/internal/platform/dynamodb/client"
	dynamodbRepository "github.com/yoshidumi/attendance-ledger/internal/platform/dynamodb/repository"
)

// recompute rebuilds every reference counter from the whole ledger.
// Run it after a reported partial failure, or periodically to clean up
// the company-ownership drift that delta reconciliation cannot see.
func main() {
	cfg, err := envconfig.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	zapLogger := zap.Must(zap.NewDevelopment())
	if cfg.IsProd() {
		zapLogger = zap.Must(zap.NewProduction())
	}
	defer zapLogger.Sync()
	logger := slog.New(zapslog.NewHandler(zapLogger.Core()))

	ctx := context.Background()
	ddb, err := dynamoClient.NewDynamoDBClient(ctx, cfg.AWSRegion)
	if err != nil {
		logger.Error("failed to create dynamodb client", "error", err)
		os.Exit(1)
	}

	factory := dynamodbRepository.NewFactory(ddb, cfg.DynamoDBTableName, cfg.LedgerTxChunkSize, logger)
	service := report.NewService(factory.ReportRepository(), factory.ReferenceStore(), cfg.DeltaMaxConcurrency, logger)

	if err := service.RecomputeFromLedger(ctx); err != nil {
		logger.Error("recompute did not fully apply", "error", err)
		os.Exit(1)
	}
	logger.Info("recompute complete", "environment", cfg.Environment)
}

package repository

import (
	"log/slog"

	"github.com/yoshidumi/attendance-ledger/internal/domain/reference"
	"github.com/yoshidumi/attendance-ledger/internal/domain/report"
	"github.com/yoshidumi/attendance-ledger/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	chunkSize int
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, chunkSize int, logger *slog.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ReportRepository returns an implementation of the report.Repository interface
func (f *Factory) ReportRepository() report.Repository {
	return NewDynamoDBReportRepository(f.client, f.tableName, f.chunkSize, f.logger)
}

// ReferenceStore returns an implementation of the reference.Store interface
func (f *Factory) ReferenceStore() reference.Store {
	return NewDynamoDBReferenceRepository(f.client, f.tableName, f.logger)
}

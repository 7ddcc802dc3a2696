// Package container provides dependency injection and lifecycle management
// for the eAK connector following Clean Architecture principles.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/application/reconcile"
	"github.com/garyjia/eak-connector/internal/application/service"
	"github.com/garyjia/eak-connector/internal/config"
	"github.com/garyjia/eak-connector/internal/infrastructure/external/eak"
	"github.com/garyjia/eak-connector/internal/infrastructure/pdf"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/repository"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/eak-connector/internal/infrastructure/secrets"
	"github.com/garyjia/eak-connector/internal/infrastructure/storage"
	"github.com/garyjia/eak-connector/internal/infrastructure/worker"
	"github.com/garyjia/eak-connector/migrations"
	"github.com/garyjia/eak-connector/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Entities    *repository.EntityStore
	Companies   *repository.CompanyRepository
	Partners    *repository.PartnerRepository
	Banks       *repository.BankAccountRepository
	VendorBills *repository.VendorBillRepository
	Invoices    *repository.CustomerInvoiceRepository
	Attachments *repository.AttachmentRepository
	SyncLogs    *repository.SyncLogRepository
}

// ExternalBundle holds the eAK gateway and the auth reference resolver.
type ExternalBundle struct {
	Gateway *eak.Gateway
	Secrets port.SecretResolver
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	PDF         port.PDFInspector
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	VendorBills   service.VendorBillSyncService
	Partners      service.PartnerStatusSyncService
	Attachments   service.AttachmentSyncService
	InvoiceExport service.InvoiceExportService
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Entities:    repository.NewEntityStore(db.DB, logger),
		Companies:   repository.NewCompanyRepository(db.DB, logger),
		Partners:    repository.NewPartnerRepository(db.DB, logger),
		Banks:       repository.NewBankAccountRepository(db.DB, logger),
		VendorBills: repository.NewVendorBillRepository(db.DB, logger),
		Invoices:    repository.NewCustomerInvoiceRepository(db.DB, logger),
		Attachments: repository.NewAttachmentRepository(db.DB, logger),
		SyncLogs:    repository.NewSyncLogRepository(db.DB, logger),
	}, nil
}

// ProvideExternal creates the eAK gateway and the secret resolver.
func ProvideExternal(ctx context.Context, eakCfg *config.EAKConfig, secretsCfg *config.SecretsConfig, logger *zap.Logger) (*ExternalBundle, error) {
	if eakCfg == nil || secretsCfg == nil {
		return nil, fmt.Errorf("eak and secrets config are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var resolver port.SecretResolver
	if secretsCfg.AWSEnabled {
		aws, err := secrets.NewAWSResolver(ctx, secretsCfg.AWSRegion, secretsCfg.CacheTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS secret resolver: %w", err)
		}
		resolver = aws
	} else {
		resolver = secrets.NewPlainResolver(logger)
	}

	client := eak.NewClient(eakCfg.RequestTimeout, logger)
	return &ExternalBundle{
		Gateway: eak.NewGateway(client, logger),
		Secrets: resolver,
	}, nil
}

// ProvideStorage creates file storage and the PDF inspector.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.BaseDir, logger),
		PDF:         pdf.NewInspector(logger),
	}, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	External  *ExternalBundle
	Storage   *StorageBundle
	EAK       *config.EAKConfig
	Clock     service.Clock
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil || deps.Storage == nil || deps.EAK == nil {
		return nil, fmt.Errorf("external, storage and eak settings are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	reconciler := reconcile.NewReconciler(
		reconcile.NewResolver(repos.Entities),
		deps.EAK.UnmatchedProductCode,
		deps.Logger,
	)

	return &ServiceBundle{
		VendorBills: service.NewVendorBillSyncService(service.VendorBillSyncDeps{
			Companies:  repos.Companies,
			Bills:      repos.VendorBills,
			Gateway:    deps.External.Gateway,
			Reconciler: reconciler,
			Secrets:    deps.External.Secrets,
			Logs:       repos.SyncLogs,
			TxManager:  deps.TxManager,
			Clock:      clock,
			Logger:     serviceLogger,
		}),
		Partners: service.NewPartnerStatusSyncService(service.PartnerStatusSyncDeps{
			Companies: repos.Companies,
			Partners:  repos.Partners,
			Gateway:   deps.External.Gateway,
			Secrets:   deps.External.Secrets,
			Logs:      repos.SyncLogs,
			TxManager: deps.TxManager,
			BatchSize: deps.EAK.PartnerBatchSize,
			Clock:     clock,
			Logger:    serviceLogger,
		}),
		Attachments: service.NewAttachmentSyncService(service.AttachmentSyncDeps{
			Companies:   repos.Companies,
			Bills:       repos.VendorBills,
			Attachments: repos.Attachments,
			Gateway:     deps.External.Gateway,
			Secrets:     deps.External.Secrets,
			Storage:     deps.Storage.FileStorage,
			PDF:         deps.Storage.PDF,
			Logs:        repos.SyncLogs,
			TxManager:   deps.TxManager,
			BatchSize:   deps.EAK.AttachmentBatchSize,
			Clock:       clock,
			Logger:      serviceLogger,
		}),
		InvoiceExport: service.NewInvoiceExportService(service.InvoiceExportDeps{
			Invoices:    repos.Invoices,
			Companies:   repos.Companies,
			Partners:    repos.Partners,
			Banks:       repos.Banks,
			Attachments: repos.Attachments,
			Builder:     deps.External.Gateway,
			Gateway:     deps.External.Gateway,
			Secrets:     deps.External.Secrets,
			Storage:     deps.Storage.FileStorage,
			Logs:        repos.SyncLogs,
			Clock:       clock,
			Logger:      serviceLogger,
		}),
	}, nil
}

// ProvideWorkers registers one sync worker per job. Workers are not started.
func ProvideWorkers(services *ServiceBundle, cfg *config.EAKConfig, logger *zap.Logger) (*worker.WorkerManager, error) {
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("eak config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)

	manager.NewSyncWorker(worker.SyncWorkerConfig{
		Name:       worker.JobVendorBills,
		Interval:   cfg.VendorBillInterval,
		RunTimeout: cfg.RunTimeout,
		RunOnStart: true,
	}, services.VendorBills.SyncAll)

	manager.NewSyncWorker(worker.SyncWorkerConfig{
		Name:       worker.JobPartners,
		Interval:   cfg.PartnerStatusInterval,
		RunTimeout: cfg.RunTimeout,
	}, services.Partners.SyncAll)

	manager.NewSyncWorker(worker.SyncWorkerConfig{
		Name:       worker.JobAttachments,
		Interval:   cfg.AttachmentInterval,
		RunTimeout: cfg.RunTimeout,
	}, services.Attachments.SyncAll)

	return manager, nil
}

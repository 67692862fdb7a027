package container

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/extraction"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/external/crypto"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/external/ocr"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/external/openai"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/persistence/excel"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claim-reconciler/internal/metrics"
	"github.com/garyjia/claim-reconciler/pkg/database"
)

// LedgerBundle holds the ledger and whatever must be closed with it.
type LedgerBundle struct {
	Ledger port.Ledger
	Closer io.Closer
}

// ProvideLedger opens the configured ledger backend.
// The sqlite backend runs the embedded migrations before returning.
func ProvideLedger(cfg *config.Config, logger *zap.Logger) (*LedgerBundle, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendSQLite:
		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}

		migrator := database.NewMigrator(db, logger)
		if err := migrator.RunMigrations(sqlite.Migrations, sqlite.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run ledger migrations: %w", err)
		}

		repo := sqlite.NewLedgerRepository(sqlite.NewDB(db.DB, logger), logger)
		return &LedgerBundle{Ledger: repo, Closer: db}, nil

	case config.LedgerBackendExcel:
		ledger, err := excel.Open(cfg.Ledger.ExcelPath, cfg.Ledger.Sheet, logger)
		if err != nil {
			return nil, err
		}
		return &LedgerBundle{Ledger: ledger, Closer: ledger}, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// ProvideTextExtractor builds the OCR pipeline. Without Azure credentials only text-layer PDFs can be read.
func ProvideTextExtractor(cfg *config.Config, logger *zap.Logger) *ocr.Pipeline {
	var engine ocr.Engine
	if cfg.OCR.AzureEndpoint != "" && cfg.OCR.AzureKey != "" {
		engine = ocr.NewAzureEngine(cfg.OCR.AzureEndpoint, cfg.OCR.AzureKey, logger)
	} else {
		logger.Warn("No OCR engine configured; scanned documents cannot be read")
	}

	return ocr.NewPipeline(engine, ocr.Config{
		MinConfidence: cfg.OCR.MinConfidence,
		TryRotations:  cfg.OCR.TryRotations,
		PDFDPI:        cfg.OCR.PDFDPI,
	}, logger)
}

// ProvideExtractor builds the field extractor, with the OpenAI fallback when enabled.
func ProvideExtractor(cfg *config.Config, logger *zap.Logger) (*extraction.Extractor, error) {
	dates := extraction.NewDateExtractor(
		extraction.WithYearWindow(cfg.Extraction.YearWindowPast, cfg.Extraction.YearWindowFuture),
	)
	opts := []extraction.Option{
		extraction.WithDateExtractor(dates),
		extraction.WithKnownInvoices(cfg.Reconciliation.KnownInvoices),
	}

	if cfg.OpenAI.Enabled {
		prompts, err := openai.LoadPrompts(cfg.Extraction.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts.FieldExtraction.Temperature = cfg.OpenAI.Temperature

		fallback := openai.NewFieldFallback(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}, prompts, logger)
		opts = append(opts, extraction.WithFallback(fallback))
		logger.Info("OpenAI field fallback enabled", zap.String("model", cfg.OpenAI.Model))
	}

	return extraction.NewExtractor(logger, opts...), nil
}

// ProvideDecrypter builds the Fernet decrypter, or returns nil when no keys are configured.
func ProvideDecrypter(cfg *config.Config, logger *zap.Logger) (*crypto.FernetDecrypter, error) {
	if len(cfg.Crypto.FernetKeys) == 0 {
		return nil, nil
	}
	return crypto.NewFernetDecrypter(cfg.Crypto.FernetKeys, logger)
}

// ProvideMetrics creates a registry with runtime collectors and the reconciliation metrics.
func ProvideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

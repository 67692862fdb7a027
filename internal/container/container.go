// Package container wires the claim reconciler's components and manages their lifecycle.
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/application/port"
	"github.com/garyjia/claim-reconciler/internal/application/service"
	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/extraction"
	"github.com/garyjia/claim-reconciler/internal/infrastructure/spreadsheet"
	"github.com/garyjia/claim-reconciler/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are built in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	ledger    *LedgerBundle
	ocr       port.TextExtractor
	extractor *extraction.Extractor
	decrypter port.Decrypter

	// Metrics
	registry *prometheus.Registry

	// Application
	services *ServiceBundle

	// Lifecycle
	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Reconciliation service.ReconciliationService
	// Verification is nil when no decryption keys are configured
	Verification service.VerificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Ledger
// 2. External clients (OCR, OpenAI, decryption)
// 3. Metrics and application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Info("Starting container initialization")

	ledger, err := ProvideLedger(c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	c.ledger = ledger
	c.logger.Info("Ledger initialized", zap.String("backend", c.config.Ledger.Backend))

	if err := c.initExternalClients(); err != nil {
		c.closeLedger()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	c.initServices()
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initExternalClients() error {
	c.ocr = ProvideTextExtractor(c.config, c.logger)

	extractor, err := ProvideExtractor(c.config, c.logger)
	if err != nil {
		return err
	}
	c.extractor = extractor

	decrypter, err := ProvideDecrypter(c.config, c.logger)
	if err != nil {
		return err
	}
	if decrypter != nil {
		c.decrypter = decrypter
	}
	return nil
}

func (c *Container) initServices() {
	serviceLogger := utils.NewKeyValueLogger(c.logger)

	var observer service.VerdictObserver
	if c.config.Metrics.Enabled {
		reg, m := ProvideMetrics()
		c.registry = reg
		observer = m
	}

	c.services = &ServiceBundle{
		Reconciliation: service.NewReconciliationService(
			c.ledger.Ledger,
			c.ocr,
			c.extractor,
			spreadsheet.NewManifestReader(c.logger),
			observer,
			service.ReconciliationConfig{
				Tolerance: c.config.Reconciliation.Tolerance,
				Workers:   c.config.Reconciliation.Workers,
			},
			serviceLogger,
		),
	}

	if c.decrypter != nil {
		c.services.Verification = service.NewVerificationService(
			c.decrypter,
			c.ocr,
			c.extractor,
			c.extractor.Dates(),
			c.config.Reconciliation.Tolerance,
			serviceLogger,
		)
	}
}

// Close shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.closeLedger()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeLedger() error {
	if c.ledger == nil || c.ledger.Closer == nil {
		return nil
	}
	if err := c.ledger.Closer.Close(); err != nil {
		c.logger.Error("Failed to close ledger", zap.Error(err))
		return fmt.Errorf("close ledger: %w", err)
	}
	c.ledger = nil
	c.logger.Info("Ledger closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if !c.ready.Load() {
		status.Overall = false
		status.Components["container"] = ComponentHealth{Healthy: false, Message: "not started"}
		return status
	}

	if n, err := c.ledger.Ledger.Count(ctx); err != nil {
		status.Overall = false
		status.Components["ledger"] = ComponentHealth{Healthy: false, Message: err.Error()}
	} else {
		status.Components["ledger"] = ComponentHealth{Healthy: true, Message: fmt.Sprintf("%d records", n)}
	}

	status.Components["verification"] = ComponentHealth{Healthy: c.services.Verification != nil}
	return status
}

// Getters for accessing container components

// Ledger returns the claim ledger.
func (c *Container) Ledger() port.Ledger {
	return c.ledger.Ledger
}

// TextExtractor returns the OCR pipeline.
func (c *Container) TextExtractor() port.TextExtractor {
	return c.ocr
}

// Extractor returns the field extractor.
func (c *Container) Extractor() *extraction.Extractor {
	return c.extractor
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// MetricsHandler returns the Prometheus handler, or nil when metrics are disabled.
func (c *Container) MetricsHandler() http.Handler {
	if c.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// File: internal/service/factory.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/internal/analysis"
	"github.com/xkilldash9x/a11yscan/internal/axe"
	"github.com/xkilldash9x/a11yscan/internal/browser"
	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/export"
	"github.com/xkilldash9x/a11yscan/internal/store"
)

// StoreRequirement says whether a command needs report persistence.
type StoreRequirement int

const (
	StoreOff StoreRequirement = iota
	// StoreOptional connects when a database URL is configured.
	StoreOptional
	StoreRequired
)

// Needs selects which components Create builds.
type Needs struct {
	Analysis bool
	Export   bool
	Store    StoreRequirement
}

// ComponentFactory creates the set of components a command needs.
// This abstraction is the key to making the commands testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, needs Needs, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization of components.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, needs Needs, logger *zap.Logger) (c *Components, err error) {
	c = &Components{Config: cfg}

	// Ensure cleanup happens if initialization fails midway.
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			c.Shutdown()
			c = nil
		}
	}()

	if needs.Store != StoreOff {
		if err := f.initStore(ctx, c, cfg.Database(), needs.Store, logger); err != nil {
			return c, err
		}
	}

	if needs.Analysis || needs.Export {
		c.Launcher = browser.NewLauncher(cfg.Browser(), logger)
	}

	if needs.Analysis {
		engine, err := axe.Load(ctx, cfg.Engine(), logger)
		if err != nil {
			return c, fmt.Errorf("failed to load accessibility engine: %w", err)
		}
		c.Engine = engine

		pipeline, err := analysis.NewPipeline(c.Launcher, engine, cfg.Analysis(), logger)
		if err != nil {
			return c, fmt.Errorf("failed to build analysis pipeline: %w", err)
		}
		c.Analyzer = pipeline
		logger.Debug("Analysis pipeline initialized.")
	}

	if needs.Export {
		c.Exporter = export.NewExporter(c.Launcher, cfg.Export().PDFTimeout, logger)
		mailer, err := export.NewMailer(cfg.Email(), logger)
		switch {
		case errors.Is(err, export.ErrEmailDisabled):
			logger.Warn("SMTP relay is not configured. Email delivery is disabled.")
		case err != nil:
			return c, fmt.Errorf("failed to initialize mailer: %w", err)
		default:
			c.Mailer = mailer
		}
		logger.Debug("Export services initialized.")
	}

	logger.Info("All components initialized successfully.")
	return c, nil
}

func (f *concreteFactory) initStore(ctx context.Context, c *Components, cfg config.DatabaseConfig, req StoreRequirement, logger *zap.Logger) error {
	if cfg.URL == "" {
		if req == StoreRequired {
			return errors.New("database URL is not configured (hint: check DATABASE_URL)")
		}
		logger.Warn("Database URL is not set. Proceeding without report persistence.")
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return fmt.Errorf("unable to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	// Add to components immediately so the deferred Shutdown can close it if later steps fail.
	c.DBPool = pool

	reports, err := store.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := reports.Migrate(ctx); err != nil {
		return err
	}
	c.Store = reports
	logger.Debug("Report store initialized.")
	return nil
}

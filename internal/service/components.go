// File: internal/service/components.go
package service

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/axe"
	"github.com/xkilldash9x/a11yscan/internal/browser"
	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/export"
	"github.com/xkilldash9x/a11yscan/internal/observability"
	"github.com/xkilldash9x/a11yscan/internal/server"
)

// Components holds every initialized service a command needs. Fields a
// command did not ask for stay nil.
type Components struct {
	Config   config.Interface
	Launcher *browser.Launcher
	Engine   *axe.Engine
	Analyzer schemas.Analyzer
	Store    schemas.ReportStore
	Exporter *export.Exporter
	Mailer   *export.Mailer
	DBPool   *pgxpool.Pool
}

// Handlers builds the HTTP handlers over the components, leaving optional
// collaborators unset when they were not created.
func (c *Components) Handlers(logger *zap.Logger) *server.Handlers {
	var exporter server.PDFExporter
	if c.Exporter != nil {
		exporter = c.Exporter
	}
	var mailer server.ReportMailer
	if c.Mailer != nil {
		mailer = c.Mailer
	}
	return server.NewHandlers(logger, c.Analyzer, c.Store, exporter, mailer)
}

// Shutdown releases long-lived resources. Browser processes are owned by
// individual analyses and are already gone by the time this runs.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down successfully.")
}

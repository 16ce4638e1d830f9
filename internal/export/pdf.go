package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

// Printer renders an HTML document to PDF.
type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Exporter produces PDF renditions of reports.
type Exporter struct {
	printer Printer
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewExporter creates an exporter. timeout bounds each PDF render.
func NewExporter(printer Printer, timeout time.Duration, logger *zap.Logger) *Exporter {
	return &Exporter{
		printer: printer,
		timeout: timeout,
		logger:  logger.Named("export"),
		now:     time.Now,
	}
}

// PDF renders report and returns the document with its download filename.
func (e *Exporter) PDF(ctx context.Context, report schemas.Report) ([]byte, string, error) {
	if report.URL == "" {
		return nil, "", errors.New("report url is required")
	}
	html, err := RenderHTML(report)
	if err != nil {
		return nil, "", err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	start := time.Now()
	pdf, err := e.printer.PrintPDF(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("failed to print report: %w", err)
	}
	e.logger.Info("PDF generated.",
		zap.String("url", report.URL),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, fmt.Sprintf("accessibility-report-%d.pdf", e.now().UnixMilli()), nil
}

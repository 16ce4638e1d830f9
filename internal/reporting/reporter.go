// internal/reporting/reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter defines the interface for writing audit reports to an output.
type Reporter interface {
	// Write adds a single report.
	Write(report schemas.Report) error
	// Close finalizes the output and closes any underlying file handle.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("json" or "sarif") writing to
// outputPath, or to stdout when the path is empty or "stdout".
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	switch format {
	case "json", "sarif":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "sarif" {
		return NewSARIFReporter(writer, toolVersion, logger), nil
	}
	return NewJSONReporter(writer, logger), nil
}

// JSONReporter buffers reports and writes them as one indented JSON array.
type JSONReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	mu      sync.Mutex
	reports []schemas.Report
}

// NewJSONReporter takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{
		writer:  writer,
		logger:  logger.Named("json_reporter"),
		reports: []schemas.Report{},
	}
}

func (r *JSONReporter) Write(report schemas.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return encodeAndClose(r.writer, r.reports, r.logger)
}

// encodeAndClose writes v and always closes w, preferring the encoding error.
func encodeAndClose(w io.WriteCloser, v interface{}, logger *zap.Logger) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(v)
	closeErr := w.Close()

	if encodeErr != nil {
		logger.Error("Failed to encode report output", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode output: %w", encodeErr)
	}
	if closeErr != nil {
		logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// File: internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps request bodies; reports with many nodes can be large.
const maxBodyBytes = 10 << 20

// PDFExporter renders a report to a downloadable PDF.
type PDFExporter interface {
	PDF(ctx context.Context, report schemas.Report) ([]byte, string, error)
}

// ReportMailer emails a rendered report.
type ReportMailer interface {
	SendReport(ctx context.Context, to string, report schemas.Report, pdf []byte) error
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

type exportResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type pdfRequest struct {
	Report *schemas.Report `json:"report"`
}

type emailRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Report *schemas.Report `json:"report" validate:"required"`
}

// Handlers serves the HTTP API. store, exporter and mailer may be nil, in
// which case their routes answer 503.
type Handlers struct {
	log      *zap.Logger
	analyzer schemas.Analyzer
	store    schemas.ReportStore
	exporter PDFExporter
	mailer   ReportMailer
	validate *validator.Validate
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, analyzer schemas.Analyzer, reports schemas.ReportStore, exporter PDFExporter, mailer ReportMailer) *Handlers {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handlers{
		log:      logger.Named("http"),
		analyzer: analyzer,
		store:    reports,
		exporter: exporter,
		mailer:   mailer,
		validate: v,
	}
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleAnalysis runs the pipeline for one URL. Degraded runs are still 200.
func (h *Handlers) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req schemas.AnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeJSON(w, h.log, http.StatusBadRequest, errorBody{Error: "URL is required"})
		return
	}

	url := strings.TrimSpace(req.URL)
	h.log.Info("Received analysis request.", zap.String("url", url))
	report := h.analyzer.Analyze(r.Context(), url)
	writeJSON(w, h.log, http.StatusOK, report)
}

// HandleListReports returns stored reports, newest first.
func (h *Handlers) HandleListReports(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	reports, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("Failed to list reports.", zap.Error(err))
		writeJSON(w, h.log, http.StatusInternalServerError, errorBody{Error: "Failed to fetch reports"})
		return
	}
	writeJSON(w, h.log, http.StatusOK, reports)
}

// HandleCreateReport persists a report.
func (h *Handlers) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	var report schemas.Report
	if err := decodeJSON(w, r, &report); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, errorBody{Error: "Invalid report payload"})
		return
	}
	if strings.TrimSpace(report.URL) == "" {
		writeJSON(w, h.log, http.StatusBadRequest, errorBody{Error: "URL is required"})
		return
	}
	stored, err := h.store.Create(r.Context(), report)
	if err != nil {
		h.log.Error("Failed to create report.", zap.Error(err))
		writeJSON(w, h.log, http.StatusInternalServerError, errorBody{Error: "Failed to create report"})
		return
	}
	writeJSON(w, h.log, http.StatusCreated, stored)
}

// HandleDeleteReport removes a stored report.
func (h *Handlers) HandleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, h.log, http.StatusNotFound, errorBody{Error: "Report not found"})
	case err != nil:
		h.log.Error("Failed to delete report.", zap.String("id", id), zap.Error(err))
		writeJSON(w, h.log, http.StatusInternalServerError, errorBody{Error: "Failed to delete report"})
	default:
		writeJSON(w, h.log, http.StatusOK, messageBody{Message: "Report deleted successfully"})
	}
}

// HandleGeneratePDF streams the PDF rendition of the posted report.
func (h *Handlers) HandleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeJSON(w, h.log, http.StatusServiceUnavailable, exportResult{Error: "PDF export is not configured"})
		return
	}
	var req pdfRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Report == nil {
		writeJSON(w, h.log, http.StatusBadRequest, exportResult{Error: "Report data is required"})
		return
	}

	pdf, filename, err := h.exporter.PDF(r.Context(), *req.Report)
	if err != nil {
		h.log.Error("PDF generation failed.", zap.String("url", req.Report.URL), zap.Error(err))
		writeJSON(w, h.log, http.StatusInternalServerError, exportResult{Error: "Failed to generate PDF", Details: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.log.Warn("Failed to write PDF response.", zap.Error(err))
	}
}

// HandleEmailPDF renders the posted report and emails it.
func (h *Handlers) HandleEmailPDF(w http.ResponseWriter, r *http.Request) {
	if h.mailer == nil || h.exporter == nil {
		writeJSON(w, h.log, http.StatusServiceUnavailable, exportResult{Error: "Email delivery is not configured"})
		return
	}
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, exportResult{Error: "Validation failed", Details: []fieldError{{Field: "body", Message: "Request body must be JSON"}}})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, exportResult{Error: "Validation failed", Details: describeValidation(err)})
		return
	}

	pdf, _, err := h.exporter.PDF(r.Context(), *req.Report)
	if err == nil {
		err = h.mailer.SendReport(r.Context(), req.Email, *req.Report, pdf)
	}
	if err != nil {
		h.log.Error("Failed to email PDF.", zap.String("url", req.Report.URL), zap.Error(err))
		writeJSON(w, h.log, http.StatusInternalServerError, exportResult{Error: "Failed to send PDF report", Details: err.Error()})
		return
	}
	writeJSON(w, h.log, http.StatusOK, exportResult{Success: true, Message: "PDF report sent successfully to your email!"})
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeJSON(w, h.log, http.StatusServiceUnavailable, errorBody{Error: "Report storage is not configured"})
		return false
	}
	return true
}

func describeValidation(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "Invalid value"
		switch {
		case fe.Field() == "email":
			msg = "Please provide a valid email address"
		case fe.Field() == "report":
			msg = "Report data is required"
		}
		out = append(out, fieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

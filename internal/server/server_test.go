// File: internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/store"
)

// -- Mocks --

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context, url string) schemas.Report {
	return m.Called(ctx, url).Get(0).(schemas.Report)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Create(ctx context.Context, r schemas.Report) (schemas.StoredReport, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(schemas.StoredReport), args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]schemas.StoredReport, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schemas.StoredReport)
	return out, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (schemas.StoredReport, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.StoredReport), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockExporter struct{ mock.Mock }

func (m *mockExporter) PDF(ctx context.Context, r schemas.Report) ([]byte, string, error) {
	args := m.Called(ctx, r)
	b, _ := args.Get(0).([]byte)
	return b, args.String(1), args.Error(2)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendReport(ctx context.Context, to string, r schemas.Report, pdf []byte) error {
	return m.Called(ctx, to, r, pdf).Error(0)
}

// -- Fixtures --

type fixture struct {
	analyzer *mockAnalyzer
	store    *mockStore
	exporter *mockExporter
	mailer   *mockMailer
	handler  http.Handler
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		AllowedOrigins:  []string{"https://accessibility-analyzer-v3.vercel.app", "http://localhost:4000"},
		RequestTimeout:  time.Minute,
		ShutdownTimeout: time.Second,
		AnalysisRate:    1,
		AnalysisBurst:   2,
	}
}

func newFixture(t *testing.T, withStore, withMail bool) *fixture {
	t.Helper()
	f := &fixture{
		analyzer: new(mockAnalyzer),
		store:    new(mockStore),
		exporter: new(mockExporter),
		mailer:   new(mockMailer),
	}
	var reports schemas.ReportStore
	if withStore {
		reports = f.store
	}
	var mailer ReportMailer
	if withMail {
		mailer = f.mailer
	}
	logger := zaptest.NewLogger(t)
	h := NewHandlers(logger, f.analyzer, reports, f.exporter, mailer)
	f.handler = New(testServerConfig(), h, logger).Routes()
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func sampleReport() schemas.Report {
	return schemas.Report{
		URL:         "https://example.com",
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Violations:  []schemas.Violation{},
		Passes:      12,
		TotalIssues: 0,
	}
}

// -- Tests --

func TestHealthz(t *testing.T) {
	f := newFixture(t, true, true)
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAnalysis(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		f := newFixture(t, true, true)
		for _, body := range []string{`{}`, `{"url":"   "}`, `not json`} {
			rec := f.do(http.MethodPost, "/api/analysis", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"URL is required"}`, rec.Body.String())
		}
		f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	})

	t.Run("returns the report", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.analyzer.On("Analyze", mock.Anything, "https://example.com").Return(sampleReport()).Once()

		rec := f.do(http.MethodPost, "/api/analysis", `{"url":"https://example.com"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"url":"https://example.com","timestamp":"2024-05-01T12:00:00Z","violations":[],"passes":12,"totalIssues":0}`, rec.Body.String())
		f.analyzer.AssertExpectations(t)
	})

	t.Run("degraded reports are still 200", func(t *testing.T) {
		f := newFixture(t, true, true)
		degraded := sampleReport()
		degraded.Passes = 0
		degraded.Note = "Analysis failed due to an internal error"
		degraded.Error = "chrome not found"
		f.analyzer.On("Analyze", mock.Anything, "https://down.test").Return(degraded).Once()

		rec := f.do(http.MethodPost, "/api/analysis", `{"url":"https://down.test"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"note":"Analysis failed due to an internal error"`)
		assert.Contains(t, rec.Body.String(), `"error":"chrome not found"`)
	})

	t.Run("rate limited per client", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(sampleReport())

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			codes = append(codes, f.do(http.MethodPost, "/api/analysis", `{"url":"https://example.com"}`, "X-Real-IP", "203.0.113.9").Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

		other := f.do(http.MethodPost, "/api/analysis", `{"url":"https://example.com"}`, "X-Real-IP", "203.0.113.10")
		assert.Equal(t, http.StatusOK, other.Code)
	})
}

func TestReports(t *testing.T) {
	t.Run("503 without a store", func(t *testing.T) {
		f := newFixture(t, false, true)
		assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/reports", "").Code)
		assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/reports", `{"url":"x"}`).Code)
		assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodDelete, "/api/reports/abc", "").Code)
	})

	t.Run("list", func(t *testing.T) {
		f := newFixture(t, true, true)
		stored := []schemas.StoredReport{{ID: "b"}, {ID: "a"}}
		f.store.On("List", mock.Anything).Return(stored, nil).Once()

		rec := f.do(http.MethodGet, "/api/reports", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []schemas.StoredReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("list failure", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.store.On("List", mock.Anything).Return(nil, errors.New("db down")).Once()
		rec := f.do(http.MethodGet, "/api/reports", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Failed to fetch reports"}`, rec.Body.String())
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t, true, true)
		report := sampleReport()
		f.store.On("Create", mock.Anything, report).
			Return(schemas.StoredReport{ID: "id-1", Report: report}, nil).Once()

		rec := f.do(http.MethodPost, "/api/reports", `{"url":"https://example.com","timestamp":"2024-05-01T12:00:00Z","violations":[],"passes":12,"totalIssues":0}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"id-1"`)
		f.store.AssertExpectations(t)
	})

	t.Run("create without url", func(t *testing.T) {
		f := newFixture(t, true, true)
		rec := f.do(http.MethodPost, "/api/reports", `{"passes":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.store.On("Delete", mock.Anything, "id-1").Return(nil).Once()
		f.store.On("Delete", mock.Anything, "missing").Return(store.ErrNotFound).Once()
		f.store.On("Delete", mock.Anything, "broken").Return(errors.New("db down")).Once()

		rec := f.do(http.MethodDelete, "/api/reports/id-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Report deleted successfully"}`, rec.Body.String())

		rec = f.do(http.MethodDelete, "/api/reports/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Report not found"}`, rec.Body.String())

		rec = f.do(http.MethodDelete, "/api/reports/broken", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGeneratePDF(t *testing.T) {
	t.Run("missing report", func(t *testing.T) {
		f := newFixture(t, true, true)
		rec := f.do(http.MethodPost, "/api/generate-pdf", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Report data is required"}`, rec.Body.String())
	})

	t.Run("streams the document", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.exporter.On("PDF", mock.Anything, sampleReport()).
			Return([]byte("%PDF-1.7"), "accessibility-report-1.pdf", nil).Once()

		rec := f.do(http.MethodPost, "/api/generate-pdf", `{"report":{"url":"https://example.com","timestamp":"2024-05-01T12:00:00Z","violations":[],"passes":12,"totalIssues":0}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="accessibility-report-1.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "8", rec.Header().Get("Content-Length"))
		assert.Equal(t, "%PDF-1.7", rec.Body.String())
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.exporter.On("PDF", mock.Anything, mock.Anything).Return(nil, "", errors.New("chrome crashed")).Once()

		rec := f.do(http.MethodPost, "/api/generate-pdf", `{"report":{"url":"https://example.com"}}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Failed to generate PDF","details":"chrome crashed"}`, rec.Body.String())
	})
}

func TestEmailPDF(t *testing.T) {
	const body = `{"email":"dev@example.com","report":{"url":"https://example.com","timestamp":"2024-05-01T12:00:00Z","violations":[],"passes":12,"totalIssues":0}}`

	t.Run("503 when email is not configured", func(t *testing.T) {
		f := newFixture(t, true, false)
		rec := f.do(http.MethodPost, "/api/email-pdf", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, true, true)
		rec := f.do(http.MethodPost, "/api/email-pdf", `{"email":"nope"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var got exportResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.False(t, got.Success)
		assert.Equal(t, "Validation failed", got.Error)
		assert.Contains(t, rec.Body.String(), "Please provide a valid email address")
		assert.Contains(t, rec.Body.String(), "Report data is required")
	})

	t.Run("sends", func(t *testing.T) {
		f := newFixture(t, true, true)
		pdf := []byte("%PDF")
		f.exporter.On("PDF", mock.Anything, sampleReport()).Return(pdf, "r.pdf", nil).Once()
		f.mailer.On("SendReport", mock.Anything, "dev@example.com", sampleReport(), pdf).Return(nil).Once()

		rec := f.do(http.MethodPost, "/api/email-pdf", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"message":"PDF report sent successfully to your email!"}`, rec.Body.String())
		f.mailer.AssertExpectations(t)
	})

	t.Run("send failure", func(t *testing.T) {
		f := newFixture(t, true, true)
		f.exporter.On("PDF", mock.Anything, mock.Anything).Return([]byte("%PDF"), "r.pdf", nil).Once()
		f.mailer.On("SendReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("relay refused")).Once()

		rec := f.do(http.MethodPost, "/api/email-pdf", body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "relay refused")
	})
}

func TestCORS(t *testing.T) {
	f := newFixture(t, true, true)

	rec := f.do(http.MethodOptions, "/api/analysis", "", "Origin", "http://localhost:4000", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(http.MethodOptions, "/api/analysis", "", "Origin", "https://evil.test", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(http.MethodGet, "/healthz", "", "Origin", "https://evil.test")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Unix(0, 0)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, l.allow("b"))
	l.mu.Lock()
	_, stillThere := l.clients["a"]
	l.mu.Unlock()
	assert.False(t, stillThere)
}

func TestServe_GracefulShutdown(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := New(testServerConfig(), NewHandlers(logger, new(mockAnalyzer), nil, nil, nil), logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

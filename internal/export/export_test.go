package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleReport() schemas.Report {
	return schemas.Report{
		URL:       "https://example.com",
		Timestamp: fixedNow,
		Violations: []schemas.Violation{{
			ID:          "image-alt",
			Impact:      schemas.ImpactCritical,
			Description: "Ensures <img> elements have alternate text",
			Help:        "Images must have alternate text",
			HelpURL:     "https://dequeuniversity.com/rules/axe/4.10/image-alt",
			Nodes: []schemas.Node{{
				HTML:           `<img src="logo.png">`,
				FailureSummary: "Element does not have an alt attribute",
				CodeSuggestion: `<img src="logo.png">`,
			}},
		}},
		Passes:      14,
		TotalIssues: 1,
	}
}

type mockPrinter struct{ mock.Mock }

func (m *mockPrinter) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	args := m.Called(ctx, html)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type captureSender struct {
	msgs []*mail.Msg
	err  error
}

func (c *captureSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, out, "Analysis completed for: <strong>https://example.com</strong>")
	assert.Contains(t, out, `class="issue impact-critical"`)
	assert.Contains(t, out, "1. Ensures &lt;img&gt; elements have alternate text")
	// Node markup is shown, never interpreted.
	assert.Contains(t, out, "&lt;img src=&#34;logo.png&#34;&gt;")
	assert.NotContains(t, out, `<img src="logo.png">`)
	assert.Contains(t, out, ">14<")
	assert.Contains(t, out, "May 1, 2024")
	assert.NotContains(t, out, "Great News!")
}

func TestRenderHTML_CleanAndDegraded(t *testing.T) {
	clean := schemas.Report{URL: "https://ok.test", Violations: []schemas.Violation{}, Passes: 30}
	out, err := RenderHTML(clean)
	require.NoError(t, err)
	assert.Contains(t, out, "Great News!")
	assert.Contains(t, out, "unknown date")

	degraded := clean
	degraded.Note = "Page could not be fully loaded, but basic analysis completed"
	out, err = RenderHTML(degraded)
	require.NoError(t, err)
	assert.Contains(t, out, degraded.Note)
	assert.NotContains(t, out, "Great News!")
}

func TestRenderEmail(t *testing.T) {
	out, err := RenderEmail(sampleReport())
	require.NoError(t, err)
	assert.Contains(t, out, "Your accessibility analysis report is attached")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestExporter_PDF(t *testing.T) {
	printer := new(mockPrinter)
	printer.On("PrintPDF", mock.Anything, mock.MatchedBy(func(html string) bool {
		return strings.Contains(html, "https://example.com")
	})).Return([]byte("%PDF-1.4 fake"), nil).Once()

	e := NewExporter(printer, time.Second, zaptest.NewLogger(t))
	e.now = func() time.Time { return fixedNow }

	pdf, name, err := e.PDF(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), pdf)
	assert.Equal(t, "accessibility-report-1714564800000.pdf", name)
	printer.AssertExpectations(t)
}

func TestExporter_PDFErrors(t *testing.T) {
	printer := new(mockPrinter)
	e := NewExporter(printer, 0, zaptest.NewLogger(t))

	_, _, err := e.PDF(context.Background(), schemas.Report{})
	assert.Error(t, err)

	printErr := errors.New("chrome missing")
	printer.On("PrintPDF", mock.Anything, mock.Anything).Return(nil, printErr).Once()
	_, _, err = e.PDF(context.Background(), sampleReport())
	assert.ErrorIs(t, err, printErr)
}

func TestNewMailer_Disabled(t *testing.T) {
	_, err := NewMailer(config.EmailConfig{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrEmailDisabled)
}

func TestNewMailer_Configured(t *testing.T) {
	m, err := NewMailer(config.EmailConfig{
		Host: "smtp.example.com", Port: 587,
		Username: "bot", Password: "secret",
		FromName: "Accessibility Analyzer", FromAddress: "bot@example.com",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMailer_SendReport(t *testing.T) {
	sender := &captureSender{}
	cfg := config.EmailConfig{FromName: "Accessibility Analyzer", FromAddress: "bot@example.com"}
	m := NewMailerWithSender(cfg, sender, zaptest.NewLogger(t))
	m.now = func() time.Time { return fixedNow }

	err := m.SendReport(context.Background(), "dev@example.com", sampleReport(), []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, []string{"Accessibility Report PDF: https://example.com"}, msg.GetGenHeader(mail.HeaderSubject))
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev@example.com"}, rcpts)
	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "Accessibility-Report-1714564800000.pdf", attachments[0].Name)
}

func TestMailer_SendReportErrors(t *testing.T) {
	cfg := config.EmailConfig{FromName: "A", FromAddress: "bot@example.com"}

	m := NewMailerWithSender(cfg, &captureSender{}, zaptest.NewLogger(t))
	assert.Error(t, m.SendReport(context.Background(), "not an address", sampleReport(), nil))

	sendErr := errors.New("relay refused")
	m = NewMailerWithSender(cfg, &captureSender{err: sendErr}, zaptest.NewLogger(t))
	assert.ErrorIs(t, m.SendReport(context.Background(), "dev@example.com", sampleReport(), nil), sendErr)
}

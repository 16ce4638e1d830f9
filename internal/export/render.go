// Package export turns audit reports into documents: a printable HTML page,
// its PDF rendition and an email carrying the PDF.
package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "unknown date"
		}
		return t.UTC().Format("January 2, 2006 at 15:04 MST")
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

// RenderHTML renders the printable report page.
func RenderHTML(report schemas.Report) (string, error) {
	return render("report.html.tmpl", report)
}

// RenderEmail renders the HTML body of the report email.
func RenderEmail(report schemas.Report) (string, error) {
	return render("email.html.tmpl", report)
}

func render(name string, report schemas.Report) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, report); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

package analysis

import (
	"time"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/axe"
)

// Notes attached to degraded reports.
const (
	NoteNavigationFailed = "Page could not be fully loaded, but basic analysis completed"
	NoteInjectionFailed  = "Accessibility analysis could not be performed"
	NoteInternalError    = "Analysis failed due to an internal error"
	NoteCanceled         = "Analysis was canceled before the audit completed"
)

const unknownURL = "Unknown URL"

// Normalize maps engine results onto a Report. Ordering of violations and
// nodes is preserved and every slice in the output is non-nil.
func Normalize(url string, ts time.Time, res axe.Results) schemas.Report {
	violations := make([]schemas.Violation, 0, len(res.Violations))
	for _, v := range res.Violations {
		nodes := make([]schemas.Node, 0, len(v.Nodes))
		for _, n := range v.Nodes {
			nodes = append(nodes, schemas.Node{
				HTML:           n.HTML,
				FailureSummary: n.FailureSummary,
				CodeSuggestion: n.HTML,
			})
		}
		violations = append(violations, schemas.Violation{
			ID:          v.ID,
			Impact:      schemas.ParseImpact(v.Impact),
			Description: v.Description,
			Help:        v.Help,
			HelpURL:     v.HelpURL,
			Nodes:       nodes,
		})
	}
	return schemas.Report{
		URL:         url,
		Timestamp:   ts,
		Violations:  violations,
		Passes:      len(res.Passes),
		TotalIssues: len(violations),
	}
}

// degradedReport is an empty report explained by note.
func degradedReport(url string, ts time.Time, note string) schemas.Report {
	r := Normalize(url, ts, axe.Results{})
	r.Note = note
	return r
}

// faultReport describes an unexpected failure.
func faultReport(url string, ts time.Time, err error) schemas.Report {
	if url == "" {
		url = unknownURL
	}
	r := degradedReport(url, ts, NoteInternalError)
	r.Error = err.Error()
	return r
}

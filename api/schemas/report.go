package schemas

import (
	"strings"
	"time"
)

// -- Audit Report Schemas --

// Impact is the severity the accessibility engine assigns to a violation.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
	ImpactUnknown  Impact = "unknown"
)

// ParseImpact maps an engine severity onto Impact. Anything outside the known
// set, including an absent value, becomes ImpactUnknown.
func ParseImpact(s string) Impact {
	switch i := Impact(strings.ToLower(strings.TrimSpace(s))); i {
	case ImpactMinor, ImpactModerate, ImpactSerious, ImpactCritical:
		return i
	default:
		return ImpactUnknown
	}
}

// AnalysisRequest is the inbound payload of a single-page audit.
type AnalysisRequest struct {
	URL string `json:"url"`
}

// Report is the outcome of one pipeline run. Degraded runs carry a Note,
// unexpected faults additionally carry Error.
type Report struct {
	URL         string      `json:"url"`
	Timestamp   time.Time   `json:"timestamp"`
	Violations  []Violation `json:"violations"`
	Passes      int         `json:"passes"`
	TotalIssues int         `json:"totalIssues"`
	Note        string      `json:"note,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Degraded reports whether the run did not complete normally.
func (r Report) Degraded() bool {
	return r.Note != ""
}

// Violation is one failed rule and every node it failed on.
type Violation struct {
	ID          string `json:"id"`
	Impact      Impact `json:"impact"`
	Description string `json:"description"`
	Help        string `json:"help"`
	HelpURL     string `json:"helpUrl"`
	Nodes       []Node `json:"nodes"`
}

// Node is one offending DOM element. CodeSuggestion echoes HTML verbatim.
type Node struct {
	HTML           string `json:"html"`
	FailureSummary string `json:"failureSummary"`
	CodeSuggestion string `json:"codeSuggestion"`
}

// StoredReport is a Report as persisted, with store-assigned metadata.
type StoredReport struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Report
}

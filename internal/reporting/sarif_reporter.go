// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "a11yscan"
	ToolInfoURI  = "https://github.com/xkilldash9x/a11yscan"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	rulePrefix   = "A11Y-"
)

// ruleIDSanitizer replaces characters not typically safe in SARIF rule IDs.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// SARIFReporter implements Reporter for SARIF 2.1.0. Every violated node
// becomes one result located at the audited URL. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects log and rules.
	mu    sync.Mutex
	rules map[string]struct{}
}

// NewSARIFReporter creates a reporter that takes ownership of writer.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Invocations: []*sarif.Invocation{{ExecutionSuccessful: true}},
				Results:     []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer: writer,
		logger: logger.Named("sarif_reporter"),
		log:    log,
		rules:  make(map[string]struct{}),
	}
}

// Write converts a report's violations into SARIF results. Degraded reports
// are recorded as tool execution notifications.
func (r *SARIFReporter) Write(report schemas.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	if report.Degraded() {
		r.addNotification(run, report)
	}

	for _, v := range report.Violations {
		ruleID := r.ensureRule(v)
		level := mapImpactToSARIFLevel(v.Impact)
		for _, n := range v.Nodes {
			message := n.FailureSummary
			if message == "" {
				message = v.Help
			}
			run.Results = append(run.Results, &sarif.Result{
				RuleID:    ruleID,
				Message:   &sarif.Message{Text: pString(message)},
				Level:     level,
				Locations: createLocations(report.URL, n),
			})
		}
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(r.log.Runs[0].Results)),
		zap.Int("total_rules", len(r.log.Runs[0].Tool.Driver.Rules)),
	)
	return encodeAndClose(r.writer, r.log, r.logger)
}

func (r *SARIFReporter) addNotification(run *sarif.Run, report schemas.Report) {
	inv := run.Invocations[0]
	inv.ExecutionSuccessful = false
	text := report.Note
	if report.Error != "" {
		text = fmt.Sprintf("%s: %s", report.Note, report.Error)
	}
	inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, &sarif.Notification{
		Message: &sarif.Message{Text: pString(text)},
		Level:   sarif.LevelWarning,
		Locations: []*sarif.Location{{
			PhysicalLocation: &sarif.PhysicalLocation{
				ArtifactLocation: &sarif.ArtifactLocation{URI: pString(report.URL)},
			},
		}},
	})
	r.logger.Warn("Degraded audit included in SARIF output", zap.String("url", report.URL), zap.String("note", report.Note))
}

// ensureRule registers a rule for the violation once and returns its ID.
// NOTE: Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(v schemas.Violation) string {
	ruleID := rulePrefix + sanitizeRuleName(v.ID)
	if _, exists := r.rules[ruleID]; exists {
		return ruleID
	}
	r.rules[ruleID] = struct{}{}

	driver := r.log.Runs[0].Tool.Driver
	rule := &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(v.ID),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(v.Help)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(v.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(v.Help),
			Markdown: pString(fmt.Sprintf("**%s**\n\n%s\n\n[Rule documentation](%s)", v.Help, v.Description, v.HelpURL)),
		},
		Properties: &sarif.PropertyBag{
			"tags":   []string{"accessibility", "wcag"},
			"impact": string(v.Impact),
		},
	}
	if v.HelpURL != "" {
		rule.HelpURI = pString(v.HelpURL)
	}
	driver.Rules = append(driver.Rules, rule)
	return ruleID
}

func sanitizeRuleName(name string) string {
	sanitized := strings.Trim(ruleIDSanitizer.ReplaceAllString(name, "-"), "-")
	if sanitized == "" {
		return "unnamed-rule"
	}
	return sanitized
}

func createLocations(url string, n schemas.Node) []*sarif.Location {
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(url)},
			Region:           &sarif.Region{Snippet: &sarif.ArtifactContent{Text: pString(n.HTML)}},
		},
	}}
}

// mapImpactToSARIFLevel converts an engine impact to the SARIF standard.
func mapImpactToSARIFLevel(impact schemas.Impact) sarif.Level {
	switch impact {
	case schemas.ImpactCritical, schemas.ImpactSerious:
		return sarif.LevelError
	case schemas.ImpactModerate:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}

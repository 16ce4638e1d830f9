package schemas

import (
	"context"
	"time"
)

// -- Store Interface --

// ReportStore persists audit reports. Implementations add an identifier and
// creation time but never alter the audit content.
type ReportStore interface {
	Create(ctx context.Context, report Report) (StoredReport, error)
	// List returns every stored report, newest first.
	List(ctx context.Context) ([]StoredReport, error)
	Get(ctx context.Context, id string) (StoredReport, error)
	Delete(ctx context.Context, id string) error
}

// -- Browser Interfaces --

// SessionLauncher starts a fresh, exclusively owned browser session.
type SessionLauncher interface {
	Launch(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is a single page in a browser process owned by one analysis.
type BrowserSession interface {
	ID() string
	// ApplyIdentity sets the user agent and viewport for subsequent navigations.
	ApplyIdentity(ctx context.Context, id Identity) error
	// BlockResourceTypes aborts requests for the given resource classes
	// (e.g. "image", "stylesheet", "font") before they are dispatched.
	BlockResourceTypes(ctx context.Context, types []string) error
	// Navigate loads url and waits for criterion, failing after timeout.
	Navigate(ctx context.Context, url string, criterion WaitCriterion, timeout time.Duration) error
	// Evaluate runs script in the page and decodes its result into res, which may be nil.
	Evaluate(ctx context.Context, script string, res interface{}) error
	// EvaluateAsync is Evaluate for scripts producing a promise; it resolves the promise first.
	EvaluateAsync(ctx context.Context, script string, res interface{}) error
	MouseMove(ctx context.Context, x, y float64) error
	// ElementCenters returns the centre of every visible element matching selector.
	ElementCenters(ctx context.Context, selector string) ([]Point, error)
	// Close terminates the browser process. It is safe to call more than once.
	Close(ctx context.Context) error
}

// -- Analysis Interface --

// Analyzer runs the full audit pipeline for one URL. It never fails: faults
// are reported through a degraded Report.
type Analyzer interface {
	Analyze(ctx context.Context, url string) Report
}

// internal/analysis/pipeline.go
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/humanoid"
)

// Bounds of the scripted pointer activity performed before the scan.
var (
	wanderMin   = humanoid.Vector2D{X: 100, Y: 100}
	wanderMax   = humanoid.Vector2D{X: 400, Y: 400}
	wanderSteps = 10
	linkSteps   = 15
	wanderPause = [2]time.Duration{100 * time.Millisecond, 500 * time.Millisecond}
	linkPause   = [2]time.Duration{200 * time.Millisecond, 800 * time.Millisecond}
)

// Pipeline runs one accessibility analysis per Analyze call. It is safe for
// concurrent use; every call owns its own browser session and random source.
type Pipeline struct {
	launcher     schemas.SessionLauncher
	configurator Configurator
	navigator    Navigator
	scanner      Scanner
	cfg          config.AnalysisConfig
	logger       *zap.Logger
	newRand      func() *rand.Rand
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

var _ schemas.Analyzer = (*Pipeline)(nil)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRandSource sets the factory for per-analysis random sources.
func WithRandSource(f func() *rand.Rand) Option {
	return func(p *Pipeline) { p.newRand = f }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSleep overrides how randomized pauses wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// NewPipeline assembles the analysis stages from cfg.
func NewPipeline(launcher schemas.SessionLauncher, engine Engine, cfg config.AnalysisConfig, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if launcher == nil {
		return nil, errors.New("session launcher is required")
	}
	if engine == nil {
		return nil, errors.New("accessibility engine is required")
	}
	strategies, err := StrategiesFrom(cfg.Navigation)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("analysis")

	p := &Pipeline{
		launcher:     launcher,
		configurator: NewConfigurator(cfg),
		navigator:    NewNavigator(strategies, logger),
		scanner:      NewScanner(engine, cfg.ScanDeadline, cfg.DefaultTimeout, logger),
		cfg:          cfg,
		logger:       logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		now:   func() time.Time { return time.Now().UTC() },
		sleep: humanoid.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// run is the state of a single analysis.
type run struct {
	p       *Pipeline
	url     string
	rng     *rand.Rand
	logger  *zap.Logger
	session schemas.BrowserSession
}

// Analyze loads url in a fresh session and audits it. It never returns an
// error: every failure is reported through Report.Note and Report.Error,
// and the session is released on every path, panics included.
func (p *Pipeline) Analyze(ctx context.Context, url string) (report schemas.Report) {
	r := &run{
		p:   p,
		url: url,
		rng: p.newRand(),
		logger: p.logger.With(
			zap.String("analysis_id", uuid.NewString()),
			zap.String("url", url)),
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Analysis panicked.", zap.Any("panic", rec), zap.Stack("stack"))
			report = faultReport(url, p.now(), fmt.Errorf("panic during analysis: %v", rec))
		}
		r.release(ctx)
		r.logger.Info("Analysis finished.",
			zap.Int("violations", report.TotalIssues),
			zap.Int("passes", report.Passes),
			zap.String("note", report.Note),
			zap.Duration("duration", time.Since(start)))
	}()

	r.logger.Info("Starting analysis.")
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) schemas.Report {
	p := r.p

	sess, err := p.launcher.Launch(ctx)
	if err != nil {
		r.logger.Error("Failed to launch browser session.", zap.Error(err))
		return faultReport(r.url, p.now(), err)
	}
	r.session = sess
	r.logger = r.logger.With(zap.String("session_id", sess.ID()))

	profile := p.configurator.Profile(r.rng)
	actx, cancel := context.WithTimeout(ctx, p.cfg.DefaultTimeout)
	err = p.configurator.Apply(actx, sess, profile)
	cancel()
	if err != nil {
		r.logger.Error("Failed to configure browser session.", zap.Error(err))
		return faultReport(r.url, p.now(), err)
	}
	r.logger.Debug("Session configured.",
		zap.String("user_agent", profile.Identity.UserAgent),
		zap.Int64("width", profile.Identity.Viewport.Width),
		zap.Int64("height", profile.Identity.Viewport.Height))

	r.pause(ctx, p.cfg.Delay.Min, p.cfg.Delay.Max)
	if _, err := p.navigator.Navigate(ctx, sess, r.url); err != nil {
		r.logger.Warn("Navigation exhausted every strategy.", zap.Error(err))
		return degradedReport(r.url, p.now(), NoteNavigationFailed)
	}
	r.pause(ctx, p.cfg.Delay.Min, p.cfg.Delay.Max)

	if p.cfg.Humanize {
		r.humanize(ctx)
	}

	if err := p.scanner.Inject(ctx, sess); err != nil {
		r.logger.Warn("Engine injection failed.", zap.Error(err))
		return degradedReport(r.url, p.now(), NoteInjectionFailed)
	}

	out := p.scanner.Run(ctx, sess)
	switch out.kind {
	case scanTimedOut:
		r.logger.Warn("Scan deadline elapsed, reporting empty results.", zap.Duration("deadline", p.cfg.ScanDeadline))
	case scanEngineError:
		r.logger.Warn("Scan did not complete, reporting empty results.", zap.Error(out.err))
	case scanCanceled:
		// An abandoned audit must not read as a clean page.
		r.logger.Warn("Analysis canceled during scan.", zap.Error(out.err))
		return degradedReport(r.url, p.now(), NoteCanceled)
	}
	return Normalize(r.url, p.now(), out.results)
}

// humanize performs best-effort pointer activity. Failures are never fatal.
func (r *run) humanize(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, r.p.cfg.DefaultTimeout)
	defer cancel()

	cursor := humanoid.NewCursor(r.session, r.rng, humanoid.Vector2D{})
	target := humanoid.RandomPoint(r.rng, wanderMin, wanderMax)
	if err := cursor.MoveTo(hctx, target, wanderSteps); err != nil {
		r.logger.Debug("Pointer movement failed.", zap.Error(err))
		return
	}
	r.pause(hctx, wanderPause[0], wanderPause[1])

	links, err := r.session.ElementCenters(hctx, "a")
	if err != nil {
		r.logger.Debug("Could not locate links.", zap.Error(err))
		return
	}
	if len(links) == 0 {
		return
	}
	link := humanoid.FromPoint(links[r.rng.Intn(len(links))])
	if err := cursor.MoveTo(hctx, link, linkSteps); err != nil {
		r.logger.Debug("Hover movement failed.", zap.Error(err))
		return
	}
	r.pause(hctx, linkPause[0], linkPause[1])
}

func (r *run) pause(ctx context.Context, min, max time.Duration) {
	if err := r.p.sleep(ctx, humanoid.RandomDuration(r.rng, min, max)); err != nil {
		r.logger.Debug("Pause interrupted.", zap.Error(err))
	}
}

// release closes the session. It runs detached from the caller's context so
// a cancelled request still tears the browser down, and it never panics.
func (r *run) release(ctx context.Context) {
	if r.session == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while closing browser session.", zap.Any("panic", rec))
		}
	}()
	if err := r.session.Close(context.WithoutCancel(ctx)); err != nil {
		r.logger.Error("Failed to close browser session.", zap.Error(err))
	}
}

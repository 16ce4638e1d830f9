// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/browser/stealth"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

const defaultCloseTimeout = 5 * time.Second

// Session is a single page in a browser process that it owns exclusively.
type Session struct {
	id          string
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	cfg         config.BrowserConfig
	logger      *zap.Logger

	interceptOnce sync.Once

	mu       sync.Mutex
	blocked  map[string]struct{}
	isClosed bool
}

var _ schemas.BrowserSession = (*Session)(nil)

func (s *Session) ID() string { return s.id }

// run executes actions on the page, bounded by both ctx and the session lifetime.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ApplyIdentity sets the user agent and a device-scale-1 viewport, plus the
// stealth persona when enabled.
func (s *Session) ApplyIdentity(ctx context.Context, id schemas.Identity) error {
	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(id.UserAgent),
		emulation.SetDeviceMetricsOverride(id.Viewport.Width, id.Viewport.Height, 1, false),
	}
	if s.cfg.Stealth {
		tasks = append(tasks, stealth.Apply(schemas.PersonaFor(id), s.logger)...)
	}
	if err := s.run(ctx, tasks); err != nil {
		return fmt.Errorf("failed to apply identity: %w", err)
	}
	return nil
}

// Evaluate runs script in the page and decodes its value into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, chromedp.Evaluate(script, res))
}

// EvaluateAsync runs script and waits for the promise it returns.
func (s *Session) EvaluateAsync(ctx context.Context, script string, res interface{}) error {
	return s.run(ctx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

// MouseMove dispatches a single pointer move to (x, y).
func (s *Session) MouseMove(ctx context.Context, x, y float64) error {
	return s.run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

const elementCentersJS = `(() => Array.from(document.querySelectorAll(%s))
	.map(el => el.getBoundingClientRect())
	.filter(r => r.width > 0 && r.height > 0)
	.map(r => ({x: r.left + r.width / 2, y: r.top + r.height / 2})))()`

// ElementCenters returns the centre of every rendered element matching selector.
func (s *Session) ElementCenters(ctx context.Context, selector string) ([]schemas.Point, error) {
	quoted, err := jsoniter.MarshalToString(selector)
	if err != nil {
		return nil, err
	}
	var points []schemas.Point
	if err := s.Evaluate(ctx, fmt.Sprintf(elementCentersJS, quoted), &points); err != nil {
		return nil, fmt.Errorf("failed to locate %q: %w", selector, err)
	}
	return points, nil
}

// Close shuts the browser down gracefully and then kills the process if it
// is still around. Later calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	timeout := s.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = defaultCloseTimeout
	}
	closeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var err error
	select {
	case err = <-done:
		if isCanceled(err) {
			err = nil
		}
	case <-closeCtx.Done():
		err = fmt.Errorf("graceful browser shutdown did not finish: %w", closeCtx.Err())
	}

	// Kills the process and removes its profile directory.
	s.cancelTab()
	s.cancelAlloc()

	s.logger.Debug("Browser session closed.", zap.Bool("graceful", err == nil))
	return err
}

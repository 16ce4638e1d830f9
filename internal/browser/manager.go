// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

const defaultLaunchTimeout = 30 * time.Second

// Launcher starts one Chrome process per session. Nothing is pooled: a
// session owns its process and the process dies with the session.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ schemas.SessionLauncher = (*Launcher)(nil)

// NewLauncher creates a launcher for the given browser settings.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}
}

// Launch starts a browser process and returns its single page.
func (l *Launcher) Launch(ctx context.Context) (schemas.BrowserSession, error) {
	s, err := l.launch(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Launcher) launch(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	logger := l.logger.With(zap.String("session_id", id))

	// The process must survive cancellation of ctx long enough for Close
	// to shut it down gracefully, so it hangs off a detached context.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(l.cfg)...)
	sugar := logger.Sugar()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	s := &Session{
		id:          id,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		cfg:         l.cfg,
		logger:      logger,
	}

	timeout := l.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	started := make(chan error, 1)
	go func() {
		// The first Run allocates the browser; it must use tabCtx itself,
		// a derived deadline would kill the process when it expires.
		started <- chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := page.Enable().Do(ctx); err != nil {
				return err
			}
			return page.SetLifecycleEventsEnabled(true).Do(ctx)
		}))
	}()

	var err error
	select {
	case err = <-started:
	case <-time.After(timeout):
		err = fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Debug("Browser session started.")
	return s, nil
}

// PrintPDF renders html in a dedicated browser process and prints it to an A4 PDF.
func (l *Launcher) PrintPDF(ctx context.Context, html string) (pdf []byte, err error) {
	s, err := l.launch(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(context.Background()); cerr != nil {
			l.logger.Warn("Failed to close PDF browser.", zap.Error(cerr))
		}
	}()
	return s.PrintPDF(ctx, html)
}

// isCanceled reports errors produced by our own teardown rather than Chrome.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

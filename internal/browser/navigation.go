// internal/browser/navigation.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

// ErrWaitTimeout is returned when the awaited lifecycle event does not arrive in time.
var ErrWaitTimeout = errors.New("timed out waiting for page lifecycle event")

// lifecycleEvents maps criteria to the Page.lifecycleEvent name that satisfies them.
var lifecycleEvents = map[schemas.WaitCriterion]string{
	schemas.WaitDOMContentLoaded: "DOMContentLoaded",
	schemas.WaitLoad:             "load",
	schemas.WaitNetworkIdle:      "networkIdle",
}

// Navigate loads url and waits until the main frame reaches criterion.
func (s *Session) Navigate(ctx context.Context, url string, criterion schemas.WaitCriterion, timeout time.Duration) error {
	eventName, ok := lifecycleEvents[criterion]
	if !ok {
		return fmt.Errorf("unsupported wait criterion %q", criterion)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return navigateAndWait(ctx, url, eventName)
	}))
	if err != nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, criterion, timeout)
	}
	return err
}

// lifecycleWatch records which loaders of one frame reached an event. It
// keeps every match, so a burst of events from other frames cannot crowd
// out the one being waited for.
type lifecycleWatch struct {
	frameID   cdp.FrameID
	eventName string

	mu      sync.Mutex
	loaders map[cdp.LoaderID]struct{}
	signal  chan struct{}
}

func newLifecycleWatch(frameID cdp.FrameID, eventName string) *lifecycleWatch {
	return &lifecycleWatch{
		frameID:   frameID,
		eventName: eventName,
		loaders:   make(map[cdp.LoaderID]struct{}),
		signal:    make(chan struct{}, 1),
	}
}

func (w *lifecycleWatch) observe(e *page.EventLifecycleEvent) {
	if e.Name != w.eventName || e.FrameID != w.frameID {
		return
	}
	w.mu.Lock()
	w.loaders[e.LoaderID] = struct{}{}
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// reached reports whether loaderID fired the event. Same-document
// navigations have no loader of their own, so any match counts for them.
func (w *lifecycleWatch) reached(loaderID cdp.LoaderID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if loaderID == "" {
		return len(w.loaders) > 0
	}
	_, ok := w.loaders[loaderID]
	return ok
}

func (w *lifecycleWatch) wait(ctx context.Context, loaderID cdp.LoaderID) error {
	for !w.reached(loaderID) {
		select {
		case <-w.signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// navigateAndWait subscribes before navigating so a fast page cannot fire
// its event before anyone is listening.
func navigateAndWait(ctx context.Context, url, eventName string) error {
	tree, err := page.GetFrameTree().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve main frame: %w", err)
	}
	watch := newLifecycleWatch(tree.Frame.ID, eventName)

	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			watch.observe(e)
		}
	})

	_, loaderID, errorText, _, err := page.Navigate(url).Do(ctx)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if errorText != "" {
		return fmt.Errorf("navigation to %s failed: %s", url, errorText)
	}
	return watch.wait(ctx, loaderID)
}

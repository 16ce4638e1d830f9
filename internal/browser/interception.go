// internal/browser/interception.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const pausedRequestTimeout = 2 * time.Second

// BlockResourceTypes pauses every request and fails those whose resource
// type is in types (case-insensitive, e.g. "image"). The rest continue
// untouched. Calling it again replaces the blocked set.
func (s *Session) BlockResourceTypes(ctx context.Context, types []string) error {
	blocked := make(map[string]struct{}, len(types))
	for _, t := range types {
		blocked[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	s.mu.Lock()
	s.blocked = blocked
	s.mu.Unlock()

	var err error
	s.interceptOnce.Do(func() {
		chromedp.ListenTarget(s.ctx, func(ev interface{}) {
			if e, ok := ev.(*fetch.EventRequestPaused); ok {
				// Answering from the listener goroutine would deadlock the event loop.
				go s.resolvePaused(e)
			}
		})
		err = s.run(ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}))
	})
	if err != nil {
		return fmt.Errorf("failed to enable request interception: %w", err)
	}
	return nil
}

func (s *Session) isBlocked(rt network.ResourceType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[strings.ToLower(string(rt))]
	return ok
}

func (s *Session) resolvePaused(e *fetch.EventRequestPaused) {
	cmdCtx, cancel := context.WithTimeout(s.ctx, pausedRequestTimeout)
	defer cancel()

	c := chromedp.FromContext(cmdCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(cmdCtx, c.Target)

	var err error
	if s.isBlocked(e.ResourceType) {
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(e.RequestID).Do(execCtx)
	}
	// Errors after the page is gone are expected.
	if err != nil && s.ctx.Err() == nil {
		s.logger.Debug("Failed to resolve paused request.",
			zap.String("url", e.Request.URL),
			zap.String("resource_type", string(e.ResourceType)),
			zap.Error(err))
	}
}

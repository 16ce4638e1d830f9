// internal/analysis/scan.go
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/axe"
)

// ErrInjectionFailed means the engine could not be installed in the page.
var ErrInjectionFailed = errors.New("accessibility engine injection failed")

// Engine supplies the injectable runtime and the promise-valued run expression.
type Engine interface {
	Source() string
	RunScript() string
}

// scanKind records which side of the race produced a scan outcome.
type scanKind string

const (
	scanCompleted   scanKind = "completed"
	scanEngineError scanKind = "engine_error"
	scanTimedOut    scanKind = "timed_out"
	scanCanceled    scanKind = "canceled"
)

type scanOutcome struct {
	kind    scanKind
	results axe.Results
	err     error
}

// settleOnce is a single-assignment result slot: the first settle wins,
// every later value is dropped.
type settleOnce[T any] struct {
	once sync.Once
	ch   chan T
}

func newSettleOnce[T any]() *settleOnce[T] {
	return &settleOnce[T]{ch: make(chan T, 1)}
}

// settle stores v if the slot is empty and reports whether it did.
func (s *settleOnce[T]) settle(v T) (won bool) {
	s.once.Do(func() {
		s.ch <- v
		won = true
	})
	return won
}

func (s *settleOnce[T]) result() <-chan T { return s.ch }

// Scanner injects the engine and runs it against a hard deadline.
type Scanner struct {
	engine        Engine
	deadline      time.Duration
	injectTimeout time.Duration
	logger        *zap.Logger
}

// NewScanner creates a scanner. injectTimeout bounds engine installation.
func NewScanner(engine Engine, deadline, injectTimeout time.Duration, logger *zap.Logger) Scanner {
	return Scanner{engine: engine, deadline: deadline, injectTimeout: injectTimeout, logger: logger}
}

// Inject installs the engine runtime into the current document.
func (s Scanner) Inject(ctx context.Context, sess schemas.BrowserSession) error {
	ictx, cancel := context.WithTimeout(ctx, s.injectTimeout)
	defer cancel()
	if err := sess.Evaluate(ictx, s.engine.Source(), nil); err != nil {
		return fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}
	return nil
}

// Run races the audit against the deadline and returns whichever settles
// first. It always yields a usable outcome: engine failures and timeouts
// carry empty results. The losing evaluation keeps running until the
// session is closed; its result is discarded.
func (s Scanner) Run(ctx context.Context, sess schemas.BrowserSession) scanOutcome {
	slot := newSettleOnce[scanOutcome]()

	go func() {
		var res axe.Results
		out := scanOutcome{kind: scanCompleted}
		if err := sess.EvaluateAsync(ctx, s.engine.RunScript(), &res); err != nil {
			out = scanOutcome{kind: scanEngineError, err: err}
		} else {
			out.results = res
		}
		if !slot.settle(out) {
			s.logger.Debug("Discarding engine outcome that arrived after the race was decided.",
				zap.String("kind", string(out.kind)))
		}
	}()

	timer := time.AfterFunc(s.deadline, func() {
		slot.settle(scanOutcome{kind: scanTimedOut})
	})
	defer timer.Stop()

	select {
	case out := <-slot.result():
		return out
	case <-ctx.Done():
		slot.settle(scanOutcome{kind: scanCanceled, err: ctx.Err()})
		return <-slot.result()
	}
}

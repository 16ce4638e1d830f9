package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/axe"
)

type fakeEngine struct{}

func (fakeEngine) Source() string    { return "window.axe = {};" }
func (fakeEngine) RunScript() string { return "axe.run()" }

// fakeSession scripts browser behaviour for pipeline tests.
type fakeSession struct {
	id string

	identityErr error
	navigate    func(criterion schemas.WaitCriterion) error
	injectErr   error
	scan        func(ctx context.Context, done <-chan struct{}, res *axe.Results) error
	centers     []schemas.Point
	centersErr  error
	moveErr     error
	closeErr    error

	mu        sync.Mutex
	calls     []string
	identity  schemas.Identity
	blocked   []string
	moves     int
	closes    int
	closeOnce sync.Once
	done      chan struct{}
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, done: make(chan struct{})}
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeSession) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) ApplyIdentity(_ context.Context, id schemas.Identity) error {
	s.record("identity")
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
	return s.identityErr
}

func (s *fakeSession) BlockResourceTypes(_ context.Context, types []string) error {
	s.record("block")
	s.mu.Lock()
	s.blocked = types
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Navigate(_ context.Context, _ string, c schemas.WaitCriterion, _ time.Duration) error {
	s.record("navigate:" + string(c))
	if s.navigate == nil {
		return nil
	}
	return s.navigate(c)
}

func (s *fakeSession) Evaluate(context.Context, string, interface{}) error {
	s.record("inject")
	return s.injectErr
}

func (s *fakeSession) EvaluateAsync(ctx context.Context, _ string, res interface{}) error {
	s.record("scan")
	if s.scan == nil {
		return nil
	}
	out, ok := res.(*axe.Results)
	if !ok {
		return fmt.Errorf("unexpected result type %T", res)
	}
	return s.scan(ctx, s.done, out)
}

func (s *fakeSession) MouseMove(context.Context, float64, float64) error {
	s.mu.Lock()
	s.moves++
	s.mu.Unlock()
	return s.moveErr
}

func (s *fakeSession) ElementCenters(context.Context, string) ([]schemas.Point, error) {
	s.record("centers")
	return s.centers, s.centersErr
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return s.closeErr
}

// fakeLauncher hands out sessions built by newSession.
type fakeLauncher struct {
	newSession func(n int) *fakeSession
	launchErr  error

	launched atomic.Int32
	mu       sync.Mutex
	sessions []*fakeSession
}

func (l *fakeLauncher) Launch(context.Context) (schemas.BrowserSession, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	n := int(l.launched.Add(1))
	var s *fakeSession
	if l.newSession != nil {
		s = l.newSession(n)
	} else {
		s = newFakeSession(fmt.Sprintf("session-%d", n))
	}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *fakeLauncher) Sessions() []*fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeSession(nil), l.sessions...)
}

func launcherFor(s *fakeSession) *fakeLauncher {
	return &fakeLauncher{newSession: func(int) *fakeSession { return s }}
}

var errBoom = errors.New("boom")

// resultsWith builds engine output with the given violation and pass counts.
func resultsWith(violations, passes int) axe.Results {
	res := axe.Results{}
	for i := 0; i < violations; i++ {
		res.Violations = append(res.Violations, axe.Violation{
			ID:     fmt.Sprintf("rule-%d", i),
			Impact: "serious",
			Nodes:  []axe.Node{{HTML: fmt.Sprintf("<img id=%d>", i), FailureSummary: "Fix this"}},
		})
	}
	for i := 0; i < passes; i++ {
		res.Passes = append(res.Passes, axe.Rule{ID: fmt.Sprintf("pass-%d", i)})
	}
	return res
}

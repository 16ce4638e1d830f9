// Package axe provides the accessibility engine that is injected into
// audited pages, and the shape of the results it reports back.
package axe

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/internal/config"
)

// maxPayloadSize caps a downloaded engine; axe.min.js is well under 1MiB.
const maxPayloadSize = 8 << 20

const defaultFetchTimeout = 30 * time.Second

// ErrEngineUnavailable is returned when no usable engine payload could be loaded.
var ErrEngineUnavailable = errors.New("accessibility engine unavailable")

//go:embed run.js
var runScript string

// Engine holds the injectable engine runtime.
type Engine struct {
	source string
}

// New wraps an already loaded engine payload.
func New(source string) (*Engine, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrEngineUnavailable)
	}
	return &Engine{source: source}, nil
}

// Source is the script that installs the engine into a page.
func (e *Engine) Source() string { return e.source }

// RunScript is an expression evaluating to a promise of Results. The
// promise never rejects: engine errors resolve to empty Results.
func (e *Engine) RunScript() string { return runScript }

// Results is the reduced engine output returned by RunScript.
type Results struct {
	Violations []Violation `json:"violations"`
	Passes     []Rule      `json:"passes"`
}

// Violation is one failed rule as reported by the engine.
type Violation struct {
	ID          string `json:"id"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	Help        string `json:"help"`
	HelpURL     string `json:"helpUrl"`
	Nodes       []Node `json:"nodes"`
}

// Node is one element a rule failed on.
type Node struct {
	HTML           string `json:"html"`
	FailureSummary string `json:"failureSummary"`
}

// Rule identifies a passed rule.
type Rule struct {
	ID string `json:"id"`
}

// Load reads the engine from cfg.Path, or downloads it from cfg.URL when no
// path is configured.
func Load(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger) (*Engine, error) {
	logger = logger.Named("axe")

	if cfg.Path != "" {
		b, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		logger.Info("Loaded accessibility engine from disk.", zap.String("path", cfg.Path), zap.Int("bytes", len(b)))
		return New(string(b))
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: neither engine.path nor engine.url is set", ErrEngineUnavailable)
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	src, err := download(ctx, &http.Client{Timeout: timeout}, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	logger.Info("Downloaded accessibility engine.", zap.String("url", cfg.URL), zap.Int("bytes", len(src)))
	return New(src)
}

func download(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxPayloadSize {
		return "", fmt.Errorf("payload from %s exceeds %d bytes", url, maxPayloadSize)
	}
	return string(b), nil
}

package axe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/a11yscan/internal/config"
)

const fakeEngine = "window.axe = { run: (ctx, cb) => cb(null, { violations: [], passes: [] }) };"

func TestNew(t *testing.T) {
	_, err := New("   ")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	e, err := New(fakeEngine)
	require.NoError(t, err)
	assert.Equal(t, fakeEngine, e.Source())
}

func TestRunScript(t *testing.T) {
	e, err := New(fakeEngine)
	require.NoError(t, err)

	script := e.RunScript()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(script), "new Promise"))
	assert.Contains(t, script, "axe.run(document")
	// Errors must resolve, never reject.
	assert.NotContains(t, script, "reject")
}

func TestLoad(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	ctx := context.Background()

	t.Run("From path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "axe.min.js")
		require.NoError(t, os.WriteFile(path, []byte(fakeEngine), 0o600))

		e, err := Load(ctx, config.EngineConfig{Path: path, URL: "http://unused.invalid"}, logger)
		require.NoError(t, err)
		assert.Equal(t, fakeEngine, e.Source())
		assert.Equal(t, 1, logs.FilterMessage("Loaded accessibility engine from disk.").Len())
	})

	t.Run("Missing path", func(t *testing.T) {
		_, err := Load(ctx, config.EngineConfig{Path: filepath.Join(t.TempDir(), "nope.js")}, logger)
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})

	t.Run("From URL", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(fakeEngine))
		}))
		defer srv.Close()

		e, err := Load(ctx, config.EngineConfig{URL: srv.URL, FetchTimeout: time.Second}, logger)
		require.NoError(t, err)
		assert.Equal(t, fakeEngine, e.Source())
	})

	t.Run("Bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := Load(ctx, config.EngineConfig{URL: srv.URL}, logger)
		assert.ErrorIs(t, err, ErrEngineUnavailable)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("Empty body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		_, err := Load(ctx, config.EngineConfig{URL: srv.URL}, logger)
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})

	t.Run("Nothing configured", func(t *testing.T) {
		_, err := Load(ctx, config.EngineConfig{}, logger)
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})
}

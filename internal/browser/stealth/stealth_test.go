package stealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

func TestScript(t *testing.T) {
	p := schemas.Persona{
		UserAgent: "Mozilla/5.0 (A11yTest/1.0)",
		Platform:  "TestOS",
		Languages: []string{"de-DE", "de"},
		Width:     1280,
		Height:    720,
	}
	script, err := Script(p)
	require.NoError(t, err)

	assert.NotContains(t, script, personaPlaceholder)
	assert.Contains(t, script, `"platform":"TestOS"`)
	assert.Contains(t, script, `"languages":["de-DE","de"]`)
	assert.Contains(t, script, "webdriver")
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", AcceptLanguage([]string{"en-US", "en"}))
	assert.Equal(t, "fr", AcceptLanguage([]string{"fr"}))
	assert.Equal(t, "", AcceptLanguage(nil))
}

func TestApply(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	t.Run("with languages", func(t *testing.T) {
		tasks := Apply(schemas.PersonaFor(schemas.Identity{UserAgent: "UA"}), logger)
		assert.Len(t, tasks, 2)
	})

	t.Run("without languages skips header override", func(t *testing.T) {
		tasks := Apply(schemas.Persona{Platform: "Win32"}, logger)
		assert.Len(t, tasks, 1)
	})

	require.Equal(t, 2, logs.FilterMessage("Applying stealth persona.").Len())
}

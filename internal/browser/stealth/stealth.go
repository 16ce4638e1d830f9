// Package stealth masks the most common headless-browser tells. It is best
// effort: it lowers the chance of being served a bot wall, nothing more.
package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

//go:embed evasions.js
var evasionsTemplate string

const personaPlaceholder = "__PERSONA__"

// Script returns the evasion script with the persona baked in.
func Script(p schemas.Persona) (string, error) {
	encoded, err := jsoniter.MarshalToString(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return strings.Replace(evasionsTemplate, personaPlaceholder, encoded, 1), nil
}

// AcceptLanguage builds the header value matching the persona's languages.
func AcceptLanguage(languages []string) string {
	parts := make([]string, 0, len(languages))
	for i, lang := range languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Apply installs the evasion script on every new document and aligns the
// Accept-Language header with the persona.
func Apply(p schemas.Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying stealth persona.",
		zap.String("platform", p.Platform),
		zap.Strings("languages", p.Languages),
	)

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := Script(p)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}
	if len(p.Languages) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": AcceptLanguage(p.Languages),
		}))
	}
	return tasks
}

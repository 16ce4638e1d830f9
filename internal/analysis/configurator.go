package analysis

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

// Profile is the randomized browsing context of one analysis.
type Profile struct {
	Identity             schemas.Identity
	BlockedResourceTypes []string
}

// Configurator draws session profiles. It holds no state between draws.
type Configurator struct {
	userAgents []string
	viewport   config.ViewportConfig
	blocked    []string
}

// NewConfigurator captures the identity pool and bounds from cfg.
func NewConfigurator(cfg config.AnalysisConfig) Configurator {
	uas := cfg.UserAgents
	if len(uas) == 0 {
		uas = config.DefaultUserAgents
	}
	return Configurator{
		userAgents: append([]string(nil), uas...),
		viewport:   cfg.Viewport,
		blocked:    append([]string(nil), cfg.BlockedResourceTypes...),
	}
}

// Profile picks a user agent from the pool and a viewport within bounds.
func (c Configurator) Profile(rng *rand.Rand) Profile {
	return Profile{
		Identity: schemas.Identity{
			UserAgent: c.userAgents[rng.Intn(len(c.userAgents))],
			Viewport: schemas.Viewport{
				Width:  randomBetween(rng, c.viewport.MinWidth, c.viewport.MaxWidth),
				Height: randomBetween(rng, c.viewport.MinHeight, c.viewport.MaxHeight),
			},
		},
		BlockedResourceTypes: append([]string(nil), c.blocked...),
	}
}

// Apply configures sess with p.
func (c Configurator) Apply(ctx context.Context, sess schemas.BrowserSession, p Profile) error {
	if err := sess.ApplyIdentity(ctx, p.Identity); err != nil {
		return err
	}
	if len(p.BlockedResourceTypes) == 0 {
		return nil
	}
	if err := sess.BlockResourceTypes(ctx, p.BlockedResourceTypes); err != nil {
		return fmt.Errorf("failed to install resource filter: %w", err)
	}
	return nil
}

// randomBetween draws uniformly from [min, max].
func randomBetween(rng *rand.Rand, min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + rng.Int63n(max-min+1)
}

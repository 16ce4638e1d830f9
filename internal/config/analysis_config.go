// File: internal/config/analysis_config.go
// AnalysisConfig carries every tunable of a single page audit: the identity
// pool, viewport bounds, the blocked resource classes, the ordered navigation
// strategies, humanization pauses and the scan deadline. The pipeline receives
// it by value at construction time and never consults the environment itself.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

// AnalysisConfig configures the analysis pipeline.
type AnalysisConfig struct {
	UserAgents           []string             `mapstructure:"user_agents" yaml:"user_agents"`
	Viewport             ViewportConfig       `mapstructure:"viewport" yaml:"viewport"`
	BlockedResourceTypes []string             `mapstructure:"blocked_resource_types" yaml:"blocked_resource_types"`
	Navigation           []NavigationStrategy `mapstructure:"navigation" yaml:"navigation"`
	// DefaultTimeout bounds every browser operation that has no dedicated timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	Delay          DelayConfig   `mapstructure:"delay" yaml:"delay"`
	Humanize       bool          `mapstructure:"humanize" yaml:"humanize"`
	ScanDeadline   time.Duration `mapstructure:"scan_deadline" yaml:"scan_deadline"`
}

// ViewportConfig bounds the randomized window size, inclusive.
type ViewportConfig struct {
	MinWidth  int64 `mapstructure:"min_width" yaml:"min_width"`
	MaxWidth  int64 `mapstructure:"max_width" yaml:"max_width"`
	MinHeight int64 `mapstructure:"min_height" yaml:"min_height"`
	MaxHeight int64 `mapstructure:"max_height" yaml:"max_height"`
}

// NavigationStrategy pairs a load-completion criterion with its timeout.
type NavigationStrategy struct {
	Criterion string        `mapstructure:"criterion" yaml:"criterion"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DelayConfig bounds the randomized pause around navigation.
type DelayConfig struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// DefaultUserAgents is the identity pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:129.0) Gecko/20100101 Firefox/129.0",
}

func setAnalysisDefaults(v *viper.Viper) {
	v.SetDefault("analysis.user_agents", DefaultUserAgents)
	v.SetDefault("analysis.viewport.min_width", 1200)
	v.SetDefault("analysis.viewport.max_width", 1920)
	v.SetDefault("analysis.viewport.min_height", 700)
	v.SetDefault("analysis.viewport.max_height", 1080)
	v.SetDefault("analysis.blocked_resource_types", []string{"image", "stylesheet", "font"})
	v.SetDefault("analysis.navigation", []map[string]interface{}{
		{"criterion": string(schemas.WaitDOMContentLoaded), "timeout": "10s"},
		{"criterion": string(schemas.WaitLoad), "timeout": "10s"},
		{"criterion": string(schemas.WaitNetworkIdle), "timeout": "5s"},
	})
	v.SetDefault("analysis.default_timeout", "10s")
	v.SetDefault("analysis.delay.min", "200ms")
	v.SetDefault("analysis.delay.max", "1200ms")
	v.SetDefault("analysis.humanize", true)
	v.SetDefault("analysis.scan_deadline", "8s")
}

// Validate checks the analysis settings.
func (a *AnalysisConfig) Validate() error {
	if len(a.UserAgents) == 0 {
		return fmt.Errorf("user_agents must not be empty")
	}
	vp := a.Viewport
	if vp.MinWidth <= 0 || vp.MinHeight <= 0 {
		return fmt.Errorf("viewport minimums must be positive")
	}
	if vp.MinWidth > vp.MaxWidth || vp.MinHeight > vp.MaxHeight {
		return fmt.Errorf("viewport minimums must not exceed maximums")
	}
	if len(a.Navigation) == 0 {
		return fmt.Errorf("navigation must list at least one strategy")
	}
	for i, s := range a.Navigation {
		if _, err := schemas.ParseWaitCriterion(s.Criterion); err != nil {
			return fmt.Errorf("navigation[%d]: %w", i, err)
		}
		if s.Timeout <= 0 {
			return fmt.Errorf("navigation[%d]: timeout must be a positive duration", i)
		}
	}
	if a.Delay.Min < 0 || a.Delay.Min > a.Delay.Max {
		return fmt.Errorf("delay.min must be between 0 and delay.max")
	}
	if a.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be a positive duration")
	}
	if a.ScanDeadline <= 0 {
		return fmt.Errorf("scan_deadline must be a positive duration")
	}
	return nil
}

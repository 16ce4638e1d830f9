package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

// ErrNavigationExhausted means no navigation strategy completed.
var ErrNavigationExhausted = errors.New("all navigation strategies failed")

// Strategy is one load-completion criterion and how long to wait for it.
type Strategy struct {
	Criterion schemas.WaitCriterion
	Timeout   time.Duration
}

// DefaultStrategies is the usual fallback chain, strongest guarantee last.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Criterion: schemas.WaitDOMContentLoaded, Timeout: 10 * time.Second},
		{Criterion: schemas.WaitLoad, Timeout: 10 * time.Second},
		{Criterion: schemas.WaitNetworkIdle, Timeout: 5 * time.Second},
	}
}

// StrategiesFrom converts configured strategies, keeping their order.
func StrategiesFrom(cfg []config.NavigationStrategy) ([]Strategy, error) {
	out := make([]Strategy, 0, len(cfg))
	for i, s := range cfg {
		c, err := schemas.ParseWaitCriterion(s.Criterion)
		if err != nil {
			return nil, fmt.Errorf("navigation strategy %d: %w", i, err)
		}
		if s.Timeout <= 0 {
			return nil, fmt.Errorf("navigation strategy %d: timeout must be positive", i)
		}
		out = append(out, Strategy{Criterion: c, Timeout: s.Timeout})
	}
	if len(out) == 0 {
		return nil, errors.New("at least one navigation strategy is required")
	}
	return out, nil
}

// Navigator tries strategies strictly in order and stops at the first success.
type Navigator struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewNavigator creates a navigator over strategies.
func NewNavigator(strategies []Strategy, logger *zap.Logger) Navigator {
	return Navigator{strategies: strategies, logger: logger}
}

// Navigate loads url and returns the strategy that succeeded. The error
// wraps ErrNavigationExhausted and every attempt's failure.
func (n Navigator) Navigate(ctx context.Context, sess schemas.BrowserSession, url string) (Strategy, error) {
	errs := make([]error, 0, len(n.strategies))
	for i, s := range n.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := sess.Navigate(ctx, url, s.Criterion, s.Timeout)
		if err == nil {
			n.logger.Debug("Navigation succeeded.",
				zap.String("criterion", string(s.Criterion)),
				zap.Int("attempt", i+1))
			return s, nil
		}
		n.logger.Warn("Navigation strategy failed.",
			zap.String("criterion", string(s.Criterion)),
			zap.Duration("timeout", s.Timeout),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Criterion, err))
	}
	return Strategy{}, fmt.Errorf("%w: %w", ErrNavigationExhausted, errors.Join(errs...))
}

// internal/humanoid/pause.go
package humanoid

import (
	"context"
	"math/rand"
	"time"
)

// RandomDuration draws uniformly from [min, max]. A degenerate range returns min.
func RandomDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}

// Sleep waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RandomPoint draws a point uniformly from the rectangle [min, max].
func RandomPoint(rng *rand.Rand, min, max Vector2D) Vector2D {
	return Vector2D{
		X: min.X + rng.Float64()*(max.X-min.X),
		Y: min.Y + rng.Float64()*(max.Y-min.Y),
	}
}

// internal/humanoid/movement.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
)

// maxJitter is the largest sideways deviation, in pixels, from the straight path.
const maxJitter = 2.0

// Mouse is the single browser capability the cursor needs.
type Mouse interface {
	MouseMove(ctx context.Context, x, y float64) error
}

// Cursor remembers where the pointer is so each move starts where the last ended.
type Cursor struct {
	mouse Mouse
	rng   *rand.Rand
	pos   Vector2D
}

// NewCursor places a cursor at start. rng may be nil for jitter-free paths.
func NewCursor(mouse Mouse, rng *rand.Rand, start Vector2D) *Cursor {
	return &Cursor{mouse: mouse, rng: rng, pos: start}
}

// Position returns the last dispatched pointer position.
func (c *Cursor) Position() Vector2D {
	return c.pos
}

// MoveTo glides the pointer to target in the given number of mouse events.
func (c *Cursor) MoveTo(ctx context.Context, target Vector2D, steps int) error {
	for _, p := range Path(c.pos, target, steps, c.rng) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.mouse.MouseMove(ctx, p.X, p.Y); err != nil {
			return err
		}
		c.pos = p
	}
	return nil
}

// Path returns steps points from just after from up to exactly to. Progress
// follows a minimum-jerk profile, slow at both ends, and intermediate points
// wander sideways by up to maxJitter pixels.
func Path(from, to Vector2D, steps int, rng *rand.Rand) []Vector2D {
	if steps < 1 {
		steps = 1
	}
	normal := to.Sub(from).Normalize().Perp()
	path := make([]Vector2D, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := from.Lerp(to, minimumJerk(t))
		if rng != nil && i < steps {
			// Zero at both endpoints.
			envelope := math.Sin(math.Pi * t)
			p = p.Add(normal.Mul((rng.Float64()*2 - 1) * maxJitter * envelope))
		}
		path[i-1] = p
	}
	path[steps-1] = to
	return path
}

func minimumJerk(t float64) float64 {
	return t * t * t * (10 - 15*t + 6*t*t)
}

// internal/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMouse struct {
	mock.Mock
}

func (m *mockMouse) MouseMove(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func TestPath(t *testing.T) {
	from, to := Vector2D{X: 0, Y: 0}, Vector2D{X: 300, Y: 100}

	t.Run("Ends exactly on target", func(t *testing.T) {
		path := Path(from, to, 10, rand.New(rand.NewSource(1)))
		require.Len(t, path, 10)
		assert.Equal(t, to, path[len(path)-1])
	})

	t.Run("Progress is monotonic without jitter", func(t *testing.T) {
		path := Path(from, to, 15, nil)
		prev := from.Dist(to)
		for _, p := range path {
			d := p.Dist(to)
			assert.LessOrEqual(t, d, prev)
			prev = d
		}
	})

	t.Run("Jitter stays bounded", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		straight := Path(from, to, 20, nil)
		wobbly := Path(from, to, 20, rng)
		for i := range straight {
			assert.LessOrEqual(t, straight[i].Dist(wobbly[i]), maxJitter+1e-9)
		}
	})

	t.Run("Zero steps still reaches target", func(t *testing.T) {
		assert.Equal(t, []Vector2D{to}, Path(from, to, 0, nil))
	})
}

func TestCursorMoveTo(t *testing.T) {
	t.Run("Dispatches one event per step and tracks position", func(t *testing.T) {
		m := new(mockMouse)
		m.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		c := NewCursor(m, rand.New(rand.NewSource(7)), Vector2D{})
		target := Vector2D{X: 120, Y: 240}
		require.NoError(t, c.MoveTo(context.Background(), target, 10))

		m.AssertNumberOfCalls(t, "MouseMove", 10)
		m.AssertCalled(t, "MouseMove", mock.Anything, 120.0, 240.0)
		assert.Equal(t, target, c.Position())
	})

	t.Run("Stops at the first failure", func(t *testing.T) {
		m := new(mockMouse)
		m.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("target closed")).Once()

		c := NewCursor(m, nil, Vector2D{})
		err := c.MoveTo(context.Background(), Vector2D{X: 10, Y: 10}, 5)
		assert.EqualError(t, err, "target closed")
		m.AssertNumberOfCalls(t, "MouseMove", 1)
		assert.Equal(t, Vector2D{}, c.Position())
	})

	t.Run("Honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m := new(mockMouse)
		c := NewCursor(m, nil, Vector2D{})
		assert.ErrorIs(t, c.MoveTo(ctx, Vector2D{X: 1, Y: 1}, 3), context.Canceled)
		m.AssertNotCalled(t, "MouseMove", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRandomDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		d := RandomDuration(rng, 200*time.Millisecond, 1200*time.Millisecond)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
	assert.Equal(t, time.Second, RandomDuration(rng, time.Second, time.Second))
	assert.Equal(t, time.Second, RandomDuration(rng, time.Second, time.Millisecond))
}

func TestSleep(t *testing.T) {
	t.Run("Sleeps for the duration", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("Returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		start := time.Now()
		err := Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Zero sleep reports cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, Sleep(ctx, 0))
		cancel()
		assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
	})
}

func TestRandomPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	lo, hi := Vector2D{X: 100, Y: 100}, Vector2D{X: 400, Y: 400}
	for i := 0; i < 100; i++ {
		p := RandomPoint(rng, lo, hi)
		assert.True(t, p.X >= 100 && p.X <= 400 && p.Y >= 100 && p.Y <= 400)
	}
}

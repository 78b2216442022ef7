package quadtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	offset := Vector3f{0, 0, 0}
	scale := Vector3f{1, 1, 1}

	tests := []struct {
		name     string
		box      Box
		expected GridRect
	}{
		{
			name:     "unit box on grid lines",
			box:      NewBox(Vector3f{0, 0, 0}, Vector3f{1, 1, 1}),
			expected: GridRect{0, 1, 0, 1, 0, 1},
		},
		{
			name:     "box inside the grid",
			box:      NewBox(Vector3f{10.5, 2, 3}, Vector3f{20, 4, 3.5}),
			expected: GridRect{10, 20, 2, 4, 3, 4},
		},
		{
			name:     "box larger than the grid",
			box:      NewBox(Vector3f{-10, -5, -10}, Vector3f{300, 100, 300}),
			expected: GridRect{0, 256, 0, 32, 0, 256},
		},
		{
			name:     "box beyond the max corner",
			box:      NewBox(Vector3f{500, 40, 500}, Vector3f{600, 50, 600}),
			expected: GridRect{255, 256, 31, 32, 255, 256},
		},
		{
			name:     "box below the min corner",
			box:      NewBox(Vector3f{-20, -20, -20}, Vector3f{-10, -10, -10}),
			expected: GridRect{0, 1, 0, 1, 0, 1},
		},
		{
			name:     "empty box",
			box:      NewBox(Vector3f{5, 5, 5}, Vector3f{5, 5, 5}),
			expected: GridRect{5, 6, 5, 6, 5, 6},
		},
		{
			name:     "y and z clamp with their own range",
			box:      NewBox(Vector3f{0, 100, 100}, Vector3f{1, 101, 101}),
			expected: GridRect{0, 1, 31, 32, 100, 101},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, Convert(test.box, offset, scale))
		})
	}
}

func TestConvertWithOffsetAndScale(t *testing.T) {
	world := NewBox(Vector3f{-512, -8, -512}, Vector3f{512, 8, 512})
	offset := Mul(world.Min, -1)
	scale := Vector3f{256.0 / 1024, 32.0 / 16, 256.0 / 1024}

	r := Convert(NewBox(Vector3f{-512, -8, -512}, Vector3f{-508, -7.5, -508}), offset, scale)
	require.Equal(t, GridRect{0, 1, 0, 1, 0, 1}, r)

	r = Convert(world, offset, scale)
	require.Equal(t, GridRect{0, 256, 0, 32, 0, 256}, r)
}

func TestConvertIsWellFormed(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	offset := Vector3f{0, 0, 0}
	scale := Vector3f{1, 1, 1}

	for i := 0; i < 10000; i++ {
		min := Vector3f{
			rnd.Float32() * 256,
			rnd.Float32() * 32,
			rnd.Float32() * 256,
		}
		max := Vector3f{
			min.X + rnd.Float32()*(256-min.X),
			min.Y + rnd.Float32()*(32-min.Y),
			min.Z + rnd.Float32()*(256-min.Z),
		}

		r := Convert(NewBox(min, max), offset, scale)
		require.Less(t, r.X0, r.X1)
		require.Less(t, r.Y0, r.Y1)
		require.Less(t, r.Z0, r.Z1)
		require.GreaterOrEqual(t, r.Width(), 1)
		require.GreaterOrEqual(t, r.Height(), 1)
		require.GreaterOrEqual(t, r.Depth(), 1)

		require.True(t, r.X0 >= 0 && r.X0 <= 255)
		require.True(t, r.Y0 >= 0 && r.Y0 <= 31)
		require.True(t, r.Z0 >= 0 && r.Z0 <= 255)
		require.True(t, r.X1 <= 256)
		require.True(t, r.Y1 <= 32)
		require.True(t, r.Z1 <= 256)
	}
}

func TestGridRectYMask(t *testing.T) {
	tests := []struct {
		name     string
		rect     GridRect
		expected uint32
	}{
		{
			name:     "lowest band",
			rect:     GridRect{Y0: 0, Y1: 1},
			expected: 0x1,
		},
		{
			name:     "middle bands",
			rect:     GridRect{Y0: 4, Y1: 8},
			expected: 0xf0,
		},
		{
			name:     "highest band",
			rect:     GridRect{Y0: 31, Y1: 32},
			expected: 0x80000000,
		},
		{
			name:     "full height",
			rect:     GridRect{Y0: 0, Y1: 32},
			expected: 0xffffffff,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.rect.YMask())
		})
	}
}

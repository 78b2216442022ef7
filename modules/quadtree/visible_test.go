package quadtree

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestVisibleSet(t *testing.T) {
	t.Run("growable", func(t *testing.T) {
		s := NewVisibleSet(0)
		for i := 0; i < 100; i++ {
			require.NoError(t, s.append(EntityID(i)))
		}
		require.Equal(t, 100, s.Len())
		require.True(t, s.Contains(42))
		require.False(t, s.Contains(100))

		s.Reset()
		require.Zero(t, s.Len())
		require.False(t, s.Contains(42))
	})

	t.Run("bounded", func(t *testing.T) {
		s := NewVisibleSet(2)
		require.Equal(t, 2, s.Capacity())
		require.NoError(t, s.append(1))
		require.NoError(t, s.append(2))

		err := s.append(3)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeCapacityExceeded))
		require.Equal(t, []EntityID{1, 2}, s.IDs())
	})

	t.Run("negative capacity is growable", func(t *testing.T) {
		s := NewVisibleSet(-1)
		require.Zero(t, s.Capacity())
		require.NoError(t, s.append(1))
	})
}

package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"DISABLE_MOTION", " disable_mask_pruning ", ""})

	t.Run("run if enabled", func(t *testing.T) {
		var runMotion bool
		f.IfSet(FlagDisableMotion, func() {
			runMotion = true
		})
		require.True(t, runMotion)

		var runStream bool
		f.IfSet(FlagDisableVisibilityStream, func() {
			runStream = true
		})
		require.False(t, runStream)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runMotion bool
		f.IfNotSet(FlagDisableMotion, func() {
			runMotion = true
		})
		require.False(t, runMotion)

		var runStream bool
		f.IfNotSet(FlagDisableVisibilityStream, func() {
			runStream = true
		})
		require.True(t, runStream)
	})

	t.Run("normalized names", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableMaskPruning))
		require.Len(t, f, 2)
		require.Equal(t, []string{"DISABLE_MASK_PRUNING", "DISABLE_MOTION"}, f.Strings())
	})
}

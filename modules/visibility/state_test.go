package visibility

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateResults(t *testing.T) {
	var s State

	_, ok := s.Result(1)
	require.False(t, ok)
	require.Empty(t, s.Results())

	s.SetResult(Result{CameraID: 2, Frame: 1})
	s.SetResult(Result{CameraID: 1, Frame: 1, EntityIDs: []uint32{3}})
	s.SetResult(Result{CameraID: 1, Frame: 2, EntityIDs: []uint32{3, 4}})

	r, ok := s.Result(1)
	require.True(t, ok)
	require.Equal(t, uint64(2), r.Frame)
	require.Equal(t, []uint32{3, 4}, r.EntityIDs)

	results := s.Results()
	require.Len(t, results, 2)
	require.Equal(t, uint32(1), results[0].CameraID)
	require.Equal(t, uint32(2), results[1].CameraID)

	s.RemoveResult(2)
	require.Len(t, s.Results(), 1)
}

func TestStateSubscribe(t *testing.T) {
	var s State

	var a, b []uint64
	unsubscribeA := s.Subscribe(func(r Result) {
		a = append(a, r.Frame)
	})
	unsubscribeB := s.Subscribe(func(r Result) {
		b = append(b, r.Frame)
	})
	require.Equal(t, 2, s.SubscriberCount())

	s.Notify(Result{Frame: 1})
	unsubscribeA()
	unsubscribeA()
	require.Equal(t, 1, s.SubscriberCount())

	s.Notify(Result{Frame: 2})
	unsubscribeB()
	s.Notify(Result{Frame: 3})

	require.Equal(t, []uint64{1}, a)
	require.Equal(t, []uint64{1, 2}, b)
	require.Zero(t, s.SubscriberCount())
}

func TestStateUnsubscribeWhileNotified(t *testing.T) {
	var s State

	calls := 0
	var unsubscribe func()
	unsubscribe = s.Subscribe(func(r Result) {
		calls++
		unsubscribe()
	})

	s.Notify(Result{Frame: 1})
	s.Notify(Result{Frame: 2})
	require.Equal(t, 1, calls)
}

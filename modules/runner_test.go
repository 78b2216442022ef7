package modules

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/stretchr/testify/require"
)

var testWorld = quadtree.NewBox(quadtree.Vector3f{}, quadtree.Vector3f{X: 64, Y: 16, Z: 64})

type fakeModule struct {
	name      string
	updateErr error
	queryErr  error

	mutex   sync.Mutex
	scene   *models.Scene
	updates int
	queries []uint64
	closed  int
}

func (m *fakeModule) Name() string {
	return m.name
}

func (m *fakeModule) Init(s *models.Scene) {
	m.scene = s
}

func (m *fakeModule) HandleUpdate(ctx context.Context, entities []*models.Entity) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.updates++
	for _, e := range entities {
		pose := e.Pose()
		pose.Position.X++
		e.SetPose(pose)
	}
	return m.updateErr
}

func (m *fakeModule) HandleQuery(ctx context.Context, frame uint64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.queries = append(m.queries, frame)
	return m.queryErr
}

func (m *fakeModule) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.closed++
}

func (m *fakeModule) frames() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.queries)
}

func newTestScene(t *testing.T) *models.Scene {
	scene := models.NewScene(1, "runner", testWorld, 4)
	t.Cleanup(scene.Close)

	_, err := scene.AddEntity("", quadtree.NewBox(
		quadtree.Vector3f{},
		quadtree.Vector3f{X: 1, Y: 1, Z: 1},
	), quadtree.Pose{
		Position: quadtree.Vector3f{X: 10, Z: 10},
		Rotation: quadtree.IdentityQuaternion,
	})
	require.NoError(t, err)
	return scene
}

func captureLogs(t *testing.T) *bytes.Buffer {
	var mutex sync.Mutex
	var b bytes.Buffer

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		fmt.Fprint(&b, e)
	})
	return &b
}

func TestRunnerFrame(t *testing.T) {
	t.Run("runs every module", func(t *testing.T) {
		scene := newTestScene(t)
		a := &fakeModule{name: "a"}
		b := &fakeModule{name: "b"}
		r := &Runner{
			Scene:   scene,
			Modules: []Module{a, b},
		}

		require.NoError(t, r.Frame(context.Background()))
		require.NoError(t, r.Frame(context.Background()))

		require.Same(t, scene, a.scene)
		require.Equal(t, 2, a.updates)
		require.Equal(t, 2, b.updates)
		require.Equal(t, []uint64{1, 2}, a.queries)
		require.Equal(t, []uint64{1, 2}, b.queries)
		require.Equal(t, float32(14), scene.Entities()[0].Pose().Position.X)
		require.Equal(t, float32(14), scene.Entities()[0].WorldBounds().Min.X)
		require.Equal(t, defaultFrameDuration, r.FrameDuration)
		require.Equal(t, defaultSummaryInterval, r.SummaryInterval)
	})

	t.Run("update error stops the update pass", func(t *testing.T) {
		logBuf := captureLogs(t)
		scene := newTestScene(t)
		a := &fakeModule{
			name:      "a",
			updateErr: errors.New("boom").WithType("fake_error"),
		}
		b := &fakeModule{name: "b"}
		r := &Runner{
			Scene:   scene,
			Modules: []Module{a, b},
		}

		err := r.Frame(context.Background())
		require.Error(t, err)
		require.True(t, errors.IsType(err, "fake_error"))
		require.Contains(t, logBuf.String(), "module update failed")
		require.Equal(t, 1, a.updates)
		require.Zero(t, b.updates)
		require.Equal(t, []uint64{1}, b.queries)
		require.Equal(t, 1, r.counter["update_errors"])
	})

	t.Run("query error does not stop the query pass", func(t *testing.T) {
		captureLogs(t)
		scene := newTestScene(t)
		a := &fakeModule{
			name:     "a",
			queryErr: errors.New("boom"),
		}
		b := &fakeModule{name: "b"}
		r := &Runner{
			Scene:   scene,
			Modules: []Module{a, b},
		}

		err := r.Frame(context.Background())
		require.Error(t, err)
		require.Equal(t, []uint64{1}, b.queries)
		require.Equal(t, 1, r.counter["query_errors"])
		require.Equal(t, 1, r.counter["frames"])
	})
}

func TestRunnerRun(t *testing.T) {
	b := captureLogs(t)
	scene := newTestScene(t)
	m := &fakeModule{name: "fake"}
	r := &Runner{
		Scene:           scene,
		Modules:         []Module{m},
		FrameDuration:   time.Millisecond,
		SummaryInterval: 5 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- r.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return m.frames() >= 5
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	r.Close()
	require.Equal(t, 1, m.closed)
	require.Contains(t, b.String(), "frame runner started")
}

func TestRunnerLogSummary(t *testing.T) {
	b := captureLogs(t)
	r := &Runner{
		Scene:   newTestScene(t),
		Modules: []Module{&fakeModule{name: "fake"}},
	}

	r.logSummary()
	require.Empty(t, b.String())

	require.NoError(t, r.Frame(context.Background()))
	r.logSummary()
	require.Contains(t, b.String(), "frame summary")
	require.Contains(t, b.String(), `"frames":1`)
	require.Empty(t, r.counter)
}

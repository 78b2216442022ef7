package models

import (
	"context"
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/stretchr/testify/require"
)

var testWorld = quadtree.NewBox(quadtree.Vector3f{}, quadtree.Vector3f{X: 256, Y: 32, Z: 256})

func unitBox() quadtree.Box {
	return quadtree.NewBox(quadtree.Vector3f{X: -0.5, Y: 0, Z: -0.5}, quadtree.Vector3f{X: 0.5, Y: 1, Z: 0.5})
}

func poseAt(x, y, z float32) quadtree.Pose {
	return quadtree.Pose{
		Position: quadtree.Vector3f{X: x, Y: y, Z: z},
		Rotation: quadtree.IdentityQuaternion,
	}
}

func TestNewScene(t *testing.T) {
	scene := NewScene(42, "", testWorld, 6)
	defer scene.Close()

	require.Equal(t, uint32(42), scene.ID)
	require.Equal(t, "default", scene.Name)
	require.NotEmpty(t, scene.SceneUUID)
	require.Equal(t, testWorld, scene.World())
	require.Zero(t, scene.Frame())
}

func TestSceneAddEntity(t *testing.T) {
	scene := NewScene(1, "add", testWorld, 6)
	defer scene.Close()

	e, err := scene.AddEntity("crate", unitBox(), poseAt(10, 0, 20))
	require.NoError(t, err)
	require.Equal(t, uint32(1), e.ID)
	require.Equal(t, "crate", e.Name)
	require.True(t, e.Object().Attached())
	require.Equal(t,
		quadtree.NewBox(quadtree.Vector3f{X: 9.5, Y: 0, Z: 19.5}, quadtree.Vector3f{X: 10.5, Y: 1, Z: 20.5}),
		e.WorldBounds(),
	)

	got, ok := scene.EntityByID(e.ID)
	require.True(t, ok)
	require.Same(t, e, got)
	require.Equal(t, 1, scene.EntityCount())
}

func TestSceneAddEntityOverCapacity(t *testing.T) {
	scene := NewScene(1, "capacity", testWorld, 6, quadtree.WithMaxObjects(1))
	defer scene.Close()

	_, err := scene.AddEntity("", unitBox(), poseAt(10, 0, 10))
	require.NoError(t, err)

	_, err = scene.AddEntity("", unitBox(), poseAt(20, 0, 20))
	require.Error(t, err)
	require.True(t, errors.IsType(err, quadtree.ErrTypeCapacityExceeded))
	require.Equal(t, 1, scene.EntityCount())

	require.NoError(t, scene.RemoveEntity(1))
	e, err := scene.AddEntity("", unitBox(), poseAt(20, 0, 20))
	require.NoError(t, err)
	require.Equal(t, uint32(1), e.ID)
}

func TestSceneRemoveEntity(t *testing.T) {
	scene := NewScene(1, "remove", testWorld, 6)
	defer scene.Close()

	e, err := scene.AddEntity("", unitBox(), poseAt(10, 0, 10))
	require.NoError(t, err)

	require.NoError(t, scene.RemoveEntity(e.ID))
	require.False(t, e.Object().Attached())
	require.Zero(t, scene.EntityCount())

	err = scene.RemoveEntity(e.ID)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeEntityNotFound))
}

func TestSceneEntitiesAreSorted(t *testing.T) {
	scene := NewScene(1, "sorted", testWorld, 6)
	defer scene.Close()

	for i := 0; i < 20; i++ {
		_, err := scene.AddEntity("", unitBox(), poseAt(float32(i*10), 0, 10))
		require.NoError(t, err)
	}

	entities := scene.Entities()
	require.Len(t, entities, 20)
	for i, e := range entities {
		require.Equal(t, uint32(i+1), e.ID)
	}
}

func TestSceneCameras(t *testing.T) {
	scene := NewScene(1, "cameras", testWorld, 6)
	defer scene.Close()

	a := &Camera{Name: "a"}
	b := &Camera{Name: "b"}
	require.Equal(t, uint32(1), scene.AddCamera(a))
	require.Equal(t, uint32(2), scene.AddCamera(b))
	require.Equal(t, []*Camera{a, b}, scene.Cameras())

	require.NoError(t, scene.RemoveCamera(a.ID))
	require.Equal(t, []*Camera{b}, scene.Cameras())

	err := scene.RemoveCamera(a.ID)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeCameraNotFound))
}

func TestSceneStep(t *testing.T) {
	scene := NewScene(1, "step", testWorld, 8)
	defer scene.Close()

	moving, err := scene.AddEntity("moving", unitBox(), poseAt(10, 0, 10))
	require.NoError(t, err)
	still, err := scene.AddEntity("still", unitBox(), poseAt(200, 0, 200))
	require.NoError(t, err)

	from := moving.Object().Cell()

	err = scene.Step(context.Background(), func(ctx context.Context, entities []*Entity) error {
		require.Len(t, entities, 2)
		for _, e := range entities {
			require.False(t, e.Object().HasNewWorldBounds())
		}
		moving.SetPose(poseAt(100, 4, 100))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), scene.Frame())

	require.True(t, moving.Object().HasNewWorldBounds())
	require.False(t, still.Object().HasNewWorldBounds())
	require.NotSame(t, from, moving.Object().Cell())

	scene.ReadIndex(func(idx *quadtree.Index) {
		require.NoError(t, idx.CheckMasks())
		require.Equal(t, 2, idx.Len())
	})
}

func TestSceneStepMoveError(t *testing.T) {
	scene := NewScene(1, "step-error", testWorld, 4)
	defer scene.Close()

	err := scene.Step(context.Background(), func(ctx context.Context, entities []*Entity) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, uint64(1), scene.Frame())
}

func TestSceneQuery(t *testing.T) {
	scene := NewScene(1, "query", testWorld, 8)
	defer scene.Close()

	ahead, err := scene.AddEntity("ahead", unitBox(), poseAt(128, 4, 100))
	require.NoError(t, err)
	_, err = scene.AddEntity("behind", unitBox(), poseAt(128, 4, 160))
	require.NoError(t, err)
	_, err = scene.AddEntity("aside", unitBox(), poseAt(20, 4, 120))
	require.NoError(t, err)

	camera := &Camera{
		Position: quadtree.Vector3f{X: 128, Y: 4, Z: 128},
		FovY:     math.Pi / 3,
		Aspect:   1,
		Near:     0.1,
		Far:      100,
	}
	scene.AddCamera(camera)

	out := quadtree.NewVisibleSet(0)
	require.NoError(t, scene.Query(camera, out))
	require.Equal(t, []quadtree.EntityID{quadtree.EntityID(ahead.ID)}, out.IDs())
}

func TestSceneClose(t *testing.T) {
	scene := NewScene(1, "close", testWorld, 4)
	e, err := scene.AddEntity("", unitBox(), poseAt(10, 0, 10))
	require.NoError(t, err)

	scene.Close()
	scene.Close()
	require.False(t, e.Object().Attached())

	_, err = scene.AddEntity("", unitBox(), poseAt(10, 0, 10))
	require.True(t, errors.IsType(err, ErrTypeSceneClosed))

	err = scene.Step(context.Background(), nil)
	require.True(t, errors.IsType(err, ErrTypeSceneClosed))
}

func TestSceneModuleState(t *testing.T) {
	scene := NewScene(1, "state", testWorld, 4)
	defer scene.Close()

	_, ok := scene.ModuleState("motion")
	require.False(t, ok)

	scene.SetModuleState("motion", 21)
	state, ok := scene.ModuleState("motion")
	require.True(t, ok)
	require.Equal(t, 21, state)
}

func TestSceneEntitySnapshots(t *testing.T) {
	scene := NewScene(1, "snapshots", testWorld, 8)
	defer scene.Close()

	_, err := scene.AddEntity("first", unitBox(), poseAt(10, 0, 20))
	require.NoError(t, err)
	second, err := scene.AddEntity("second", unitBox(), poseAt(100, 2, 100))
	require.NoError(t, err)

	snapshots := scene.EntitySnapshots()
	require.Len(t, snapshots, 2)
	require.Equal(t, uint32(1), snapshots[0].ID)
	require.Equal(t, "first", snapshots[0].Name)
	require.Equal(t, quadtree.Vector3f{X: 10, Z: 20}, snapshots[0].Position)
	require.Equal(t, second.Snapshot(), snapshots[1])
	require.Equal(t, second.Object().Cell().Level(), snapshots[1].Level)

	require.NoError(t, scene.RemoveEntity(1))
	require.Len(t, scene.EntitySnapshots(), 1)
}

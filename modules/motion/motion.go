package motion

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
)

const (
	defaultSpeed         = 2
	defaultMovingRatio   = 0.5
	defaultFrameDuration = time.Second / 30
)

// Module moves entities on a horizontal random walk. Each moving entity keeps
// a constant speed, turns by a random angle every frame and bounces off the
// world bounds.
type Module struct {
	// The speed of moving entities, in world units per second.
	Speed float32

	// The share of entities that move, between 0 and 1.
	MovingRatio float32

	// The largest heading change per frame, in radians.
	Jitter float32

	// The simulated time between two frames.
	FrameDuration time.Duration

	// The seed of the random walk.
	Seed int64

	currentScene *models.Scene
	state        *State
	rnd          *rand.Rand
}

func (m *Module) Name() string {
	return "motion"
}

func (m *Module) Init(s *models.Scene) {
	m.currentScene = s

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)

	if m.Speed == 0 {
		m.Speed = defaultSpeed
	}
	if m.MovingRatio == 0 {
		m.MovingRatio = defaultMovingRatio
	}
	if m.FrameDuration <= 0 {
		m.FrameDuration = defaultFrameDuration
	}
	m.rnd = rand.New(rand.NewSource(m.Seed))
}

func (m *Module) HandleUpdate(ctx context.Context, entities []*models.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	world := m.currentScene.World()
	dt := float32(m.FrameDuration.Seconds())
	ids := make(map[uint32]struct{}, len(entities))

	for _, e := range entities {
		ids[e.ID] = struct{}{}

		v, ok := m.state.Velocity(e.ID)
		if !ok {
			v = m.newVelocity()
			m.state.SetVelocity(e.ID, v)
		}
		if v == (quadtree.Vector3f{}) {
			continue
		}

		if m.Jitter > 0 {
			v = turn(v, (m.rnd.Float32()*2-1)*m.Jitter)
		}

		delta := quadtree.Mul(v, dt)
		bounds := e.WorldBounds()
		delta.X, v.X = bounce(bounds.Min.X, bounds.Max.X, delta.X, v.X, world.Min.X, world.Max.X)
		delta.Y, v.Y = bounce(bounds.Min.Y, bounds.Max.Y, delta.Y, v.Y, world.Min.Y, world.Max.Y)
		delta.Z, v.Z = bounce(bounds.Min.Z, bounds.Max.Z, delta.Z, v.Z, world.Min.Z, world.Max.Z)

		pose := e.Pose()
		pose.Position = quadtree.Add(pose.Position, delta)
		e.SetPose(pose)
		m.state.SetVelocity(e.ID, v)
	}

	m.state.Retain(ids)
	return nil
}

func (m *Module) HandleQuery(ctx context.Context, frame uint64) error {
	return nil
}

func (m *Module) Close() {
}

func (m *Module) newVelocity() quadtree.Vector3f {
	if m.rnd.Float32() >= m.MovingRatio {
		return quadtree.Vector3f{}
	}

	heading := m.rnd.Float64() * 2 * math.Pi
	return quadtree.Vector3f{
		X: float32(math.Cos(heading)) * m.Speed,
		Z: float32(math.Sin(heading)) * m.Speed,
	}
}

// turn rotates v around the vertical axis.
func turn(v quadtree.Vector3f, angle float32) quadtree.Vector3f {
	sin, cos := math.Sincos(float64(angle))
	return quadtree.Vector3f{
		X: v.X*float32(cos) - v.Z*float32(sin),
		Y: v.Y,
		Z: v.X*float32(sin) + v.Z*float32(cos),
	}
}

// bounce returns the displacement and velocity on one axis once the span
// [lo, hi] moved by d is kept inside [min, max]. An entity leaving the world
// does not move on that axis and its velocity is reversed.
func bounce(lo, hi, d, v, min, max float32) (float32, float32) {
	if (d < 0 && lo+d < min) || (d > 0 && hi+d > max) {
		return 0, -v
	}
	return d, v
}

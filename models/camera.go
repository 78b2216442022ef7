package models

import (
	"math"

	"github.com/aukilabs/quadcull/modules/quadtree"
)

// The pitch is kept away from the vertical so that the view direction never
// lines up with the up vector.
const maxPitch = 89 * math.Pi / 180

var worldUp = quadtree.Vector3f{X: 0, Y: 1, Z: 0}

// Camera is a perspective viewpoint that queries the scene every frame.
// Angles are in radians. A yaw of 0 looks toward -Z and a positive pitch
// looks up.
type Camera struct {
	ID       uint32
	Name     string
	Position quadtree.Vector3f
	Yaw      float32
	Pitch    float32
	FovY     float32
	Aspect   float32
	Near     float32
	Far      float32

	// The maximum number of visible entities returned for the camera. 0
	// means no limit.
	Capacity int
}

// Forward returns the unit view direction.
func (c *Camera) Forward() quadtree.Vector3f {
	pitch := float64(c.Pitch)
	pitch = math.Max(math.Min(pitch, maxPitch), -maxPitch)
	yaw := float64(c.Yaw)

	return quadtree.Vector3f{
		X: float32(-math.Sin(yaw) * math.Cos(pitch)),
		Y: float32(math.Sin(pitch)),
		Z: float32(-math.Cos(yaw) * math.Cos(pitch)),
	}
}

func (c *Camera) Frustum() quadtree.PlaneFrustum {
	return quadtree.NewPerspectiveFrustum(
		c.Position,
		c.Forward(),
		worldUp,
		c.FovY,
		c.Aspect,
		c.Near,
		c.Far,
	)
}

// QueryBox returns the box enclosing the horizontal extent of the view
// volume, spanning the full height of world.
func (c *Camera) QueryBox(world quadtree.Box) quadtree.Box {
	corners := quadtree.PerspectiveCorners(
		c.Position,
		c.Forward(),
		worldUp,
		c.FovY,
		c.Aspect,
		c.Near,
		c.Far,
	)

	b := quadtree.Box{Min: corners[0], Max: corners[0]}
	for _, p := range corners[1:] {
		b.Min = quadtree.Min(b.Min, p)
		b.Max = quadtree.Max(b.Max, p)
	}

	b.Min.Y = world.Min.Y
	b.Max.Y = world.Max.Y
	return b
}

// CameraSnapshot is the serializable view of a camera.
type CameraSnapshot struct {
	ID       uint32            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Position quadtree.Vector3f `json:"position"`
	Forward  quadtree.Vector3f `json:"forward"`
	FovY     float32           `json:"fov_y"`
	Far      float32           `json:"far"`
}

func (c *Camera) Snapshot() CameraSnapshot {
	return CameraSnapshot{
		ID:       c.ID,
		Name:     c.Name,
		Position: c.Position,
		Forward:  c.Forward(),
		FovY:     c.FovY,
		Far:      c.Far,
	}
}

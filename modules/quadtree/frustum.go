package quadtree

import (
	"math"
)

// Frustum is the view volume a visibility query is tested against. The index
// never builds frustum planes itself; callers supply one per camera.
type Frustum interface {
	// Reports whether the box is at least partially inside the view volume.
	TestRect(b Box) bool

	// Reports whether the sphere is at least partially inside the view volume.
	TestSphere(s Sphere) bool
}

// Plane is the set of points p with Normal.Dot(p) + D == 0. Points with a
// positive signed distance are on the inner side.
type Plane struct {
	Normal Vector3f
	D      float32
}

// NewPlane returns the plane going through point with the given inward
// normal.
func NewPlane(normal Vector3f, point Vector3f) Plane {
	normal = Normalized(normal)
	return Plane{
		Normal: normal,
		D:      -normal.Dot(point),
	}
}

func (p Plane) Distance(v Vector3f) float32 {
	return p.Normal.Dot(v) + p.D
}

// PlaneFrustum is a convex view volume bounded by inward facing planes.
type PlaneFrustum struct {
	Planes []Plane
}

// TestRect uses the positive vertex of the box for each plane: if the corner
// furthest along the plane normal is outside, the whole box is.
func (f PlaneFrustum) TestRect(b Box) bool {
	for _, p := range f.Planes {
		v := b.Max
		if p.Normal.X < 0 {
			v.X = b.Min.X
		}
		if p.Normal.Y < 0 {
			v.Y = b.Min.Y
		}
		if p.Normal.Z < 0 {
			v.Z = b.Min.Z
		}
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}

func (f PlaneFrustum) TestSphere(s Sphere) bool {
	for _, p := range f.Planes {
		if p.Distance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// NewBoxFrustum returns a frustum made of the 6 faces of b.
func NewBoxFrustum(b Box) PlaneFrustum {
	return PlaneFrustum{
		Planes: []Plane{
			NewPlane(Vector3f{1, 0, 0}, b.Min),
			NewPlane(Vector3f{-1, 0, 0}, b.Max),
			NewPlane(Vector3f{0, 1, 0}, b.Min),
			NewPlane(Vector3f{0, -1, 0}, b.Max),
			NewPlane(Vector3f{0, 0, 1}, b.Min),
			NewPlane(Vector3f{0, 0, -1}, b.Max),
		},
	}
}

// NewPerspectiveFrustum builds the 6 planes of a perspective camera looking
// along forward. fovY is the vertical field of view in radians.
func NewPerspectiveFrustum(eye, forward, up Vector3f, fovY, aspect, near, far float32) PlaneFrustum {
	forward = Normalized(forward)
	right := Normalized(Cross(forward, up))
	up = Cross(right, forward)

	halfV := (float32)(math.Tan(float64(fovY) / 2))
	halfH := halfV * aspect

	nearCenter := Add(eye, Mul(forward, near))
	farCenter := Add(eye, Mul(forward, far))

	// Side plane normals point inward: each one is the cross product of an
	// edge direction and the matching camera axis.
	leftDir := Sub(forward, Mul(right, halfH))
	rightDir := Add(forward, Mul(right, halfH))
	topDir := Add(forward, Mul(up, halfV))
	bottomDir := Sub(forward, Mul(up, halfV))

	return PlaneFrustum{
		Planes: []Plane{
			NewPlane(forward, nearCenter),
			NewPlane(Mul(forward, -1), farCenter),
			NewPlane(Cross(leftDir, up), eye),
			NewPlane(Cross(up, rightDir), eye),
			NewPlane(Cross(topDir, right), eye),
			NewPlane(Cross(right, bottomDir), eye),
		},
	}
}

// PerspectiveCorners returns the 8 corners of a perspective frustum, near plane first.
func PerspectiveCorners(eye, forward, up Vector3f, fovY, aspect, near, far float32) [8]Vector3f {
	forward = Normalized(forward)
	right := Normalized(Cross(forward, up))
	up = Cross(right, forward)

	halfV := (float32)(math.Tan(float64(fovY) / 2))
	halfH := halfV * aspect

	var corners [8]Vector3f
	for i, d := range [2]float32{near, far} {
		c := Add(eye, Mul(forward, d))
		h := Mul(right, halfH*d)
		v := Mul(up, halfV*d)
		corners[i*4+0] = Add(Sub(c, h), v)
		corners[i*4+1] = Add(Add(c, h), v)
		corners[i*4+2] = Sub(Sub(c, h), v)
		corners[i*4+3] = Sub(Add(c, h), v)
	}
	return corners
}

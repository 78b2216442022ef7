package quadtree

import (
	"math"
)

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

type Vector3f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func NewVector3f(x, y, z float32) Vector3f {
	return Vector3f{x, y, z}
}

func (v1 Vector3f) EqualWithEpsilon(v2 Vector3f, epsilon float64) bool {
	return EqualWithEpsilon(v1.X, v2.X, epsilon) &&
		EqualWithEpsilon(v1.Y, v2.Y, epsilon) &&
		EqualWithEpsilon(v1.Z, v2.Z, epsilon)
}

func (v1 Vector3f) Equal(v2 Vector3f) bool {
	return v1.X == v2.X && v1.Y == v2.Y && v1.Z == v2.Z
}

func Add(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Mul(a Vector3f, s float32) Vector3f {
	return Vector3f{a.X * s, a.Y * s, a.Z * s}
}

// MulPerAxis multiplies each component of a by the matching component of b.
func MulPerAxis(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.X * b.X, a.Y * b.Y, a.Z * b.Z}
}

func Min(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)}
}

func Max(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)}
}

func (a Vector3f) Length() float64 {
	return math.Sqrt((float64)(a.X*a.X + a.Y*a.Y + a.Z*a.Z))
}

func Normalized(a Vector3f) Vector3f {
	length := (float32)(a.Length())
	if length == 0 {
		return a
	}
	return Vector3f{a.X / length, a.Y / length, a.Z / length}
}

func (a Vector3f) Dot(b Vector3f) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func Cross(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Vector3f `json:"min"`
	Max Vector3f `json:"max"`
}

func NewBox(min Vector3f, max Vector3f) Box {
	return Box{Min: min, Max: max}
}

// NewBoxFromCenter returns the box centered on c with the given half-extents.
func NewBoxFromCenter(c Vector3f, extents Vector3f) Box {
	return Box{Min: Sub(c, extents), Max: Add(c, extents)}
}

func (b Box) Center() Vector3f {
	return Mul(Add(b.Min, b.Max), 0.5)
}

// Extents returns the half-extents of the box.
func (b Box) Extents() Vector3f {
	return Mul(Sub(b.Max, b.Min), 0.5)
}

func (b Box) Size() Vector3f {
	return Sub(b.Max, b.Min)
}

// Intersects reports whether both boxes overlap with a non-zero volume.
// Touching faces do not count as an overlap.
func (b Box) Intersects(other Box) bool {
	if b.Min.X >= other.Max.X || b.Max.X <= other.Min.X {
		return false
	}
	if b.Min.Y >= other.Max.Y || b.Max.Y <= other.Min.Y {
		return false
	}
	if b.Min.Z >= other.Max.Z || b.Max.Z <= other.Min.Z {
		return false
	}
	return true
}

func (b Box) Contains(p Vector3f) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Union(other Box) Box {
	return Box{Min: Min(b.Min, other.Min), Max: Max(b.Max, other.Max)}
}

// Corners returns the 8 corners of the box.
func (b Box) Corners() [8]Vector3f {
	return [8]Vector3f{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// BoundingSphere returns the smallest sphere centered on the box center that
// contains the whole box.
func (b Box) BoundingSphere() Sphere {
	return Sphere{
		Center: b.Center(),
		Radius: (float32)(b.Extents().Length()),
	}
}

type Sphere struct {
	Center Vector3f
	Radius float32
}

type Quaternion struct {
	X float32
	Y float32
	Z float32
	W float32
}

var IdentityQuaternion = Quaternion{0, 0, 0, 1}

// QuaternionFromAxisAngle returns the rotation of angle radians around axis.
func QuaternionFromAxisAngle(axis Vector3f, angle float32) Quaternion {
	axis = Normalized(axis)
	s := (float32)(math.Sin(float64(angle) / 2))
	return Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: (float32)(math.Cos(float64(angle) / 2)),
	}
}

func (q Quaternion) IsIdentity() bool {
	return q == IdentityQuaternion || q == (Quaternion{})
}

// Rotate rotates v by q. q is expected to be normalized.
func (q Quaternion) Rotate(v Vector3f) Vector3f {
	u := Vector3f{q.X, q.Y, q.Z}
	t := Mul(Cross(u, v), 2)
	return Add(Add(v, Mul(t, q.W)), Cross(u, t))
}

// Pose is a rigid transform: rotation followed by translation.
type Pose struct {
	Position Vector3f
	Rotation Quaternion
}

// TransformBox returns the axis-aligned box enclosing local once transformed
// by the pose.
func (p Pose) TransformBox(local Box) Box {
	if p.Rotation.IsIdentity() {
		return Box{
			Min: Add(local.Min, p.Position),
			Max: Add(local.Max, p.Position),
		}
	}

	corners := local.Corners()
	first := p.Rotation.Rotate(corners[0])
	result := Box{Min: first, Max: first}
	for _, c := range corners[1:] {
		r := p.Rotation.Rotate(c)
		result.Min = Min(result.Min, r)
		result.Max = Max(result.Max, r)
	}
	result.Min = Add(result.Min, p.Position)
	result.Max = Add(result.Max, p.Position)
	return result
}

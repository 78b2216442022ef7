package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ObjectFlag reports what changed on an object during the current frame.
type ObjectFlag uint8

const (
	// The local bounds were replaced.
	FlagNewLocalBounds ObjectFlag = 1 << iota

	// The world bounds were recomputed to a different value.
	FlagNewWorldBounds
)

// Object is the placement of one scene entity in a quad tree.
//
// The owning entity sets the local bounds and the pose; Update derives the
// world bounds from them and moves the object through the tree when they
// change. An object belongs to at most one cell, and only while it is
// attached to an index.
type Object struct {
	id     EntityID
	local  Box
	pose   Pose
	world  Box
	sphere Sphere

	flags      ObjectFlag
	localDirty bool
	poseDirty  bool

	rect GridRect
	mask uint32

	tree *Index
	cell *Cell
	prev *Object
	next *Object
}

// NewObject returns an object with identity pose whose world bounds are its
// local bounds.
func NewObject(id EntityID, local Box) *Object {
	o := &Object{
		id:    id,
		local: local,
		pose:  Pose{Rotation: IdentityQuaternion},
		flags: FlagNewLocalBounds | FlagNewWorldBounds,
	}
	o.world = o.pose.TransformBox(local)
	o.sphere = o.world.BoundingSphere()
	return o
}

func (o *Object) ID() EntityID {
	return o.id
}

func (o *Object) LocalBounds() Box {
	return o.local
}

func (o *Object) Pose() Pose {
	return o.pose
}

func (o *Object) WorldBounds() Box {
	return o.world
}

func (o *Object) Sphere() Sphere {
	return o.sphere
}

// GridRect returns the quantized world bounds computed by the last insertion.
func (o *Object) GridRect() GridRect {
	return o.rect
}

// YMask returns the vertical occupancy bits computed by the last insertion.
func (o *Object) YMask() uint32 {
	return o.mask
}

func (o *Object) Cell() *Cell {
	return o.cell
}

func (o *Object) Index() *Index {
	return o.tree
}

func (o *Object) Attached() bool {
	return o.cell != nil
}

func (o *Object) HasNewLocalBounds() bool {
	return o.flags&FlagNewLocalBounds != 0
}

func (o *Object) HasNewWorldBounds() bool {
	return o.flags&FlagNewWorldBounds != 0
}

// SetLocalBounds replaces the local bounds. The world bounds are updated by
// the next call to Update.
func (o *Object) SetLocalBounds(b Box) {
	if b == o.local {
		return
	}
	o.local = b
	o.localDirty = true
}

// SetPose replaces the transform. The world bounds are updated by the next
// call to Update.
func (o *Object) SetPose(p Pose) {
	if p == o.pose {
		return
	}
	o.pose = p
	o.poseDirty = true
}

// PrepareForUpdate clears the flags of the previous frame. It is called on
// every object before the update pass of a frame starts.
func (o *Object) PrepareForUpdate() {
	o.flags = 0
}

// Update recomputes the world bounds when the local bounds or the pose
// changed, and refreshes the quad tree membership only when the world bounds
// differ from the previous ones.
func (o *Object) Update() error {
	if !o.localDirty && !o.poseDirty {
		return nil
	}
	if o.localDirty {
		o.flags |= FlagNewLocalBounds
	}
	o.localDirty = false
	o.poseDirty = false

	world := o.pose.TransformBox(o.local)
	if world == o.world {
		return nil
	}

	o.world = world
	o.sphere = world.BoundingSphere()
	o.flags |= FlagNewWorldBounds
	return o.RefreshQuadTreeMembership()
}

// RefreshQuadTreeMembership re-quantizes the world bounds and re-inserts the
// object in its index. It does nothing when the object is detached.
func (o *Object) RefreshQuadTreeMembership() error {
	if o.tree == nil {
		return nil
	}
	return o.tree.AddOrUpdateSceneObject(o)
}

// AttachToQuadTree detaches the object from its current index, if any, and
// inserts it in idx.
func (o *Object) AttachToQuadTree(idx *Index) error {
	if o.tree != nil {
		if err := o.DetachFromQuadTree(); err != nil {
			return err
		}
	}

	if idx == nil {
		return errors.New("attaching to a nil quad tree").
			WithType(ErrTypeNotCreated).
			WithTag("entity_id", o.id)
	}

	o.tree = idx
	if err := idx.AddOrUpdateSceneObject(o); err != nil {
		o.tree = nil
		return err
	}
	return nil
}

// DetachFromQuadTree removes the object from its cell and clears every
// reference to the index.
func (o *Object) DetachFromQuadTree() error {
	var err error
	if o.cell != nil && o.tree != nil {
		err = o.tree.RemoveSceneObject(o)
	}

	o.tree = nil
	o.cell = nil
	o.prev = nil
	o.next = nil
	return err
}

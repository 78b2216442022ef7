package models

import (
	"github.com/aukilabs/quadcull/modules/quadtree"
)

// Entity is a scene object with a transform and local bounds. Its placement
// in the scene quad tree is kept by the underlying quadtree.Object.
type Entity struct {
	ID   uint32
	Name string

	object *quadtree.Object
}

func NewEntity(id uint32, local quadtree.Box) *Entity {
	return &Entity{
		ID:     id,
		object: quadtree.NewObject(quadtree.EntityID(id), local),
	}
}

// SetPose replaces the entity transform. It is applied to the quad tree by
// the next update pass of the scene.
func (e *Entity) SetPose(v quadtree.Pose) {
	e.object.SetPose(v)
}

func (e *Entity) Pose() quadtree.Pose {
	return e.object.Pose()
}

// SetLocalBounds replaces the entity bounds. It is applied to the quad tree
// by the next update pass of the scene.
func (e *Entity) SetLocalBounds(b quadtree.Box) {
	e.object.SetLocalBounds(b)
}

func (e *Entity) LocalBounds() quadtree.Box {
	return e.object.LocalBounds()
}

func (e *Entity) WorldBounds() quadtree.Box {
	return e.object.WorldBounds()
}

func (e *Entity) Object() *quadtree.Object {
	return e.object
}

func (e *Entity) Snapshot() EntitySnapshot {
	world := e.object.WorldBounds()
	s := EntitySnapshot{
		ID:       e.ID,
		Name:     e.Name,
		Position: e.object.Pose().Position,
		WorldMin: world.Min,
		WorldMax: world.Max,
	}

	if c := e.object.Cell(); c != nil {
		s.Level = c.Level()
		s.CellX = c.X()
		s.CellZ = c.Z()
	}
	return s
}

// EntitySnapshot is the serializable view of an entity.
type EntitySnapshot struct {
	ID       uint32            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Position quadtree.Vector3f `json:"position"`
	WorldMin quadtree.Vector3f `json:"world_min"`
	WorldMax quadtree.Vector3f `json:"world_max"`
	Level    int               `json:"level"`
	CellX    int               `json:"cell_x"`
	CellZ    int               `json:"cell_z"`
}

func EntitiesToSnapshots(entities []*Entity) []EntitySnapshot {
	snapshots := make([]EntitySnapshot, len(entities))
	for i, e := range entities {
		snapshots[i] = e.Snapshot()
	}
	return snapshots
}

package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/google/uuid"
)

const (
	ErrTypeEntityNotFound = "entity-not-found"
	ErrTypeCameraNotFound = "camera-not-found"
	ErrTypeSceneClosed    = "scene-closed"
)

// Scene represents a world made of entities that are indexed in a quad tree
// and observed by cameras.
//
// Frames are serialized by the scene: Step holds the write lock while
// entities move and their quad tree membership is refreshed, queries and
// readers hold the read lock.
type Scene struct {
	ID        uint32
	SceneUUID string
	Name      string

	mutex  sync.RWMutex
	world  quadtree.Box
	index  *quadtree.Index
	frame  uint64
	closed bool

	entityIDs SequentialIDGenerator
	entities  map[uint32]*Entity

	cameraIDs SequentialIDGenerator
	cameras   map[uint32]*Camera

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	closeOnce sync.Once
}

// NewScene returns a scene whose quad tree covers world with the given
// depth.
func NewScene(id uint32, name string, world quadtree.Box, depth int, opts ...quadtree.Option) *Scene {
	if name == "" {
		name = "default"
	}

	opts = append([]quadtree.Option{quadtree.WithName(name)}, opts...)
	s := &Scene{
		ID:           id,
		SceneUUID:    uuid.New().String(),
		Name:         name,
		world:        world,
		index:        quadtree.New(world, depth, opts...),
		entities:     make(map[uint32]*Entity),
		cameras:      make(map[uint32]*Camera),
		moduleStates: make(map[string]any),
	}

	instrumentIncreaseSceneGauge(name)
	return s
}

// Close destroys the quad tree. Entities are detached from it.
func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		s.closed = true
		s.index.Destroy()
		instrumentSetEntityGauge(s.Name, 0)
		instrumentDecreaseSceneGauge(s.Name)
	})
}

func (s *Scene) World() quadtree.Box {
	return s.world
}

// Frame returns the number of frames stepped so far.
func (s *Scene) Frame() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.frame
}

// AddEntity creates an entity with the given local bounds and pose and
// inserts it in the quad tree.
func (s *Scene) AddEntity(name string, local quadtree.Box, pose quadtree.Pose) (*Entity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, errors.New("scene is closed").
			WithType(ErrTypeSceneClosed).
			WithTag("scene", s.Name)
	}

	e := NewEntity(s.entityIDs.New(), local)
	e.Name = name
	e.SetPose(pose)

	if err := e.object.Update(); err != nil {
		s.entityIDs.Reuse(e.ID)
		return nil, err
	}

	if err := e.object.AttachToQuadTree(s.index); err != nil {
		s.entityIDs.Reuse(e.ID)
		return nil, err
	}

	s.entities[e.ID] = e
	instrumentSetEntityGauge(s.Name, len(s.entities))
	return e, nil
}

// RemoveEntity removes the entity from the quad tree and from the scene.
func (s *Scene) RemoveEntity(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("scene", s.Name).
			WithTag("entity_id", id)
	}

	err := e.object.DetachFromQuadTree()
	delete(s.entities, id)
	s.entityIDs.Reuse(id)
	instrumentSetEntityGauge(s.Name, len(s.entities))
	return err
}

func (s *Scene) EntityByID(id uint32) (*Entity, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// Entities returns the entities sorted by id.
func (s *Scene) Entities() []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sortedEntities()
}

// EntitySnapshots returns the snapshots of the entities sorted by id. They
// are taken under the scene read lock so that no frame moves the entities
// while they are read.
func (s *Scene) EntitySnapshots() []EntitySnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return EntitiesToSnapshots(s.sortedEntities())
}

func (s *Scene) EntityCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entities)
}

func (s *Scene) AddCamera(c *Camera) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c.ID = s.cameraIDs.New()
	s.cameras[c.ID] = c
	return c.ID
}

func (s *Scene) RemoveCamera(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.cameras[id]; !ok {
		return errors.New("camera not found").
			WithType(ErrTypeCameraNotFound).
			WithTag("scene", s.Name).
			WithTag("camera_id", id)
	}

	delete(s.cameras, id)
	s.cameraIDs.Reuse(id)
	return nil
}

// Cameras returns the cameras sorted by id.
func (s *Scene) Cameras() []*Camera {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cameras := make([]*Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		cameras = append(cameras, c)
	}
	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].ID < cameras[j].ID
	})
	return cameras
}

// Step runs one frame: it clears the change flags of every entity, calls
// move, then applies the new poses and bounds to the quad tree.
//
// Update errors do not stop the frame. They are logged and the first one is
// returned.
func (s *Scene) Step(ctx context.Context, move func(context.Context, []*Entity) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return errors.New("scene is closed").
			WithType(ErrTypeSceneClosed).
			WithTag("scene", s.Name)
	}

	start := time.Now()
	s.frame++
	entities := s.sortedEntities()

	for _, e := range entities {
		e.object.PrepareForUpdate()
	}

	if move != nil {
		if err := move(ctx, entities); err != nil {
			return errors.New("moving entities failed").
				WithTag("scene", s.Name).
				WithTag("frame", s.frame).
				Wrap(err)
		}
	}

	var firstErr error
	for _, e := range entities {
		if err := e.object.Update(); err != nil {
			logs.WithTag("scene", s.Name).
				WithTag("frame", s.frame).
				WithTag("entity_id", e.ID).
				Error(err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	instrumentFrame(s.Name, time.Since(start))
	return firstErr
}

// Query resets out and fills it with the entities the camera sees.
func (s *Scene) Query(c *Camera, out *quadtree.VisibleSet) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.CalcVisibleEntities(c.QueryBox(s.world), c.Frustum(), out)
}

// ReadIndex calls f with the scene quad tree while frames are held back. f
// must not modify the index.
func (s *Scene) ReadIndex(f func(*quadtree.Index)) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	f(s.index)
}

func (s *Scene) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Scene) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

func (s *Scene) sortedEntities() []*Entity {
	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
	return entities
}

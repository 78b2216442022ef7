package motion

import (
	"sync"

	"github.com/aukilabs/quadcull/modules/quadtree"
)

// State keeps the velocity of the moving entities of a scene.
type State struct {
	velocityMutex sync.RWMutex
	velocities    map[uint32]quadtree.Vector3f
}

func (s *State) SetVelocity(entityID uint32, v quadtree.Vector3f) {
	s.velocityMutex.Lock()
	defer s.velocityMutex.Unlock()

	if s.velocities == nil {
		s.velocities = make(map[uint32]quadtree.Vector3f)
	}

	s.velocities[entityID] = v
}

func (s *State) Velocity(entityID uint32) (quadtree.Vector3f, bool) {
	s.velocityMutex.RLock()
	defer s.velocityMutex.RUnlock()

	v, ok := s.velocities[entityID]
	return v, ok
}

func (s *State) RemoveVelocity(entityID uint32) {
	s.velocityMutex.Lock()
	defer s.velocityMutex.Unlock()

	delete(s.velocities, entityID)
}

// Retain removes the velocities of the entities that are not in ids.
func (s *State) Retain(ids map[uint32]struct{}) {
	s.velocityMutex.Lock()
	defer s.velocityMutex.Unlock()

	for id := range s.velocities {
		if _, ok := ids[id]; !ok {
			delete(s.velocities, id)
		}
	}
}

func (s *State) Len() int {
	s.velocityMutex.RLock()
	defer s.velocityMutex.RUnlock()

	return len(s.velocities)
}

package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// EntityID is the opaque identifier of the scene entity an object stands for.
type EntityID uint32

// VisibleSet collects the entity ids returned by a visibility query.
//
// A zero capacity makes the set growable. A positive capacity bounds the
// number of ids it accepts; appending past it returns an error and keeps the
// ids gathered so far.
type VisibleSet struct {
	capacity int
	ids      []EntityID
}

func NewVisibleSet(capacity int) *VisibleSet {
	if capacity < 0 {
		capacity = 0
	}
	return &VisibleSet{
		capacity: capacity,
		ids:      make([]EntityID, 0, capacity),
	}
}

func (s *VisibleSet) Reset() {
	s.ids = s.ids[:0]
}

// IDs returns the collected ids. The slice is reused by the next query.
func (s *VisibleSet) IDs() []EntityID {
	return s.ids
}

func (s *VisibleSet) Len() int {
	return len(s.ids)
}

func (s *VisibleSet) Capacity() int {
	return s.capacity
}

func (s *VisibleSet) Contains(id EntityID) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *VisibleSet) append(id EntityID) error {
	if s.capacity > 0 && len(s.ids) >= s.capacity {
		return errors.New("visible entity capacity exceeded").
			WithType(ErrTypeCapacityExceeded).
			WithTag("capacity", s.capacity).
			WithTag("entity_id", id)
	}
	s.ids = append(s.ids, id)
	return nil
}

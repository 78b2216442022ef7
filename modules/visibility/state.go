package visibility

import (
	"sort"
	"sync"

	"github.com/aukilabs/quadcull/models"
)

// Result is the outcome of the visibility query of a camera for a frame.
type Result struct {
	CameraID   uint32   `json:"camera_id"`
	CameraName string   `json:"camera_name,omitempty"`
	Frame      uint64   `json:"frame"`
	EntityIDs  []uint32 `json:"entity_ids"`

	// Reports that the camera capacity was reached and that EntityIDs only
	// holds part of the visible entities.
	Truncated bool `json:"truncated,omitempty"`
}

// State keeps the latest result of every camera and the functions that are
// notified when a result is published.
type State struct {
	resultMutex sync.RWMutex
	results     map[uint32]Result

	subscriberMutex sync.RWMutex
	subscriberIDs   models.SequentialIDGenerator
	subscribers     map[uint32]func(Result)
}

func (s *State) SetResult(r Result) {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()

	if s.results == nil {
		s.results = make(map[uint32]Result)
	}

	s.results[r.CameraID] = r
}

func (s *State) Result(cameraID uint32) (Result, bool) {
	s.resultMutex.RLock()
	defer s.resultMutex.RUnlock()

	r, ok := s.results[cameraID]
	return r, ok
}

// Results returns the latest results sorted by camera id.
func (s *State) Results() []Result {
	s.resultMutex.RLock()
	defer s.resultMutex.RUnlock()

	results := make([]Result, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CameraID < results[j].CameraID
	})
	return results
}

func (s *State) RemoveResult(cameraID uint32) {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()

	delete(s.results, cameraID)
}

// Subscribe registers f to be called with every published result. The
// returned function removes the subscription.
func (s *State) Subscribe(f func(Result)) (unsubscribe func()) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	if s.subscribers == nil {
		s.subscribers = make(map[uint32]func(Result))
	}

	id := s.subscriberIDs.New()
	s.subscribers[id] = f

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subscriberMutex.Lock()
			defer s.subscriberMutex.Unlock()

			delete(s.subscribers, id)
			s.subscriberIDs.Reuse(id)
		})
	}
}

func (s *State) SubscriberCount() int {
	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	return len(s.subscribers)
}

// Notify calls the subscribers with r. Subscribers are called outside of the
// state locks and may unsubscribe.
func (s *State) Notify(r Result) {
	s.subscriberMutex.RLock()
	ids := make([]uint32, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	subscribers := make([]func(Result), len(ids))
	for i, id := range ids {
		subscribers[i] = s.subscribers[id]
	}
	s.subscriberMutex.RUnlock()

	for _, f := range subscribers {
		f(r)
	}
}

package visibility

import (
	"context"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
)

// Module queries the quad tree for every camera of the scene once entities
// are updated, then publishes the results to the module state.
type Module struct {
	currentScene *models.Scene
	state        *State
	sets         map[uint32]*quadtree.VisibleSet
}

func (m *Module) Name() string {
	return "visibility"
}

func (m *Module) Init(s *models.Scene) {
	m.currentScene = s
	m.sets = make(map[uint32]*quadtree.VisibleSet)

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = &State{}
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)
}

func (m *Module) State() *State {
	return m.state
}

func (m *Module) HandleUpdate(ctx context.Context, entities []*models.Entity) error {
	return nil
}

// HandleQuery publishes a result for every camera. A camera whose capacity
// is reached still gets the entities gathered so far, flagged as truncated.
func (m *Module) HandleQuery(ctx context.Context, frame uint64) error {
	cameras := m.currentScene.Cameras()
	cameraIDs := make(map[uint32]struct{}, len(cameras))

	var err error
	for _, c := range cameras {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		cameraIDs[c.ID] = struct{}{}

		set := m.visibleSet(c)
		qerr := m.currentScene.Query(c, set)
		truncated := qerr != nil && errors.IsType(qerr, quadtree.ErrTypeCapacityExceeded)

		if qerr != nil && !truncated {
			logs.WithTag("scene", m.currentScene.Name).
				WithTag("camera_id", c.ID).
				WithTag("frame", frame).
				Error(errors.New("querying visible entities failed").Wrap(qerr))
			if err == nil {
				err = qerr
			}
			continue
		}

		if truncated {
			logs.WithTag("scene", m.currentScene.Name).
				WithTag("camera_id", c.ID).
				WithTag("capacity", set.Capacity()).
				Debug("visible entities truncated")
		}

		r := Result{
			CameraID:   c.ID,
			CameraName: c.Name,
			Frame:      frame,
			EntityIDs:  sortedIDs(set.IDs()),
			Truncated:  truncated,
		}
		m.state.SetResult(r)
		m.state.Notify(r)
	}

	for id := range m.sets {
		if _, ok := cameraIDs[id]; !ok {
			delete(m.sets, id)
			m.state.RemoveResult(id)
		}
	}
	return err
}

func (m *Module) Close() {
}

func (m *Module) visibleSet(c *models.Camera) *quadtree.VisibleSet {
	set, ok := m.sets[c.ID]
	if !ok || set.Capacity() != max(c.Capacity, 0) {
		set = quadtree.NewVisibleSet(c.Capacity)
		m.sets[c.ID] = set
	}
	return set
}

func sortedIDs(ids []quadtree.EntityID) []uint32 {
	res := make([]uint32, len(ids))
	for i, id := range ids {
		res[i] = uint32(id)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i] < res[j]
	})
	return res
}

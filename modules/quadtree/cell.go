package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// CellHandle references a cell by its level and its position in the level's
// cell array.
type CellHandle struct {
	Level int32
	Index int32
}

// NoCell is the handle of a missing parent or child.
var NoCell = CellHandle{Level: -1, Index: -1}

func (h CellHandle) Valid() bool {
	return h.Level >= 0 && h.Index >= 0
}

// Cell is one node of the quad tree: a square of the X-Z grid at a given
// level.
//
// A cell keeps the objects whose quantized rect fits in it and in none of its
// children, in an intrusive doubly linked list. It also keeps two vertical
// occupancy masks:
//   - the local mask, union of the y mask of its residents,
//   - the aggregate mask, union of its local mask and the aggregate masks of
//     its children.
type Cell struct {
	tree  *Index
	level uint8
	x     uint16
	z     uint16
	wired bool

	parent   CellHandle
	children [4]CellHandle

	head  *Object
	count int

	localMask     uint32
	aggregateMask uint32
}

// Setup wires the cell to its parent and children. It is meant to be called
// once, when the tree is created.
func (c *Cell) Setup(parent CellHandle, children [4]CellHandle) {
	if c.wired {
		logs.WithTag("level", c.level).
			WithTag("x", c.x).
			WithTag("z", c.z).
			Warn(errors.New("quad tree cell is already set up"))
	}

	c.parent = parent
	c.children = children
	c.wired = true
}

func (c *Cell) Level() int {
	return int(c.level)
}

func (c *Cell) X() int {
	return int(c.x)
}

func (c *Cell) Z() int {
	return int(c.z)
}

func (c *Cell) LocalMask() uint32 {
	return c.localMask
}

func (c *Cell) AggregateMask() uint32 {
	return c.aggregateMask
}

// Len returns the number of objects resident in the cell.
func (c *Cell) Len() int {
	return c.count
}

// Members returns the objects resident in the cell, most recently added
// first.
func (c *Cell) Members() []*Object {
	members := make([]*Object, 0, c.count)
	for o := c.head; o != nil; o = o.next {
		members = append(members, o)
	}
	return members
}

func (c *Cell) Parent() *Cell {
	return c.tree.cell(c.parent)
}

func (c *Cell) Child(i int) *Cell {
	return c.tree.cell(c.children[i])
}

// AddOrUpdateMember makes the object a resident of the cell and returns the
// object's y mask.
//
// An object coming from another cell is unlinked from it first. Adding bits
// only requires OR-ing them into the ancestors. An object that already lives
// in the cell may have changed its vertical span, so the masks are recomputed
// from the residents instead.
func (c *Cell) AddOrUpdateMember(o *Object, r GridRect) uint32 {
	mask := r.YMask()

	if o.cell == c {
		o.mask = mask
		c.refreshMasks()
		return mask
	}

	if o.cell != nil {
		o.cell.RemoveMember(o)
	}

	o.prev = nil
	o.next = c.head
	if c.head != nil {
		c.head.prev = o
	}
	c.head = o
	c.count++

	o.cell = c
	o.mask = mask

	c.localMask |= mask
	c.aggregateMask |= mask
	for p := c.Parent(); p != nil; p = p.Parent() {
		if p.aggregateMask&mask == mask {
			// Ancestors always hold a superset of their descendants' bits.
			break
		}
		p.aggregateMask |= mask
	}

	return mask
}

// RemoveMember unlinks the object from the cell and recomputes the masks of
// the cell and of all its ancestors. Bits cannot simply be cleared since
// other residents or sibling subtrees may still set them.
func (c *Cell) RemoveMember(o *Object) error {
	if o.cell != c {
		err := errors.New("object is not resident in the cell").
			WithType(ErrTypeNotResident).
			WithTag("entity_id", o.id).
			WithTag("level", c.level).
			WithTag("x", c.x).
			WithTag("z", c.z)
		logs.Error(err)
		return err
	}

	if o.prev != nil {
		o.prev.next = o.next
	} else {
		c.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	}
	c.count--

	o.cell = nil
	o.prev = nil
	o.next = nil

	c.refreshMasks()
	return nil
}

// TestLocalMembersForSearchResults appends the residents that pass the query
// to out. It is used for cells that lie wholly inside the query region, so
// only the vertical mask and the frustum are tested.
func (c *Cell) TestLocalMembersForSearchResults(q *SearchQuery, out *VisibleSet) error {
	for o := c.head; o != nil; o = o.next {
		q.tested++

		if o.mask&q.Mask == 0 {
			continue
		}
		if !q.testFrustum(o) {
			continue
		}
		if err := out.append(o.id); err != nil {
			return err
		}
	}
	return nil
}

// TestLocalMembersForSearchResultsEdge is the variant for cells on the border
// of the query region. Their footprint may reach outside the query box, so the
// world bounds of each resident are also tested against it.
func (c *Cell) TestLocalMembersForSearchResultsEdge(q *SearchQuery, out *VisibleSet) error {
	for o := c.head; o != nil; o = o.next {
		q.tested++

		if o.mask&q.Mask == 0 {
			continue
		}
		if !o.world.Intersects(q.Box) {
			continue
		}
		if !q.testFrustum(o) {
			continue
		}
		if err := out.append(o.id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cell) refreshMasks() {
	c.localMask = c.computeLocalMask()
	for n := c; n != nil; n = n.Parent() {
		n.aggregateMask = n.computeAggregateMask()
	}
}

func (c *Cell) computeLocalMask() uint32 {
	var mask uint32
	for o := c.head; o != nil; o = o.next {
		mask |= o.mask
	}
	return mask
}

func (c *Cell) computeAggregateMask() uint32 {
	mask := c.localMask
	for i := range c.children {
		if child := c.Child(i); child != nil {
			mask |= child.aggregateMask
		}
	}
	return mask
}

// SearchQuery is the state shared by the cells visited during a visibility
// query.
type SearchQuery struct {
	// The world space query box.
	Box Box

	// The y mask of the quantized query box.
	Mask uint32

	Frustum Frustum

	tested int
}

// The bounding sphere encloses the world bounds: rejecting it rejects them.
func (q *SearchQuery) testFrustum(o *Object) bool {
	if q.Frustum == nil {
		return true
	}
	return q.Frustum.TestSphere(o.sphere) && q.Frustum.TestRect(o.world)
}

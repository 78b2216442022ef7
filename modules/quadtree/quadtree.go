package quadtree

import (
	"math/bits"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Quad Tree Spatial Index
//
// A multi-resolution grid over the X-Z plane of a finite world box:
//   - the world box is linearly mapped onto a 256x32x256 integer grid,
//   - level i holds 2^i x 2^i cells stored in one contiguous array, allocated
//     once when the tree is created,
//   - an object lives in the smallest cell that fully contains its quantized
//     X-Z rect, found in constant time from the bits of its coordinates,
//   - every cell aggregates a 32 bit mask of the heights occupied in its
//     subtree, which lets queries skip whole subtrees.
//
// The index is not safe for concurrent use and must not be mutated while a
// query is running.

const defaultName = "default"

type Index struct {
	name          string
	maxObjects    int
	noMaskPruning bool

	depth  int
	world  Box
	offset Vector3f
	scale  Vector3f
	levels [][]Cell

	objects int
	metrics *indexMetrics
}

type Option func(*Index)

// WithName sets the name used to label the index metrics.
func WithName(name string) Option {
	return func(idx *Index) {
		idx.name = name
	}
}

// WithMaxObjects bounds the number of objects the index accepts. 0 means
// unbounded.
func WithMaxObjects(n int) Option {
	return func(idx *Index) {
		idx.maxObjects = max(n, 0)
	}
}

// WithoutMaskPruning makes queries visit every covered cell regardless of
// its aggregate mask. Results are the same, only slower.
func WithoutMaskPruning() Option {
	return func(idx *Index) {
		idx.noMaskPruning = true
	}
}

// New returns an index created over world with the given depth. Depth is
// clamped to [1, MaxDepth].
func New(world Box, depth int, opts ...Option) *Index {
	idx := &Index{}
	for _, opt := range opts {
		opt(idx)
	}

	idx.Create(world, depth)
	return idx
}

// Create allocates the cells of every level and wires their parents and
// children. Creating an index twice is an error and leaves it untouched.
func (idx *Index) Create(world Box, depth int) error {
	if idx.name == "" {
		idx.name = defaultName
	}
	if idx.metrics == nil {
		idx.metrics = newIndexMetrics(idx.name)
	}

	if idx.levels != nil {
		err := errors.New("quad tree is already created").
			WithType(ErrTypeAlreadyCreated).
			WithTag("name", idx.name).
			WithTag("depth", idx.depth)
		logs.Error(err)
		return err
	}

	if depth < 1 || depth > MaxDepth {
		clamped := min(max(depth, 1), MaxDepth)
		logs.WithTag("name", idx.name).
			WithTag("depth", depth).
			WithTag("clamped_depth", clamped).
			Warn(errors.New("quad tree depth is out of range"))
		depth = clamped
	}

	size := world.Size()
	idx.world = world
	idx.offset = Mul(world.Min, -1)
	idx.scale = Vector3f{
		X: gridScale(GridSizeXZ, size.X),
		Y: gridScale(GridSizeY, size.Y),
		Z: gridScale(GridSizeXZ, size.Z),
	}
	idx.depth = depth
	idx.levels = make([][]Cell, depth)

	cellCount := 0
	for level := 0; level < depth; level++ {
		side := 1 << level
		cells := make([]Cell, side*side)
		for z := 0; z < side; z++ {
			for x := 0; x < side; x++ {
				cells[z*side+x] = Cell{
					tree:  idx,
					level: uint8(level),
					x:     uint16(x),
					z:     uint16(z),
				}
			}
		}
		idx.levels[level] = cells
		cellCount += len(cells)
	}

	for level := 0; level < depth; level++ {
		side := 1 << level
		for z := 0; z < side; z++ {
			for x := 0; x < side; x++ {
				parent := NoCell
				if level > 0 {
					parent = handle(level-1, x>>1, z>>1)
				}

				children := [4]CellHandle{NoCell, NoCell, NoCell, NoCell}
				if level+1 < depth {
					cx, cz := x<<1, z<<1
					children = [4]CellHandle{
						handle(level+1, cx, cz),
						handle(level+1, cx+1, cz),
						handle(level+1, cx, cz+1),
						handle(level+1, cx+1, cz+1),
					}
				}

				idx.levels[level][z*side+x].Setup(parent, children)
			}
		}
	}

	logs.WithTag("name", idx.name).
		WithTag("depth", depth).
		WithTag("cells", cellCount).
		Debug("quad tree created")
	return nil
}

// Destroy releases the cells. Objects still resident are detached from the
// index.
func (idx *Index) Destroy() {
	for _, cells := range idx.levels {
		for i := range cells {
			for o := cells[i].head; o != nil; {
				next := o.next
				o.tree = nil
				o.cell = nil
				o.prev = nil
				o.next = nil
				o = next
			}
		}
	}

	if idx.metrics != nil {
		idx.metrics.objects.Sub(float64(idx.objects))
	}

	idx.levels = nil
	idx.depth = 0
	idx.objects = 0
}

func (idx *Index) Name() string {
	return idx.name
}

// Depth returns the number of levels. It is 0 once the index is destroyed.
func (idx *Index) Depth() int {
	return idx.depth
}

func (idx *Index) WorldBounds() Box {
	return idx.world
}

// Len returns the number of objects in the index.
func (idx *Index) Len() int {
	return idx.objects
}

func (idx *Index) Created() bool {
	return idx.levels != nil
}

// WorldToGrid quantizes a world space box.
func (idx *Index) WorldToGrid(b Box) GridRect {
	return Convert(b, idx.offset, idx.scale)
}

// AddOrUpdateSceneObject places the object in the cell matching its current
// world bounds. It either inserts it, moves it to another cell or refreshes
// the masks of the cell it already lives in.
func (idx *Index) AddOrUpdateSceneObject(o *Object) error {
	if idx.levels == nil {
		err := errors.New("quad tree is not created").
			WithType(ErrTypeNotCreated).
			WithTag("name", idx.name).
			WithTag("entity_id", o.id)
		logs.Error(err)
		return err
	}

	if o.tree != nil && o.tree != idx {
		if err := o.DetachFromQuadTree(); err != nil {
			return err
		}
	}

	isNew := o.cell == nil
	if isNew && idx.maxObjects > 0 && idx.objects >= idx.maxObjects {
		err := errors.New("quad tree object capacity exceeded").
			WithType(ErrTypeCapacityExceeded).
			WithTag("name", idx.name).
			WithTag("capacity", idx.maxObjects).
			WithTag("entity_id", o.id)
		logs.Warn(err)
		idx.metrics.instrumentError(err)
		return err
	}

	r := idx.WorldToGrid(o.world)
	c := idx.FindTreeNode(r)
	if c == nil {
		level, x, z := idx.FindTreeNodeInfo(r)
		err := errors.New("no quad tree cell found for object").
			WithType(ErrTypeCellNotFound).
			WithTag("name", idx.name).
			WithTag("entity_id", o.id).
			WithTag("level", level).
			WithTag("x", x).
			WithTag("z", z)
		logs.Error(err)
		idx.metrics.instrumentError(err)
		return err
	}

	previous := o.cell
	o.rect = r
	o.tree = idx
	c.AddOrUpdateMember(o, r)

	switch {
	case isNew:
		idx.objects++
		idx.metrics.objects.Inc()
	case previous != c:
		idx.metrics.relocations.Inc()
	}
	return nil
}

// RemoveSceneObject removes the object from its cell. The object keeps its
// reference to the index; use Object.DetachFromQuadTree to drop it.
func (idx *Index) RemoveSceneObject(o *Object) error {
	if o.cell == nil || o.tree != idx {
		err := errors.New("object is not attached to the quad tree").
			WithType(ErrTypeNotAttached).
			WithTag("name", idx.name).
			WithTag("entity_id", o.id)
		logs.Warn(err)
		return err
	}

	if err := o.cell.RemoveMember(o); err != nil {
		return err
	}

	idx.objects--
	idx.metrics.objects.Dec()
	return nil
}

// FindTreeNodeInfo returns the level and coordinates of the smallest cell
// that fully contains the X-Z span of r, without descending the tree.
//
// Two coordinates fall in the same cell of a level as long as they share the
// bits above that level's cell size: the highest bit where the min and max
// coordinates differ gives the finest level both still share. The level is
// clamped to the depth of the index. It returns a level of -1 when the index
// is not created.
func (idx *Index) FindTreeNodeInfo(r GridRect) (level, x, z int) {
	if idx.depth == 0 {
		return -1, 0, 0
	}

	levelX := GridBitsXZ - bits.Len(uint(r.X0^(r.X1-1)))
	levelZ := GridBitsXZ - bits.Len(uint(r.Z0^(r.Z1-1)))
	level = min(levelX, levelZ, idx.depth-1)

	shift := GridBitsXZ - level
	return level, r.X0 >> shift, r.Z0 >> shift
}

// FindTreeNode returns the smallest cell that fully contains the X-Z span of
// r, or nil when there is none.
func (idx *Index) FindTreeNode(r GridRect) *Cell {
	level, x, z := idx.FindTreeNodeInfo(r)
	return idx.Cell(level, x, z)
}

// Cell returns the cell at the given level and coordinates, or nil when they
// are out of range.
func (idx *Index) Cell(level, x, z int) *Cell {
	if level < 0 || level >= len(idx.levels) {
		return nil
	}
	side := 1 << level
	if x < 0 || x >= side || z < 0 || z >= side {
		return nil
	}
	return &idx.levels[level][z*side+x]
}

func (idx *Index) cell(h CellHandle) *Cell {
	if !h.Valid() || int(h.Level) >= len(idx.levels) {
		return nil
	}
	cells := idx.levels[h.Level]
	if int(h.Index) >= len(cells) {
		return nil
	}
	return &cells[h.Index]
}

// CalcVisibleEntities resets out and fills it with the ids of the objects
// found in the cells covered by query that pass the frustum tests.
//
// Levels are visited from the root. At each level, the cells covered by the
// query are skipped when their aggregate mask has no bit in common with the
// query's, and the walk stops at the first level where every covered cell was
// skipped. Cells inside the covered range only test the residents' masks and
// the frustum; cells on its border also test the residents' world bounds
// against query.
//
// The result is therefore resolved to grid units: in interior cells an object
// sharing a vertical grid unit with query is returned even when its world
// bounds miss query on Y. The query is quantized like object bounds, so its
// max corner is shrunk by the quantize epsilon and an object overlapping it by
// less than that, in the next grid unit, is not returned.
//
// When out is full, the ids gathered so far are kept and an error with the
// ErrTypeCapacityExceeded type is returned.
func (idx *Index) CalcVisibleEntities(query Box, f Frustum, out *VisibleSet) error {
	out.Reset()

	if idx.levels == nil {
		return errors.New("quad tree is not created").
			WithType(ErrTypeNotCreated).
			WithTag("name", idx.name)
	}

	start := time.Now()
	r := idx.WorldToGrid(query)
	q := SearchQuery{
		Box:     query,
		Mask:    r.YMask(),
		Frustum: f,
	}

	var visited, pruned int
	err := func() error {
		for level := 0; level < idx.depth; level++ {
			shift := GridBitsXZ - level
			x0, x1 := r.X0>>shift, (r.X1-1)>>shift
			z0, z1 := r.Z0>>shift, (r.Z1-1)>>shift

			side := 1 << level
			cells := idx.levels[level]
			found := false

			for z := z0; z <= z1; z++ {
				for x := x0; x <= x1; x++ {
					c := &cells[z*side+x]
					if !idx.noMaskPruning && c.aggregateMask&q.Mask == 0 {
						pruned++
						continue
					}
					found = true
					visited++

					if c.head == nil {
						continue
					}

					var err error
					if x == x0 || x == x1 || z == z0 || z == z1 {
						err = c.TestLocalMembersForSearchResultsEdge(&q, out)
					} else {
						err = c.TestLocalMembersForSearchResults(&q, out)
					}
					if err != nil {
						return err
					}
				}
			}

			if !found {
				return nil
			}
		}
		return nil
	}()

	idx.metrics.instrumentQuery(time.Since(start), out.Len(), visited, pruned, q.tested)
	if err != nil {
		logs.WithTag("name", idx.name).
			WithTag("visible", out.Len()).
			Warn(err)
		idx.metrics.instrumentError(err)
	}
	return err
}

func handle(level, x, z int) CellHandle {
	return CellHandle{
		Level: int32(level),
		Index: int32(z<<level + x),
	}
}

func gridScale(gridSize int, extent float32) float32 {
	if extent <= 0 {
		return 0
	}
	return float32(gridSize) / extent
}

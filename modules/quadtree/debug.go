package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

type LevelDebugInfo struct {
	Level         int `json:"level"`
	Cells         int `json:"cells"`
	OccupiedCells int `json:"occupied_cells"`
	MaskedCells   int `json:"masked_cells"`
	Objects       int `json:"objects"`
}

type DebugInfo struct {
	Name     string           `json:"name"`
	Depth    int              `json:"depth"`
	WorldMin Vector3f         `json:"world_min"`
	WorldMax Vector3f         `json:"world_max"`
	Objects  int              `json:"objects"`
	Cells    int              `json:"cells"`
	RootMask uint32           `json:"root_mask"`
	Levels   []LevelDebugInfo `json:"levels"`
}

// DebugInfo returns the occupancy of each level.
func (idx *Index) DebugInfo() DebugInfo {
	result := DebugInfo{
		Name:     idx.name,
		Depth:    idx.depth,
		WorldMin: idx.world.Min,
		WorldMax: idx.world.Max,
		Objects:  idx.objects,
		Levels:   make([]LevelDebugInfo, len(idx.levels)),
	}

	for level, cells := range idx.levels {
		info := LevelDebugInfo{
			Level: level,
			Cells: len(cells),
		}
		for i := range cells {
			c := &cells[i]
			if c.count != 0 {
				info.OccupiedCells++
				info.Objects += c.count
			}
			if c.aggregateMask != 0 {
				info.MaskedCells++
			}
		}
		result.Levels[level] = info
		result.Cells += len(cells)
	}

	if root := idx.Cell(0, 0, 0); root != nil {
		result.RootMask = root.aggregateMask
	}
	return result
}

// CheckMasks recomputes every mask from the residents, bottom-up, and returns
// an error describing the first cell whose maintained masks differ.
func (idx *Index) CheckMasks() error {
	if idx.levels == nil {
		return nil
	}

	var below []uint32
	for level := len(idx.levels) - 1; level >= 0; level-- {
		cells := idx.levels[level]
		side := 1 << level
		aggregates := make([]uint32, len(cells))

		for i := range cells {
			c := &cells[i]

			var local uint32
			count := 0
			for o := c.head; o != nil; o = o.next {
				if o.cell != c || o.mask != o.rect.YMask() {
					return errors.New("quad tree resident is inconsistent").
						WithType(ErrTypeMaskMismatch).
						WithTag("entity_id", o.id).
						WithTag("level", level).
						WithTag("x", c.x).
						WithTag("z", c.z)
				}
				local |= o.mask
				count++
			}

			aggregate := local
			if below != nil {
				x, z := int(c.x), int(c.z)
				childSide := side << 1
				for _, child := range [4]int{
					(z<<1)*childSide + x<<1,
					(z<<1)*childSide + x<<1 + 1,
					(z<<1+1)*childSide + x<<1,
					(z<<1+1)*childSide + x<<1 + 1,
				} {
					aggregate |= below[child]
				}
			}
			aggregates[i] = aggregate

			if count != c.count || local != c.localMask || aggregate != c.aggregateMask {
				return errors.New("quad tree cell masks differ from a full recomputation").
					WithType(ErrTypeMaskMismatch).
					WithTag("level", level).
					WithTag("x", c.x).
					WithTag("z", c.z).
					WithTag("count", c.count).
					WithTag("expected_count", count).
					WithTag("local_mask", c.localMask).
					WithTag("expected_local_mask", local).
					WithTag("aggregate_mask", c.aggregateMask).
					WithTag("expected_aggregate_mask", aggregate)
			}
		}
		below = aggregates
	}
	return nil
}

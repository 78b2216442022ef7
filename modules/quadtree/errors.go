package quadtree

const (
	// The quad tree has already been created.
	ErrTypeAlreadyCreated = "quadtree_already_created"

	// The quad tree has not been created or has been destroyed.
	ErrTypeNotCreated = "quadtree_not_created"

	// No cell could be found for a quantized rect.
	ErrTypeCellNotFound = "quadtree_cell_not_found"

	// An object was removed from a cell that does not own it.
	ErrTypeNotResident = "quadtree_not_resident"

	// An object pool or a visible result buffer is full.
	ErrTypeCapacityExceeded = "quadtree_capacity_exceeded"

	// An object is not attached to a quad tree.
	ErrTypeNotAttached = "quadtree_not_attached"

	// Masks maintained incrementally differ from a full recomputation.
	ErrTypeMaskMismatch = "quadtree_mask_mismatch"
)

package modules

import (
	"context"

	"github.com/aukilabs/quadcull/models"
)

// Module is the interface that describes a system that runs on every frame
// of a scene.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module.
	Init(*models.Scene)

	// Handles the update pass of a frame. Entities are given sorted by id and
	// their change flags are already cleared; the poses and bounds set here
	// are applied to the quad tree once every module is done.
	//
	// Returning an error stops the update pass of the current frame.
	HandleUpdate(ctx context.Context, entities []*models.Entity) error

	// Handles the query pass of a frame, once the quad tree is up to date.
	HandleQuery(ctx context.Context, frame uint64) error

	// Releases the module resources.
	Close()
}

package http

import (
	"net/http"
	"strconv"

	"github.com/DmitriyVTitov/size"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/dustin/go-humanize"
	"github.com/segmentio/encoding/json"
)

// QuadTreeDebug is the snapshot returned by the quad tree debug endpoint.
type QuadTreeDebug struct {
	Scene       string                  `json:"scene"`
	SceneUUID   string                  `json:"scene_uuid"`
	Frame       uint64                  `json:"frame"`
	Index       quadtree.DebugInfo      `json:"index"`
	MemoryBytes int                     `json:"memory_bytes"`
	Memory      string                  `json:"memory"`
	MaskCheck   string                  `json:"mask_check"`
	Entities    []models.EntitySnapshot `json:"entities,omitempty"`
}

// HandleDebugQuadTree writes a JSON snapshot of the scene quad tree. The
// entities are listed when the entities query parameter is true.
func HandleDebugQuadTree(scene *models.Scene) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withEntities, _ := strconv.ParseBool(r.URL.Query().Get("entities"))

		res := QuadTreeDebug{
			Scene:     scene.Name,
			SceneUUID: scene.SceneUUID,
			Frame:     scene.Frame(),
			MaskCheck: "ok",
		}

		scene.ReadIndex(func(idx *quadtree.Index) {
			res.Index = idx.DebugInfo()
			res.MemoryBytes = size.Of(idx)

			if err := idx.CheckMasks(); err != nil {
				res.MaskCheck = err.Error()
				logs.WithTag("scene", scene.Name).Error(err)
			}
		})
		if res.MemoryBytes > 0 {
			res.Memory = humanize.Bytes(uint64(res.MemoryBytes))
		}

		if withEntities {
			res.Entities = scene.EntitySnapshots()
		}

		data, err := json.Marshal(res)
		if err != nil {
			logs.Error(errors.New("encoding quad tree snapshot failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

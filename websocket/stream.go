package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/visibility"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// The header where clients can set their id.
	HeaderClientID = "X-Client-Id"

	resultChanSize = 64
)

// StreamHandler streams the visibility results of a scene to a client.
type StreamHandler struct {
	// The scene the client watches.
	Scene *models.Scene

	// The state where the visibility module publishes its results.
	Visibility *visibility.State

	// The time a client is idle before being disconnected. 0 keeps clients
	// connected until they leave.
	ClientIdleTimeout time.Duration

	conn        *websocket.Conn
	clientID    string
	results     chan visibility.Result
	unsubscribe func()
	dropped     atomic.Uint64

	filterMutex sync.RWMutex
	cameraIDs   map[uint32]struct{}
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.subscribe(resultChanSize)
}

// subscribe delivers the published results to the Results channel. Results
// published while the channel is full are dropped.
func (h *StreamHandler) subscribe(size int) {
	h.results = make(chan visibility.Result, size)
	if h.Visibility == nil {
		return
	}

	h.unsubscribe = h.Visibility.Subscribe(func(r visibility.Result) {
		select {
		case h.results <- r:
		default:
			h.dropped.Add(1)
		}
	})
}

func (h *StreamHandler) HandleDisconnect(err error) {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

// HandleSubscribe restricts the streamed results to the requested cameras.
// An empty camera list streams every camera.
func (h *StreamHandler) HandleSubscribe(ctx context.Context, respond ResponseSender, msg Msg) error {
	known := make(map[uint32]struct{})
	for _, c := range h.Scene.Cameras() {
		known[c.ID] = struct{}{}
	}

	cameraIDs := make(map[uint32]struct{}, len(msg.CameraIDs))
	for _, id := range msg.CameraIDs {
		if _, ok := known[id]; !ok {
			respond.Send(Msg{
				Type:      MsgTypeError,
				RequestID: msg.RequestID,
				Timestamp: time.Now().UnixMilli(),
				CameraIDs: []uint32{id},
				Error:     "camera not found",
			})
			return nil
		}
		cameraIDs[id] = struct{}{}
	}

	h.filterMutex.Lock()
	h.cameraIDs = cameraIDs
	h.filterMutex.Unlock()

	respond.Send(Msg{
		Type:      MsgTypeSubscribeResponse,
		RequestID: msg.RequestID,
		Timestamp: time.Now().UnixMilli(),
		CameraIDs: sortedCameraIDs(cameraIDs),
	})
	return nil
}

func (h *StreamHandler) HandleResult(ctx context.Context, respond ResponseSender, r visibility.Result) error {
	if !h.streams(r.CameraID) {
		return nil
	}

	respond.Send(Msg{
		Type:      MsgTypeVisibility,
		Timestamp: time.Now().UnixMilli(),
		Result:    &r,
	})
	return nil
}

func (h *StreamHandler) SendScene(ctx context.Context, respond ResponseSender) error {
	if h.Scene == nil {
		return errors.New("no scene to stream")
	}

	world := h.Scene.World()
	cameras := h.Scene.Cameras()
	info := SceneInfo{
		Name:     h.Scene.Name,
		UUID:     h.Scene.SceneUUID,
		Frame:    h.Scene.Frame(),
		WorldMin: world.Min,
		WorldMax: world.Max,
		Entities: h.Scene.EntityCount(),
		Cameras:  make([]models.CameraSnapshot, len(cameras)),
	}
	for i, c := range cameras {
		info.Cameras[i] = c.Snapshot()
	}

	respond.Send(Msg{
		Type:      MsgTypeScene,
		Timestamp: time.Now().UnixMilli(),
		Scene:     &info,
	})

	if h.Visibility == nil {
		return nil
	}
	for _, r := range h.Visibility.Results() {
		if err := h.HandleResult(ctx, respond, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *StreamHandler) Results() <-chan visibility.Result {
	return h.results
}

func (h *StreamHandler) DroppedResults() uint64 {
	return h.dropped.Load()
}

func (h *StreamHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeMsgInvalid).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func (h *StreamHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.TypeString()).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *StreamHandler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}

func (h *StreamHandler) streams(cameraID uint32) bool {
	h.filterMutex.RLock()
	defer h.filterMutex.RUnlock()

	if len(h.cameraIDs) == 0 {
		return true
	}
	_, ok := h.cameraIDs[cameraID]
	return ok
}

func sortedCameraIDs(ids map[uint32]struct{}) []uint32 {
	res := make([]uint32, 0, len(ids))
	for id := range ids {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i] < res[j]
	})
	return res
}

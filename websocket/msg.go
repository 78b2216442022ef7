package websocket

import (
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/aukilabs/quadcull/modules/visibility"
)

const (
	// A message could not be decoded.
	ErrTypeMsgInvalid = "websocket-msg-invalid"
)

const (
	MsgTypePing              = "ping"
	MsgTypePong              = "pong"
	MsgTypeSubscribe         = "subscribe"
	MsgTypeSubscribeResponse = "subscribe_response"
	MsgTypeScene             = "scene"
	MsgTypeVisibility        = "visibility"
	MsgTypeError             = "error"
)

// Msg is a JSON message exchanged with a stream client.
type Msg struct {
	Type      string             `json:"type"`
	RequestID uint32             `json:"request_id,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
	CameraIDs []uint32           `json:"camera_ids,omitempty"`
	Scene     *SceneInfo         `json:"scene,omitempty"`
	Result    *visibility.Result `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// TypeString returns the message type to use in logs and metric labels.
func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return m.Type
}

// SceneInfo describes the scene a client is connected to.
type SceneInfo struct {
	Name     string                  `json:"name"`
	UUID     string                  `json:"uuid"`
	Frame    uint64                  `json:"frame"`
	WorldMin quadtree.Vector3f       `json:"world_min"`
	WorldMax quadtree.Vector3f       `json:"world_max"`
	Entities int                     `json:"entities"`
	Cameras  []models.CameraSnapshot `json:"cameras"`
}

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// Receiver waits for a message and returns it with the number of bytes
// read.
type Receiver func() (Msg, int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(Msg)
}

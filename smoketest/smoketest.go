package smoketest

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	qwebsocket "github.com/aukilabs/quadcull/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	defaultTimeout = time.Second * 10
	pingRequestID  = 1
)

type Options struct {
	// The endpoint of the server running the smoke tests.
	Endpoint string

	UserAgent string

	// Reports the result of a smoke test.
	SendResult func(context.Context, Result) error
}

// Request is the body of a smoke test request.
type Request struct {
	// The endpoint of the server to test.
	Endpoint string `json:"endpoint"`

	TimeoutMilliSec int64 `json:"timeout_ms,omitempty"`
}

type Result struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Status          string  `json:"status"`
	Scene           string  `json:"scene,omitempty"`
	Cameras         int     `json:"cameras,omitempty"`
	LatencyMilliSec float64 `json:"latency_ms,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// HandleSmokeTest starts a smoke test against the requested endpoint and
// responds without waiting for it. The result is passed to opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		timeout := time.Duration(req.TimeoutMilliSec) * time.Millisecond
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		go func() {
			res, err := Run(ctx, opts.Endpoint, req.Endpoint, opts.UserAgent, timeout)
			if err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run connects to the visibility stream of the to endpoint, waits for the
// scene description and measures the latency of a ping.
func Run(ctx context.Context, from, to, userAgent string, timeout time.Duration) (Result, error) {
	res := Result{
		FromEndpoint: from,
		ToEndpoint:   to,
		Status:       StatusFailure,
	}

	err := run(ctx, &res, userAgent, timeout)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", to).
			Wrap(err)
	}

	res.Status = StatusSuccess
	return res, nil
}

func run(ctx context.Context, res *Result, userAgent string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	config, err := websocket.NewConfig(streamURL(res.ToEndpoint), res.FromEndpoint)
	if err != nil {
		return errors.New("invalid endpoint").Wrap(err)
	}
	config.Header.Set("User-Agent", userAgent)
	config.Dialer = &net.Dialer{Timeout: timeout}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return errors.New("dialing stream failed").Wrap(err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	msg, err := receive(conn, qwebsocket.MsgTypeScene)
	if err != nil {
		return err
	}
	if msg.Scene != nil {
		res.Scene = msg.Scene.Name
		res.Cameras = len(msg.Scene.Cameras)
	}

	start := time.Now()
	data, _ := json.Marshal(qwebsocket.Msg{
		Type:      qwebsocket.MsgTypePing,
		RequestID: pingRequestID,
	})
	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return errors.New("sending ping failed").Wrap(err)
	}

	if _, err = receive(conn, qwebsocket.MsgTypePong); err != nil {
		return err
	}
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000
	return nil
}

// receive waits for a message of the given type, skipping the others.
func receive(conn *websocket.Conn, msgType string) (qwebsocket.Msg, error) {
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return qwebsocket.Msg{}, errors.New("receiving message failed").
				WithTag("expected_msg_type", msgType).
				Wrap(err)
		}

		var msg qwebsocket.Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return qwebsocket.Msg{}, errors.New("decoding message failed").Wrap(err)
		}
		if msg.Type == msgType {
			return msg, nil
		}
	}
}

func streamURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint + "/stream"
}

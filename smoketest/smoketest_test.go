package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
	qwebsocket "github.com/aukilabs/quadcull/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	scene := models.NewScene(1, "smoke", quadtree.NewBox(
		quadtree.Vector3f{},
		quadtree.Vector3f{X: 64, Y: 16, Z: 64},
	), 4)
	t.Cleanup(scene.Close)
	scene.AddCamera(&models.Camera{Name: "main", FovY: 1, Aspect: 1, Near: 0.1, Far: 10})

	var mux http.ServeMux
	mux.Handle("/stream", websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := &qwebsocket.StreamHandler{Scene: scene}
			defer h.Close()

			qwebsocket.Handle(context.Background(), conn, h)
		},
	})

	server := httptest.NewServer(&mux)
	t.Cleanup(server.Close)
	return server
}

func TestRun(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := newTestServer(t)

		res, err := Run(context.Background(), "http://localquadcull", server.URL, "test", time.Second)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, "http://localquadcull", res.FromEndpoint)
		require.Equal(t, server.URL, res.ToEndpoint)
		require.Equal(t, "smoke", res.Scene)
		require.Equal(t, 1, res.Cameras)
		require.Empty(t, res.Error)
	})

	t.Run("no stream", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		res, err := Run(context.Background(), "http://localquadcull", server.URL, "test", time.Second)
		require.Error(t, err)
		require.Equal(t, StatusFailure, res.Status)
		require.NotEmpty(t, res.Error)
	})

	t.Run("timeout", func(t *testing.T) {
		var mux http.ServeMux
		mux.Handle("/stream", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				time.Sleep(time.Millisecond * 200)
				conn.Close()
			},
		})
		server := httptest.NewServer(&mux)
		defer server.Close()

		res, err := Run(context.Background(), "http://localquadcull", server.URL, "test", time.Millisecond*50)
		require.Error(t, err)
		require.Equal(t, StatusFailure, res.Status)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		server := newTestServer(t)
		results := make(chan Result, 1)

		smokeTest := HandleSmokeTest(context.Background(), Options{
			Endpoint: "http://localquadcull",
			SendResult: func(_ context.Context, res Result) error {
				results <- res
				return nil
			},
		})

		body, err := json.Marshal(Request{
			Endpoint:        server.URL,
			TimeoutMilliSec: 1000,
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code)

		select {
		case res := <-results:
			require.Equal(t, StatusSuccess, res.Status)
			require.Equal(t, server.URL, res.ToEndpoint)

		case <-time.After(time.Second * 2):
			t.Fatal("no smoke test result")
		}
	})

	t.Run("bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		w := httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{"))))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{}"))))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStreamURL(t *testing.T) {
	require.Equal(t, "ws://localhost:4100/stream", streamURL("http://localhost:4100"))
	require.Equal(t, "wss://quadcull.example.com/stream", streamURL("https://quadcull.example.com/"))
}

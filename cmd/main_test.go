package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/aukilabs/quadcull/modules/visibility"
	"github.com/stretchr/testify/require"
)

func validTestConfig() config {
	return config{
		PublicEndpoint:     "http://localhost:4100",
		FrameDuration:      time.Second / 30,
		LogSummaryInterval: time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*config)
		isValid bool
	}{
		{
			name:    "valid",
			edit:    func(c *config) {},
			isValid: true,
		},
		{
			name: "invalid public endpoint",
			edit: func(c *config) {
				c.PublicEndpoint = "localhost"
			},
		},
		{
			name: "zero frame duration",
			edit: func(c *config) {
				c.FrameDuration = 0
			},
		},
		{
			name: "zero log summary interval",
			edit: func(c *config) {
				c.LogSummaryInterval = 0
			},
		},
		{
			name: "negative idle timeout",
			edit: func(c *config) {
				c.ClientIdleTimeout = -time.Second
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := validTestConfig()
			test.edit(&c)

			err := validateConfig(c)
			if test.isValid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

func TestSetFileLogger(t *testing.T) {
	c := validTestConfig()
	c.LogFile = filepath.Join(t.TempDir(), "quadcull.log")
	c.LogMaxSize = 1
	c.LogMaxAge = 1

	logs.SetInlineEncoder()
	closeLogFile := setFileLogger(c)
	logs.WithTag("scene", "test").Info("written to file")
	closeLogFile()

	data, err := os.ReadFile(c.LogFile)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "written to file"))
}

func TestMuxes(t *testing.T) {
	scene := models.NewScene(1, "mux", quadtree.NewBox(
		quadtree.Vector3f{},
		quadtree.Vector3f{X: 64, Y: 16, Z: 64},
	), 4)
	defer scene.Close()

	ready := func() bool { return true }
	conf := validTestConfig()
	service := newServiceMux(context.Background(), conf, featureflag.New(nil), scene, &visibility.State{}, ready)
	admin := newAdminMux(context.Background(), conf, scene, ready)

	get := func(h http.Handler, path string) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	t.Run("quad tree debug is admin only", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, get(service, "/debug/quadtree"))
		require.Equal(t, http.StatusOK, get(admin, "/debug/quadtree"))
	})

	t.Run("health checks", func(t *testing.T) {
		require.Equal(t, http.StatusOK, get(service, "/health"))
		require.Equal(t, http.StatusOK, get(admin, "/health"))
	})
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadcull/featureflag"
	quadcullhttp "github.com/aukilabs/quadcull/http"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/modules"
	"github.com/aukilabs/quadcull/modules/motion"
	"github.com/aukilabs/quadcull/modules/quadtree"
	"github.com/aukilabs/quadcull/modules/visibility"
	"github.com/aukilabs/quadcull/smoketest"
	qwebsocket "github.com/aukilabs/quadcull/websocket"
	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

var (
	// The quadcull version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadcull_info",
		Help:        "Quadcull information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADCULL_ADDR"                 help:"Listening address for stream clients."`
	AdminAddr          string        `cli:""        env:"QUADCULL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADCULL_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	SceneFile          string        `cli:""        env:"QUADCULL_SCENE_FILE"           help:"TOML file describing the simulated scene. A default scene is used when empty."`
	LogLevel           string        `cli:""        env:"QUADCULL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADCULL_LOG_INDENT"           help:"Indent logs."`
	LogFile            string        `cli:""        env:"QUADCULL_LOG_FILE"             help:"Rotating file where logs are written instead of the standard output."`
	LogMaxSize         int           `cli:",hidden" env:"QUADCULL_LOG_MAX_SIZE"         help:"The size in megabytes of a log file before it is rotated."`
	LogMaxAge          int           `cli:",hidden" env:"QUADCULL_LOG_MAX_AGE"          help:"The number of days rotated log files are kept."`
	FrameDuration      time.Duration `cli:",hidden" env:"QUADCULL_FRAME_DURATION"       help:"The duration of a scene frame."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADCULL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle stream client will be disconnected. 0 disables it."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADCULL_LOG_SUMMARY_INTERVAL" help:"The duration between each frame and connection log summary."`
	MotionSeed         int           `cli:",hidden" env:"QUADCULL_MOTION_SEED"          help:"The seed of the entity random walk."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADCULL_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		LogMaxSize:         100,
		LogMaxAge:          7,
		FrameDuration:      time.Second / 30,
		LogSummaryInterval: time.Minute,
		MotionSeed:         1,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the quadcull simulation server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.LogFile != "" {
		closeLogFile := setFileLogger(conf)
		defer closeLogFile()
	}

	flags := featureflag.New(conf.FeatureFlags)

	sceneConf := models.DefaultSceneConfig()
	if conf.SceneFile != "" {
		var err error
		if sceneConf, err = models.LoadSceneConfig(conf.SceneFile); err != nil {
			logs.Fatal(errors.New("loading scene file failed").Wrap(err))
		}
	}

	var indexOpts []quadtree.Option
	flags.IfSet(featureflag.FlagDisableMaskPruning, func() {
		indexOpts = append(indexOpts, quadtree.WithoutMaskPruning())
	})

	scene, err := models.NewSceneFromConfig(1, sceneConf, indexOpts...)
	if err != nil {
		logs.Fatal(errors.New("creating scene failed").Wrap(err))
	}
	defer scene.Close()

	visibilityModule := &visibility.Module{}
	visibilityState := &visibility.State{}
	scene.SetModuleState(visibilityModule.Name(), visibilityState)

	sceneModules := []modules.Module{}
	flags.IfNotSet(featureflag.FlagDisableMotion, func() {
		sceneModules = append(sceneModules, &motion.Module{
			Jitter:        0.1,
			FrameDuration: conf.FrameDuration,
			Seed:          int64(conf.MotionSeed),
		})
	})
	sceneModules = append(sceneModules, visibilityModule)

	runner := &modules.Runner{
		Scene:           scene,
		Modules:         sceneModules,
		FrameDuration:   conf.FrameDuration,
		SummaryInterval: conf.LogSummaryInterval,
	}

	readyChan := make(chan struct{})
	readinessCheck := func() bool {
		select {
		case <-readyChan:
			return true
		default:
			return false
		}
	}

	service := newServiceMux(ctx, conf, flags, scene, visibilityState, readinessCheck)
	admin := newAdminMux(ctx, conf, scene, readinessCheck)

	var indexSize int
	scene.ReadIndex(func(idx *quadtree.Index) {
		indexSize = size.Of(idx)
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("scene", scene.Name).
		WithTag("entities", scene.EntityCount()).
		WithTag("cameras", len(scene.Cameras())).
		WithTag("depth", sceneConf.Depth).
		WithTag("index_memory", humanize.Bytes(uint64(max(indexSize, 0)))).
		WithTag("feature_flags", flags.Strings()).
		Info("starting quadcull server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		close(readyChan)
		return runner.Run(ctx)
	})
	g.Go(func() error {
		return quadcullhttp.ListenAndServe(ctx, &http.Server{
			Addr: conf.Addr,
			Handler: metrics.HTTPHandler(service,
				quadcullhttp.MetricsPathFormatter),
		})
	})
	g.Go(func() error {
		return quadcullhttp.ListenAndServe(ctx, &http.Server{
			Addr:    conf.AdminAddr,
			Handler: admin,
		})
	})

	if err := g.Wait(); err != nil {
		logs.Error(errors.New("quadcull server stopped").Wrap(err))
		os.Exit(1)
	}
}

// newServiceMux returns the handlers served to stream clients.
func newServiceMux(ctx context.Context, conf config, flags featureflag.FeatureFlag, scene *models.Scene, visibilityState *visibility.State, readinessCheck func() bool) *http.ServeMux {
	var service http.ServeMux
	service.Handle("/health", quadcullhttp.HandleWithCORS(http.HandlerFunc(quadcullhttp.HandleHealthCheck)))
	service.Handle("/version", quadcullhttp.HandleWithCORS(http.HandlerFunc(quadcullhttp.HandleVersion(version))))
	service.Handle("/ready", quadcullhttp.HandleWithCORS(quadcullhttp.HandleReadyCheck(readinessCheck)))

	flags.IfNotSet(featureflag.FlagDisableVisibilityStream, func() {
		service.Handle("/stream", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h qwebsocket.Handler = &qwebsocket.StreamHandler{
					Scene:             scene,
					Visibility:        visibilityState,
					ClientIdleTimeout: conf.ClientIdleTimeout,
				}
				h = qwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = qwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				qwebsocket.Handle(ctx, conn, h)
			},
		})
	})
	return &service
}

// newAdminMux returns the operator handlers. The quad tree debug snapshot
// walks every cell under the scene read lock, so it is only served here.
func newAdminMux(ctx context.Context, conf config, scene *models.Scene, readinessCheck func() bool) *http.ServeMux {
	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", quadcullhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", quadcullhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/quadtree", quadcullhttp.HandleDebugQuadTree(scene))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: "quadcull/" + version,
		SendResult: func(_ context.Context, res smoketest.Result) error {
			logs.WithTag("smoke_test", res).Info("smoke test done")
			return nil
		},
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	return &admin
}

// setFileLogger writes the logs to a rotating file and returns a function
// that closes it.
func setFileLogger(conf config) func() {
	l := &lumberjack.Logger{
		Filename: conf.LogFile,
		MaxSize:  conf.LogMaxSize, // megabytes
		MaxAge:   conf.LogMaxAge,  // days
	}

	var mutex sync.Mutex
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		fmt.Fprintln(l, e)
	})

	return func() {
		mutex.Lock()
		defer mutex.Unlock()

		l.Close()
	}
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if conf.ClientIdleTimeout < 0 {
		return errors.New("client idle timeout can't be negative").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}
	return nil
}

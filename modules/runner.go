package modules

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/models"
)

const (
	defaultFrameDuration   = time.Second / 30
	defaultSummaryInterval = time.Minute
)

// Runner drives the frames of a scene: each frame runs the update pass of
// every module inside Scene.Step, then the query pass of every module.
type Runner struct {
	// The scene the frames are run on.
	Scene *models.Scene

	// The modules run on every frame, in order.
	Modules []Module

	// The interval between two frames.
	FrameDuration time.Duration

	// The interval between two frame summary logs.
	SummaryInterval time.Duration

	initOnce     sync.Once
	closeOnce    sync.Once
	counterMutex sync.Mutex
	counter      map[string]int
	frameTime    time.Duration
}

func (r *Runner) init() {
	if r.FrameDuration <= 0 {
		r.FrameDuration = defaultFrameDuration
	}
	if r.SummaryInterval <= 0 {
		r.SummaryInterval = defaultSummaryInterval
	}
	r.counter = make(map[string]int)

	for _, m := range r.Modules {
		m.Init(r.Scene)
	}
}

// Frame runs a single frame. A failing update pass does not prevent the
// query pass: the quad tree stays consistent for the entities that were
// updated. The first error is returned.
func (r *Runner) Frame(ctx context.Context) error {
	r.initOnce.Do(r.init)
	start := time.Now()

	err := r.Scene.Step(ctx, func(ctx context.Context, entities []*models.Entity) error {
		for _, m := range r.Modules {
			err := measureLatency(m, updatePhase, func() error {
				return m.HandleUpdate(ctx, entities)
			})
			if err != nil {
				return errors.New("module update failed").
					WithTag("module", m.Name()).
					Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		logs.WithTag("scene", r.Scene.Name).Error(err)
		r.incCounter("update_errors")
	}

	frame := r.Scene.Frame()
	for _, m := range r.Modules {
		qerr := measureLatency(m, queryPhase, func() error {
			return m.HandleQuery(ctx, frame)
		})
		if qerr == nil {
			continue
		}

		logs.WithTag("scene", r.Scene.Name).
			WithTag("module", m.Name()).
			WithTag("frame", frame).
			Error(qerr)
		r.incCounter("query_errors")
		if err == nil {
			err = qerr
		}
	}

	d := time.Since(start)
	instrumentFrame(r.Scene.Name, d)

	r.counterMutex.Lock()
	r.counter["frames"]++
	r.frameTime += d
	r.counterMutex.Unlock()
	return err
}

// Run runs frames until the context is canceled. Frame errors are logged and
// do not stop the runner.
func (r *Runner) Run(ctx context.Context) error {
	r.initOnce.Do(r.init)
	defer r.Close()

	frameTicker := time.NewTicker(r.FrameDuration)
	defer frameTicker.Stop()

	summaryTicker := time.NewTicker(r.SummaryInterval)
	defer summaryTicker.Stop()

	logs.WithTag("scene", r.Scene.Name).
		WithTag("scene_uuid", r.Scene.SceneUUID).
		WithTag("frame_duration", r.FrameDuration).
		WithTag("modules", len(r.Modules)).
		Info("frame runner started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-frameTicker.C:
			r.Frame(ctx)

		case <-summaryTicker.C:
			r.logSummary()
		}
	}
}

// Close closes the modules and logs the last summary.
func (r *Runner) Close() {
	r.initOnce.Do(r.init)

	r.closeOnce.Do(func() {
		for _, m := range r.Modules {
			m.Close()
		}
		r.logSummary()
	})
}

func (r *Runner) incCounter(name string) {
	r.counterMutex.Lock()
	defer r.counterMutex.Unlock()

	r.counter[name]++
}

func (r *Runner) logSummary() {
	r.counterMutex.Lock()
	defer r.counterMutex.Unlock()

	frames := r.counter["frames"]
	if frames == 0 {
		return
	}

	entry := logs.WithTag("scene", r.Scene.Name).
		WithTag("time_interval", r.SummaryInterval).
		WithTag("avg_frame_time", r.frameTime/time.Duration(frames))

	for k, v := range r.counter {
		entry = entry.WithTag(k, v)
		delete(r.counter, k)
	}
	r.frameTime = 0

	entry.Info("frame summary")
}

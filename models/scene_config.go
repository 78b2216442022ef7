package models

import (
	"math"
	"math/rand"

	"github.com/BurntSushi/toml"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/modules/quadtree"
)

const ErrTypeInvalidSceneConfig = "invalid-scene-config"

// SceneConfig describes a scene loaded from a TOML file:
//
//	name = "plaza"
//	depth = 8
//
//	[world]
//	min = [-512.0, 0.0, -512.0]
//	max = [512.0, 64.0, 512.0]
//
//	[objects]
//	count = 2000
//	min_size = [0.5, 0.5, 0.5]
//	max_size = [4.0, 8.0, 4.0]
//	seed = 42
//
//	[[cameras]]
//	name = "north"
//	position = [0.0, 16.0, 400.0]
//	yaw = 0.0
//	pitch = -10.0
//	fov_y = 60.0
//	far = 300.0
type SceneConfig struct {
	Name       string         `toml:"name"`
	Depth      int            `toml:"depth"`
	MaxObjects int            `toml:"max_objects"`
	World      WorldConfig    `toml:"world"`
	Objects    ObjectsConfig  `toml:"objects"`
	Cameras    []CameraConfig `toml:"cameras"`
}

type WorldConfig struct {
	Min [3]float32 `toml:"min"`
	Max [3]float32 `toml:"max"`
}

func (c WorldConfig) Box() quadtree.Box {
	return quadtree.NewBox(vector(c.Min), vector(c.Max))
}

// ObjectsConfig describes the entities randomly placed in the world when the
// scene is built.
type ObjectsConfig struct {
	Count   int        `toml:"count"`
	MinSize [3]float32 `toml:"min_size"`
	MaxSize [3]float32 `toml:"max_size"`
	Seed    int64      `toml:"seed"`
}

// CameraConfig describes a camera. Angles are in degrees.
type CameraConfig struct {
	Name     string     `toml:"name"`
	Position [3]float32 `toml:"position"`
	Yaw      float32    `toml:"yaw"`
	Pitch    float32    `toml:"pitch"`
	FovY     float32    `toml:"fov_y"`
	Aspect   float32    `toml:"aspect"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
	Capacity int        `toml:"capacity"`
}

func (c CameraConfig) Camera() *Camera {
	return &Camera{
		Name:     c.Name,
		Position: vector(c.Position),
		Yaw:      radians(c.Yaw),
		Pitch:    radians(c.Pitch),
		FovY:     radians(c.FovY),
		Aspect:   c.Aspect,
		Near:     c.Near,
		Far:      c.Far,
		Capacity: c.Capacity,
	}
}

// DefaultSceneConfig returns the scene used when no scene file is given.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Name:  "default",
		Depth: 8,
		World: WorldConfig{
			Min: [3]float32{-512, 0, -512},
			Max: [3]float32{512, 64, 512},
		},
		Objects: ObjectsConfig{
			Count:   2000,
			MinSize: [3]float32{0.5, 0.5, 0.5},
			MaxSize: [3]float32{4, 8, 4},
			Seed:    42,
		},
		Cameras: []CameraConfig{
			{
				Name:     "north",
				Position: [3]float32{0, 16, -400},
				Yaw:      180,
				Pitch:    -10,
				FovY:     60,
				Aspect:   16.0 / 9,
				Near:     0.1,
				Far:      400,
			},
			{
				Name:     "overview",
				Position: [3]float32{0, 60, 0},
				Pitch:    -60,
				FovY:     90,
				Aspect:   1,
				Near:     0.1,
				Far:      800,
			},
		},
	}
}

// LoadSceneConfig reads a scene file. Missing values keep the defaults.
func LoadSceneConfig(filename string) (SceneConfig, error) {
	c := DefaultSceneConfig()
	c.Cameras = nil

	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return SceneConfig{}, errors.New("decoding scene file failed").
			WithType(ErrTypeInvalidSceneConfig).
			WithTag("filename", filename).
			Wrap(err)
	}

	if len(c.Cameras) == 0 {
		c.Cameras = DefaultSceneConfig().Cameras
	}

	for i := range c.Cameras {
		if c.Cameras[i].Aspect == 0 {
			c.Cameras[i].Aspect = 1
		}
		if c.Cameras[i].Near == 0 {
			c.Cameras[i].Near = 0.1
		}
	}

	if err := c.Validate(); err != nil {
		return SceneConfig{}, errors.New("invalid scene file").
			WithType(ErrTypeInvalidSceneConfig).
			WithTag("filename", filename).
			Wrap(err)
	}
	return c, nil
}

// Validate reports the first inconsistent value of the config.
func (c SceneConfig) Validate() error {
	for i := 0; i < 3; i++ {
		if c.World.Max[i] <= c.World.Min[i] {
			return errors.New("world max must be greater than world min").
				WithType(ErrTypeInvalidSceneConfig).
				WithTag("axis", i).
				WithTag("min", c.World.Min[i]).
				WithTag("max", c.World.Max[i])
		}
		if c.Objects.MinSize[i] <= 0 || c.Objects.MaxSize[i] < c.Objects.MinSize[i] {
			return errors.New("object sizes must be positive and ordered").
				WithType(ErrTypeInvalidSceneConfig).
				WithTag("axis", i).
				WithTag("min_size", c.Objects.MinSize[i]).
				WithTag("max_size", c.Objects.MaxSize[i])
		}
	}

	if c.Objects.Count < 0 {
		return errors.New("object count must not be negative").
			WithType(ErrTypeInvalidSceneConfig).
			WithTag("count", c.Objects.Count)
	}

	if c.MaxObjects > 0 && c.Objects.Count > c.MaxObjects {
		return errors.New("object count exceeds the quad tree capacity").
			WithType(ErrTypeInvalidSceneConfig).
			WithTag("count", c.Objects.Count).
			WithTag("max_objects", c.MaxObjects)
	}

	for _, cam := range c.Cameras {
		if cam.FovY <= 0 || cam.FovY >= 180 || cam.Near <= 0 || cam.Far <= cam.Near || cam.Aspect <= 0 {
			return errors.New("invalid camera projection").
				WithType(ErrTypeInvalidSceneConfig).
				WithTag("camera", cam.Name).
				WithTag("fov_y", cam.FovY).
				WithTag("aspect", cam.Aspect).
				WithTag("near", cam.Near).
				WithTag("far", cam.Far)
		}
	}
	return nil
}

// NewSceneFromConfig builds a scene, its cameras and its randomly placed
// entities. The same seed always produces the same entities.
func NewSceneFromConfig(id uint32, c SceneConfig, opts ...quadtree.Option) (*Scene, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.MaxObjects > 0 {
		opts = append(opts, quadtree.WithMaxObjects(c.MaxObjects))
	}

	world := c.World.Box()
	s := NewScene(id, c.Name, world, c.Depth, opts...)

	for _, cam := range c.Cameras {
		s.AddCamera(cam.Camera())
	}

	rnd := rand.New(rand.NewSource(c.Objects.Seed))
	minSize := vector(c.Objects.MinSize)
	maxSize := vector(c.Objects.MaxSize)

	for i := 0; i < c.Objects.Count; i++ {
		size := quadtree.Vector3f{
			X: between(rnd, minSize.X, maxSize.X),
			Y: between(rnd, minSize.Y, maxSize.Y),
			Z: between(rnd, minSize.Z, maxSize.Z),
		}
		half := quadtree.Mul(size, 0.5)

		position := quadtree.Vector3f{
			X: between(rnd, world.Min.X+half.X, world.Max.X-half.X),
			Y: between(rnd, world.Min.Y, world.Max.Y-size.Y),
			Z: between(rnd, world.Min.Z+half.Z, world.Max.Z-half.Z),
		}

		local := quadtree.NewBox(
			quadtree.Vector3f{X: -half.X, Y: 0, Z: -half.Z},
			quadtree.Vector3f{X: half.X, Y: size.Y, Z: half.Z},
		)
		pose := quadtree.Pose{
			Position: position,
			Rotation: quadtree.QuaternionFromAxisAngle(worldUp, rnd.Float32()*2*math.Pi),
		}

		if _, err := s.AddEntity("", local, pose); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

func vector(v [3]float32) quadtree.Vector3f {
	return quadtree.Vector3f{X: v[0], Y: v[1], Z: v[2]}
}

func radians(degrees float32) float32 {
	return degrees * math.Pi / 180
}

// between returns a random value in [lo, hi], or lo when the range is empty.
func between(rnd *rand.Rand, lo, hi float32) float32 {
	if hi <= lo {
		return lo
	}
	return lo + rnd.Float32()*(hi-lo)
}

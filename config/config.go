// Package config loads reservation tuning parameters and scenario
// descriptions from YAML, the same viper-then-yaml.v3 round trip the
// teacher's reinforcement.FromYaml uses: viper reads the file (tolerating
// whatever casing/format quirks its mapstructure decoding introduces), and
// the untyped "def" section is re-marshalled to YAML bytes and unmarshalled
// again into a concrete Go type with yaml.v3, rather than trusting viper's
// own struct decoding for nested, algorithm-specific data.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"intersectioncontrol/geometry"
	"intersectioncontrol/reservation"
	"intersectioncontrol/simenv"
)

// OuterConfig is the top-level YAML envelope: kind names which inner type
// def should be decoded as.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// ReservationConfig is the YAML shape of reservation.Params. A zero field
// means "use the default" — see ParamsOrDefault.
type ReservationConfig struct {
	Delta                   float64 `yaml:"delta"`
	TimeBuffer              float64 `yaml:"timeBuffer"`
	EdgeTileTimeBuffer      float64 `yaml:"edgeTileTimeBuffer"`
	SafetyBufferX           float64 `yaml:"safetyBufferX"`
	SafetyBufferY           float64 `yaml:"safetyBufferY"`
	MustAccelerateThreshold float64 `yaml:"mustAccelerateThreshold"`
}

// ParamsOrDefault fills any zero-valued field from reservation.DefaultParams,
// mirroring the teacher's GetHyperParamOrDefault get-or-default pattern.
func (c ReservationConfig) ParamsOrDefault() reservation.Params {
	def := reservation.DefaultParams()
	p := reservation.Params{
		Delta:                   c.Delta,
		TimeBuffer:              c.TimeBuffer,
		EdgeTileTimeBuffer:      c.EdgeTileTimeBuffer,
		SafetyBufferX:           c.SafetyBufferX,
		SafetyBufferY:           c.SafetyBufferY,
		MustAccelerateThreshold: c.MustAccelerateThreshold,
	}
	if p.Delta == 0 {
		p.Delta = def.Delta
	}
	if p.TimeBuffer == 0 {
		p.TimeBuffer = def.TimeBuffer
	}
	if p.EdgeTileTimeBuffer == 0 {
		p.EdgeTileTimeBuffer = def.EdgeTileTimeBuffer
	}
	if p.SafetyBufferX == 0 {
		p.SafetyBufferX = def.SafetyBufferX
	}
	if p.SafetyBufferY == 0 {
		p.SafetyBufferY = def.SafetyBufferY
	}
	if p.MustAccelerateThreshold == 0 {
		p.MustAccelerateThreshold = def.MustAccelerateThreshold
	}
	return p
}

// LoadIMConfig reads a YAML file whose "def" section decodes as a
// ReservationConfig and returns the resulting reservation.Params.
func LoadIMConfig(path string) (reservation.Params, error) {
	cfg, err := decode[ReservationConfig](path)
	if err != nil {
		return reservation.Params{}, err
	}
	return cfg.ParamsOrDefault(), nil
}

// LaneSpec is one named lane through an intersection: a speed limit and the
// polyline vehicles on it follow.
type LaneSpec struct {
	SpeedLimit float64      `yaml:"speedLimit"`
	Polyline   [][2]float64 `yaml:"polyline"`
}

// IntersectionSpec is the YAML shape of one intersection's static geometry.
type IntersectionSpec struct {
	ID          string              `yaml:"id"`
	Centre      [2]float64          `yaml:"centre"`
	Size        [2]float64          `yaml:"size"`
	Granularity int                 `yaml:"granularity"`
	Lanes       map[string]LaneSpec `yaml:"lanes"`
}

// VehicleSpec is the YAML shape of one vehicle spawn.
type VehicleSpec struct {
	ID               string  `yaml:"id"`
	IntersectionID   string  `yaml:"intersectionId"`
	Lane             string  `yaml:"lane"`
	Length           float64 `yaml:"length"`
	Width            float64 `yaml:"width"`
	SpeedLimit       float64 `yaml:"speedLimit"`
	MaxAcceleration  float64 `yaml:"maxAcceleration"`
	MaxDeceleration  float64 `yaml:"maxDeceleration"`
	ApproachDistance float64 `yaml:"approachDistance"`
	InitialSpeed     float64 `yaml:"initialSpeed"`
	// Protocol selects which agent drives this vehicle: "im" for the
	// centralised reservation protocol, "stip" for the decentralised one.
	Protocol string `yaml:"protocol"`
}

// ScenarioConfig is a complete demo scene: the intersections and the
// vehicles spawned onto them.
type ScenarioConfig struct {
	Intersections []IntersectionSpec `yaml:"intersections"`
	Vehicles      []VehicleSpec      `yaml:"vehicles"`
}

// LoadScenario reads a YAML file whose "def" section decodes as a
// ScenarioConfig.
func LoadScenario(path string) (*ScenarioConfig, error) {
	cfg, err := decode[ScenarioConfig](path)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildIntersections converts every IntersectionSpec into a simenv
// IntersectionConfig, building each lane's geometry.Trajectory from its
// polyline.
func (s *ScenarioConfig) BuildIntersections() ([]simenv.IntersectionConfig, error) {
	out := make([]simenv.IntersectionConfig, 0, len(s.Intersections))
	for _, isec := range s.Intersections {
		lanes := make(map[string]*geometry.Trajectory, len(isec.Lanes))
		for name, lane := range isec.Lanes {
			points := make([]geometry.Vec2, len(lane.Polyline))
			for i, p := range lane.Polyline {
				points[i] = geometry.Vec2{X: p[0], Y: p[1]}
			}
			traj, err := geometry.NewTrajectory(lane.SpeedLimit, points)
			if err != nil {
				return nil, fmt.Errorf("config: intersection %q lane %q: %w", isec.ID, name, err)
			}
			lanes[name] = traj
		}
		out = append(out, simenv.IntersectionConfig{
			ID:          isec.ID,
			Centre:      geometry.Vec2{X: isec.Centre[0], Y: isec.Centre[1]},
			Size:        geometry.Vec2{X: isec.Size[0], Y: isec.Size[1]},
			Granularity: isec.Granularity,
			Lanes:       lanes,
		})
	}
	return out, nil
}

// VehicleConfigs converts every VehicleSpec into a simenv VehicleConfig.
// The Protocol field isn't part of simenv.VehicleConfig (World has no
// notion of which agent drives a vehicle); callers needing it should read
// it from ScenarioConfig.Vehicles directly alongside this conversion.
func (s *ScenarioConfig) VehicleConfigs() []simenv.VehicleConfig {
	out := make([]simenv.VehicleConfig, 0, len(s.Vehicles))
	for _, v := range s.Vehicles {
		out = append(out, simenv.VehicleConfig{
			ID:               v.ID,
			IntersectionID:   v.IntersectionID,
			Lane:             v.Lane,
			Length:           v.Length,
			Width:            v.Width,
			SpeedLimit:       v.SpeedLimit,
			MaxAcceleration:  v.MaxAcceleration,
			MaxDeceleration:  v.MaxDeceleration,
			ApproachDistance: v.ApproachDistance,
			InitialSpeed:     v.InitialSpeed,
		})
	}
	return out
}

// decode runs the viper-read, yaml-remarshal, yaml-unmarshal round trip for
// a YAML file's "def" section into T.
func decode[T any](path string) (T, error) {
	var zero T

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return zero, fmt.Errorf("config: %w", err)
	}

	outer := &OuterConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return zero, fmt.Errorf("config: %w", err)
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return zero, fmt.Errorf("config: %w", err)
	}

	var inner T
	if err := yaml.Unmarshal(spec, &inner); err != nil {
		return zero, fmt.Errorf("config: %w", err)
	}
	return inner, nil
}

package xpbd

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of a Simulation.
// Zero values are not defaults: start from DefaultConfig and override.
type Config struct {
	Gravity  mgl64.Vec3 `yaml:"gravity"`
	DeltaT   float64    `yaml:"deltaT"`
	Substeps int        `yaml:"substeps"`

	// Coefficient multipliers, applied to every body for the duration of a substep
	RestitutionMultiplier     float64 `yaml:"restitutionMultiplier"`
	StaticFrictionMultiplier  float64 `yaml:"staticFrictionMultiplier"`
	DynamicFrictionMultiplier float64 `yaml:"dynamicFrictionMultiplier"`

	// RestitutionCutoff is the acceleration under which contacts do not bounce
	// (normal speeds below 2 * RestitutionCutoff * substep). Defaults to |Gravity|.
	RestitutionCutoff float64 `yaml:"restitutionCutoff"`

	// SweepFactor inflates the broad-phase radius of a body by |v| * DeltaT * SweepFactor
	SweepFactor float64 `yaml:"sweepFactor"`

	GJKMaxIterations int     `yaml:"gjkMaxIterations"`
	EPAMaxIterations int     `yaml:"epaMaxIterations"`
	EPATolerance     float64 `yaml:"epaTolerance"`

	// Spatial grid of the broad phase
	CellSize        float64 `yaml:"cellSize"`
	GridCells       int     `yaml:"gridCells"`
	MaxCellsPerBody int     `yaml:"maxCellsPerBody"`

	// ClipContacts replaces the EPA contact points with the clipped face contact when available.
	// Without it, a box resting on a face is pushed at a single EPA point and starts to spin.
	ClipContacts bool `yaml:"clipContacts"`
}

// DefaultConfig returns a 70 Hz frame split into 8 substeps under earth gravity
func DefaultConfig() Config {
	return Config{
		Gravity:                   mgl64.Vec3{0, 0, -9.81},
		DeltaT:                    1.0 / 70.0,
		Substeps:                  8,
		RestitutionMultiplier:     1,
		StaticFrictionMultiplier:  1,
		DynamicFrictionMultiplier: 1,
		RestitutionCutoff:         9.81,
		SweepFactor:               2,
		GJKMaxIterations:          64,
		EPAMaxIterations:          64,
		EPATolerance:              1e-5,
		CellSize:                  2,
		GridCells:                 4096,
		MaxCellsPerBody:           64,
		ClipContacts:              true,
	}
}

// SubstepDeltaT is the duration of one substep
func (c Config) SubstepDeltaT() float64 {
	return c.DeltaT / float64(c.Substeps)
}

// Validate reports every invalid field at once
func (c Config) Validate() error {
	var errs []error

	for i := 0; i < 3; i++ {
		if math.IsNaN(c.Gravity[i]) || math.IsInf(c.Gravity[i], 0) {
			errs = append(errs, fmt.Errorf("gravity must be finite, got %v", c.Gravity))
			break
		}
	}
	if !(c.DeltaT > 0) || math.IsInf(c.DeltaT, 0) {
		errs = append(errs, fmt.Errorf("deltaT must be positive, got %v", c.DeltaT))
	}
	if c.Substeps < 1 {
		errs = append(errs, fmt.Errorf("substeps must be at least 1, got %d", c.Substeps))
	}
	if c.RestitutionMultiplier < 0 || c.StaticFrictionMultiplier < 0 || c.DynamicFrictionMultiplier < 0 {
		errs = append(errs, errors.New("coefficient multipliers must not be negative"))
	}
	if c.RestitutionCutoff < 0 {
		errs = append(errs, fmt.Errorf("restitutionCutoff must not be negative, got %v", c.RestitutionCutoff))
	}
	if c.SweepFactor < 0 {
		errs = append(errs, fmt.Errorf("sweepFactor must not be negative, got %v", c.SweepFactor))
	}
	if c.GJKMaxIterations < 1 || c.EPAMaxIterations < 1 {
		errs = append(errs, fmt.Errorf("iteration bounds must be at least 1, got gjk=%d epa=%d", c.GJKMaxIterations, c.EPAMaxIterations))
	}
	if !(c.EPATolerance > 0) {
		errs = append(errs, fmt.Errorf("epaTolerance must be positive, got %v", c.EPATolerance))
	}
	if !(c.CellSize > 0) {
		errs = append(errs, fmt.Errorf("cellSize must be positive, got %v", c.CellSize))
	}
	if c.GridCells < 1 || c.MaxCellsPerBody < 1 {
		errs = append(errs, fmt.Errorf("gridCells and maxCellsPerBody must be at least 1, got %d and %d", c.GridCells, c.MaxCellsPerBody))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}

// ParseConfig decodes YAML over the defaults; absent keys keep their default value
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// LoadConfig reads a YAML config file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

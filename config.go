package ogrenewt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedConfigFormat = errors.New("unsupported config format")

// DebugConfig drives the wireframe debugger
type DebugConfig struct {
	DefaultColor string `toml:"default_color" yaml:"default_color"`
	// MaterialColors maps a body material group to a hex color
	MaterialColors map[string]string `toml:"material_colors" yaml:"material_colors"`
	ShowContacts   bool              `toml:"show_contacts" yaml:"show_contacts"`
}

type Config struct {
	Gravity          [3]float64 `toml:"gravity" yaml:"gravity"`
	UpdateFPS        float64    `toml:"update_fps" yaml:"update_fps"`
	Substeps         int        `toml:"substeps" yaml:"substeps"`
	SolverIterations int        `toml:"solver_iterations" yaml:"solver_iterations"`
	Workers          int        `toml:"workers" yaml:"workers"`
	// Generation selects the joint row API: "ndk3" or "ndk4"
	Generation string  `toml:"generation" yaml:"generation"`
	CellSize   float64 `toml:"cell_size" yaml:"cell_size"`
	// MaxSteps caps the fixed steps run by one Update call
	MaxSteps int `toml:"max_steps" yaml:"max_steps"`

	Debug DebugConfig `toml:"debug" yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Gravity:          [3]float64{0, -9.81, 0},
		UpdateFPS:        60,
		Substeps:         1,
		SolverIterations: 4,
		Workers:          1,
		Generation:       "ndk4",
		CellSize:         2,
		MaxSteps:         5,
		Debug: DebugConfig{
			DefaultColor:   "#00ff00",
			MaterialColors: map[string]string{},
		},
	}
}

// GravityVec returns the configured gravity
func (c Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3(c.Gravity)
}

// Timestep is the fixed physics step
func (c Config) Timestep() float64 {
	return 1.0 / c.UpdateFPS
}

// sanitize replaces unusable values by their defaults
func (c Config) sanitize(logger Logger) Config {
	def := DefaultConfig()
	if c.UpdateFPS <= 0 {
		logger.Warnf("invalid update fps %v, using %v", c.UpdateFPS, def.UpdateFPS)
		c.UpdateFPS = def.UpdateFPS
	}
	if c.Substeps < 1 {
		c.Substeps = def.Substeps
	}
	if c.SolverIterations < 1 {
		c.SolverIterations = def.SolverIterations
	}
	if c.Workers < 1 {
		c.Workers = def.Workers
	}
	if c.CellSize <= 0 {
		c.CellSize = def.CellSize
	}
	if c.MaxSteps < 1 {
		c.MaxSteps = def.MaxSteps
	}
	if c.Debug.MaterialColors == nil {
		c.Debug.MaterialColors = map[string]string{}
	}
	return c
}

// LoadConfig reads a TOML or YAML file, chosen by extension. Fields missing
// from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read physics config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, filepath.Ext(path))
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to unmarshal physics config %s: %w", path, err)
	}
	return cfg, nil
}

type Option func(*World)

func WithLogger(logger Logger) Option {
	return func(w *World) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithConfig(config Config) Option {
	return func(w *World) {
		w.config = config
	}
}

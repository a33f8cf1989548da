// Package config loads qslim settings from YAML.
//
//	decimate:
//	  target_ratio: 0.25
//	  max_cost: 0.01
//	mesh:
//	  kernel: sdfx
//	  cells: 120
//	  weld_tolerance: 1e-5
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/chazu/qslim/pkg/decimate"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by Validate failures.
var ErrInvalid = errors.New("config: invalid")

// DefaultWeldTolerance merges marching cubes vertices that differ only by
// float32 rounding.
const DefaultWeldTolerance = 1e-5

// Kernels that can mesh script solids.
const (
	KernelSDFX     = "sdfx"
	KernelManifold = "manifold"
)

// Config is the full qslim configuration. Fields missing from a file keep
// their Default values.
type Config struct {
	Decimate decimate.Options `yaml:"decimate"`
	Mesh     MeshConfig       `yaml:"mesh"`
	Log      LogConfig        `yaml:"log"`
}

// MeshConfig controls meshing of script solids and welding of input meshes.
type MeshConfig struct {
	// Kernel names the geometry kernel for scripts: KernelSDFX or
	// KernelManifold.
	Kernel string `yaml:"kernel"`
	// Cells is the marching cubes resolution along the longest axis.
	Cells int `yaml:"cells"`
	// WeldTolerance merges vertices closer than this along every axis.
	// Zero merges only identical positions.
	WeldTolerance float64 `yaml:"weld_tolerance"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level Level `yaml:"level"`
}

// Level wraps slog.Level for YAML unmarshaling ("debug", "info", "warn",
// "error", optionally with an offset such as "info+2").
type Level slog.Level

// UnmarshalYAML implements yaml.Unmarshaler for Level.
func (l *Level) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", s, err)
	}
	*l = Level(lvl)
	return nil
}

// Level returns the slog.Level value.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Decimate: decimate.DefaultOptions(),
		Mesh: MeshConfig{
			Kernel:        KernelSDFX,
			Cells:         200,
			WeldTolerance: DefaultWeldTolerance,
		},
		Log: LogConfig{Level: Level(slog.LevelInfo)},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Decimate.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Mesh.Kernel {
	case KernelSDFX, KernelManifold:
	default:
		return fmt.Errorf("%w: mesh.kernel %q is not %s or %s", ErrInvalid, c.Mesh.Kernel, KernelSDFX, KernelManifold)
	}
	if c.Mesh.Cells <= 0 {
		return fmt.Errorf("%w: mesh.cells %d must be positive", ErrInvalid, c.Mesh.Cells)
	}
	if c.Mesh.WeldTolerance < 0 {
		return fmt.Errorf("%w: mesh.weld_tolerance %g is negative", ErrInvalid, c.Mesh.WeldTolerance)
	}
	return nil
}

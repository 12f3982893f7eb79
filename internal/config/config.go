// Package config loads generator settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/kbmatrix/internal/logging"
	"github.com/OpenTraceLab/kbmatrix/pkg/footprint"
	"github.com/OpenTraceLab/kbmatrix/pkg/generator"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// Config is the complete generator configuration.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Matrix     MatrixConfig     `yaml:"matrix"`
	Footprints FootprintsConfig `yaml:"footprints"`
	Placement  PlacementConfig  `yaml:"placement"`
	Routing    RoutingConfig    `yaml:"routing"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ProjectConfig names the generated project.
type ProjectConfig struct {
	Name string `yaml:"name"` // Defaults to the layout name
}

// MatrixConfig controls matrix assignment.
type MatrixConfig struct {
	Mode    string `yaml:"mode"` // automatic, manual
	Rows    int    `yaml:"rows"`
	Cols    int    `yaml:"cols"`
	MaxKeys int    `yaml:"maxKeys"`
}

// FootprintsConfig selects footprints as "Library:Name".
type FootprintsConfig struct {
	Switch string `yaml:"switch"`
	Diode  string `yaml:"diode"`
}

// PlacementConfig positions switches and diodes.
type PlacementConfig struct {
	KeyDistance KeyDistanceConfig         `yaml:"keyDistance"`
	Diode       DiodeConfig               `yaml:"diode"`
	Overrides   map[string]OverrideConfig `yaml:"overrides,omitempty"` // Keyed by diode reference
}

// KeyDistanceConfig is the key pitch in millimetres.
type KeyDistanceConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// DiodeConfig places the diode relative to its switch.
type DiodeConfig struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Rotation float64 `yaml:"rotation"`
	Side     string  `yaml:"side"` // FRONT, BACK
}

// OverrideConfig moves a single diode. Unset fields keep the defaults.
type OverrideConfig struct {
	X        *float64 `yaml:"x,omitempty"`
	Y        *float64 `yaml:"y,omitempty"`
	Rotation *float64 `yaml:"rotation,omitempty"`
	Side     string   `yaml:"side,omitempty"`
}

// RoutingConfig controls the router.
type RoutingConfig struct {
	Mode       string  `yaml:"mode"` // Disabled, Switch-Diode only, Full
	TrackWidth float64 `yaml:"trackWidth"`
	Clearance  float64 `yaml:"clearance"`
}

// OutputConfig controls how results are written.
type OutputConfig struct {
	Zip   bool `yaml:"zip"`
	Force bool `yaml:"force"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Matrix: MatrixConfig{
			Mode:    matrix.ModeAutomatic.String(),
			MaxKeys: layout.DefaultMaxKeys,
		},
		Footprints: FootprintsConfig{
			Switch: footprint.DefaultSwitch,
			Diode:  footprint.DefaultDiode,
		},
		Placement: PlacementConfig{
			KeyDistance: KeyDistanceConfig{X: placer.DefaultKeyPitch, Y: placer.DefaultKeyPitch},
			Diode: DiodeConfig{
				X:        5.08,
				Y:        3.03,
				Rotation: 90,
				Side:     placer.Front.String(),
			},
		},
		Routing: RoutingConfig{
			Mode:       router.ModeNameSwitchDiode,
			TrackWidth: router.DefaultTrackWidth,
			Clearance:  router.DefaultClearance,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment overrides. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: failed to parse config: %v", layout.ErrInvalidSettings, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.Routing.Mode = getenvOrDefault("KBM_ROUTING", c.Routing.Mode)
	c.Matrix.Mode = getenvOrDefault("KBM_MATRIX_MODE", c.Matrix.Mode)
	c.Matrix.MaxKeys = getIntOrDefault("KBM_MAX_KEYS", c.Matrix.MaxKeys)
	c.Footprints.Switch = getenvOrDefault("KBM_SWITCH_FOOTPRINT", c.Footprints.Switch)
	c.Footprints.Diode = getenvOrDefault("KBM_DIODE_FOOTPRINT", c.Footprints.Diode)
	c.Logging.Level = getenvOrDefault("KBM_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenvOrDefault("KBM_LOG_FORMAT", c.Logging.Format)
}

func getenvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// Validate checks every setting. All failures wrap layout.ErrInvalidSettings.
func (c *Config) Validate() error {
	_, err := c.Settings()
	return err
}

// Settings converts the configuration into generator settings.
func (c *Config) Settings() (generator.Settings, error) {
	s := generator.DefaultSettings()
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{layout.ErrInvalidSettings}, args...)...)
	}

	var err error
	s.Name = c.Project.Name

	if s.Matrix.Mode, err = matrix.ParseMode(c.Matrix.Mode); err != nil {
		return s, err
	}
	if c.Matrix.Rows < 0 || c.Matrix.Cols < 0 {
		return s, invalid("matrix size %dx%d is negative", c.Matrix.Rows, c.Matrix.Cols)
	}
	s.Grid = layout.Grid{Rows: c.Matrix.Rows, Cols: c.Matrix.Cols}
	if c.Matrix.MaxKeys < 0 {
		return s, invalid("maxKeys must not be negative, got %d", c.Matrix.MaxKeys)
	}
	if c.Matrix.MaxKeys > 0 {
		s.MaxKeys = c.Matrix.MaxKeys
	}

	for _, id := range []string{c.Footprints.Switch, c.Footprints.Diode} {
		if _, err := footprint.ParseID(id); err != nil {
			return s, errors.Join(layout.ErrInvalidSettings, err)
		}
	}
	s.SwitchFootprint = c.Footprints.Switch
	s.DiodeFootprint = c.Footprints.Diode

	p := c.Placement
	if p.KeyDistance.X <= 0 || p.KeyDistance.Y <= 0 {
		return s, invalid("key distance must be positive, got %gx%g", p.KeyDistance.X, p.KeyDistance.Y)
	}
	s.Placement.KeyDistanceX = p.KeyDistance.X
	s.Placement.KeyDistanceY = p.KeyDistance.Y
	s.Placement.DiodeOffset = sexp.Position{X: p.Diode.X, Y: p.Diode.Y}
	s.Placement.DiodeRotation = sexp.Angle(p.Diode.Rotation)
	if s.Placement.DiodeSide, err = placer.ParseSide(p.Diode.Side); err != nil {
		return s, err
	}

	if len(p.Overrides) > 0 {
		s.Placement.Overrides = make(map[string]placer.Override, len(p.Overrides))
		for ref, o := range p.Overrides {
			ov, err := o.override(s.Placement.DiodeOffset)
			if err != nil {
				return s, fmt.Errorf("override %s: %w", ref, err)
			}
			s.Placement.Overrides[ref] = ov
		}
	}

	if s.Routing.Mode, err = router.ParseMode(c.Routing.Mode); err != nil {
		return s, err
	}
	if c.Routing.TrackWidth <= 0 {
		return s, invalid("track width must be positive, got %g", c.Routing.TrackWidth)
	}
	if c.Routing.Clearance <= 0 {
		return s, invalid("clearance must be positive, got %g", c.Routing.Clearance)
	}
	s.Routing.TrackWidth = c.Routing.TrackWidth
	s.Routing.Clearance = c.Routing.Clearance
	s.Routing.MaxOffset = p.KeyDistance.Y

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return s, invalid("log level: %v", err)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return s, invalid("unknown log format %q", c.Logging.Format)
	}

	s.Force = c.Output.Force
	s.Zip = c.Output.Zip
	return s, nil
}

func (o OverrideConfig) override(def sexp.Position) (placer.Override, error) {
	var out placer.Override
	if o.X != nil || o.Y != nil {
		offset := def
		if o.X != nil {
			offset.X = *o.X
		}
		if o.Y != nil {
			offset.Y = *o.Y
		}
		out.Offset = &offset
	}
	if o.Rotation != nil {
		r := sexp.Angle(*o.Rotation)
		out.Rotation = &r
	}
	if o.Side != "" {
		side, err := placer.ParseSide(o.Side)
		if err != nil {
			return out, err
		}
		out.Side = &side
	}
	return out, nil
}

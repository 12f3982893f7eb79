package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/kbmatrix/pkg/footprint"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KBM_ROUTING", "KBM_MATRIX_MODE", "KBM_MAX_KEYS", "KBM_SWITCH_FOOTPRINT",
		"KBM_DIODE_FOOTPRINT", "KBM_LOG_LEVEL", "KBM_LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, matrix.ModeAutomatic, s.Matrix.Mode)
	assert.Equal(t, router.ModeSwitchDiode, s.Routing.Mode)
	assert.Equal(t, footprint.DefaultSwitch, s.SwitchFootprint)
	assert.Equal(t, placer.Front, s.Placement.DiodeSide)
	assert.InDelta(t, 5.08, s.Placement.DiodeOffset.X, 1e-9)
	assert.InDelta(t, placer.DefaultKeyPitch, s.Routing.MaxOffset, 1e-9)
	assert.False(t, s.Grid.Declared())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kbm.yaml")
	data := `
project:
  name: split
matrix:
  mode: manual
  rows: 4
  cols: 6
routing:
  mode: Full
  trackWidth: 0.3
placement:
  diode:
    side: BACK
  overrides:
    D3:
      y: 8
      side: FRONT
output:
  zip: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "split", cfg.Project.Name)
	// Unset keys keep their defaults.
	assert.InDelta(t, router.DefaultClearance, cfg.Routing.Clearance, 1e-9)
	assert.Equal(t, footprint.DefaultDiode, cfg.Footprints.Diode)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "split", s.Name)
	assert.Equal(t, matrix.ModeManual, s.Matrix.Mode)
	assert.Equal(t, layout.Grid{Rows: 4, Cols: 6}, s.Grid)
	assert.Equal(t, router.ModeFull, s.Routing.Mode)
	assert.InDelta(t, 0.3, s.Routing.TrackWidth, 1e-9)
	assert.Equal(t, placer.Back, s.Placement.DiodeSide)
	assert.True(t, s.Zip)

	o, ok := s.Placement.Overrides["D3"]
	require.True(t, ok)
	require.NotNil(t, o.Offset)
	assert.InDelta(t, 5.08, o.Offset.X, 1e-9)
	assert.InDelta(t, 8, o.Offset.Y, 1e-9)
	require.NotNil(t, o.Side)
	assert.Equal(t, placer.Front, *o.Side)
	assert.Nil(t, o.Rotation)
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kbm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, layout.ErrInvalidSettings)
}

func TestSaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "kbm.yaml")

	cfg := DefaultConfig()
	cfg.Routing.Mode = router.ModeNameFull
	cfg.Matrix.Rows, cfg.Matrix.Cols = 5, 15
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KBM_ROUTING", "Full")
	t.Setenv("KBM_MATRIX_MODE", "manual")
	t.Setenv("KBM_MAX_KEYS", "200")
	t.Setenv("KBM_SWITCH_FOOTPRINT", "Switch_Keyboard_Kailh:SW_Kailh_Choc_V1")
	t.Setenv("KBM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Full", cfg.Routing.Mode)
	assert.Equal(t, "manual", cfg.Matrix.Mode)
	assert.Equal(t, 200, cfg.Matrix.MaxKeys)
	assert.Equal(t, "Switch_Keyboard_Kailh:SW_Kailh_Choc_V1", cfg.Footprints.Switch)
	assert.Equal(t, footprint.DefaultDiode, cfg.Footprints.Diode)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Run("unparseable int keeps default", func(t *testing.T) {
		t.Setenv("KBM_MAX_KEYS", "many")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, layout.DefaultMaxKeys, cfg.Matrix.MaxKeys)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"routing mode", func(c *Config) { c.Routing.Mode = "Everything" }},
		{"matrix mode", func(c *Config) { c.Matrix.Mode = "psychic" }},
		{"negative rows", func(c *Config) { c.Matrix.Rows = -1 }},
		{"negative max keys", func(c *Config) { c.Matrix.MaxKeys = -5 }},
		{"switch footprint", func(c *Config) { c.Footprints.Switch = "InvalidFormatNoColon" }},
		{"diode footprint", func(c *Config) { c.Footprints.Diode = "Diode_SMD:" }},
		{"pitch", func(c *Config) { c.Placement.KeyDistance.X = 0 }},
		{"diode side", func(c *Config) { c.Placement.Diode.Side = "TOP" }},
		{"override side", func(c *Config) {
			c.Placement.Overrides = map[string]OverrideConfig{"D1": {Side: "middle"}}
		}},
		{"track width", func(c *Config) { c.Routing.TrackWidth = -0.1 }},
		{"clearance", func(c *Config) { c.Routing.Clearance = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, layout.ErrInvalidSettings)
			assert.True(t, layout.IsValidationError(err))
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Engine.WindowSize)
	assert.Equal(t, 5, cfg.Engine.StabilitySubwindow)
	assert.InDelta(t, 0.4, cfg.Engine.SuccessWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Engine.QualityWeight, 1e-9)
	assert.InDelta(t, 0.5, cfg.Engine.QualityWeightHigh, 1e-9)
	assert.InDelta(t, 0.2, cfg.Engine.SpeedWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Engine.SpeedWeightVolume, 1e-9)
	assert.InDelta(t, 0.20, cfg.Engine.AdaptiveMargin, 1e-9)
	assert.Equal(t, 20, cfg.Progressive.MaxRecordsThreshold)
	assert.InDelta(t, 0.8, cfg.Progressive.SufficiencyRatio, 1e-9)
	assert.InDelta(t, 0.7, cfg.Progressive.SufficiencyQuality, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Environment.RefreshInterval)
	assert.Equal(t, "browser", cfg.Sources.Browser)
	assert.Equal(t, "api", cfg.Sources.API)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Engine.WindowSize = 0 }},
		{"subwindow above window", func(c *Config) { c.Engine.StabilitySubwindow = 21 }},
		{"negative margin", func(c *Config) { c.Engine.AdaptiveMargin = -0.1 }},
		{"negative quality weight", func(c *Config) { c.Engine.QualityWeight = -0.3 }},
		{"negative speed weight", func(c *Config) { c.Engine.SpeedWeightVolume = -0.1 }},
		{"ratio above one", func(c *Config) { c.Progressive.SufficiencyRatio = 1.5 }},
		{"empty browser source", func(c *Config) { c.Sources.Browser = "" }},
		{"duplicate source ids", func(c *Config) { c.Sources.Browser = "api" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
name: harvester-test
engine:
  adaptive_margin: 0.3
progressive:
  max_records_threshold: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "harvester-test", cfg.Name)
	assert.InDelta(t, 0.3, cfg.Engine.AdaptiveMargin, 1e-9)
	assert.Equal(t, 30, cfg.Progressive.MaxRecordsThreshold)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Engine.WindowSize)
	assert.InDelta(t, 0.8, cfg.Progressive.SufficiencyRatio, 1e-9)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("HARVESTER_BROWSER_ID", "headless")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sources:
  browser: ${HARVESTER_BROWSER_ID}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "headless", cfg.Sources.Browser)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  window_size: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Name = "saved"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Name)
	assert.Equal(t, cfg.Engine, loaded.Engine)
}

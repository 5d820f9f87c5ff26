package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adalundhe/lattice/core/config"
	"github.com/adalundhe/lattice/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Model.LatentSteps, cfg.Model.LatentSteps)
	assert.Equal(t, config.Default().Gateway.TopK, cfg.Gateway.TopK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  latent_steps: 9
session:
  ttl: 30m
gateway:
  top_k: 5
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Model.LatentSteps)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.Gateway.TopK)
	// Untouched sections keep defaults.
	assert.Equal(t, config.Default().Cache.DecodeCapacity, cfg.Cache.DecodeCapacity)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: from-file\n"), 0o644))
	t.Setenv("LATTICE_MODEL", "from-env")
	t.Setenv("LATTICE_LATENT_STEPS", "7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model.Name)
	assert.Equal(t, 7, cfg.Model.LatentSteps)
}

func TestLoad_MalformedYAMLIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: ["), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero lambda", func(c *config.Config) { c.Model.RealignLambda = 0 }},
		{"zero steps", func(c *config.Config) { c.Model.LatentSteps = 0 }},
		{"top_p over 1", func(c *config.Config) { c.Model.TopP = 1.5 }},
		{"zero sessions", func(c *config.Config) { c.Session.MaxSessions = 0 }},
		{"negative ttl", func(c *config.Config) { c.Session.TTL = -time.Second }},
		{"min_score out of range", func(c *config.Config) { c.Gateway.MinScore = 2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
		})
	}
}

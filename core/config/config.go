// Package config loads the lattice configuration from YAML with defaults
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adalundhe/lattice/core/errors"
)

type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Compiler CompilerConfig `yaml:"compiler"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

type ModelConfig struct {
	// Name selects the model profile exposed by the capability provider.
	Name string `yaml:"name"`

	// RealignLambda is the ridge regularization weight. Must be > 0.
	RealignLambda float64 `yaml:"realign_lambda"`

	// LatentSteps is the reasoning-loop depth used at compile time.
	LatentSteps int `yaml:"latent_steps"`

	// MaxDecodeTokens bounds the reconstruction loop.
	MaxDecodeTokens int `yaml:"max_decode_tokens"`

	// Temperature and TopP drive reconstruction sampling. Temperature 0
	// selects deterministic arg-max decoding.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

type CompilerConfig struct {
	// Manifest is the module manifest consumed by the compile run.
	Manifest string `yaml:"manifest"`

	// WatchDebounce coalesces filesystem events in watch mode.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

type StorageConfig struct {
	// DataDir overrides the platform data directory.
	DataDir string `yaml:"data_dir"`

	// BlobCacheBytes bounds the tensor-blob read cache.
	BlobCacheBytes int64 `yaml:"blob_cache_bytes"`
}

type CacheConfig struct {
	IntentCapacity int `yaml:"intent_capacity"`
	DecodeCapacity int `yaml:"decode_capacity"`
}

type SessionConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	TTL         time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:            "qwen3-4b",
			RealignLambda:   1e-3,
			LatentSteps:     5,
			MaxDecodeTokens: 150,
			Temperature:     0,
			TopP:            0.9,
		},
		Compiler: CompilerConfig{
			Manifest:      "modules.yaml",
			WatchDebounce: 500 * time.Millisecond,
		},
		Storage: StorageConfig{
			BlobCacheBytes: 256 << 20,
		},
		Cache: CacheConfig{
			IntentCapacity: 128,
			DecodeCapacity: 256,
		},
		Session: SessionConfig{
			MaxSessions: 100,
			TTL:         time.Hour,
		},
		Gateway: GatewayConfig{
			TopK:     3,
			MinScore: 0.3,
		},
	}
}

// Load merges the YAML file at path over defaults, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults stand.
		case err != nil:
			return nil, errors.Wrap(errors.KindConfiguration, err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(errors.KindConfiguration, err, "parse config %s", path)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LATTICE_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("LATTICE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("LATTICE_MANIFEST"); v != "" {
		cfg.Compiler.Manifest = v
	}
	if v := os.Getenv("LATTICE_LATENT_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Model.LatentSteps = n
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Model.RealignLambda <= 0 {
		return errors.Configuration("model.realign_lambda must be > 0, got %v", c.Model.RealignLambda)
	}
	if c.Model.LatentSteps < 1 {
		return errors.Configuration("model.latent_steps must be >= 1, got %d", c.Model.LatentSteps)
	}
	if c.Model.TopP <= 0 || c.Model.TopP > 1 {
		return errors.Configuration("model.top_p must be in (0, 1], got %v", c.Model.TopP)
	}
	if c.Cache.IntentCapacity < 1 || c.Cache.DecodeCapacity < 1 {
		return errors.Configuration("cache capacities must be >= 1")
	}
	if c.Session.MaxSessions < 1 {
		return errors.Configuration("session.max_sessions must be >= 1, got %d", c.Session.MaxSessions)
	}
	if c.Session.TTL <= 0 {
		return errors.Configuration("session.ttl must be positive, got %v", c.Session.TTL)
	}
	if c.Gateway.TopK < 1 {
		return errors.Configuration("gateway.top_k must be >= 1, got %d", c.Gateway.TopK)
	}
	if c.Gateway.MinScore < -1 || c.Gateway.MinScore > 1 {
		return errors.Configuration("gateway.min_score must be in [-1, 1], got %v", c.Gateway.MinScore)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("model=%s steps=%d top_k=%d", c.Model.Name, c.Model.LatentSteps, c.Gateway.TopK)
}

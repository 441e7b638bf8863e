package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SCM struct {
		Endpoint string        `yaml:"endpoint"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"scm"`
	Validation struct {
		R2Threshold float64 `yaml:"r2_threshold"`
		TestSize    float64 `yaml:"test_size"`
	} `yaml:"validation"`
	Simulation struct {
		NumSamples int   `yaml:"num_samples"`
		Seed       int64 `yaml:"seed"`
	} `yaml:"simulation"`
	Pipeline struct {
		Mode           string `yaml:"mode"` // static, dynamic, or auto
		FailureLimit   int    `yaml:"failure_limit"`
		GraphCacheSize int    `yaml:"graph_cache_size"`
	} `yaml:"pipeline"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SCM.Timeout = 60 * time.Second
	cfg.Validation.R2Threshold = 0.8
	cfg.Validation.TestSize = 0.2
	cfg.Simulation.NumSamples = 100
	cfg.Pipeline.Mode = "auto"
	cfg.Pipeline.FailureLimit = 3
	cfg.Pipeline.GraphCacheSize = 128
	return &cfg
}

// LoadConfig reads path as YAML, after loading a .env file if present,
// then applies CAUSET_* environment overrides. An empty path yields
// the defaults plus overrides.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if endpoint := os.Getenv("CAUSET_SCM_ENDPOINT"); endpoint != "" {
		cfg.SCM.Endpoint = endpoint
	}
	if timeout := os.Getenv("CAUSET_SCM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.SCM.Timeout = d
		}
	}
	if threshold := os.Getenv("CAUSET_R2_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Validation.R2Threshold = f
		}
	}
	if samples := os.Getenv("CAUSET_NUM_SAMPLES"); samples != "" {
		if n, err := strconv.Atoi(samples); err == nil {
			cfg.Simulation.NumSamples = n
		}
	}
	if mode := os.Getenv("CAUSET_MODE"); mode != "" {
		cfg.Pipeline.Mode = mode
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	Version       int           `toml:"version"`
	GitHub        GitHub        `toml:"github"`
	Cache         Cache         `toml:"cache"`
	Pacing        Pacing        `toml:"pacing"`
	Classify      Classify      `toml:"classify"`
	Server        Server        `toml:"server"`
	Observability Observability `toml:"observability"`
}

type GitHub struct {
	Token      string `toml:"token"`
	APIBase    string `toml:"api_base"`
	RawBase    string `toml:"raw_base"`
	CodeLoad   string `toml:"codeload_base"`
	UseArchive bool   `toml:"use_archive"`
}

type Cache struct {
	Dir      string        `toml:"dir"`
	Path     string        `toml:"path"`
	TTL      time.Duration `toml:"ttl"`
	MaxBytes int64         `toml:"max_bytes"`
}

type Pacing struct {
	// EveryN nil means the default; explicit 0 disables pacing.
	EveryN *int    `toml:"every_n"`
	Rate   float64 `toml:"rate"`
	Burst  int     `toml:"burst"`
}

// Every returns the effective pacing interval in files.
func (p Pacing) Every() int {
	if p.EveryN == nil {
		return 10
	}
	return *p.EveryN
}

type Classify struct {
	StructuralDirs []string `toml:"structural_dirs"`
	ExcludeFiles   []string `toml:"exclude_files"`
	IncludeTests   bool     `toml:"include_tests"`
}

type Server struct {
	Address              string `toml:"address"`
	ObservabilityAddress string `toml:"observability_address"`
}

type Observability struct {
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateCache(&cfg); err != nil {
		return nil, err
	}
	if err := validatePacing(&cfg); err != nil {
		return nil, err
	}
	if err := validateClassify(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a usable configuration without requiring a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.GitHub.APIBase) == "" {
		cfg.GitHub.APIBase = "https://api.github.com"
	}
	if strings.TrimSpace(cfg.GitHub.RawBase) == "" {
		cfg.GitHub.RawBase = "https://raw.githubusercontent.com"
	}
	if strings.TrimSpace(cfg.GitHub.CodeLoad) == "" {
		cfg.GitHub.CodeLoad = "https://codeload.github.com"
	}

	if strings.TrimSpace(cfg.Cache.Dir) == "" {
		cfg.Cache.Dir = "data/cache"
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "analysis.db"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.MaxBytes <= 0 {
		cfg.Cache.MaxBytes = 256 << 20
	}

	if cfg.Pacing.Rate <= 0 {
		cfg.Pacing.Rate = 5
	}
	if cfg.Pacing.Burst <= 0 {
		cfg.Pacing.Burst = 1
	}

	if len(cfg.Classify.StructuralDirs) == 0 {
		cfg.Classify.StructuralDirs = []string{
			"components", "pages", "app", "hooks", "context", "contexts",
			"lib", "utils", "src/components", "src/pages", "src/app",
			"src/hooks", "src/context", "src/contexts", "src/lib", "src/utils",
		}
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		cfg.Server.Address = "127.0.0.1:8090"
	}
	if strings.TrimSpace(cfg.Server.ObservabilityAddress) == "" {
		cfg.Server.ObservabilityAddress = "127.0.0.1:9091"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateCache(cfg *Config) error {
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		return fmt.Errorf("cache.path must not be empty")
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if cfg.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive")
	}
	return nil
}

func validatePacing(cfg *Config) error {
	if cfg.Pacing.EveryN != nil && *cfg.Pacing.EveryN < 0 {
		return fmt.Errorf("pacing.every_n must be >= 0 (0 disables pacing)")
	}
	if cfg.Pacing.Rate <= 0 {
		return fmt.Errorf("pacing.rate must be positive")
	}
	return nil
}

func validateClassify(cfg *Config) error {
	for _, dir := range cfg.Classify.StructuralDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("classify.structural_dirs must not include empty values")
		}
	}
	for _, p := range cfg.Classify.ExcludeFiles {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid classify.exclude_files pattern %q: %w", p, err)
		}
	}
	return nil
}

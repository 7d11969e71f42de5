package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	DefaultBackend      = BackendCSV
	DefaultCSVPath      = "data/icmp_live.csv"
	DefaultSQLitePath   = "data/icmp_live.db"
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisKey     = "icmpwatch:features"
	DefaultModelPath    = "model/icmp_model.json"
	DefaultFilter       = "icmp"
	DefaultProbeSeconds = 300
	DefaultListen       = ":5000"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

// Config holds every setting of the monitor and its commands.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
	Model   ModelConfig   `yaml:"model"`
	Probe   ProbeConfig   `yaml:"probe"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// CaptureConfig selects the packet source.
type CaptureConfig struct {
	Interface string `yaml:"interface"`
	PcapFile  string `yaml:"pcap_file"`
	Filter    string `yaml:"bpf_filter"`
	WritePcap string `yaml:"write_pcap"`
	Realtime  bool   `yaml:"realtime"`
}

// LogConfig selects the metric log backend.
type LogConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used by the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ModelConfig points at the anomaly model artifact.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// ProbeConfig controls the throughput probe.
type ProbeConfig struct {
	Disabled    bool `yaml:"disabled"`
	IntervalSec int  `yaml:"interval_sec"`
}

// APIConfig controls the HTTP query endpoint.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig controls process logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML config file. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks values that defaults cannot repair.
func Validate(cfg Config) error {
	if cfg.Capture.Interface != "" && cfg.Capture.PcapFile != "" {
		return fmt.Errorf("capture.interface and capture.pcap_file are mutually exclusive")
	}
	switch cfg.Log.Backend {
	case BackendCSV, BackendSQLite:
		if cfg.Log.Path == "" {
			return fmt.Errorf("log.path is required for the %s backend", cfg.Log.Backend)
		}
	case BackendRedis:
		if cfg.Log.Redis.Addr == "" {
			return fmt.Errorf("log.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("log.backend must be csv, sqlite or redis, got %q", cfg.Log.Backend)
	}
	if cfg.Probe.IntervalSec < 0 {
		return fmt.Errorf("probe.interval_sec must not be negative")
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Logging.Format)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Capture.Filter == "" {
		cfg.Capture.Filter = DefaultFilter
	}

	if cfg.Log.Backend == "" {
		cfg.Log.Backend = DefaultBackend
	}
	if cfg.Log.Path == "" {
		switch cfg.Log.Backend {
		case BackendCSV:
			cfg.Log.Path = DefaultCSVPath
		case BackendSQLite:
			cfg.Log.Path = DefaultSQLitePath
		}
	}
	if cfg.Log.Backend == BackendRedis {
		if cfg.Log.Redis.Addr == "" {
			cfg.Log.Redis.Addr = DefaultRedisAddr
		}
		if cfg.Log.Redis.Key == "" {
			cfg.Log.Redis.Key = DefaultRedisKey
		}
	}

	if cfg.Model.Path == "" {
		cfg.Model.Path = DefaultModelPath
	}
	if cfg.Probe.IntervalSec == 0 {
		cfg.Probe.IntervalSec = DefaultProbeSeconds
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = DefaultListen
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

package analytics

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the external configuration table.
// Values default per-field and can be overridden by environment variables
// or, optionally, by a YAML file loaded with LoadConfigFile.
type Config struct {
	UsePrimaryEngine    bool          `yaml:"use_primary_engine"`
	PrimaryEngineHost   string        `yaml:"primary_engine_host"`
	PrimaryEnginePort   int           `yaml:"primary_engine_port"`
	QueueInSize         int           `yaml:"q_in"`
	QueueOutSize        int           `yaml:"q_out"`
	ReplayBatchSize     int           `yaml:"replay_batch_size"`
	BackpressureThresh  int           `yaml:"backpressure_threshold"`
	DataBufferSize      int           `yaml:"data_buffer_size"`
	RetrainIntervalSecs int           `yaml:"retrain_interval_s"`
	DedupWindowSecs     int           `yaml:"dedup_window_s"`
	SlowThresholdMS     int           `yaml:"t_slow_ms"`
	MaxPrimaryFailures  int           `yaml:"f_max"`
	PrimaryCallTimeout  time.Duration `yaml:"-"`
}

// DefaultConfig returns the defaults listed in spec §6.
func DefaultConfig() Config {
	return Config{
		UsePrimaryEngine:    true,
		PrimaryEngineHost:   "localhost",
		PrimaryEnginePort:   50051,
		QueueInSize:         2000,
		QueueOutSize:        2000,
		ReplayBatchSize:     500,
		BackpressureThresh:  1500,
		DataBufferSize:      100,
		RetrainIntervalSecs: 10,
		DedupWindowSecs:     5,
		SlowThresholdMS:     100,
		MaxPrimaryFailures:  5,
		PrimaryCallTimeout:  100 * time.Millisecond,
	}
}

// LoadConfigFile overlays YAML-file values onto a base config. Missing keys
// leave the base value untouched.
func LoadConfigFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, err
	}
	return cfg, nil
}

// LoadConfigEnv overlays environment-variable values (per spec §6) onto a
// base config.
func LoadConfigEnv(base Config) Config {
	cfg := base
	if v := os.Getenv("USE_PRIMARY_ENGINE"); v != "" {
		cfg.UsePrimaryEngine = v == "true" || v == "1"
	}
	if v := os.Getenv("PRIMARY_ENGINE_HOST"); v != "" {
		cfg.PrimaryEngineHost = v
	}
	if v := os.Getenv("PRIMARY_ENGINE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PrimaryEnginePort = n
		}
	}
	if v := os.Getenv("Q_IN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueInSize = n
		}
	}
	if v := os.Getenv("Q_OUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueOutSize = n
		}
	}
	if v := os.Getenv("REPLAY_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReplayBatchSize = n
		}
	}
	if v := os.Getenv("BACKPRESSURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BackpressureThresh = n
		}
	}
	if v := os.Getenv("DATA_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataBufferSize = n
		}
	}
	if v := os.Getenv("RETRAIN_INTERVAL_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetrainIntervalSecs = n
		}
	}
	if v := os.Getenv("DEDUP_WINDOW_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DedupWindowSecs = n
		}
	}
	if v := os.Getenv("T_SLOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SlowThresholdMS = n
		}
	}
	if v := os.Getenv("F_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPrimaryFailures = n
		}
	}
	return cfg
}

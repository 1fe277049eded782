// Package config loads the endpoint's runtime configuration (queue
// capacities, DCA population parameters, anomaly threshold, artifact
// paths) and parses/validates the company-key CLI argument.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the complete endpoint configuration, loaded via
// viper from a YAML file and CYGNET_-prefixed environment variables,
// matching the load-then-override shape of the pack's viper configs.
type RuntimeConfig struct {
	Capture  CaptureConfig  `mapstructure:"capture"`
	Queues   QueueConfig    `mapstructure:"queues"`
	DCA      DCAConfig      `mapstructure:"dca"`
	Lymph    LymphConfig    `mapstructure:"lymph_node"`
	Artifact ArtifactConfig `mapstructure:"artifacts"`
	Shipper  ShipperConfig  `mapstructure:"shipper"`
}

type CaptureConfig struct {
	Interface string `mapstructure:"interface"`
	LocalAddr string `mapstructure:"local_addr"`
}

type QueueConfig struct {
	CollectorToDCACapacity int `mapstructure:"collector_to_dca_capacity"`
	DCAToLymphNodeCapacity int `mapstructure:"dca_to_lymph_node_capacity"`
}

type DCAConfig struct {
	PopulationSize    int       `mapstructure:"population_size"`
	MigrationRangeMin float64   `mapstructure:"migration_range_min"`
	MigrationRangeMax float64   `mapstructure:"migration_range_max"`
	MaxAntigens       int       `mapstructure:"max_antigens"`
	CSMWeights        []float64 `mapstructure:"csm_weights"`
	KWeights          []float64 `mapstructure:"k_weights"`
	SegmentSize       int       `mapstructure:"segment_size"`
}

type LymphConfig struct {
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`
}

type ArtifactConfig struct {
	ScalerPath         string `mapstructure:"scaler_path"`
	BenignModelPath    string `mapstructure:"benign_model_path"`
	MaliciousModelPath string `mapstructure:"malicious_model_path"`
}

type ShipperConfig struct {
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReconnectWith bool          `mapstructure:"reconnect_with_backoff"`
}

// Load reads configFile (if present) layered under CYGNET_-prefixed
// environment variable overrides and the defaults below, matching
// spec §4/§5's documented defaults.
func Load(configFile string) (*RuntimeConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv("CYGNET_CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CYGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capture.interface", "eth0")

	v.SetDefault("queues.collector_to_dca_capacity", 10_000)
	v.SetDefault("queues.dca_to_lymph_node_capacity", 1_000)

	v.SetDefault("dca.population_size", 5)
	v.SetDefault("dca.migration_range_min", 5.0)
	v.SetDefault("dca.migration_range_max", 15.0)
	v.SetDefault("dca.max_antigens", 5)
	v.SetDefault("dca.csm_weights", []float64{2, 2})
	v.SetDefault("dca.k_weights", []float64{2, -2})
	v.SetDefault("dca.segment_size", 20)

	v.SetDefault("lymph_node.anomaly_threshold", 0.65)

	v.SetDefault("artifacts.scaler_path", "configs/scaler.yaml")
	v.SetDefault("artifacts.benign_model_path", "configs/model_benign.yaml")
	v.SetDefault("artifacts.malicious_model_path", "configs/model_malicious.yaml")

	v.SetDefault("shipper.dial_timeout", 10*time.Second)
	v.SetDefault("shipper.reconnect_with_backoff", true)
}

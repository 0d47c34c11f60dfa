package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chartfeed/pkg/http/middleware"
	applogger "chartfeed/pkg/logger"
	xutil "chartfeed/pkg/util"
)

const (
	BackendFile       = "file"
	BackendClickHouse = "clickhouse"
)

type Config struct {
	Environment string           `yaml:"environment"`
	Log         applogger.Config `yaml:"log"`
	Server      struct {
		Host            string                 `yaml:"host"`
		Port            int                    `yaml:"port"`
		ReadTimeout     time.Duration          `yaml:"read_timeout"`
		WriteTimeout    time.Duration          `yaml:"write_timeout"`
		ShutdownTimeout time.Duration          `yaml:"shutdown_timeout"`
		SlowRequest     time.Duration          `yaml:"slow_request"`
		CORS            *middleware.CORSConfig `yaml:"cors"`
		Static          map[string]string      `yaml:"static"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled"`
		Burst   float64 `yaml:"burst"`
		PerSec  float64 `yaml:"per_sec"`
	} `yaml:"rate_limit"`
	Datafeed struct {
		DataDir      string `yaml:"data_dir"`
		RegistryFile string `yaml:"registry_file"`
		Backend      string `yaml:"backend"`
		Cache        struct {
			Enabled bool          `yaml:"enabled"`
			TTL     time.Duration `yaml:"ttl"`
			Redis   struct {
				Enabled  bool          `yaml:"enabled"`
				Host     string        `yaml:"host"`
				Port     int           `yaml:"port"`
				Password string        `yaml:"password"`
				DB       int           `yaml:"db"`
				Prefix   string        `yaml:"prefix"`
				TTL      time.Duration `yaml:"ttl"`
			} `yaml:"redis"`
		} `yaml:"cache"`
	} `yaml:"datafeed"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		BarTable         string        `yaml:"bar_table"`
		SeriesTable      string        `yaml:"series_table"`
		CreateSchema     bool          `yaml:"create_schema"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Shapes struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"shapes"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		AutoCreate   bool          `yaml:"auto_create_topic"`
	} `yaml:"kafka"`
}

// Default returns a config that serves files from ./data with no external
// services.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.Log = applogger.Config{Level: "info", Format: "json", Output: "stdout"}
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8000
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.SlowRequest = time.Second
	c.Metrics.Enabled = true
	c.RateLimit.Burst = 50
	c.RateLimit.PerSec = 20
	c.Datafeed.DataDir = "data"
	c.Datafeed.RegistryFile = "registry.json"
	c.Datafeed.Backend = BackendFile
	c.Datafeed.Cache.Enabled = true
	c.Datafeed.Cache.Redis.Port = 6379
	c.Datafeed.Cache.Redis.Prefix = "chartfeed"
	c.Datafeed.Cache.Redis.TTL = time.Hour
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "default"
	c.ClickHouse.User = "default"
	c.ClickHouse.BarTable = "bars"
	c.ClickHouse.SeriesTable = "bar_series"
	c.Shapes.DBPath = "data/shapes.db"
	c.Kafka.Topic = "chartfeed.shapes"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.MaxAttempts = 3
	c.Kafka.WriteTimeout = 10 * time.Second
	return c
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with CHARTFEED_*
// environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("CHARTFEED_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CHARTFEED_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("CHARTFEED_PORT"); v != "" {
		c.Server.Port = xutil.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("CHARTFEED_DATA_DIR"); v != "" {
		c.Datafeed.DataDir = v
	}
	if v := getenv("CHARTFEED_BACKEND"); v != "" {
		c.Datafeed.Backend = v
	}
	if v := getenv("CHARTFEED_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Datafeed.Cache.TTL = d
		}
	}
	if v := getenv("CHARTFEED_REDIS_HOST"); v != "" {
		c.Datafeed.Cache.Redis.Enabled = true
		c.Datafeed.Cache.Redis.Host = v
	}
	if v := getenv("CHARTFEED_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CHARTFEED_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("CHARTFEED_SHAPES_DB"); v != "" {
		c.Shapes.DBPath = v
	}
	if v := getenv("CHARTFEED_KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CHARTFEED_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CHARTFEED_RATE_LIMIT"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.RateLimit.Enabled = on
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Datafeed.DataDir == "" {
		return fmt.Errorf("datafeed.data_dir is required")
	}
	switch c.Datafeed.Backend {
	case BackendFile:
	case BackendClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the clickhouse backend")
		}
	default:
		return fmt.Errorf("datafeed.backend must be '%s' or '%s', got '%s'", BackendFile, BackendClickHouse, c.Datafeed.Backend)
	}
	if c.Datafeed.Cache.Redis.Enabled && c.Datafeed.Cache.Redis.Host == "" {
		return fmt.Errorf("datafeed.cache.redis.host is required when redis is enabled")
	}
	if c.Shapes.DBPath == "" {
		return fmt.Errorf("shapes.db_path is required")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Burst < 1 || c.RateLimit.PerSec <= 0) {
		return fmt.Errorf("rate_limit.burst must be >= 1 and rate_limit.per_sec > 0")
	}
	return nil
}

// RegistryPath is the registry file, relative paths resolved against the data dir.
func (c *Config) RegistryPath() string {
	if filepath.IsAbs(c.Datafeed.RegistryFile) {
		return c.Datafeed.RegistryFile
	}
	return filepath.Join(c.Datafeed.DataDir, c.Datafeed.RegistryFile)
}

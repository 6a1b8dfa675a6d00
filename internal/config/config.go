package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AuthToken    string        `mapstructure:"auth_token"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type DeliveryConfig struct {
	Workers          int             `mapstructure:"workers"`
	Timeout          time.Duration   `mapstructure:"timeout"`
	MaxAttempts      int             `mapstructure:"max_attempts"`
	SweepInterval    time.Duration   `mapstructure:"sweep_interval"`
	BackoffSchedule  []time.Duration `mapstructure:"backoff_schedule"`
	DisableThreshold int             `mapstructure:"disable_threshold"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("stockhook")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/stockhook")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STOCKHOOK")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/stockhook.db")

	viper.SetDefault("delivery.workers", 32)
	viper.SetDefault("delivery.timeout", 10*time.Second)
	viper.SetDefault("delivery.max_attempts", 3)
	viper.SetDefault("delivery.sweep_interval", 2*time.Second)
	viper.SetDefault("delivery.backoff_schedule", []time.Duration{
		1 * time.Second,
		5 * time.Second,
		25 * time.Second,
	})
	viper.SetDefault("delivery.disable_threshold", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("metrics.enabled", true)
}

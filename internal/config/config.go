// Package config loads sshcheck settings from defaults, an optional YAML
// file, a .env file and SSHCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// Timeout bounds accepted from configuration.
const (
	MinTimeout = time.Second
	MaxTimeout = 300 * time.Second
)

// EnvPrefix prefixes every environment override: SSHCHECK_CHECK_PORT=2222.
const EnvPrefix = "SSHCHECK"

// Settings is the decoded configuration.
type Settings struct {
	Check   CheckSettings   `mapstructure:"check"`
	Batch   BatchSettings   `mapstructure:"batch"`
	Input   InputSettings   `mapstructure:"input"`
	Logging LoggingSettings `mapstructure:"logging"`
	Export  ExportSettings  `mapstructure:"export"`
}

type CheckSettings struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Port     int           `mapstructure:"port"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BatchSettings struct {
	MaxParallelism int     `mapstructure:"max_parallelism"`
	StartRate      float64 `mapstructure:"start_rate"`
	StartBurst     int     `mapstructure:"start_burst"`
}

type InputSettings struct {
	MaxManualTargets int `mapstructure:"max_manual_targets"`
}

type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ExportSettings struct {
	CSV     string        `mapstructure:"csv"`
	SQLite  string        `mapstructure:"sqlite"`
	Chart   string        `mapstructure:"chart"`
	Metrics string        `mapstructure:"metrics"`
	Kafka   KafkaSettings `mapstructure:"kafka"`
}

type KafkaSettings struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// SetDefaults registers every key with its default value. Env overrides
// only reach Unmarshal for keys viper already knows about.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("check.username", "")
	v.SetDefault("check.password", "")
	v.SetDefault("check.port", models.DefaultPort)
	v.SetDefault("check.timeout", models.DefaultTimeout)
	v.SetDefault("batch.max_parallelism", 10)
	v.SetDefault("batch.start_rate", 0.0)
	v.SetDefault("batch.start_burst", 1)
	v.SetDefault("input.max_manual_targets", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("export.csv", "")
	v.SetDefault("export.sqlite", "")
	v.SetDefault("export.chart", "")
	v.SetDefault("export.metrics", "")
	v.SetDefault("export.kafka.brokers", []string{})
	v.SetDefault("export.kafka.topic", "sshcheck-results")
}

// Load reads configuration from file and environment variables. An empty
// configPath searches for sshcheck.yaml; a missing file is not an error.
func Load(configPath string) (*viper.Viper, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sshcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sshcheck")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

// Decode unmarshals v into Settings and validates the result.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the bounds the prober and orchestrator rely on.
func (s *Settings) Validate() error {
	if s.Check.Port < 1 || s.Check.Port > 65535 {
		return fmt.Errorf("%w: check.port %d out of range 1-65535", models.ErrInvalidConfig, s.Check.Port)
	}
	if s.Check.Timeout < MinTimeout || s.Check.Timeout > MaxTimeout {
		return fmt.Errorf("%w: check.timeout %s out of range %s-%s",
			models.ErrInvalidConfig, s.Check.Timeout, MinTimeout, MaxTimeout)
	}
	if s.Batch.MaxParallelism < 1 {
		return fmt.Errorf("%w: batch.max_parallelism must be at least 1, got %d",
			models.ErrInvalidConfig, s.Batch.MaxParallelism)
	}
	if s.Batch.StartRate < 0 {
		return fmt.Errorf("%w: batch.start_rate must not be negative", models.ErrInvalidConfig)
	}
	if s.Input.MaxManualTargets < 1 {
		return fmt.Errorf("%w: input.max_manual_targets must be at least 1", models.ErrInvalidConfig)
	}
	return nil
}

// CheckConfig converts the check section into the prober's value type.
func (s *Settings) CheckConfig() models.CheckConfig {
	return models.CheckConfig{
		Username: s.Check.Username,
		Password: s.Check.Password,
		Port:     s.Check.Port,
		Timeout:  s.Check.Timeout,
	}
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	Backend    Backend    `mapstructure:"backend"`
	Validation Validation `mapstructure:"validation"`
	Catalog    Catalog    `mapstructure:"catalog"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Database holds the configuration for the operation store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output lists zap sinks separated by commas.
	Output string `mapstructure:"output"`
}

// Backend holds the configuration for the FinanzApp REST backend.
type Backend struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Validation tunes the holding consistency check.
type Validation struct {
	TolerateMissingTarget bool    `mapstructure:"tolerate_missing_target"`
	Epsilon               float64 `mapstructure:"epsilon"`
}

// Catalog controls background refreshing of the asset and recommendation caches.
type Catalog struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// LoadConfig reads config.yml from path. Environment variables override the
// file, with dots replaced by underscores (BACKEND_BASE_URL).
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// defaults and environment are enough to start
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("database.dsn", "finanzapp.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("backend.base_url", "http://localhost:8000/api")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.rate_limit", 10)      // requests per second
	v.SetDefault("backend.rate_limit_burst", 5) // burst size
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("validation.tolerate_missing_target", false)
	v.SetDefault("validation.epsilon", 1e-6)
	v.SetDefault("catalog.refresh_interval", "0s")
}

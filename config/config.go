// Package config loads service configuration from a YAML file with
// environment-variable overlay.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backend selects the store implementations the composition root wires.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the root service configuration.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Backend   string          `yaml:"backend" env:"BACKEND" env-default:"memory"`
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	DB        DBConfig        `yaml:"db"`
	Directory DirectoryConfig `yaml:"directory"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HTTPConfig holds the listener address.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"9000"`
}

// Addr returns the address in host:port form.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// RedisConfig holds the redis connection URL. Required only for the
// redis backend.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
}

// DBConfig holds the postgres connection URL.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// DirectoryConfig holds the identity directory endpoint.
type DirectoryConfig struct {
	URL string `yaml:"url" env:"DIRECTORY_URL" env-default:"https://plc.directory"`
}

// SessionConfig holds session lifecycle parameters.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"8h"`
}

// RateLimitConfig holds sliding-window parameters.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"60s"`
	MaxRequests int           `yaml:"max_requests" env:"RATE_LIMIT_MAX" env-default:"60"`
}

// Load reads configuration from the given file, overlaying environment
// variables on top. An empty path reads from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.Backend != BackendMemory && cfg.Backend != BackendRedis {
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return &cfg, nil
}

// MustLoad is Load with panic on failure, for main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

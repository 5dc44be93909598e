// Package config loads chatgate settings from an optional YAML file, a .env
// file and CHATGATE_* environment variables, in increasing order of priority.
// Vendor credentials are not part of it: each adapter reads its own
// <VENDOR>_API_KEY variable.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// CHATGATE_STORE_BACKEND overrides store.backend.
const EnvPrefix = "CHATGATE"

// Store backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// KnownProviders lists the provider names that get a configuration section.
var KnownProviders = []string{"openai", "anthropic", "gemini", "cohere", "mistral"}

type Config struct {
	Store     Store                     `mapstructure:"store"`
	Redis     Redis                     `mapstructure:"redis"`
	Gateway   Gateway                   `mapstructure:"gateway"`
	Log       Log                       `mapstructure:"log"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

type Store struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	MaxMessages int    `mapstructure:"max_messages"`
}

type Redis struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Gateway struct {
	Timeout time.Duration `mapstructure:"timeout"` // Zero disables the timeout middleware
	Retries int           `mapstructure:"retries"` // Zero disables the retry middleware
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ProviderConfig struct {
	Model string `mapstructure:"model"` // Empty keeps the adapter default
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", "./data")
	v.SetDefault("store.max_messages", 50)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "chatgate:")
	v.SetDefault("redis.ttl", time.Duration(0))

	v.SetDefault("gateway.timeout", 60*time.Second)
	v.SetDefault("gateway.retries", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	for _, name := range KnownProviders {
		v.SetDefault("providers."+name+".model", "")
	}
}

// Load reads configPath (skipped when empty) and the given .env files
// (".env" when none are given; missing files are ignored), then applies
// environment overrides. Variables already set in the environment win over
// .env values.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config load error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendFile && c.Store.Dir == "" {
		return errors.New("config: store.dir is required for the file backend")
	}
	if c.Store.MaxMessages <= 0 {
		return errors.New("config: store.max_messages must be positive")
	}
	if c.Gateway.Timeout < 0 || c.Gateway.Retries < 0 {
		return errors.New("config: gateway timeout and retries must not be negative")
	}
	return nil
}

// Model returns the configured model for provider, or "".
func (c *Config) Model(provider string) string {
	return c.Providers[provider].Model
}

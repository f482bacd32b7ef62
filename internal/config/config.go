// Package config assembles the effective server configuration from viper
// (YAML file + flags), container-facing environment variables, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the effective piperd configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	VoicesDir string `yaml:"voices_dir"`
	CacheDir  string `yaml:"cache_dir"`

	MemoryCacheMB   int           `yaml:"memory_cache_mb"`
	DiskCacheMB     int           `yaml:"disk_cache_mb"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	Workers          int           `yaml:"workers"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`

	GoogleAccessToken string `yaml:"-"`
	GoogleProject     string `yaml:"google_project"`
	GoogleRPM         int    `yaml:"google_rpm"`

	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`
}

// envOverrides are the container-facing environment variables. They apply on
// top of file and flag values so a Docker deployment can be configured with
// nothing but the environment.
type envOverrides struct {
	Port              int    `env:"APP_PORT"`
	Host              string `env:"PIPERD_HOST"`
	VoicesDir         string `env:"PIPERD_VOICES_DIR"`
	CacheDir          string `env:"PIPERD_CACHE_DIR"`
	GoogleAccessToken string `env:"GOOGLE_TTS_ACCESS_TOKEN"`
	GoogleProject     string `env:"GOOGLE_CLOUD_PROJECT"`
}

// SetDefaults registers the documented default values on viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 17100)
	v.SetDefault("voices_dir", "./voices")
	v.SetDefault("cache_dir", "./cache")
	v.SetDefault("memory_cache_mb", 100)
	v.SetDefault("disk_cache_mb", 1024)
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("cleanup_interval", "1h")
	v.SetDefault("workers", 4)
	v.SetDefault("synthesis_timeout", "60s")
	v.SetDefault("google_rpm", 60)
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
}

// Load builds the effective configuration: viper values (defaults, file,
// bound flags), then a .env file when present, then process environment
// variables, then ~ expansion on paths.
func Load(v *viper.Viper) (*Config, error) {
	// Root .env, ignored when absent.
	_ = godotenv.Load()

	cfg := &Config{
		Host:             v.GetString("host"),
		Port:             v.GetInt("port"),
		VoicesDir:        v.GetString("voices_dir"),
		CacheDir:         v.GetString("cache_dir"),
		MemoryCacheMB:    v.GetInt("memory_cache_mb"),
		DiskCacheMB:      v.GetInt("disk_cache_mb"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		CleanupInterval:  v.GetDuration("cleanup_interval"),
		Workers:          v.GetInt("workers"),
		SynthesisTimeout: v.GetDuration("synthesis_timeout"),
		GoogleProject:    v.GetString("google_project"),
		GoogleRPM:        v.GetInt("google_rpm"),
		Debug:            v.GetBool("debug"),
		LogFile:          v.GetString("log_file"),
	}

	overrides, err := env.ParseAs[envOverrides]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.applyEnv(overrides)

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(o envOverrides) {
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.VoicesDir != "" {
		c.VoicesDir = o.VoicesDir
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	if o.GoogleAccessToken != "" {
		c.GoogleAccessToken = o.GoogleAccessToken
	}
	if o.GoogleProject != "" {
		c.GoogleProject = o.GoogleProject
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.VoicesDir, &c.CacheDir, &c.LogFile} {
		if *p == "" || !strings.HasPrefix(*p, "~") {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("unable to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MemoryCacheMB < 1 {
		return fmt.Errorf("memory_cache_mb must be at least 1, got %d", c.MemoryCacheMB)
	}
	if c.DiskCacheMB < 1 {
		return fmt.Errorf("disk_cache_mb must be at least 1, got %d", c.DiskCacheMB)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

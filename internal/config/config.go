package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Session SessionConfig `mapstructure:"session"`
	Wiki    WikiConfig    `mapstructure:"wiki"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port    string    `mapstructure:"port"`
	BaseURL string    `mapstructure:"base_url"`
	TLS     TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS-specific configuration.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DBConfig holds the location of the embedded database file.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds the page listing cache configuration.
type CacheConfig struct {
	FilePath string        `mapstructure:"file_path"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SessionConfig holds session cookie configuration.
type SessionConfig struct {
	Lifetime  int    `mapstructure:"lifetime"` // minutes
}

// WikiConfig holds wiki behaviour settings.
type WikiConfig struct {
	HomePage       string `mapstructure:"home_page"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	BcryptCost     int    `mapstructure:"bcrypt_cost"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// LoadConfig reads configuration from file and environment variables.
// An explicit configFile overrides the search paths.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("db.path", "wiki.db")
	v.SetDefault("cache.file_path", "file::memory:")
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("session.lifetime", 20)
	v.SetDefault("wiki.home_page", "home-page")
	v.SetDefault("wiki.max_upload_bytes", 10<<20)
	v.SetDefault("wiki.bcrypt_cost", 12)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/markwiki/")
		v.AddConfigPath("$HOME/.markwiki")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		// Config file not found; proceed with defaults and env vars
	}

	v.SetEnvPrefix("WIKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

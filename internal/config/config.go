// Package config loads service configuration from an optional YAML file
// overridden by ORGNEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	// Secret signs every token; the process refuses to start without it.
	Secret string `mapstructure:"secret"`
	// Algorithm is the symmetric signing algorithm identifier
	// (hs256, hs384, hs512).
	Algorithm string `mapstructure:"algorithm"`
	// Token lifetimes, in minutes.
	AccessTokenExpireMinutes  int `mapstructure:"access_token_expire_minutes"`
	RefreshTokenExpireMinutes int `mapstructure:"refresh_token_expire_minutes"`
	// StrictRotation enables the compare-and-swap refresh rotation.
	StrictRotation bool          `mapstructure:"strict_rotation"`
	StoreTimeout   time.Duration `mapstructure:"store_timeout"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	// Login attempts allowed per client IP per window. Zero disables.
	LoginLimit int           `mapstructure:"login_limit"`
	Window     time.Duration `mapstructure:"window"`
	// UseRedis shares the counter across replicas.
	UseRedis bool `mapstructure:"use_redis"`
}

type EmailConfig struct {
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
}

type Config struct {
	Env       string          `mapstructure:"env"`
	LogLevel  string          `mapstructure:"log_level"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Email     EmailConfig     `mapstructure:"email"`
}

// AccessTTL returns the access token lifetime as a duration.
func (c AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (c AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireMinutes) * time.Minute
}

// Load reads path (default config.yaml, missing file tolerated) and the
// environment, env prefix ORGNEST, dots mapped to underscores
// (e.g. ORGNEST_AUTH_SECRET).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORGNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("ORGNEST_AUTH_SECRET must be set")
	}
	if cfg.Auth.RefreshTokenExpireMinutes <= cfg.Auth.AccessTokenExpireMinutes {
		return nil, fmt.Errorf("refresh token lifetime must exceed access token lifetime")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
	// Empty defaults register the keys so AutomaticEnv can bind them.
	v.SetDefault("auth.secret", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("auth.algorithm", "hs256")
	v.SetDefault("auth.access_token_expire_minutes", 15)
	v.SetDefault("auth.refresh_token_expire_minutes", 60)
	v.SetDefault("auth.strict_rotation", true)
	v.SetDefault("auth.store_timeout", "5s")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "orgnest")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.use_redis", false)
}

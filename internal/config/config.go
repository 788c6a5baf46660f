// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads gatekeep settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/store"
)

// EnvPrefix marks environment variables that override configuration keys.
// GATEKEEP_DATABASE_URL sets database_url.
const EnvPrefix = "GATEKEEP_"

// Defaults.
const (
	DefaultHTTPAddr     = ":8080"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultLogFormat    = "json"
	DefaultLogLevel     = "info"
	DefaultCacheTimeout = 2 * time.Second
)

// Config is the resolved service configuration.
type Config struct {
	HTTPAddr           string        `koanf:"http_addr"`
	MetricsAddr        string        `koanf:"metrics_addr"`
	DatabaseURL        string        `koanf:"database_url"`
	RedisURL           string        `koanf:"redis_url"`
	LogFormat          string        `koanf:"log_format"`
	LogLevel           string        `koanf:"log_level"`
	AccessTokenSecret  string        `koanf:"access_token_secret"`
	AccessTokenTTL     time.Duration `koanf:"access_token_ttl"`
	RefreshTokenSecret string        `koanf:"refresh_token_secret"`
	RefreshTokenTTL    time.Duration `koanf:"refresh_token_ttl"`
	TokenIssuer        string        `koanf:"token_issuer"`
	CacheTimeout       time.Duration `koanf:"cache_timeout"`
	ProfileCacheTTL    time.Duration `koanf:"profile_cache_ttl"`
	DBConnectRetries   uint64        `koanf:"db_connect_retries"`
	DBTimeout          time.Duration `koanf:"db_timeout"`
}

// RegisterFlags adds one flag per configuration key to flags. Flag names use
// dashes in place of underscores.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http-addr", DefaultHTTPAddr, "API listen address")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("redis-url", "", "Redis connection URL")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("access-token-secret", "", "HMAC secret for access tokens")
	flags.Duration("access-token-ttl", auth.DefaultAccessTokenTTL, "access token lifetime")
	flags.String("refresh-token-secret", "", "HMAC secret for refresh tokens")
	flags.Duration("refresh-token-ttl", auth.DefaultRefreshTokenTTL, "refresh token lifetime")
	flags.String("token-issuer", auth.DefaultTokenIssuer, "issuer claim for minted tokens")
	flags.Duration("cache-timeout", DefaultCacheTimeout, "per-operation Redis timeout")
	flags.Duration("profile-cache-ttl", auth.DefaultProfileCacheTTL, "profile cache entry lifetime")
	flags.Uint64("db-connect-retries", store.DefaultConnectRetries, "database connection retries at startup")
	flags.Duration("db-timeout", postgres.DefaultQueryTimeout, "per-statement PostgreSQL timeout")
}

// Load resolves the configuration. path names a YAML file; when empty,
// DefaultPath is read if it exists. A ".env" file in the working directory
// is read into the environment first when present. flags must have been
// populated by RegisterFlags and parsed.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", ".env").Wrap(err)
	}

	k := koanf.New(".")

	if path = resolvePath(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", path).Wrap(err)
		}
	}

	if err := loadEnv(k, os.Environ()); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// loadEnv loads GATEKEEP_* variables from environ into k.
func loadEnv(k *koanf.Koanf, environ []string) error {
	provider := env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   func() []string { return environ },
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}
	return nil
}

// envKey maps GATEKEEP_DATABASE_URL to database_url. An empty key drops the
// variable.
func envKey(name, value string) (string, any) {
	return strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), value
}

// flagKey maps a flag to its configuration key. Flags left at their default
// only fill keys that no earlier source set.
func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.RedisURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("redis_url is required")
	}
	if c.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.CacheTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("cache_timeout", c.CacheTimeout).Errorf("cache_timeout must be positive")
	}
	if c.DBTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("db_timeout", c.DBTimeout).Errorf("db_timeout must be positive")
	}
	if err := c.TokenConfig().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// TokenConfig builds the signing parameters for the token service.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  []byte(c.AccessTokenSecret),
		AccessTTL:     c.AccessTokenTTL,
		RefreshSecret: []byte(c.RefreshTokenSecret),
		RefreshTTL:    c.RefreshTokenTTL,
		Issuer:        c.TokenIssuer,
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

const (
	envPrefix = "FAMILYZEN_"
	// FileEnvKey names an optional YAML file loaded before environment overrides.
	FileEnvKey = envPrefix + "CONFIG_FILE"

	minProductionKeyLen = 32
)

// Config covers process level configuration read from an optional YAML file
// and FAMILYZEN_* environment variables (the latter win).
type Config struct {
	Environment string          `koanf:"env"`
	LogLevel    string          `koanf:"log_level"`
	HTTPBind    string          `koanf:"http_bind"`
	HTTPPort    int             `koanf:"http_port"`
	DBBackend   DatabaseBackend `koanf:"db_backend"`
	DBDSN       string          `koanf:"db_dsn"`

	JWTSigningKey string        `koanf:"jwt_signing_key"`
	JWTTTL        time.Duration `koanf:"jwt_ttl"`

	CORSAllowOrigins []string `koanf:"cors_allow_origins"`

	// Timezone used to capture "today" for generated plans.
	Timezone string `koanf:"timezone"`

	// Plan cache (Redis)
	PlanCacheEnabled bool   `koanf:"plan_cache_enabled"`
	RedisAddr        string `koanf:"redis_addr"`
	RedisPassword    string `koanf:"redis_password"`
	RedisDB          int    `koanf:"redis_db"`

	// Tracing configuration
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`

	LegacyEnvWarnings []string `koanf:"-"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Environment:       "development",
		HTTPBind:          "0.0.0.0",
		HTTPPort:          8000,
		DBBackend:         DatabaseSQLite,
		DBDSN:             "file:familyzen.db?_foreign_keys=on",
		JWTTTL:            24 * time.Hour,
		CORSAllowOrigins:  []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		Timezone:          "Local",
		RedisAddr:         "localhost:6379",
		OTLPEndpoint:      "localhost:4317",
		TracingSampleRate: 1.0,
	}
}

// Load reads the optional config file and environment variables, applies
// defaults, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(FileEnvKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Older deployments set CORS_ALLOW_ORIGINS without a prefix.
	if !k.Exists("cors_allow_origins") {
		if legacy := os.Getenv("CORS_ALLOW_ORIGINS"); legacy != "" {
			_ = k.Set("cors_allow_origins", legacy)
		}
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSAllowOrigins = splitOrigins(cfg.CORSAllowOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%sDB_DSN must be provided", envPrefix)
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("%sJWT_SIGNING_KEY must be provided", envPrefix)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("%sJWT_TTL must be positive", envPrefix)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.IsProduction() {
		if len(c.JWTSigningKey) < minProductionKeyLen {
			return fmt.Errorf("%sJWT_SIGNING_KEY must be at least %d bytes in production", envPrefix, minProductionKeyLen)
		}
		for _, origin := range c.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// splitOrigins flattens comma separated entries and drops blanks.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"CORS_ALLOW_ORIGINS": "use FAMILYZEN_CORS_ALLOW_ORIGINS",
		"JWT_SIGNING_KEY":    "use FAMILYZEN_JWT_SIGNING_KEY",
		"DATABASE_URL":       "use FAMILYZEN_DB_DSN",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

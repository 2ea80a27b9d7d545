// Package config loads server settings from flags, environment and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable: ASSETS_PORT, ASSETS_DB, ...
const EnvPrefix = "ASSETS"

// Keys shared by flags, env vars and viper lookups.
const (
	KeyPort          = "port"
	KeyDB            = "db"
	KeyLogLevel      = "log-level"
	KeySweepInterval = "sweep-interval"
	KeyTemplatesFile = "templates-file"
	KeyCORSOrigins   = "cors-origins"
)

type Config struct {
	Port          int
	DBPath        string
	LogLevel      zapcore.Level
	SweepInterval time.Duration // 0 disables the overdue sweeper
	TemplatesFile string
	CORSOrigins   []string
}

// SetDefaults registers defaults and env binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDB, "assets.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySweepInterval, time.Hour)
	v.SetDefault(KeyTemplatesFile, "")
	v.SetDefault(KeyCORSOrigins, []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:          v.GetInt(KeyPort),
		DBPath:        v.GetString(KeyDB),
		SweepInterval: v.GetDuration(KeySweepInterval),
		TemplatesFile: v.GetString(KeyTemplatesFile),
		CORSOrigins:   splitList(v.GetStringSlice(KeyCORSOrigins)),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("%s: %d out of range", KeyPort, cfg.Port)
	}
	if cfg.DBPath == "" {
		return Config{}, fmt.Errorf("%s: required", KeyDB)
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("%s: must be >= 0", KeySweepInterval)
	}
	level, err := zapcore.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	cfg.LogLevel = level
	return cfg, nil
}

// NewLogger builds the production JSON logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// splitList accepts both repeated values and one comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads profile service settings from the environment and an
// optional mocksre.yaml.
//
// Every key maps to the upper-cased environment variable of the same name,
// so "database_url" is read from DATABASE_URL. Environment variables win
// over the file; the file wins over the defaults.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/AleutianAI/MockSRE/pkg/logging"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

// DemoEnvironment is the ENV value that opens the admin endpoint.
const DemoEnvironment = "demo"

// Config is the resolved service configuration.
type Config struct {
	SentryDSN       string        `mapstructure:"sentry_dsn"`
	Env             string        `mapstructure:"env"`
	DatabaseURL     string        `mapstructure:"database_url"`
	DBPoolLimit     int           `mapstructure:"db_pool_limit"`
	FailureMode     string        `mapstructure:"failure_mode"`
	Port            int           `mapstructure:"port"`
	TracesExporter  string        `mapstructure:"otel_traces_exporter"`
	MetricsExporter string        `mapstructure:"otel_metrics_exporter"`
	OTLPEndpoint    string        `mapstructure:"otel_exporter_otlp_endpoint"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	LogDir          string        `mapstructure:"log_dir"`
	CacheCapacity   uint64        `mapstructure:"cache_capacity"`
	SlowQueryDelay  time.Duration `mapstructure:"slow_query_delay"`
	PoolHoldDelay   time.Duration `mapstructure:"pool_hold_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var defaults = map[string]any{
	"sentry_dsn":                  "",
	"env":                         "local",
	"database_url":                "badger://./data/profiles",
	"db_pool_limit":               20,
	"failure_mode":                string(failuremode.None),
	"port":                        8000,
	"otel_traces_exporter":        "none",
	"otel_metrics_exporter":       "prometheus",
	"otel_exporter_otlp_endpoint": "localhost:4317",
	"log_level":                   "info",
	"log_format":                  "auto",
	"log_dir":                     "",
	"cache_capacity":              0,
	"slow_query_delay":            "2s",
	"pool_hold_delay":             "1s",
	"shutdown_timeout":            "10s",
}

// Load resolves the configuration.
//
// # Description
//
// With configFile empty, mocksre.yaml is looked up in the working directory
// and skipped when absent. An explicit configFile must exist.
//
// # Inputs
//
//   - configFile: Optional path to a YAML config file.
//
// # Outputs
//
//   - *Config: Validated configuration.
//   - error: Unreadable file, undecodable value, or failed validation.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("mocksre")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read mocksre.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPoolLimit < 1 {
		errs = append(errs, fmt.Errorf("db_pool_limit must be positive, got %d", c.DBPoolLimit))
	}
	if _, err := failuremode.ParseMode(c.FailureMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.SlowQueryDelay < 0 || c.PoolHoldDelay < 0 {
		errs = append(errs, errors.New("injected delays must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Demo reports whether the admin endpoint may change the failure mode.
func (c *Config) Demo() bool {
	return c.Env == DemoEnvironment
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

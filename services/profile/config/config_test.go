// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv blanks every key so the host environment cannot leak in.
// Empty variables are ignored by viper.
func isolateEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		t.Setenv(strings.ToUpper(key), "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.SentryDSN)
	assert.Equal(t, "local", cfg.Env)
	assert.False(t, cfg.Demo())
	assert.Equal(t, "badger://./data/profiles", cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.DBPoolLimit)
	assert.Equal(t, "none", cfg.FailureMode)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "none", cfg.TracesExporter)
	assert.Equal(t, uint64(0), cfg.CacheCapacity)
	assert.Equal(t, 2*time.Second, cfg.SlowQueryDelay)
	assert.Equal(t, time.Second, cfg.PoolHoldDelay)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ENV", "demo")
	t.Setenv("FAILURE_MODE", "slow_query")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_POOL_LIMIT", "5")
	t.Setenv("DATABASE_URL", "memory://")
	t.Setenv("SLOW_QUERY_DELAY", "250ms")
	t.Setenv("CACHE_CAPACITY", "100")
	t.Setenv("SENTRY_DSN", "https://public@example.com/1")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Demo())
	assert.Equal(t, "slow_query", cfg.FailureMode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5, cfg.DBPoolLimit)
	assert.Equal(t, "memory://", cfg.DatabaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryDelay)
	assert.Equal(t, uint64(100), cfg.CacheCapacity)
	assert.Equal(t, "https://public@example.com/1", cfg.SentryDSN)
	assert.Equal(t, "stdout", cfg.TracesExporter)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "mocksre.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: demo
port: 8100
failure_mode: cache_off
pool_hold_delay: 300ms
`), 0o600))

	t.Setenv("PORT", "8200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Env)
	assert.Equal(t, "cache_off", cfg.FailureMode)
	assert.Equal(t, 300*time.Millisecond, cfg.PoolHoldDelay)
	assert.Equal(t, 8200, cfg.Port, "environment wins over the file")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolateEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown failure mode", "FAILURE_MODE", "chaos"},
		{"port out of range", "PORT", "70000"},
		{"zero pool limit", "DB_POOL_LIMIT", "0"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"bad duration", "SLOW_QUERY_DELAY", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

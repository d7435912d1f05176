package config

import (
	"runtime"
	"testing"

	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != ":8080" || cfg.DBDriver != "sqlite" || cfg.DBPath != "./data/bim/bim.db" {
		t.Errorf("server defaults = %+v", cfg)
	}
	if cfg.GridSize != 0.5 || cfg.RunnerSpeed != 1.2 || cfg.Workers != runtime.NumCPU() || cfg.RateLimit != 30 {
		t.Errorf("computation defaults = %+v", cfg)
	}
	if cfg.MaxCells != grid.DefaultMaxCells {
		t.Errorf("MaxCells = %d, want %d", cfg.MaxCells, grid.DefaultMaxCells)
	}
	if cfg.AuthEnabled {
		t.Error("auth should be disabled by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":           ":9000",
		"DB_DRIVER":      "postgres",
		"DB_DSN":         "postgres://bim@localhost/bim?sslmode=disable",
		"AUTH_ENABLED":   "true",
		"JWT_SECRET":     "s3cret",
		"GRID_SIZE":      "0.25",
		"RUNNER_SPEED":   "1.5",
		"WORKERS":        "3",
		"MAX_GRID_CELLS": "1000",
		"RATE_LIMIT":     "10",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != ":9000" || cfg.DBDriver != "postgres" || !cfg.AuthEnabled || cfg.JWTSecret != "s3cret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GridSize != 0.25 || cfg.RunnerSpeed != 1.5 || cfg.Workers != 3 || cfg.MaxCells != 1000 || cfg.RateLimit != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"grid size", map[string]string{"GRID_SIZE": "-1"}},
		{"runner speed", map[string]string{"RUNNER_SPEED": "fast"}},
		{"workers", map[string]string{"WORKERS": "0"}},
		{"max grid cells", map[string]string{"MAX_GRID_CELLS": "-5"}},
		{"auth flag", map[string]string{"AUTH_ENABLED": "maybe"}},
		{"driver", map[string]string{"DB_DRIVER": "mongo"}},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEnv(env(tt.vars)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

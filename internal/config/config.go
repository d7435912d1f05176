package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"

	"github.com/lpernett/godotenv"

	"github.com/yinchi/digital-hospitals/internal/analysis/grid"
	"github.com/yinchi/digital-hospitals/internal/models"
)

// Config is the application configuration
type Config struct {
	Port string

	DBDriver string // sqlite or postgres
	DBPath   string // sqlite file
	DBDSN    string // postgres connection string

	JWTSecret   string
	AuthEnabled bool

	GridSize    float64 // meters
	RunnerSpeed float64 // m/s
	Workers     int     // concurrent pair searches per floor
	MaxCells    int     // cell limit of one floor grid
	RateLimit   int     // submissions per minute per client
}

// Load reads the configuration from the environment. Variables in a .env
// file in the working directory are loaded first when the file exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a variable lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        stringOr(getenv("PORT"), ":8080"),
		DBDriver:    stringOr(getenv("DB_DRIVER"), "sqlite"),
		DBPath:      stringOr(getenv("DB_PATH"), "./data/bim/bim.db"),
		DBDSN:       getenv("DB_DSN"),
		JWTSecret:   stringOr(getenv("JWT_SECRET"), "your-secret-key-change-in-production"),
		GridSize:    models.DefaultGridSize,
		RunnerSpeed: models.DefaultRunnerSpeed,
		Workers:     runtime.NumCPU(),
		MaxCells:    grid.DefaultMaxCells,
		RateLimit:   30,
	}

	var err error
	if v := getenv("AUTH_ENABLED"); v != "" {
		if cfg.AuthEnabled, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("AUTH_ENABLED is not a boolean: %q", v)
		}
	}
	if v := getenv("GRID_SIZE"); v != "" {
		if cfg.GridSize, err = strconv.ParseFloat(v, 64); err != nil || cfg.GridSize <= 0 {
			return nil, fmt.Errorf("GRID_SIZE must be a positive number: %q", v)
		}
	}
	if v := getenv("RUNNER_SPEED"); v != "" {
		if cfg.RunnerSpeed, err = strconv.ParseFloat(v, 64); err != nil || cfg.RunnerSpeed <= 0 {
			return nil, fmt.Errorf("RUNNER_SPEED must be a positive number: %q", v)
		}
	}
	if v := getenv("WORKERS"); v != "" {
		if cfg.Workers, err = strconv.Atoi(v); err != nil || cfg.Workers <= 0 {
			return nil, fmt.Errorf("WORKERS must be a positive integer: %q", v)
		}
	}
	if v := getenv("MAX_GRID_CELLS"); v != "" {
		if cfg.MaxCells, err = strconv.Atoi(v); err != nil || cfg.MaxCells <= 0 {
			return nil, fmt.Errorf("MAX_GRID_CELLS must be a positive integer: %q", v)
		}
	}
	if v := getenv("RATE_LIMIT"); v != "" {
		if cfg.RateLimit, err = strconv.Atoi(v); err != nil || cfg.RateLimit <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT must be a positive integer: %q", v)
		}
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.AuthEnabled && getenv("JWT_SECRET") == "" {
		log.Printf("[Config] Warning: AUTH_ENABLED is set but JWT_SECRET is not, using the default secret")
	}

	return cfg, nil
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

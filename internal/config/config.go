// Package config provides configuration loading and validation for the
// gridcube CLI.
package config

import (
	"errors"
	"fmt"
)

// Sentinel validation errors.
var (
	ErrInvalidCellSize  = errors.New("grid cell size must be positive")
	ErrInvalidRes       = errors.New("mosaic resolution must be positive")
	ErrInvalidFrequency = errors.New("time frequency must be between 1 and 24 months")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidWorkers   = errors.New("worker count must be positive")
	ErrUnknownBackend   = errors.New("unknown dispatch backend")
	ErrMissingEndpoint  = errors.New("remote backend requires an endpoint")
)

// Default configuration values.
const (
	DefaultGridStrategy = "square"
	DefaultGridD        = 512
	DefaultGridOverlap  = true
	DefaultTargetCRS    = "EPSG:32610"
	DefaultResM         = 16
	DefaultGridIDColumn = "grid_id"

	DefaultFrequencyMonths = 1
	DefaultEPSG            = 4326
	DefaultResolution      = 1.0 / 3600
	DefaultChunkSize       = 1200
	DefaultVarName         = "rgb_median"
	DefaultHook            = "none"

	DefaultBackend     = "local"
	DefaultWorkers     = 4
	DefaultMaxAttempts = 5

	DefaultStorePath  = "./gridcube.zarr"
	DefaultInitialize = true

	maxFrequencyMonths = 24
)

// DefaultBands are the bands included when none are configured.
var DefaultBands = []string{"red", "green", "blue"}

// Config holds all configuration for a gridcube run.
type Config struct {
	Grid     GridConfig     `mapstructure:"grid"`
	Job      JobConfig      `mapstructure:"job"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// GridConfig holds grid generation and alignment settings.
type GridConfig struct {
	Strategy  string  `mapstructure:"strategy"`
	D         float64 `mapstructure:"d"`
	Overlap   bool    `mapstructure:"overlap"`
	TargetCRS string  `mapstructure:"target_crs"`
	ResM      float64 `mapstructure:"res_m"`
	IDColumn  string  `mapstructure:"id_column"`
}

// JobConfig holds data cube settings.
type JobConfig struct {
	FrequencyMonths      int      `mapstructure:"time_frequency_months"`
	IncludePartialWindow bool     `mapstructure:"include_partial_window"`
	EPSG                 int      `mapstructure:"epsg"`
	Resolution           float64  `mapstructure:"resolution"`
	ChunkSize            int      `mapstructure:"chunk_size"`
	Bands                []string `mapstructure:"bands"`
	VarName              string   `mapstructure:"varname"`
	Hook                 string   `mapstructure:"mask_hook"`
}

// DispatchConfig holds execution backend settings.
type DispatchConfig struct {
	Backend     string `mapstructure:"backend"`
	Workers     int    `mapstructure:"workers"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Endpoint    string `mapstructure:"endpoint"`
}

// StoreConfig holds array store settings.
type StoreConfig struct {
	Path       string `mapstructure:"path"`
	Initialize bool   `mapstructure:"initialize"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Backend names accepted by the dispatch configuration.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Grid.D <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidCellSize, c.Grid.D)
	}

	if c.Grid.ResM <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRes, c.Grid.ResM)
	}

	if c.Job.FrequencyMonths < 1 || c.Job.FrequencyMonths > maxFrequencyMonths {
		return fmt.Errorf("%w: got %d", ErrInvalidFrequency, c.Job.FrequencyMonths)
	}

	if c.Job.ChunkSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.Job.ChunkSize)
	}

	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Dispatch.Workers)
	}

	switch c.Dispatch.Backend {
	case BackendLocal:
	case BackendRemote:
		if c.Dispatch.Endpoint == "" {
			return ErrMissingEndpoint
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Dispatch.Backend)
	}

	return nil
}

// Package job describes what a run computes (the immutable job
// configuration) and decomposes it into addressable chunk tasks.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/gridcube/gridcube/internal/grid"
	"github.com/gridcube/gridcube/internal/mask"
)

// ErrConfigValidation wraps every job configuration error. Configuration
// errors are fatal to the whole run and surface before any store mutation.
var ErrConfigValidation = errors.New("invalid job configuration")

// supportedEPSG is the only data cube frame currently supported.
const supportedEPSG = 4326

// Bounds is a geographic bounding box: min lon, min lat, max lon, max lat.
type Bounds [4]float64

// Config is the immutable description of one run. It is constructed once via
// New, validated, and then consumed read-only by every task; nothing may
// mutate it after construction.
//
// Exactly one of Bounds or Cells supplies the spatial extent.
type Config struct {
	Bounds *Bounds
	Cells  []grid.Cell

	// Start and End bound the temporal range at month granularity; the
	// day-of-month component of both is ignored. End's month is inclusive.
	Start time.Time
	End   time.Time

	// FrequencyMonths is the temporal sampling frequency.
	FrequencyMonths int

	// IncludePartialWindow controls the trailing window policy: when the
	// range does not divide evenly by the frequency, the partial trailing
	// window is excluded unless this is set, in which case it is included
	// truncated to the range and flagged Partial.
	IncludePartialWindow bool

	Resolution float64
	ChunkSize  int
	Bands      []string
	VarName    string
	EPSG       int

	// Hook is the masking/compositing hook. Defaults to mask.Passthrough.
	Hook mask.Hook
}

// New validates a configuration and returns it with defaults applied.
func New(cfg Config) (*Config, error) {
	hasBounds := cfg.Bounds != nil
	hasCells := len(cfg.Cells) > 0

	if hasBounds == hasCells {
		return nil, fmt.Errorf("%w: exactly one of a bounding box or a cell list must be supplied", ErrConfigValidation)
	}

	if hasBounds {
		b := *cfg.Bounds
		if b[2] <= b[0] || b[3] <= b[1] {
			return nil, fmt.Errorf("%w: bounding box %v is degenerate", ErrConfigValidation, b)
		}
	}

	if cfg.Start.IsZero() || cfg.End.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrConfigValidation)
	}

	if monthStart(cfg.End).Before(monthStart(cfg.Start)) {
		return nil, fmt.Errorf("%w: end date %s precedes start date %s",
			ErrConfigValidation, cfg.End.Format(time.DateOnly), cfg.Start.Format(time.DateOnly))
	}

	if cfg.FrequencyMonths < 1 {
		return nil, fmt.Errorf("%w: time frequency must be at least 1 month, got %d", ErrConfigValidation, cfg.FrequencyMonths)
	}

	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %v", ErrConfigValidation, cfg.Resolution)
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfigValidation, cfg.ChunkSize)
	}

	if len(cfg.Bands) == 0 {
		return nil, fmt.Errorf("%w: at least one band is required", ErrConfigValidation)
	}

	if cfg.VarName == "" {
		return nil, fmt.Errorf("%w: an output variable name is required", ErrConfigValidation)
	}

	if cfg.EPSG == 0 {
		cfg.EPSG = supportedEPSG
	}

	if cfg.EPSG != supportedEPSG {
		return nil, fmt.Errorf("%w: only EPSG:%d data cubes are supported, got EPSG:%d", ErrConfigValidation, supportedEPSG, cfg.EPSG)
	}

	if cfg.Hook == nil {
		cfg.Hook = mask.Passthrough{}
	}

	return &cfg, nil
}

// Windows returns the run's temporal windows under the configured frequency
// and trailing-window policy.
func (c *Config) Windows() []Window {
	return Windows(c.Start, c.End, c.FrequencyMonths, c.IncludePartialWindow)
}

// Package grid turns an AOI polygon into tiling cells and aligns them to a
// canonical mosaic raster grid.
package grid

import (
	"errors"
	"fmt"

	"github.com/ctessum/geom"
)

// ErrEmptyGrid is returned when generation or alignment yields no usable
// cells or a degenerate extent.
var ErrEmptyGrid = errors.New("grid produced no usable cells")

// Default spec values.
const (
	DefaultD         = 512
	DefaultTargetCRS = "EPSG:32610"
	DefaultResM      = 16
	DefaultIDColumn  = "grid_id"
)

// Spec configures grid generation and mosaic alignment. It is a value object
// shared read-only across generation calls.
//
// The linear unit of D depends on the strategy: meters in the target CRS for
// the square tiler, arc-seconds for the quad tiler.
type Spec struct {
	D         float64
	Overlap   bool
	TargetCRS string
	ResM      float64
	IDColumn  string
}

// DefaultSpec returns the standard spec: 512 cells, overlap on,
// EPSG:32610, 16 m mosaic resolution.
func DefaultSpec() Spec {
	return Spec{
		D:         DefaultD,
		Overlap:   true,
		TargetCRS: DefaultTargetCRS,
		ResM:      DefaultResM,
		IDColumn:  DefaultIDColumn,
	}
}

// Cell is one tiling unit. Geom is the cell footprint in geographic lon/lat
// degrees; Core is the footprint with any overlap border removed (equal to
// Geom for non-overlapping strategies).
//
// Generators that work natively in a projected frame may cache the projected
// footprints so alignment does not round-trip through lon/lat.
type Cell struct {
	ID   string
	Geom geom.Polygonal
	Core geom.Polygonal

	Projected     geom.Polygonal
	ProjectedCore geom.Polygonal
	ProjectedCRS  string

	// Region is the cell's pixel region in the aligned mosaic. Align fills
	// it for cells tiled from a shared geographic lattice, where the
	// regions partition the mosaic; it stays nil otherwise.
	Region *Region
}

// Generator produces tiling cells covering (or intersecting) an AOI.
// Implementations must be deterministic: identical (aoi, spec) inputs yield
// identical cells with identical IDs in identical order.
type Generator interface {
	Generate(aoi geom.Polygonal, spec Spec) ([]Cell, error)
}

// Strategy names accepted by ForStrategy.
const (
	StrategySquare = "square"
	StrategyQuad   = "majortom"
)

// ForStrategy returns the named built-in generator.
func ForStrategy(name string) (Generator, error) {
	switch name {
	case StrategySquare:
		return SquareGenerator{}, nil
	case StrategyQuad:
		return QuadGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown grid strategy %q", name)
	}
}

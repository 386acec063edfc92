// Package mask provides pluggable per-pixel filters applied to fetched
// imagery before temporal compositing.
package mask

import (
	"fmt"
	"math"

	"github.com/gridcube/gridcube/internal/raster"
)

// Hook filters a fetched cube before compositing.
//
// Bands reports the bands the hook needs fetched in order to serve the
// requested data bands (it may inject auxiliary bands such as a
// classification layer). Apply consumes the fetched cube and returns a cube
// carrying exactly the requested bands with the same pixel extent and step
// count; masked observations are NaN so the composite skips them.
type Hook interface {
	Bands(requested []string) []string
	Apply(cube *raster.Cube, requested []string) (*raster.Cube, error)
}

// Passthrough is the default hook: no masking, requested bands unchanged.
type Passthrough struct{}

// Bands implements Hook.
func (Passthrough) Bands(requested []string) []string { return requested }

// Apply implements Hook.
func (Passthrough) Apply(cube *raster.Cube, requested []string) (*raster.Cube, error) {
	return cube.SelectBands(requested)
}

// Default allowed classification values: vegetation and bare ground in
// Sentinel-2 scene classification terms.
var defaultAllowedClasses = []float32{4, 5}

// ClassMask masks pixels whose classification band value is not in the
// allowed set (clouds, shadows, and other unwanted classes), and drops
// non-positive reflectance values. Masked observations become NaN.
type ClassMask struct {
	// ClassBand is the name of the classification band. Defaults to "scl".
	ClassBand string

	// Allowed are the classification values kept unmasked.
	// Defaults to vegetation and bare ground.
	Allowed []float32
}

// Bands implements Hook: the classification band is fetched alongside the
// requested data bands.
func (m ClassMask) Bands(requested []string) []string {
	return append([]string{m.classBand()}, requested...)
}

// Apply implements Hook.
func (m ClassMask) Apply(cube *raster.Cube, requested []string) (*raster.Cube, error) {
	classIdx := cube.BandIndex(m.classBand())
	if classIdx < 0 {
		return nil, fmt.Errorf("mask: classification band %q not present in cube", m.classBand())
	}

	out, err := cube.SelectBands(requested)
	if err != nil {
		return nil, err
	}

	nan := float32(math.NaN())

	for step := 0; step < cube.Steps; step++ {
		for row := 0; row < cube.Height; row++ {
			for col := 0; col < cube.Width; col++ {
				keep := m.allowed(cube.At(step, classIdx, row, col))

				for band := range out.Bands {
					if !keep || out.At(step, band, row, col) <= 0 {
						out.Set(step, band, row, col, nan)
					}
				}
			}
		}
	}

	return out, nil
}

func (m ClassMask) classBand() string {
	if m.ClassBand == "" {
		return "scl"
	}

	return m.ClassBand
}

func (m ClassMask) allowed(class float32) bool {
	values := m.Allowed
	if len(values) == 0 {
		values = defaultAllowedClasses
	}

	for _, v := range values {
		if class == v {
			return true
		}
	}

	return false
}

// Hook selector names accepted on the run configuration surface.
const (
	HookPassthrough = "none"
	HookClassMask   = "class"
)

// ForName returns the named built-in hook.
func ForName(name string) (Hook, error) {
	switch name {
	case HookPassthrough, "":
		return Passthrough{}, nil
	case HookClassMask:
		return ClassMask{}, nil
	default:
		return nil, fmt.Errorf("unknown masking hook %q", name)
	}
}

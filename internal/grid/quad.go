package grid

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
)

// Quad lattice constants. The reference lattice is global and fixed: level 0
// splits the world into two 180-degree squares anchored at (-180, -90), and
// each level quarters its parent. Cells at the same level are therefore
// identical in absolute position regardless of which AOI generated them,
// which is what makes mosaics built incrementally across separate runs line
// up.
const (
	quadWorldWest  = -180.0
	quadWorldSouth = -90.0
	quadLevel0Deg  = 180.0
	quadMaxLevel   = 30

	// quadOverlapFraction is the fixed border, as a fraction of the cell
	// edge, added on every side when overlap is enabled. Downstream
	// consumers trim it using the cell's Core footprint.
	quadOverlapFraction = 0.1

	arcSecondsPerDegree = 3600.0
)

// QuadGenerator recursively subdivides the fixed global reference lattice,
// descending only into quadrants that intersect the AOI, and emits the cells
// at the level whose edge first fits within spec.D arc-seconds. Cell IDs
// encode the level and the absolute cell indices at that level.
type QuadGenerator struct{}

// Generate implements Generator.
func (QuadGenerator) Generate(aoi geom.Polygonal, spec Spec) ([]Cell, error) {
	if aoi == nil {
		return nil, nil
	}

	if spec.D <= 0 {
		return nil, fmt.Errorf("quad grid: cell size %v must be positive", spec.D)
	}

	if aoi.Area() == 0 {
		return nil, nil
	}

	level := quadLevel(spec.D / arcSecondsPerDegree)

	var cells []Cell

	// Two top-level squares cover the world side by side.
	for x := 0; x < 2; x++ {
		cells = descend(aoi, spec, quadWorldWest+float64(x)*quadLevel0Deg, quadWorldSouth, quadLevel0Deg, 0, level, cells)
	}

	// Recursion emits in z-order; rewrite into row-major for a stable,
	// human-predictable task ordering.
	sort.Slice(cells, func(i, j int) bool {
		bi, bj := cells[i].Core.Bounds(), cells[j].Core.Bounds()
		if bi.Min.Y != bj.Min.Y {
			return bi.Min.Y < bj.Min.Y
		}

		return bi.Min.X < bj.Min.X
	})

	return cells, nil
}

// quadLevel returns the subdivision level whose cell edge first fits within
// the requested size in degrees.
func quadLevel(cellDeg float64) int {
	level := 0
	size := quadLevel0Deg

	for size > cellDeg && level < quadMaxLevel {
		size /= 2
		level++
	}

	return level
}

// descend walks one quadrant of the reference lattice, appending the cells at
// the target level that intersect the AOI.
func descend(aoi geom.Polygonal, spec Spec, west, south, size float64, level, target int, cells []Cell) []Cell {
	square := squarePolygon(west, south, size)

	if !boundsOverlap(aoi.Bounds(), square.Bounds()) {
		return cells
	}

	isect := square.Intersection(aoi)
	if isect == nil || isect.Area() == 0 {
		return cells
	}

	if level == target {
		return append(cells, quadCell(west, south, size, level, spec.Overlap))
	}

	half := size / 2
	for _, q := range [4][2]float64{{0, 0}, {half, 0}, {0, half}, {half, half}} {
		cells = descend(aoi, spec, west+q[0], south+q[1], half, level+1, target, cells)
	}

	return cells
}

// quadCell builds the cell at (west, south) with the given edge length.
// With overlap enabled the footprint grows by a fixed border on every side
// while Core keeps the unexpanded square.
func quadCell(west, south, size float64, level int, overlap bool) Cell {
	core := squarePolygon(west, south, size)
	footprint := core

	if overlap {
		border := size * quadOverlapFraction
		footprint = squarePolygon(west-border, south-border, size+2*border)
	}

	x := int((west - quadWorldWest) / size)
	y := int((south - quadWorldSouth) / size)

	return Cell{
		ID:   fmt.Sprintf("L%d_%d_%d", level, x, y),
		Geom: footprint,
		Core: core,
	}
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}

package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/gridcube/gridcube/internal/geometry"
)

// rtree node capacity bounds, matching common usage.
const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// SquareGenerator tiles the AOI's bounding extent, reprojected into the
// target CRS, with a lattice of D-sized squares anchored at integer multiples
// of D from the projection origin. Only squares intersecting the reprojected
// AOI are kept. Cell IDs encode the absolute lattice column and row, so
// regeneration from the same AOI and spec is stable.
type SquareGenerator struct{}

// Generate implements Generator.
func (SquareGenerator) Generate(aoi geom.Polygonal, spec Spec) ([]Cell, error) {
	if aoi == nil {
		return nil, nil
	}

	if spec.D <= 0 {
		return nil, fmt.Errorf("square grid: cell size %v must be positive", spec.D)
	}

	if spec.ResM > 0 && !isMultiple(spec.D, spec.ResM) {
		return nil, fmt.Errorf("square grid: cell size %v is not a multiple of mosaic resolution %v", spec.D, spec.ResM)
	}

	forward, err := geometry.Transform(geometry.CRS4326, spec.TargetCRS)
	if err != nil {
		return nil, err
	}

	inverse, err := geometry.Transform(spec.TargetCRS, geometry.CRS4326)
	if err != nil {
		return nil, err
	}

	projected, err := aoi.Transform(forward)
	if err != nil {
		return nil, fmt.Errorf("%w: projecting AOI: %v", geometry.ErrGeometryFrame, err)
	}

	aoiProj, ok := projected.(geom.Polygonal)
	if !ok || aoiProj.Area() == 0 {
		return nil, nil
	}

	index := rtree.NewTree(rtreeMinChildren, rtreeMaxChildren)
	for _, p := range aoiProj.Polygons() {
		index.Insert(p)
	}

	b := aoiProj.Bounds()
	d := spec.D

	col0 := int(math.Floor(b.Min.X / d))
	col1 := int(math.Ceil(b.Max.X / d))
	row0 := int(math.Floor(b.Min.Y / d))
	row1 := int(math.Ceil(b.Max.Y / d))

	var cells []Cell

	for row := row0; row < row1; row++ {
		for col := col0; col < col1; col++ {
			square := squarePolygon(float64(col)*d, float64(row)*d, d)

			if !intersectsAny(index, square) {
				continue
			}

			gg, transformErr := square.Transform(inverse)
			if transformErr != nil {
				return nil, fmt.Errorf("%w: unprojecting cell: %v", geometry.ErrGeometryFrame, transformErr)
			}

			geographic := gg.(geom.Polygonal)

			cells = append(cells, Cell{
				ID:            fmt.Sprintf("square_%d_%d", col, row),
				Geom:          geographic,
				Core:          geographic,
				Projected:     square,
				ProjectedCore: square,
				ProjectedCRS:  spec.TargetCRS,
			})
		}
	}

	return cells, nil
}

// isMultiple reports whether d is an integer multiple of res, within
// floating-point tolerance. Degree-denominated sizes (1/3600 and friends) are
// not exactly representable, so an exact Mod test would reject valid specs.
func isMultiple(d, res float64) bool {
	ratio := d / res

	return math.Abs(ratio-math.Round(ratio)) < snapEps
}

// squarePolygon builds the closed ring of an axis-aligned square with its
// lower-left corner at (x, y).
func squarePolygon(x, y, size float64) geom.Polygon {
	return geom.Polygon{[]geom.Point{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}}
}

// intersectsAny reports whether the square overlaps any indexed AOI polygon.
// The rtree prunes by bounds; candidates get an exact intersection test.
func intersectsAny(index *rtree.Rtree, square geom.Polygon) bool {
	for _, hit := range index.SearchIntersect(square.Bounds()) {
		p, ok := hit.(geom.Polygonal)
		if !ok {
			continue
		}

		isect := square.Intersection(p)
		if isect != nil && isect.Area() > 0 {
			return true
		}
	}

	return false
}

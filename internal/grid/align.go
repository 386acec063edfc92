package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"

	"github.com/gridcube/gridcube/internal/geometry"
)

// snapEps is the tolerance, in pixel units, used when snapping projected
// bounds to the mosaic lattice. It absorbs floating-point noise from
// reprojection without ever moving a boundary by a visible amount.
const snapEps = 1e-6

// Mosaic is the canonical aligned raster grid that every cell snaps to.
// OriginX/OriginY is the top-left corner; rows count downward.
type Mosaic struct {
	CRS     string
	Res     float64
	OriginX float64
	OriginY float64
	Width   int
	Height  int
}

// Region is an integer-aligned sub-rectangle of a mosaic, in pixels from the
// mosaic origin.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// latticeRect is a cell's core extent in geographic degrees.
type latticeRect struct {
	west, south, east, north float64
}

// Align reprojects cells into spec.TargetCRS and computes the mosaic grid
// covering them, with the origin and extent snapped outward to integer
// multiples of spec.ResM so that no cell pixel is truncated.
//
// The two returned cell slices are index-aligned 1:1 with the input and with
// each other: same order, same count, same IDs.
//
// Cells that arrive without a cached projection and whose core footprints are
// axis-aligned rectangles in the geographic frame are treated as a shared
// lattice: Align precomputes one pixel region per cell such that the regions
// partition the mosaic. See assignLatticeRegions.
func Align(cells []Cell, spec Spec) ([]Cell, []Cell, Mosaic, error) {
	if len(cells) == 0 {
		return nil, nil, Mosaic{}, ErrEmptyGrid
	}

	if spec.ResM <= 0 {
		return nil, nil, Mosaic{}, fmt.Errorf("align: mosaic resolution %v must be positive", spec.ResM)
	}

	geographic := make([]Cell, len(cells))
	target := make([]Cell, len(cells))

	// A nil transformer is valid: proj returns one when target and source
	// frames coincide, and the geom Transform methods treat it as the
	// identity.
	var (
		trans      proj.Transformer
		transReady bool
	)

	rects := make([]latticeRect, len(cells))
	partition := true

	bounds := geom.NewBounds()

	for i, cell := range cells {
		geographic[i] = cell
		if geographic[i].Core == nil {
			geographic[i].Core = cell.Geom
		}

		projGeom, projCore := cell.Projected, cell.ProjectedCore
		if projGeom == nil || cell.ProjectedCRS != spec.TargetCRS {
			if !transReady {
				var err error

				trans, err = geometry.Transform(geometry.CRS4326, spec.TargetCRS)
				if err != nil {
					return nil, nil, Mosaic{}, err
				}

				transReady = true
			}

			var err error

			projGeom, err = projectPolygon(cell.Geom, trans)
			if err != nil {
				return nil, nil, Mosaic{}, err
			}

			// Core frequently holds the same polygon value as Geom, and
			// polygon values are not comparable, so it is always projected
			// in its own right.
			projCore = projGeom
			if cell.Core != nil {
				projCore, err = projectPolygon(cell.Core, trans)
				if err != nil {
					return nil, nil, Mosaic{}, err
				}
			}

			rect, ok := axisRect(geographic[i].Core)
			if ok {
				rects[i] = rect
			} else {
				partition = false
			}
		} else {
			partition = false
		}

		if projCore == nil {
			projCore = projGeom
		}

		target[i] = Cell{
			ID:            cell.ID,
			Geom:          projGeom,
			Core:          projCore,
			Projected:     projGeom,
			ProjectedCore: projCore,
			ProjectedCRS:  spec.TargetCRS,
		}

		bounds.Extend(projGeom.Bounds())
	}

	if bounds.Max.X <= bounds.Min.X || bounds.Max.Y <= bounds.Min.Y {
		return nil, nil, Mosaic{}, ErrEmptyGrid
	}

	res := spec.ResM
	originX := math.Floor(bounds.Min.X/res) * res
	originY := math.Ceil(bounds.Max.Y/res) * res
	right := math.Ceil(bounds.Max.X/res) * res
	bottom := math.Floor(bounds.Min.Y/res) * res

	mosaic := Mosaic{
		CRS:     spec.TargetCRS,
		Res:     res,
		OriginX: originX,
		OriginY: originY,
		Width:   int(math.Round((right - originX) / res)),
		Height:  int(math.Round((originY - bottom) / res)),
	}

	if mosaic.Width <= 0 || mosaic.Height <= 0 {
		return nil, nil, Mosaic{}, ErrEmptyGrid
	}

	// partition only stays true when every cell took the reprojection path
	// above, so transReady is implied.
	if partition {
		assignErr := assignLatticeRegions(target, rects, mosaic, trans)
		if assignErr != nil {
			return nil, nil, Mosaic{}, assignErr
		}
	}

	return geographic, target, mosaic, nil
}

// projectPolygon reprojects one polygon, wrapping transform failures in the
// frame error.
func projectPolygon(p geom.Polygonal, trans proj.Transformer) (geom.Polygonal, error) {
	gg, err := p.Transform(trans)
	if err != nil {
		return nil, fmt.Errorf("%w: projecting cell: %v", geometry.ErrGeometryFrame, err)
	}

	return gg.(geom.Polygonal), nil
}

// assignLatticeRegions derives each cell's pixel region from its geographic
// lattice lines. Every lattice meridian is sampled at one shared latitude and
// every parallel at one shared longitude, so each lattice line maps to
// exactly one pixel boundary and the regions partition the mosaic. Snapping
// each cell's skewed projected outline outward independently would instead
// let neighboring regions overlap by several pixels where the projection
// converges.
func assignLatticeRegions(target []Cell, rects []latticeRect, m Mosaic, trans proj.Transformer) error {
	sample := trans
	if sample == nil {
		sample = func(x, y float64) (float64, float64, error) { return x, y, nil }
	}

	ext := rects[0]
	for _, r := range rects[1:] {
		ext.west = math.Min(ext.west, r.west)
		ext.east = math.Max(ext.east, r.east)
		ext.south = math.Min(ext.south, r.south)
		ext.north = math.Max(ext.north, r.north)
	}

	midLon := (ext.west + ext.east) / 2
	midLat := (ext.south + ext.north) / 2

	cols := make(map[float64]int)
	rows := make(map[float64]int)

	colAt := func(lon float64) (int, error) {
		if c, ok := cols[lon]; ok {
			return c, nil
		}

		x, _, err := sample(lon, midLat)
		if err != nil {
			return 0, fmt.Errorf("%w: sampling lattice meridian %v: %v", geometry.ErrGeometryFrame, lon, err)
		}

		c := int(math.Round((x - m.OriginX) / m.Res))
		cols[lon] = c

		return c, nil
	}

	rowAt := func(lat float64) (int, error) {
		if r, ok := rows[lat]; ok {
			return r, nil
		}

		_, y, err := sample(midLon, lat)
		if err != nil {
			return 0, fmt.Errorf("%w: sampling lattice parallel %v: %v", geometry.ErrGeometryFrame, lat, err)
		}

		r := int(math.Round((m.OriginY - y) / m.Res))
		rows[lat] = r

		return r, nil
	}

	for i, r := range rects {
		x0, err := colAt(r.west)
		if err != nil {
			return err
		}

		x1, err := colAt(r.east)
		if err != nil {
			return err
		}

		y0, err := rowAt(r.north)
		if err != nil {
			return err
		}

		y1, err := rowAt(r.south)
		if err != nil {
			return err
		}

		target[i].Region = &Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	}

	return nil
}

// axisRect reports whether p is a single-ring axis-aligned rectangle and
// returns its extent.
func axisRect(p geom.Polygonal) (latticeRect, bool) {
	poly, ok := p.(geom.Polygon)
	if !ok || len(poly) != 1 {
		return latticeRect{}, false
	}

	ring := poly[0]
	if len(ring) == 5 && ring[0] == ring[4] {
		ring = ring[:4]
	}

	if len(ring) != 4 {
		return latticeRect{}, false
	}

	r := latticeRect{west: ring[0].X, south: ring[0].Y, east: ring[0].X, north: ring[0].Y}
	for _, pt := range ring[1:] {
		r.west = math.Min(r.west, pt.X)
		r.east = math.Max(r.east, pt.X)
		r.south = math.Min(r.south, pt.Y)
		r.north = math.Max(r.north, pt.Y)
	}

	if r.west >= r.east || r.south >= r.north {
		return latticeRect{}, false
	}

	for _, pt := range ring {
		onVertical := pt.X == r.west || pt.X == r.east
		onHorizontal := pt.Y == r.south || pt.Y == r.north

		if !onVertical || !onHorizontal {
			return latticeRect{}, false
		}
	}

	return r, true
}

// CellRegion returns the cell's integer pixel region in the mosaic. Cells
// aligned from a shared geographic lattice carry the precomputed partition
// region; any other cell gets the outward-snapped bounds of its trimmed
// (Core) projected footprint, which always fully covers the footprint and is
// exact for lattice-aligned projected cells.
func (m Mosaic) CellRegion(cell Cell) (Region, error) {
	if cell.Region != nil {
		r := *cell.Region
		if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 ||
			r.X+r.Width > m.Width || r.Y+r.Height > m.Height {
			return Region{}, fmt.Errorf("cell %q region [%d:%d, %d:%d] outside mosaic %dx%d",
				cell.ID, r.X, r.X+r.Width, r.Y, r.Y+r.Height, m.Width, m.Height)
		}

		return r, nil
	}

	core := cell.ProjectedCore
	if core == nil {
		core = cell.Projected
	}

	if core == nil {
		return Region{}, fmt.Errorf("cell %q has no projected footprint; run Align first", cell.ID)
	}

	b := core.Bounds()

	x0 := floorSnap((b.Min.X - m.OriginX) / m.Res)
	x1 := ceilSnap((b.Max.X - m.OriginX) / m.Res)
	y0 := floorSnap((m.OriginY - b.Max.Y) / m.Res)
	y1 := ceilSnap((m.OriginY - b.Min.Y) / m.Res)

	if x0 < 0 || y0 < 0 || x1 > m.Width || y1 > m.Height || x1 <= x0 || y1 <= y0 {
		return Region{}, fmt.Errorf("cell %q footprint [%d:%d, %d:%d] outside mosaic %dx%d", cell.ID, x0, x1, y0, y1, m.Width, m.Height)
	}

	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

func floorSnap(v float64) int {
	return int(math.Floor(v + snapEps))
}

func ceilSnap(v float64) int {
	return int(math.Ceil(v - snapEps))
}

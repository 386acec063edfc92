package grid

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxPolygon(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{[]geom.Point{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

func TestSquareGenerator_NilAOI(t *testing.T) {
	t.Parallel()

	cells, err := SquareGenerator{}.Generate(nil, DefaultSpec())
	require.NoError(t, err)
	assert.Nil(t, cells)
}

func TestSquareGenerator_InvalidSpec(t *testing.T) {
	t.Parallel()

	aoi := boxPolygon(-123.3, 48.9, -122.9, 49.4)

	_, err := SquareGenerator{}.Generate(aoi, Spec{D: 0, TargetCRS: "EPSG:32610", ResM: 16})
	assert.Error(t, err)

	_, err = SquareGenerator{}.Generate(aoi, Spec{D: 500, TargetCRS: "EPSG:32610", ResM: 16})
	assert.Error(t, err, "cell size must be a multiple of the mosaic resolution")
}

func TestSquareGenerator_CoversAOI(t *testing.T) {
	t.Parallel()

	// Half a degree around the Strait of Georgia, UTM zone 10N.
	aoi := boxPolygon(-123.3, 48.9, -122.9, 49.4)

	cells, err := SquareGenerator{}.Generate(aoi, DefaultSpec())
	require.NoError(t, err)
	require.NotEmpty(t, cells)

	union := geom.NewBounds()
	seen := make(map[string]bool, len(cells))

	for _, cell := range cells {
		require.NotNil(t, cell.Geom)
		require.False(t, seen[cell.ID], "duplicate cell ID %q", cell.ID)
		seen[cell.ID] = true

		assert.Equal(t, "EPSG:32610", cell.ProjectedCRS)
		require.NotNil(t, cell.Projected)

		union.Extend(cell.Geom.Bounds())
	}

	aoiBounds := aoi.Bounds()
	assert.LessOrEqual(t, union.Min.X, aoiBounds.Min.X)
	assert.LessOrEqual(t, union.Min.Y, aoiBounds.Min.Y)
	assert.GreaterOrEqual(t, union.Max.X, aoiBounds.Max.X)
	assert.GreaterOrEqual(t, union.Max.Y, aoiBounds.Max.Y)
}

func TestSquareGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	aoi := boxPolygon(-123.3, 48.9, -122.9, 49.4)

	first, err := SquareGenerator{}.Generate(aoi, DefaultSpec())
	require.NoError(t, err)

	second, err := SquareGenerator{}.Generate(aoi, DefaultSpec())
	require.NoError(t, err)

	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Projected.Bounds(), second[i].Projected.Bounds())
	}
}

func TestSquareGenerator_GeographicLattice(t *testing.T) {
	t.Parallel()

	// Tiling directly in lon/lat with a third-of-a-degree cell makes the
	// lattice indices easy to predict.
	res := 1.0 / 3600
	spec := Spec{
		D:         1200 * res,
		TargetCRS: "EPSG:4326",
		ResM:      res,
		IDColumn:  DefaultIDColumn,
	}

	aoi := boxPolygon(0.05, 0.05, 0.5, 0.5)

	cells, err := SquareGenerator{}.Generate(aoi, spec)
	require.NoError(t, err)
	require.Len(t, cells, 4)

	// Row-major: row varies slowest.
	assert.Equal(t, "square_0_0", cells[0].ID)
	assert.Equal(t, "square_1_0", cells[1].ID)
	assert.Equal(t, "square_0_1", cells[2].ID)
	assert.Equal(t, "square_1_1", cells[3].ID)

	b := cells[0].Projected.Bounds()
	assert.InDelta(t, 0, b.Min.X, 1e-9)
	assert.InDelta(t, spec.D, b.Max.X, 1e-9)
}

func TestSquareGenerator_SkipsNonIntersecting(t *testing.T) {
	t.Parallel()

	res := 1.0 / 3600
	spec := Spec{
		D:         1200 * res,
		TargetCRS: "EPSG:4326",
		ResM:      res,
		IDColumn:  DefaultIDColumn,
	}

	// An L-shaped AOI whose bounding box covers four lattice cells but
	// whose geometry misses the upper-right one.
	aoi := geom.Polygon{[]geom.Point{
		{X: 0.05, Y: 0.05},
		{X: 0.5, Y: 0.05},
		{X: 0.5, Y: 0.3},
		{X: 0.3, Y: 0.3},
		{X: 0.3, Y: 0.5},
		{X: 0.05, Y: 0.5},
	}}

	cells, err := SquareGenerator{}.Generate(aoi, spec)
	require.NoError(t, err)

	ids := make([]string, 0, len(cells))
	for _, cell := range cells {
		ids = append(ids, cell.ID)
	}

	assert.NotContains(t, ids, "square_1_1")
	assert.Contains(t, ids, "square_0_0")
	assert.Contains(t, ids, "square_1_0")
	assert.Contains(t, ids, "square_0_1")
}

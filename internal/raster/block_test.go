package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlock_Dimensions(t *testing.T) {
	t.Parallel()

	block := NewBlock([]string{"red", "green", "blue"}, 4, 5)

	assert.Len(t, block.Bands, 3)
	assert.Equal(t, 4, block.Height)
	assert.Equal(t, 5, block.Width)
	assert.Len(t, block.Data, 60)
	assert.Equal(t, int64(240), block.NumBytes())
}

func TestBlock_AtSet(t *testing.T) {
	t.Parallel()

	block := NewBlock([]string{"red", "green"}, 2, 2)
	block.Set(1, 0, 1, 7.5)

	assert.InDelta(t, 7.5, block.At(1, 0, 1), 1e-9)
	assert.InDelta(t, 0, block.At(0, 0, 1), 1e-9)
}

func TestCube_BandIndex(t *testing.T) {
	t.Parallel()

	cube := NewCube([]string{"red", "green", "blue"}, 1, 2, 2)

	assert.Equal(t, 1, cube.BandIndex("green"))
	assert.Equal(t, -1, cube.BandIndex("nir"))
}

func TestCube_SelectBands(t *testing.T) {
	t.Parallel()

	cube := NewCube([]string{"red", "green", "scl"}, 1, 1, 1)
	cube.Set(0, 0, 0, 0, 0.1)
	cube.Set(0, 1, 0, 0, 0.2)
	cube.Set(0, 2, 0, 0, 4)

	subset, err := cube.SelectBands([]string{"green", "red"})
	require.NoError(t, err)

	assert.Equal(t, []string{"green", "red"}, subset.Bands)
	assert.InDelta(t, 0.2, subset.At(0, 0, 0, 0), 1e-6)
	assert.InDelta(t, 0.1, subset.At(0, 1, 0, 0), 1e-6)
}

func TestCube_SelectBands_Missing(t *testing.T) {
	t.Parallel()

	cube := NewCube([]string{"red"}, 1, 1, 1)

	_, err := cube.SelectBands([]string{"nir"})
	assert.Error(t, err)
}

func TestCube_MedianComposite(t *testing.T) {
	t.Parallel()

	cube := NewCube([]string{"red"}, 3, 1, 1)
	cube.Set(0, 0, 0, 0, 0.3)
	cube.Set(1, 0, 0, 0, 0.1)
	cube.Set(2, 0, 0, 0, 0.2)

	block := cube.MedianComposite()

	assert.InDelta(t, 0.2, block.At(0, 0, 0), 1e-6)
}

func TestCube_MedianComposite_EvenCount(t *testing.T) {
	t.Parallel()

	cube := NewCube([]string{"red"}, 4, 1, 1)
	cube.Set(0, 0, 0, 0, 0.1)
	cube.Set(1, 0, 0, 0, 0.2)
	cube.Set(2, 0, 0, 0, 0.3)
	cube.Set(3, 0, 0, 0, 0.4)

	block := cube.MedianComposite()

	assert.InDelta(t, 0.25, block.At(0, 0, 0), 1e-6)
}

func TestCube_MedianComposite_IgnoresNaN(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())

	cube := NewCube([]string{"red"}, 3, 1, 1)
	cube.Set(0, 0, 0, 0, nan)
	cube.Set(1, 0, 0, 0, 0.4)
	cube.Set(2, 0, 0, 0, nan)

	block := cube.MedianComposite()

	assert.InDelta(t, 0.4, block.At(0, 0, 0), 1e-6)
}

func TestCube_MedianComposite_AllNaN(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())

	cube := NewCube([]string{"red"}, 2, 1, 1)
	cube.Set(0, 0, 0, 0, nan)
	cube.Set(1, 0, 0, 0, nan)

	block := cube.MedianComposite()

	assert.True(t, math.IsNaN(float64(block.At(0, 0, 0))))
}

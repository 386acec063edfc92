// Package raster provides in-memory pixel blocks exchanged between the
// imagery source, masking hooks, compositing, and the chunked array store.
package raster

import (
	"fmt"
	"math"
	"sort"
)

// Block is a single multi-band raster block: one value per (band, row, col).
// Data is laid out in C order with band as the slowest dimension.
type Block struct {
	Bands  []string
	Height int
	Width  int
	Data   []float32
}

// NewBlock allocates a zeroed block for the given bands and pixel extent.
func NewBlock(bands []string, height, width int) *Block {
	return &Block{
		Bands:  bands,
		Height: height,
		Width:  width,
		Data:   make([]float32, len(bands)*height*width),
	}
}

// At returns the value at (band, row, col).
func (b *Block) At(band, row, col int) float32 {
	return b.Data[(band*b.Height+row)*b.Width+col]
}

// Set stores a value at (band, row, col).
func (b *Block) Set(band, row, col int, v float32) {
	b.Data[(band*b.Height+row)*b.Width+col] = v
}

// NumBytes returns the payload size of the block in bytes.
func (b *Block) NumBytes() int64 {
	return int64(len(b.Data)) * 4
}

// Cube is a time series of multi-band observations over one pixel extent.
// Data is laid out in C order: (step, band, row, col).
type Cube struct {
	Bands  []string
	Steps  int
	Height int
	Width  int
	Data   []float32
}

// NewCube allocates a zeroed cube.
func NewCube(bands []string, steps, height, width int) *Cube {
	return &Cube{
		Bands:  bands,
		Steps:  steps,
		Height: height,
		Width:  width,
		Data:   make([]float32, steps*len(bands)*height*width),
	}
}

// At returns the value at (step, band, row, col).
func (c *Cube) At(step, band, row, col int) float32 {
	return c.Data[((step*len(c.Bands)+band)*c.Height+row)*c.Width+col]
}

// Set stores a value at (step, band, row, col).
func (c *Cube) Set(step, band, row, col int, v float32) {
	c.Data[((step*len(c.Bands)+band)*c.Height+row)*c.Width+col] = v
}

// BandIndex returns the index of the named band, or -1 when absent.
func (c *Cube) BandIndex(name string) int {
	for i, b := range c.Bands {
		if b == name {
			return i
		}
	}

	return -1
}

// SelectBands returns a cube containing only the named bands, in the given
// order. The returned cube shares no storage with the receiver.
func (c *Cube) SelectBands(names []string) (*Cube, error) {
	out := NewCube(names, c.Steps, c.Height, c.Width)

	for bi, name := range names {
		src := c.BandIndex(name)
		if src < 0 {
			return nil, fmt.Errorf("raster: band %q not present in cube", name)
		}

		for s := 0; s < c.Steps; s++ {
			for r := 0; r < c.Height; r++ {
				for col := 0; col < c.Width; col++ {
					out.Set(s, bi, r, col, c.At(s, src, r, col))
				}
			}
		}
	}

	return out, nil
}

// MedianComposite reduces the cube over its time steps into a single block,
// taking the per-pixel median of the finite observations. Pixels with no
// finite observation (fully masked) become NaN.
func (c *Cube) MedianComposite() *Block {
	out := NewBlock(c.Bands, c.Height, c.Width)
	samples := make([]float64, 0, c.Steps)

	for band := range c.Bands {
		for row := 0; row < c.Height; row++ {
			for col := 0; col < c.Width; col++ {
				samples = samples[:0]

				for step := 0; step < c.Steps; step++ {
					v := float64(c.At(step, band, row, col))
					if !math.IsNaN(v) {
						samples = append(samples, v)
					}
				}

				out.Set(band, row, col, median(samples))
			}
		}
	}

	return out
}

// median returns the median of samples, or NaN for an empty set.
// samples is sorted in place.
func median(samples []float64) float32 {
	if len(samples) == 0 {
		return float32(math.NaN())
	}

	sort.Float64s(samples)

	mid := len(samples) / 2
	if len(samples)%2 == 1 {
		return float32(samples[mid])
	}

	return float32((samples[mid-1] + samples[mid]) / 2)
}

package store

import (
	"encoding/json"
	"fmt"
)

// Zarr v2 constants used by the array layout.
const (
	zarrFormat = 2

	// metaKey is the key suffix holding array metadata.
	metaKey = ".zarray"

	// dtypeFloat32 is little-endian 32-bit float.
	dtypeFloat32 = "<f4"

	// orderC is row-major chunk byte layout.
	orderC = "C"

	// fillValueNaN marks uninitialized pixels.
	fillValueNaN = "NaN"

	// dimSeparator joins chunk grid indices into keys ("0.1.2.0").
	dimSeparator = "."
)

// CompressorMeta identifies the chunk compression codec.
type CompressorMeta struct {
	ID string `json:"id"`
}

// ArrayMeta is the ".zarray" metadata document describing the shared array:
// shape, chunk grid, dtype, and codec. It is written once at initialization
// and read by every writer.
type ArrayMeta struct {
	ZarrFormat         int             `json:"zarr_format"`
	Shape              []int           `json:"shape"`
	Chunks             []int           `json:"chunks"`
	Dtype              string          `json:"dtype"`
	Compressor         *CompressorMeta `json:"compressor"`
	FillValue          interface{}     `json:"fill_value"`
	Order              string          `json:"order"`
	Filters            []interface{}   `json:"filters"`
	DimensionSeparator string          `json:"dimension_separator,omitempty"`

	// CRS is the reference frame of the spatial dimensions, stored as a
	// userland extension the same way geo-zarr conventions do.
	CRS string `json:"crs,omitempty"`
}

// NewArrayMeta describes a (time, y, x, band) array with one time step and
// the full band depth per chunk, chunkSize pixels on each spatial edge, LZ4
// chunk compression, and NaN fill.
func NewArrayMeta(timeSteps, height, width, bands, chunkSize int, crs string) ArrayMeta {
	return ArrayMeta{
		ZarrFormat:         zarrFormat,
		Shape:              []int{timeSteps, height, width, bands},
		Chunks:             []int{1, chunkSize, chunkSize, bands},
		Dtype:              dtypeFloat32,
		Compressor:         &CompressorMeta{ID: lz4CodecID},
		FillValue:          fillValueNaN,
		Order:              orderC,
		DimensionSeparator: dimSeparator,
		CRS:                crs,
	}
}

// Validate checks the invariants the writer relies on.
func (m ArrayMeta) Validate() error {
	if len(m.Shape) != 4 || len(m.Chunks) != 4 {
		return fmt.Errorf("array metadata must be 4-dimensional (time, y, x, band), got shape %v chunks %v", m.Shape, m.Chunks)
	}

	for i, n := range m.Shape {
		if n <= 0 || m.Chunks[i] <= 0 {
			return fmt.Errorf("array dimension %d has non-positive extent: shape %v chunks %v", i, m.Shape, m.Chunks)
		}
	}

	if m.Dtype != dtypeFloat32 {
		return fmt.Errorf("unsupported dtype %q", m.Dtype)
	}

	return nil
}

// ChunkElems returns the number of values within one chunk.
func (m ArrayMeta) ChunkElems() int {
	n := 1
	for _, c := range m.Chunks {
		n *= c
	}

	return n
}

func (m ArrayMeta) encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "    ")
}

func decodeMeta(data []byte) (ArrayMeta, error) {
	var m ArrayMeta

	err := json.Unmarshal(data, &m)
	if err != nil {
		return ArrayMeta{}, fmt.Errorf("decoding array metadata: %w", err)
	}

	return m, nil
}

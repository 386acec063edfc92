// Package fetch defines the boundary to the satellite imagery search/fetch
// layer. The real layer lives outside this repository; a deterministic
// synthetic source stands in for it in local runs and tests.
package fetch

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/gridcube/gridcube/internal/raster"
)

// Request asks for all observations of one cell within one time window, at a
// fixed pixel extent.
type Request struct {
	GridID string
	Start  time.Time
	End    time.Time
	Bands  []string
	Width  int
	Height int
}

// Source fetches source imagery for a cell and time window.
type Source interface {
	FetchCube(ctx context.Context, req Request) (*raster.Cube, error)
}

// Default synthetic parameters.
const (
	defaultStepsPerWindow = 4

	// synthClassValues is the value range of the synthetic classification
	// band, mirroring scene classification layers.
	synthClassValues = 12
)

// SyntheticSource produces deterministic imagery seeded by the request's
// identity: the same (grid id, window, bands) always yields the same cube,
// which keeps re-runs and resumability tests reproducible.
type SyntheticSource struct {
	// StepsPerWindow is the number of observations per window. Defaults
	// to 4.
	StepsPerWindow int
}

var _ Source = SyntheticSource{}

// FetchCube implements Source.
func (s SyntheticSource) FetchCube(ctx context.Context, req Request) (*raster.Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	steps := s.StepsPerWindow
	if steps <= 0 {
		steps = defaultStepsPerWindow
	}

	cube := raster.NewCube(req.Bands, steps, req.Height, req.Width)
	rng := rand.New(rand.NewSource(requestSeed(req)))

	for step := 0; step < steps; step++ {
		for band, name := range req.Bands {
			for row := 0; row < req.Height; row++ {
				for col := 0; col < req.Width; col++ {
					if name == "scl" {
						cube.Set(step, band, row, col, float32(rng.Intn(synthClassValues)))

						continue
					}

					// Reflectance-like values in (0, 1].
					cube.Set(step, band, row, col, float32(rng.Float64())*0.99+0.01)
				}
			}
		}
	}

	return cube, nil
}

// requestSeed derives a stable seed from the request identity.
func requestSeed(req Request) int64 {
	h := fnv.New64a()
	h.Write([]byte(req.GridID))
	h.Write([]byte(req.Start.UTC().Format(time.RFC3339)))
	h.Write([]byte(req.End.UTC().Format(time.RFC3339)))

	for _, b := range req.Bands {
		h.Write([]byte(b))
	}

	return int64(h.Sum64())
}

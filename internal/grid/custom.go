package grid

import (
	"fmt"

	"github.com/ctessum/geom"
)

// GeneratorFunc is the signature of an externally supplied tiling function.
type GeneratorFunc func(aoi geom.Polygonal, spec Spec) ([]Cell, error)

// Custom wraps an external tiling function as a Generator. The wrapper checks
// only that every returned cell carries a non-empty geometry and fills in
// missing identifiers; a malformed custom generator surfaces downstream at
// alignment, not here.
func Custom(fn GeneratorFunc) Generator {
	return customGenerator{fn: fn}
}

type customGenerator struct {
	fn GeneratorFunc
}

func (g customGenerator) Generate(aoi geom.Polygonal, spec Spec) ([]Cell, error) {
	cells, err := g.fn(aoi, spec)
	if err != nil {
		return nil, err
	}

	for i := range cells {
		if cells[i].Geom == nil || cells[i].Geom.Area() == 0 {
			return nil, fmt.Errorf("custom grid: cell %d has an empty geometry", i)
		}

		if cells[i].ID == "" {
			cells[i].ID = fmt.Sprintf("cell_%d", i)
		}

		if cells[i].Core == nil {
			cells[i].Core = cells[i].Geom
		}
	}

	return cells, nil
}

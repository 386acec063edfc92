// Package geometry loads AOI polygons and normalizes them to geographic
// lon/lat degrees. It performs format parsing and frame conversion only; no
// topology repair is attempted.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// ErrEmptyGeometry is returned when an input yields no usable polygon.
var ErrEmptyGeometry = errors.New("no usable geometry in input")

// Load reads an AOI from a geometry file, unions all features into one
// polygonal geometry and returns it in EPSG:4326 lon/lat degrees.
//
// Supported inputs: GeoJSON (.geojson, .json; assumed lon/lat per RFC 7946)
// and ESRI Shapefile (.shp; reprojected from its .prj reference frame).
// When path is a directory, layer selects the shapefile basename inside it.
func Load(path, layer string) (geom.Polygonal, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}

	if info.IsDir() {
		if layer == "" {
			return nil, fmt.Errorf("geometry: %q is a directory; a layer name is required", path)
		}

		path = filepath.Join(path, layer+".shp")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path)
	case ".shp":
		return loadShapefile(path)
	default:
		return nil, fmt.Errorf("geometry: unsupported file type %q", filepath.Ext(path))
	}
}

// geoJSON mirrors just enough of the GeoJSON structure to extract polygons.
type geoJSON struct {
	Type        string          `json:"type"`
	Features    []geoJSONObject `json:"features"`
	Geometry    *geoJSONGeom    `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type geoJSONObject struct {
	Geometry *geoJSONGeom `json:"geometry"`
}

type geoJSONGeom struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func loadGeoJSON(path string) (geom.Polygonal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}

	var doc geoJSON

	unmarshalErr := json.Unmarshal(data, &doc)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("geometry: parsing %q: %w", path, unmarshalErr)
	}

	var polys []geom.Polygonal

	switch doc.Type {
	case "FeatureCollection":
		for _, f := range doc.Features {
			p, decodeErr := decodeGeoJSONGeom(f.Geometry)
			if decodeErr != nil {
				return nil, decodeErr
			}

			if p != nil {
				polys = append(polys, p)
			}
		}
	case "Feature":
		p, decodeErr := decodeGeoJSONGeom(doc.Geometry)
		if decodeErr != nil {
			return nil, decodeErr
		}

		if p != nil {
			polys = append(polys, p)
		}
	default:
		p, decodeErr := decodeGeoJSONGeom(&geoJSONGeom{Type: doc.Type, Coordinates: doc.Coordinates})
		if decodeErr != nil {
			return nil, decodeErr
		}

		if p != nil {
			polys = append(polys, p)
		}
	}

	return Union(polys)
}

// decodeGeoJSONGeom converts a GeoJSON Polygon or MultiPolygon into a
// geom.Polygonal. Non-polygonal geometry types are skipped (nil, nil).
func decodeGeoJSONGeom(g *geoJSONGeom) (geom.Polygonal, error) {
	if g == nil {
		return nil, nil
	}

	switch g.Type {
	case "Polygon":
		var rings [][][]float64

		err := json.Unmarshal(g.Coordinates, &rings)
		if err != nil {
			return nil, fmt.Errorf("geometry: polygon coordinates: %w", err)
		}

		return ringsToPolygon(rings), nil
	case "MultiPolygon":
		var parts [][][][]float64

		err := json.Unmarshal(g.Coordinates, &parts)
		if err != nil {
			return nil, fmt.Errorf("geometry: multipolygon coordinates: %w", err)
		}

		mp := make(geom.MultiPolygon, 0, len(parts))
		for _, rings := range parts {
			mp = append(mp, ringsToPolygon(rings))
		}

		return mp, nil
	default:
		return nil, nil
	}
}

func ringsToPolygon(rings [][][]float64) geom.Polygon {
	poly := make(geom.Polygon, 0, len(rings))

	for _, ring := range rings {
		pts := make([]geom.Point, 0, len(ring))

		for _, c := range ring {
			if len(c) < 2 {
				continue
			}

			pts = append(pts, geom.Point{X: c[0], Y: c[1]})
		}

		poly = append(poly, pts)
	}

	return poly
}

func loadShapefile(path string) (geom.Polygonal, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("geometry: opening shapefile %q: %w", path, err)
	}
	defer dec.Close()

	srcSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("%w: shapefile %q has no usable projection: %v", ErrGeometryFrame, path, err)
	}

	dstSR, err := SR(CRS4326)
	if err != nil {
		return nil, err
	}

	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("%w: shapefile %q: %v", ErrGeometryFrame, path, err)
	}

	var polys []geom.Polygonal

	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}

		gg, transformErr := g.Transform(trans)
		if transformErr != nil {
			return nil, fmt.Errorf("%w: reprojecting feature: %v", ErrGeometryFrame, transformErr)
		}

		if p, ok := gg.(geom.Polygonal); ok {
			polys = append(polys, p)
		}
	}

	decodeErr := dec.Error()
	if decodeErr != nil {
		return nil, fmt.Errorf("geometry: decoding shapefile %q: %w", path, decodeErr)
	}

	return Union(polys)
}

// Union dissolves a set of polygonal geometries into one. Empty inputs and an
// empty union both return ErrEmptyGeometry.
func Union(polys []geom.Polygonal) (geom.Polygonal, error) {
	var union geom.Polygonal

	for _, p := range polys {
		if p == nil || p.Area() == 0 {
			continue
		}

		if union == nil {
			union = p

			continue
		}

		union = union.Union(p)
	}

	if union == nil || union.Area() == 0 {
		return nil, ErrEmptyGeometry
	}

	return union, nil
}

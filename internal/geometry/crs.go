package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// ErrGeometryFrame is returned when a reference frame cannot be resolved or a
// geometry cannot be converted into a known frame.
var ErrGeometryFrame = errors.New("unsupported reference frame")

// CRS4326 is the geographic lon/lat reference frame all loaded AOIs are
// normalized to.
const CRS4326 = "EPSG:4326"

// Proj4 definitions for the frames that cannot be derived from the code alone.
const (
	proj4LonLat  = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"
	proj4WebMerc = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"
)

// Proj4 resolves an EPSG-style CRS code ("EPSG:32610") to a proj4 definition.
// Supported codes: 4326 (lon/lat), 3857 (web mercator), and the WGS84 UTM
// zones 32601-32660 (north) and 32701-32760 (south).
func Proj4(crs string) (string, error) {
	code, err := epsgCode(crs)
	if err != nil {
		return "", err
	}

	switch {
	case code == 4326:
		return proj4LonLat, nil
	case code == 3857:
		return proj4WebMerc, nil
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	default:
		return "", fmt.Errorf("%w: EPSG:%d", ErrGeometryFrame, code)
	}
}

// SR parses the spatial reference for a CRS code.
func SR(crs string) (*proj.SR, error) {
	p4, err := Proj4(crs)
	if err != nil {
		return nil, err
	}

	sr, err := proj.Parse(p4)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", ErrGeometryFrame, crs, err)
	}

	return sr, nil
}

// Transform builds a coordinate transformer between two CRS codes.
func Transform(from, to string) (proj.Transformer, error) {
	srcSR, err := SR(from)
	if err != nil {
		return nil, err
	}

	dstSR, err := SR(to)
	if err != nil {
		return nil, err
	}

	trans, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s: %v", ErrGeometryFrame, from, to, err)
	}

	return trans, nil
}

// epsgCode extracts the numeric code from "EPSG:nnnn" or a bare "nnnn".
func epsgCode(crs string) (int, error) {
	s := strings.TrimSpace(crs)
	if rest, ok := strings.CutPrefix(strings.ToUpper(s), "EPSG:"); ok {
		s = rest
	}

	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrGeometryFrame, crs)
	}

	return code, nil
}

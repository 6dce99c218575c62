package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/salonbook/mapsync/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions are WGS84 (EPSG:4326) longitude/latitude pairs everywhere in the
// engine. Surfaces that work in Web Mercator project at the edge via ToWebMercator.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParsePosition parses a string in the format "long,lat", optionally wrapped
// in square brackets, into a validated core.Position.
func ParsePosition(coords string) (core.Position, error) {
	coords = strings.TrimSpace(coords)
	coords = strings.TrimPrefix(coords, "[")
	coords = strings.TrimSuffix(coords, "]")

	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}

	pos := core.Position{Longitude: long, Latitude: lat}
	if err := Validate(pos); err != nil {
		return core.Position{}, err
	}
	return pos, nil
}

// Validate reports ErrInvalidCoordinates when the position is outside the
// geographic range or not a finite number.
func Validate(pos core.Position) error {
	if !finite(pos.Longitude) || !finite(pos.Latitude) {
		return ErrInvalidCoordinates
	}
	if pos.Longitude < -180 || pos.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	if pos.Latitude < -90 || pos.Latitude > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Point converts a position to a 2D simplefeatures point (X=long, Y=lat).
func Point(pos core.Position) (geom.Point, error) {
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: pos.Longitude, Y: pos.Latitude},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("building point: %w", err)
	}
	return pt, nil
}

// ToWebMercator projects a WGS84 position to EPSG:3857 meters.
func ToWebMercator(pos core.Position) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(pos.Longitude, pos.Latitude, 0)
	return x, y
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLongitude float64 `json:"minLongitude"`
	MinLatitude  float64 `json:"minLatitude"`
	MaxLongitude float64 `json:"maxLongitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() core.Position {
	return core.Position{
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
	}
}

// BoundsOf returns the bounding box of all valid descriptor positions.
// ok is false when no descriptor has a valid position.
func BoundsOf(descs []core.MarkerDescriptor) (b Bounds, ok bool) {
	for _, d := range descs {
		if Validate(d.Position) != nil {
			continue
		}
		p := d.Position
		if !ok {
			b = Bounds{p.Longitude, p.Latitude, p.Longitude, p.Latitude}
			ok = true
			continue
		}
		b.MinLongitude = math.Min(b.MinLongitude, p.Longitude)
		b.MinLatitude = math.Min(b.MinLatitude, p.Latitude)
		b.MaxLongitude = math.Max(b.MaxLongitude, p.Longitude)
		b.MaxLatitude = math.Max(b.MaxLatitude, p.Latitude)
	}
	return b, ok
}

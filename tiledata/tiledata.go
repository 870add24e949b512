// Package tiledata describes the decoded vector geometry of a single tile.
//
// The worker only ever consumes the interfaces in this file. The orb backed
// implementation in orb.go covers Mapbox Vector Tiles and GeoJSON input.
package tiledata

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/zclconf/go-cty/cty"
)

// DefaultExtent is the coordinate range of a tile layer when the source does
// not carry one.
const DefaultExtent = 4096

// FeatureType is the geometry class of a feature as seen by style filters.
type FeatureType uint8

const (
	Unknown FeatureType = iota
	Point
	LineString
	Polygon
)

func (t FeatureType) String() string {
	switch t {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// TileID identifies an overscaled tile. It is assigned when a worker is
// created and never changes.
type TileID struct {
	OverscaledZ uint8
	Wrap        int16
	Canonical   maptile.Tile
}

// NewTileID returns the identity of a tile rendered at its own zoom level.
func NewTileID(t maptile.Tile) TileID {
	return TileID{OverscaledZ: uint8(t.Z), Canonical: t}
}

// Overscaling is the factor by which the tile is stretched beyond its source
// zoom level.
func (id TileID) Overscaling() float64 {
	if id.OverscaledZ <= uint8(id.Canonical.Z) {
		return 1
	}
	return float64(uint32(1) << (id.OverscaledZ - uint8(id.Canonical.Z)))
}

func (id TileID) String() string {
	return fmt.Sprintf("%d/%d/%d=>%d", id.Canonical.Z, id.Canonical.X, id.Canonical.Y, id.OverscaledZ)
}

// Data is an immutable snapshot of a tile's geometry.
type Data interface {
	// Layer returns the named source layer or nil if the tile does not have it.
	Layer(name string) Layer
	// LayerNames lists the source layers in the order they were decoded.
	LayerNames() []string
	Clone() Data
}

type Layer interface {
	Name() string
	Extent() uint32
	FeatureCount() int
	Feature(i int) Feature
}

type Feature interface {
	Type() FeatureType
	// ID returns the feature id, the second value is false when the feature
	// has none.
	ID() (cty.Value, bool)
	// Property returns a scalar property value. Non-scalar and missing
	// properties report false.
	Property(key string) (cty.Value, bool)
	Properties() map[string]cty.Value
	// Geometry returns the feature geometry in tile coordinates.
	Geometry() orb.Geometry
}

package tiledata

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/zclconf/go-cty/cty"
)

// orbData backs Data with decoded orb layers. Geometry is kept in tile
// coordinates.
type orbData struct {
	names  []string
	layers map[string]*orbLayer
}

type orbLayer struct {
	name     string
	extent   uint32
	features []*geojson.Feature
}

type orbFeature struct {
	f *geojson.Feature
}

// FromMVT decodes an uncompressed Mapbox Vector Tile.
func FromMVT(data []byte) (Data, error) {
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal MVT data: %w", err)
	}
	return FromLayers(layers), nil
}

// FromMVTGzipped decodes a gzip compressed Mapbox Vector Tile.
func FromMVTGzipped(data []byte) (Data, error) {
	layers, err := mvt.UnmarshalGzipped(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal gzipped MVT data: %w", err)
	}
	return FromLayers(layers), nil
}

// FromGeoJSON builds tile data from WGS84 feature collections, projecting them
// into the coordinate space of tile.
func FromGeoJSON(tile maptile.Tile, collections map[string]*geojson.FeatureCollection) Data {
	layers := mvt.NewLayers(collections)
	layers.ProjectToTile(tile)
	return FromLayers(layers)
}

// FromLayers wraps already decoded layers whose geometry is in tile
// coordinates. When two layers share a name the first one wins.
func FromLayers(layers mvt.Layers) Data {
	d := &orbData{layers: make(map[string]*orbLayer, len(layers))}
	for _, l := range layers {
		if l == nil {
			continue
		}
		if _, ok := d.layers[l.Name]; ok {
			continue
		}

		extent := l.Extent
		if extent == 0 {
			extent = DefaultExtent
		}

		d.names = append(d.names, l.Name)
		d.layers[l.Name] = &orbLayer{
			name:     l.Name,
			extent:   extent,
			features: l.Features,
		}
	}
	return d
}

func (d *orbData) Layer(name string) Layer {
	l, ok := d.layers[name]
	if !ok {
		return nil
	}
	return l
}

func (d *orbData) LayerNames() []string {
	return append([]string(nil), d.names...)
}

func (d *orbData) Clone() Data {
	c := &orbData{
		names:  append([]string(nil), d.names...),
		layers: make(map[string]*orbLayer, len(d.layers)),
	}
	for name, l := range d.layers {
		features := make([]*geojson.Feature, len(l.features))
		for i, f := range l.features {
			features[i] = cloneFeature(f)
		}
		c.layers[name] = &orbLayer{name: l.name, extent: l.extent, features: features}
	}
	return c
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	if f == nil {
		return nil
	}
	nf := geojson.NewFeature(orb.Clone(f.Geometry))
	nf.ID = f.ID
	nf.Properties = f.Properties.Clone()
	return nf
}

func (l *orbLayer) Name() string      { return l.name }
func (l *orbLayer) Extent() uint32    { return l.extent }
func (l *orbLayer) FeatureCount() int { return len(l.features) }

func (l *orbLayer) Feature(i int) Feature {
	if i < 0 || i >= len(l.features) || l.features[i] == nil {
		return nil
	}
	return orbFeature{f: l.features[i]}
}

func (f orbFeature) Type() FeatureType {
	return geometryType(f.f.Geometry)
}

func (f orbFeature) ID() (cty.Value, bool) {
	if f.f.ID == nil {
		return cty.NilVal, false
	}
	return ToValue(f.f.ID)
}

func (f orbFeature) Property(key string) (cty.Value, bool) {
	raw, ok := f.f.Properties[key]
	if !ok {
		return cty.NilVal, false
	}
	return ToValue(raw)
}

func (f orbFeature) Properties() map[string]cty.Value {
	out := make(map[string]cty.Value, len(f.f.Properties))
	for k, raw := range f.f.Properties {
		if v, ok := ToValue(raw); ok {
			out[k] = v
		}
	}
	return out
}

func (f orbFeature) Geometry() orb.Geometry {
	return f.f.Geometry
}

func geometryType(g orb.Geometry) FeatureType {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return Point
	case orb.LineString, orb.MultiLineString:
		return LineString
	case orb.Ring, orb.Polygon, orb.MultiPolygon, orb.Bound:
		return Polygon
	default:
		return Unknown
	}
}

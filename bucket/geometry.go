package bucket

import (
	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

type FillBucket struct {
	base
	bound    orb.Bound
	Polygons []orb.Polygon
}

func newFillBucket(kind Kind, params Params) *FillBucket {
	return &FillBucket{
		base:  base{kind: kind},
		bound: params.clipBound(),
	}
}

func (b *FillBucket) HasData() bool { return len(b.Polygons) > 0 }

func (b *FillBucket) AddFeature(index int, _ tiledata.Feature, geometry orb.Geometry) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	if err := validate(geometry); err != nil {
		return err
	}

	added := false
	for _, poly := range polygons(clip.Geometry(b.bound, geometry)) {
		var rings orb.Polygon
		for _, ring := range poly {
			// a closed ring needs at least a triangle plus the closing point
			if len(ring) < 4 {
				continue
			}
			rings = append(rings, ring)
			b.vertices += len(ring)
		}
		if len(rings) == 0 {
			continue
		}
		b.Polygons = append(b.Polygons, rings)
		added = true
	}

	if added {
		b.features = append(b.features, index)
	}
	return nil
}

func polygons(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	case orb.Ring:
		return []orb.Polygon{{g}}
	case orb.Bound:
		return []orb.Polygon{g.ToPolygon()}
	case orb.Collection:
		var out []orb.Polygon
		for _, sub := range g {
			out = append(out, polygons(sub)...)
		}
		return out
	}
	return nil
}

type LineBucket struct {
	base
	bound  orb.Bound
	Layout style.LineLayout
	Lines  []orb.LineString
}

func newLineBucket(params Params, layout style.LineLayout) *LineBucket {
	return &LineBucket{
		base:   base{kind: Line},
		bound:  params.clipBound(),
		Layout: layout,
	}
}

func (b *LineBucket) HasData() bool { return len(b.Lines) > 0 }

func (b *LineBucket) AddFeature(index int, _ tiledata.Feature, geometry orb.Geometry) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	if err := validate(geometry); err != nil {
		return err
	}

	added := false
	for _, line := range lines(geometry) {
		for _, clipped := range clip.LineString(b.bound, line) {
			if len(clipped) < 2 {
				continue
			}
			b.Lines = append(b.Lines, clipped)
			b.vertices += len(clipped)
			added = true
		}
	}

	if added {
		b.features = append(b.features, index)
	}
	return nil
}

// lines flattens geometry into line strings. Polygon rings are drawn as
// outlines.
func lines(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	case orb.Ring:
		return []orb.LineString{orb.LineString(g)}
	case orb.Polygon:
		out := make([]orb.LineString, 0, len(g))
		for _, r := range g {
			out = append(out, orb.LineString(r))
		}
		return out
	case orb.MultiPolygon:
		var out []orb.LineString
		for _, p := range g {
			out = append(out, lines(p)...)
		}
		return out
	case orb.Collection:
		var out []orb.LineString
		for _, sub := range g {
			out = append(out, lines(sub)...)
		}
		return out
	}
	return nil
}

type CircleBucket struct {
	base
	extent float64
	Points []orb.Point
}

func newCircleBucket(params Params) *CircleBucket {
	extent := float64(params.Extent)
	if extent == 0 {
		extent = tiledata.DefaultExtent
	}
	return &CircleBucket{
		base:   base{kind: Circle},
		extent: extent,
	}
}

func (b *CircleBucket) HasData() bool { return len(b.Points) > 0 }

func (b *CircleBucket) AddFeature(index int, _ tiledata.Feature, geometry orb.Geometry) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	if err := validate(geometry); err != nil {
		return err
	}

	added := false
	for _, p := range points(geometry) {
		// points in the buffer belong to the neighbouring tile
		if p[0] < 0 || p[0] >= b.extent || p[1] < 0 || p[1] >= b.extent {
			continue
		}
		b.Points = append(b.Points, p)
		b.vertices++
		added = true
	}

	if added {
		b.features = append(b.features, index)
	}
	return nil
}

func points(g orb.Geometry) []orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return []orb.Point{g}
	case orb.MultiPoint:
		return g
	case orb.LineString:
		return g
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range g {
			out = append(out, ls...)
		}
		return out
	case orb.Collection:
		var out []orb.Point
		for _, sub := range g {
			out = append(out, points(sub)...)
		}
		return out
	}
	return nil
}

// Package bucket holds the renderable geometry produced for a group of style
// layers in one tile.
//
// Buckets are built by a single tile worker and then handed to the renderer,
// which may read them from other goroutines. Once a bucket is sealed it is
// never modified again; every mutating method returns ErrSealed from then on.
package bucket

import (
	"errors"
	"fmt"
	"math"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/paulmach/orb"
)

var (
	ErrSealed          = errors.New("bucket is sealed")
	ErrNoBucket        = errors.New("layer type has no bucket")
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// DefaultBuffer is how far, in tile units, geometry may extend past the tile
// edge before it is clipped.
const DefaultBuffer = 128

type Kind string

const (
	Fill          Kind = "fill"
	Line          Kind = "line"
	Circle        Kind = "circle"
	FillExtrusion Kind = "fill-extrusion"
	Symbol        Kind = "symbol"
)

type Bucket interface {
	Kind() Kind
	HasData() bool
	// FeatureIndexes lists the source layer indexes of the features that
	// contributed to the bucket, in insertion order.
	FeatureIndexes() []int
	Seal()
	Sealed() bool
}

// GeometryBucket is a bucket built directly from source features.
type GeometryBucket interface {
	Bucket
	AddFeature(index int, feature tiledata.Feature, geometry orb.Geometry) error
}

type Params struct {
	Tile   tiledata.TileID
	Extent uint32
	Buffer float64
}

func (p Params) clipBound() orb.Bound {
	extent := float64(p.Extent)
	if extent == 0 {
		extent = tiledata.DefaultExtent
	}
	buffer := p.Buffer
	if buffer == 0 {
		buffer = DefaultBuffer
	}
	return orb.Bound{
		Min: orb.Point{-buffer, -buffer},
		Max: orb.Point{extent + buffer, extent + buffer},
	}
}

// New creates the empty bucket for a group led by leader.
func New(leader *style.Layer, params Params) (GeometryBucket, error) {
	switch leader.Type {
	case style.FillLayer:
		return newFillBucket(Fill, params), nil
	case style.FillExtrusionLayer:
		return newFillBucket(FillExtrusion, params), nil
	case style.LineLayer:
		return newLineBucket(params, leader.Line), nil
	case style.CircleLayer:
		return newCircleBucket(params), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoBucket, leader.Type)
}

type base struct {
	kind     Kind
	sealed   bool
	features []int
	vertices int
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) FeatureIndexes() []int {
	return append([]int(nil), b.features...)
}

func (b *base) Seal()        { b.sealed = true }
func (b *base) Sealed() bool { return b.sealed }

// VertexCount is the number of vertices stored in the bucket.
func (b *base) VertexCount() int { return b.vertices }

func (b *base) checkWritable() error {
	if b.sealed {
		return ErrSealed
	}
	return nil
}

func validate(g orb.Geometry) error {
	if g == nil {
		return fmt.Errorf("%w: missing geometry", ErrInvalidGeometry)
	}

	bound := g.Bound()
	for _, v := range []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
		}
	}
	return nil
}

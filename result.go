package geotile

import (
	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/featureindex"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/b1naryth1ef/geotile/tiledata"
)

// LayoutResult is emitted after every completed layout pass. Buckets are
// sealed and keyed by style layer id; layers of one group share a bucket.
type LayoutResult struct {
	Buckets       map[string]bucket.Bucket
	FeatureIndex  *featureindex.Index
	Data          tiledata.Data
	CorrelationID uint64
}

// PlacementResult is emitted after every completed placement pass.
type PlacementResult struct {
	SymbolBuckets map[string]*bucket.SymbolBucket
	CollisionTile *symbol.CollisionTile
	CorrelationID uint64
}

// Parent receives everything a worker produces. Methods are called from the
// worker goroutine and must not block. Sending further messages to the worker
// from inside them is fine.
type Parent interface {
	OnLayout(LayoutResult)
	OnPlacement(PlacementResult)
	OnError(error)
	GetGlyphs(symbol.GlyphDependencies)
	GetIcons(symbol.IconDependencies)
}

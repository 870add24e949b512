// Package featureindex records which features of a tile ended up in which
// buckets so rendered features can be looked up by position later.
package featureindex

import (
	"sort"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// Hit identifies one indexed feature.
type Hit struct {
	FeatureIndex int
	SourceLayer  string
	BucketName   string
}

// SymbolQuerier answers queries about placed labels. The collision tile of
// the last placement pass implements it.
type SymbolQuerier interface {
	QuerySymbols(box orb.Bound) []Hit
}

type entry struct {
	Hit
	order int
}

// Index is built once per layout pass and is read only after it is handed
// to the parent.
type Index struct {
	tree           rtree.RTreeG[entry]
	bucketLayerIDs map[string][]string
	count          int
}

func New() *Index {
	return &Index{
		bucketLayerIDs: make(map[string][]string),
	}
}

// SetBucketLayerIDs registers the style layers that share the bucket led by
// bucketName.
func (x *Index) SetBucketLayerIDs(bucketName string, layerIDs []string) {
	x.bucketLayerIDs[bucketName] = append([]string(nil), layerIDs...)
}

// BucketLayerIDs returns the layers registered for bucketName.
func (x *Index) BucketLayerIDs(bucketName string) []string {
	return x.bucketLayerIDs[bucketName]
}

func (x *Index) Insert(geometry orb.Geometry, index int, sourceLayer, bucketName string) {
	if geometry == nil {
		return
	}
	bound := geometry.Bound()
	x.tree.Insert(bound.Min, bound.Max, entry{
		Hit: Hit{
			FeatureIndex: index,
			SourceLayer:  sourceLayer,
			BucketName:   bucketName,
		},
		order: x.count,
	})
	x.count++
}

// Len is the number of inserted features.
func (x *Index) Len() int { return x.count }

type QueryOptions struct {
	Box orb.Bound
	// LayerIDs restricts the result to these style layers. Empty means all.
	LayerIDs []string
	// Filter is applied to every candidate feature on top of the layer's
	// own filter.
	Filter style.Filter
	// Data resolves hits to features. Hits whose feature cannot be found are
	// dropped.
	Data tiledata.Data
	// Symbols adds placed labels to the result when set.
	Symbols SymbolQuerier
}

type Result struct {
	Hit
	Feature tiledata.Feature
}

// Query returns the features intersecting opts.Box keyed by style layer id.
// Features are listed in insertion order with symbols last.
func (x *Index) Query(opts QueryOptions) map[string][]Result {
	var wanted map[string]bool
	if len(opts.LayerIDs) > 0 {
		wanted = make(map[string]bool, len(opts.LayerIDs))
		for _, id := range opts.LayerIDs {
			wanted[id] = true
		}
	}

	var found []entry
	x.tree.Search(opts.Box.Min, opts.Box.Max, func(_, _ [2]float64, e entry) bool {
		found = append(found, e)
		return true
	})
	sort.Slice(found, func(i, j int) bool { return found[i].order < found[j].order })

	hits := make([]Hit, 0, len(found))
	for _, e := range found {
		hits = append(hits, e.Hit)
	}
	if opts.Symbols != nil {
		hits = append(hits, opts.Symbols.QuerySymbols(opts.Box)...)
	}

	result := make(map[string][]Result)
	seen := make(map[Hit]bool)
	for _, hit := range hits {
		if seen[hit] {
			continue
		}
		seen[hit] = true

		feature := resolve(opts.Data, hit)
		if feature == nil || !opts.Filter.Evaluate(feature) {
			continue
		}

		for _, layerID := range x.bucketLayerIDs[hit.BucketName] {
			if wanted != nil && !wanted[layerID] {
				continue
			}
			result[layerID] = append(result[layerID], Result{Hit: hit, Feature: feature})
		}
	}
	return result
}

func resolve(data tiledata.Data, hit Hit) tiledata.Feature {
	if data == nil {
		return nil
	}
	layer := data.Layer(hit.SourceLayer)
	if layer == nil || hit.FeatureIndex < 0 || hit.FeatureIndex >= layer.FeatureCount() {
		return nil
	}
	return layer.Feature(hit.FeatureIndex)
}

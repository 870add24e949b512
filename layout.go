package geotile

import (
	"fmt"
	"time"

	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/featureindex"
	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/b1naryth1ef/geotile/tiledata"
)

// redoLayout rebuilds every bucket and symbol layout from the current data
// and layers, emits the layout result and then attempts placement. It does
// nothing until both data and layers have been set.
func (w *Worker) redoLayout() error {
	if !w.hasData || !w.hasLayers {
		return nil
	}

	start := time.Now()
	w.log().Debug("running layout", "cid", w.correlationID, "state", w.state)

	zoom := float64(w.id.OverscaledZ)
	layers := make([]*style.Layer, 0, len(w.layers))
	for _, l := range w.layers {
		if l.VisibleAt(zoom) {
			layers = append(layers, l)
		}
	}

	// symbol layouts are kept in reverse stack order, the order labels are
	// placed in
	var symbolOrder []string
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].IsSymbol() {
			symbolOrder = append(symbolOrder, layers[i].ID)
		}
	}

	symbolLayouts := make(map[string]*symbol.Layout)
	buckets := make(map[string]bucket.Bucket)
	index := featureindex.New()
	glyphDeps := make(symbol.GlyphDependencies)
	iconDeps := make(symbol.IconDependencies)

	for _, group := range style.GroupByLayout(layers) {
		if w.obsolete() {
			return w.abandon("layout")
		}

		if w.data == nil {
			continue
		}

		leader := group[0]
		if !leader.Type.HasBucket() {
			continue
		}

		geometryLayer := w.data.Layer(leader.SourceLayer)
		if geometryLayer == nil {
			continue
		}

		index.SetBucketLayerIDs(leader.ID, style.LayerIDs(group))

		if leader.IsSymbol() {
			params := symbol.Params{Tile: w.id, IconAtlas: w.iconAtlas}
			symbolLayouts[leader.ID] = symbol.NewLayout(params, group, geometryLayer, glyphDeps, iconDeps)
			continue
		}

		b, err := w.buildBucket(group, geometryLayer, index)
		if err != nil {
			return err
		}
		if b == nil {
			return w.abandon("layout")
		}
		if !b.HasData() {
			continue
		}

		b.Seal()
		for _, l := range group {
			buckets[l.ID] = b
		}
	}

	w.symbolLayouts = w.symbolLayouts[:0]
	for _, id := range symbolOrder {
		if l, ok := symbolLayouts[id]; ok {
			w.symbolLayouts = append(w.symbolLayouts, l)
		}
	}

	w.requestNewGlyphs(glyphDeps)
	w.requestNewIcons(iconDeps)

	var data tiledata.Data
	if w.data != nil {
		data = w.data.Clone()
	}
	w.parent.OnLayout(LayoutResult{
		Buckets:       buckets,
		FeatureIndex:  index,
		Data:          data,
		CorrelationID: w.correlationID,
	})
	w.metrics.observePass("layout", start)

	return w.attemptPlacement()
}

// buildBucket fills one bucket for a non-symbol group. It returns nil without
// an error when the tile became obsolete part way through.
func (w *Worker) buildBucket(group []*style.Layer, layer tiledata.Layer, index *featureindex.Index) (bucket.GeometryBucket, error) {
	leader := group[0]

	b, err := bucket.New(leader, bucket.Params{Tile: w.id, Extent: layer.Extent()})
	if err != nil {
		return nil, fmt.Errorf("layout: create bucket for %s: %w", leader.ID, err)
	}

	for i := 0; i < layer.FeatureCount(); i++ {
		if w.obsolete() {
			return nil, nil
		}

		f := layer.Feature(i)
		if f == nil || !leader.Filter.Evaluate(f) {
			continue
		}

		geometry := f.Geometry()
		if err := b.AddFeature(i, f, geometry); err != nil {
			return nil, fmt.Errorf("layout: %s feature %d: %w", layer.Name(), i, err)
		}
		index.Insert(geometry, i, leader.SourceLayer, leader.ID)
	}

	return b, nil
}

func (w *Worker) abandon(pass string) error {
	w.metrics.abandoned(pass)
	w.log().Debug("abandoning pass for obsolete tile", "pass", pass, "cid", w.correlationID)
	return nil
}

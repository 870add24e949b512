package geotile

import (
	"time"

	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/symbol"
)

// attemptPlacement places the labels of every symbol layout against a fresh
// collision tile. It waits for data, layers and a placement config, and for
// every requested glyph and icon to be resolved.
func (w *Worker) attemptPlacement() error {
	if !w.hasData || !w.hasLayers || w.placementConfig == nil || w.hasPendingSymbolDependencies() {
		return nil
	}

	start := time.Now()
	w.log().Debug("running placement", "cid", w.correlationID, "layouts", len(w.symbolLayouts))

	ct := symbol.NewCollisionTile(*w.placementConfig)
	buckets := make(map[string]*bucket.SymbolBucket)

	for _, layout := range w.symbolLayouts {
		if w.obsolete() {
			return w.abandon("placement")
		}

		if layout.State == symbol.Pending {
			layout.Prepare(w.glyphPositions, w.icons)
		}

		if !layout.HasSymbolInstances() {
			continue
		}

		b, err := layout.Place(ct)
		if err != nil {
			return err
		}
		b.Seal()
		for _, id := range layout.LayerIDs {
			buckets[id] = b
		}
	}

	w.parent.OnPlacement(PlacementResult{
		SymbolBuckets: buckets,
		CollisionTile: ct,
		CorrelationID: w.correlationID,
	})
	w.metrics.observePass("placement", start)
	return nil
}

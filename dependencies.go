package geotile

import (
	"github.com/b1naryth1ef/geotile/symbol"
)

// OnGlyphsAvailable delivers glyph positions for the fonts in positions.
// Every pending glyph whose range is in loaded stops being pending, whether
// or not a position came back for it; such glyphs render as a gap.
func (w *Worker) OnGlyphsAvailable(positions symbol.GlyphPositionMap, loaded symbol.GlyphRangeSet) {
	w.send("onGlyphsAvailable", func() error {
		for font, ids := range w.pendingGlyphs {
			fontPositions := positions[font]
			for id := range ids {
				if pos, ok := fontPositions[id]; ok {
					resolved, ok := w.glyphPositions[font]
					if !ok {
						resolved = make(symbol.GlyphPositions)
						w.glyphPositions[font] = resolved
					}
					resolved[id] = pos
				}
				if loaded.Has(symbol.RangeOf(id)) {
					delete(ids, id)
				}
			}
			if len(ids) == 0 {
				delete(w.pendingGlyphs, font)
			}
		}
		return w.symbolDependenciesChanged()
	})
}

// OnIconsAvailable delivers icon positions. Any atlas present in icons is no
// longer pending, icons it did not include are dropped from labels.
func (w *Worker) OnIconsAvailable(icons symbol.IconAtlasMap) {
	w.send("onIconsAvailable", func() error {
		for atlas, positions := range icons {
			if _, ok := w.pendingIcons[atlas]; !ok {
				continue
			}
			resolved, ok := w.icons[atlas]
			if !ok {
				resolved = make(symbol.IconPositions, len(positions))
				w.icons[atlas] = resolved
			}
			for name, pos := range positions {
				resolved[name] = pos
			}
			delete(w.pendingIcons, atlas)
		}
		return w.symbolDependenciesChanged()
	})
}

func (w *Worker) requestNewGlyphs(deps symbol.GlyphDependencies) {
	w.pendingGlyphs.Merge(deps.Without(w.glyphPositions))
	if !w.pendingGlyphs.Empty() {
		w.parent.GetGlyphs(w.pendingGlyphs.Clone())
	}
}

func (w *Worker) requestNewIcons(deps symbol.IconDependencies) {
	w.pendingIcons.Merge(deps.Without(w.icons))
	if !w.pendingIcons.Empty() {
		w.parent.GetIcons(w.pendingIcons.Clone())
	}
}

func (w *Worker) hasPendingSymbolDependencies() bool {
	return !w.pendingGlyphs.Empty() || !w.pendingIcons.Empty()
}

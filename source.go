package geotile

import (
	"github.com/b1naryth1ef/geotile/symbol"
)

// GlyphSource loads the glyph metrics of one 256 glyph range of a font
// stack. A range the source has nothing for returns empty positions and no
// error.
type GlyphSource interface {
	Glyphs(fontStack string, r symbol.GlyphRange) (symbol.GlyphPositions, error)
}

// IconSource loads every icon of an atlas.
type IconSource interface {
	Icons(atlas string) (symbol.IconPositions, error)
}

// emptySource answers every request with nothing, so labels render without
// glyphs or icons.
type emptySource struct{}

func (emptySource) Glyphs(string, symbol.GlyphRange) (symbol.GlyphPositions, error) {
	return symbol.GlyphPositions{}, nil
}

func (emptySource) Icons(string) (symbol.IconPositions, error) {
	return symbol.IconPositions{}, nil
}

package bucket

import (
	"time"

	"github.com/paulmach/orb"
)

// AtlasRect locates an image inside a glyph or icon atlas.
type AtlasRect struct {
	X, Y, W, H uint16
}

// Box is an axis aligned offset box around a label anchor, in tile units.
type Box struct {
	X1, Y1, X2, Y2 float64
}

type GlyphQuad struct {
	Anchor    orb.Point
	Offset    Box
	Tex       AtlasRect
	Glyph     rune
	FontStack string
}

type IconQuad struct {
	Anchor orb.Point
	Offset Box
	Tex    AtlasRect
	Image  string
}

// CollisionBox is recorded for debug rendering when collision boxes are
// requested by the placement configuration.
type CollisionBox struct {
	Anchor orb.Point
	Box    Box
	Placed bool
}

// Label summarises one placed symbol instance.
type Label struct {
	FeatureIndex int
	Text         string
	Icon         string
	Anchor       orb.Point
	TextPlaced   bool
	IconPlaced   bool
}

// SymbolBucket holds the result of placing one symbol layout against a
// collision tile.
type SymbolBucket struct {
	base

	FadeDuration   time.Duration
	Glyphs         []GlyphQuad
	Icons          []IconQuad
	Labels         []Label
	CollisionBoxes []CollisionBox
}

func NewSymbolBucket(fade time.Duration) *SymbolBucket {
	return &SymbolBucket{
		base:         base{kind: Symbol},
		FadeDuration: fade,
	}
}

func (b *SymbolBucket) HasData() bool {
	return len(b.Glyphs) > 0 || len(b.Icons) > 0
}

// AddLabel records a placed instance together with its quads.
func (b *SymbolBucket) AddLabel(label Label, glyphs []GlyphQuad, icon *IconQuad) error {
	if err := b.checkWritable(); err != nil {
		return err
	}

	b.Labels = append(b.Labels, label)
	b.Glyphs = append(b.Glyphs, glyphs...)
	b.vertices += 4 * len(glyphs)
	if icon != nil {
		b.Icons = append(b.Icons, *icon)
		b.vertices += 4
	}
	if n := len(b.features); n == 0 || b.features[n-1] != label.FeatureIndex {
		b.features = append(b.features, label.FeatureIndex)
	}
	return nil
}

func (b *SymbolBucket) AddCollisionBox(box CollisionBox) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	b.CollisionBoxes = append(b.CollisionBoxes, box)
	return nil
}

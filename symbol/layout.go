// Package symbol stages, shapes and places the labels of symbol layers.
//
// A Layout is created during the layout pass, where it records which glyphs
// and icons it needs. Once those are available Prepare shapes every label
// exactly once, and Place may then run any number of times against fresh
// collision tiles as the camera changes.
package symbol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/featureindex"
	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tileSize is the on screen size of a tile in pixels.
const tileSize = 512

// DefaultIconAtlas is the atlas icons are requested from when none is
// configured.
const DefaultIconAtlas = "sprite"

type State int

const (
	Pending State = iota
	Placed
)

func (s State) String() string {
	if s == Placed {
		return "placed"
	}
	return "pending"
}

type Params struct {
	Tile      tiledata.TileID
	IconAtlas string
}

type feature struct {
	index    int
	text     []rune
	icon     string
	geometry orb.Geometry
}

// Instance is one shaped label at one anchor.
type Instance struct {
	FeatureIndex int
	Anchor       orb.Point
	Text         string
	Icon         string

	hasText bool
	hasIcon bool
	textBox bucket.Box
	iconBox bucket.Box
	glyphs  []bucket.GlyphQuad
	iconQ   bucket.IconQuad
}

type Layout struct {
	State      State
	BucketName string
	LayerIDs   []string

	layout      style.SymbolLayout
	sourceLayer string
	iconAtlas   string
	extent      float64
	pixelRatio  float64
	features    []feature
	instances   []Instance
}

// NewLayout selects the features of layer that pass the group's filter,
// resolves their text and icon names and adds the glyphs and icons they use
// to glyphDeps and iconDeps.
func NewLayout(params Params, group []*style.Layer, layer tiledata.Layer, glyphDeps GlyphDependencies, iconDeps IconDependencies) *Layout {
	leader := group[0]

	atlas := params.IconAtlas
	if atlas == "" {
		atlas = DefaultIconAtlas
	}
	extent := float64(layer.Extent())
	if extent == 0 {
		extent = tiledata.DefaultExtent
	}

	l := &Layout{
		State:       Pending,
		BucketName:  leader.ID,
		LayerIDs:    style.LayerIDs(group),
		layout:      leader.Symbol,
		sourceLayer: layer.Name(),
		iconAtlas:   atlas,
		extent:      extent,
		pixelRatio:  extent / (tileSize * params.Tile.Overscaling()),
	}

	fontStack := l.layout.FontStack()
	for i := 0; i < layer.FeatureCount(); i++ {
		f := layer.Feature(i)
		if f == nil || !leader.Filter.Evaluate(f) {
			continue
		}

		var sf feature
		if l.layout.TextField != "" {
			text := transformText(replaceTokens(l.layout.TextField, f), l.layout.TextTransform)
			sf.text = []rune(text)
		}
		if l.layout.IconImage != "" {
			sf.icon = replaceTokens(l.layout.IconImage, f)
		}
		if len(sf.text) == 0 && sf.icon == "" {
			continue
		}

		for _, r := range sf.text {
			glyphDeps.Add(fontStack, r)
		}
		if sf.icon != "" {
			iconDeps.Add(atlas, sf.icon)
		}

		sf.index = i
		sf.geometry = f.Geometry()
		l.features = append(l.features, sf)
	}

	return l
}

// SourceLayer is the tile layer the symbols were read from.
func (l *Layout) SourceLayer() string { return l.sourceLayer }

// HasSymbolInstances reports whether Prepare produced anything to place.
func (l *Layout) HasSymbolInstances() bool { return len(l.instances) > 0 }

// Instances returns the shaped labels.
func (l *Layout) Instances() []Instance { return l.instances }

// Prepare shapes every staged feature using the resolved glyph and icon
// positions. Missing glyphs are left out of the text and missing icons are
// dropped.
func (l *Layout) Prepare(glyphs GlyphPositionMap, icons IconAtlasMap) {
	fontPositions := glyphs[l.layout.FontStack()]
	iconPositions := icons[l.iconAtlas]
	fontScale := l.layout.TextSize / oneEm * l.pixelRatio

	for _, f := range l.features {
		var inst Instance
		inst.FeatureIndex = f.index
		inst.Text = string(f.text)

		var shaped shaping
		if len(f.text) > 0 {
			shaped, inst.hasText = shapeText(f.text, fontPositions, l.layout)
		}
		if inst.hasText {
			pad := l.layout.TextPadding * l.pixelRatio
			inst.textBox = bucket.Box{
				X1: shaped.left*fontScale - pad,
				Y1: shaped.top*fontScale - pad,
				X2: shaped.right*fontScale + pad,
				Y2: shaped.bottom*fontScale + pad,
			}
			for _, g := range shaped.glyphs {
				x1 := (g.x + float64(g.pos.Metrics.Left)) * fontScale
				y1 := (g.y - float64(g.pos.Metrics.Top)) * fontScale
				inst.glyphs = append(inst.glyphs, bucket.GlyphQuad{
					Offset: bucket.Box{
						X1: x1,
						Y1: y1,
						X2: x1 + float64(g.pos.Metrics.Width)*fontScale,
						Y2: y1 + float64(g.pos.Metrics.Height)*fontScale,
					},
					Tex:       g.pos.Rect,
					Glyph:     g.id,
					FontStack: l.layout.FontStack(),
				})
			}
		}

		if f.icon != "" {
			if pos, ok := iconPositions[f.icon]; ok {
				inst.hasIcon = true
				inst.Icon = f.icon
				scale := l.layout.IconSize * l.pixelRatio
				w, h := pos.Width*scale, pos.Height*scale
				ox, oy := l.layout.IconOffset[0]*scale, l.layout.IconOffset[1]*scale
				inst.iconQ = bucket.IconQuad{
					Offset: bucket.Box{X1: ox - w/2, Y1: oy - h/2, X2: ox + w/2, Y2: oy + h/2},
					Tex:    pos.Rect,
					Image:  f.icon,
				}
				pad := l.layout.IconPadding * l.pixelRatio
				inst.iconBox = bucket.Box{
					X1: inst.iconQ.Offset.X1 - pad,
					Y1: inst.iconQ.Offset.Y1 - pad,
					X2: inst.iconQ.Offset.X2 + pad,
					Y2: inst.iconQ.Offset.Y2 + pad,
				}
			}
		}

		if !inst.hasText && !inst.hasIcon {
			continue
		}

		for _, anchor := range l.anchors(f.geometry) {
			if l.layout.AvoidEdges && !l.insideTile(anchor, inst) {
				continue
			}
			placed := inst
			placed.Anchor = anchor
			placed.glyphs = make([]bucket.GlyphQuad, len(inst.glyphs))
			for i, g := range inst.glyphs {
				g.Anchor = anchor
				placed.glyphs[i] = g
			}
			placed.iconQ.Anchor = anchor
			l.instances = append(l.instances, placed)
		}
	}

	l.features = nil
	l.State = Placed
}

func (l *Layout) insideTile(anchor orb.Point, inst Instance) bool {
	for _, box := range []bucket.Box{inst.textBox, inst.iconBox} {
		if anchor[0]+box.X1 < 0 || anchor[1]+box.Y1 < 0 || anchor[0]+box.X2 > l.extent || anchor[1]+box.Y2 > l.extent {
			return false
		}
	}
	return true
}

func (l *Layout) inExtent(p orb.Point) bool {
	return p[0] >= 0 && p[1] >= 0 && p[0] < l.extent && p[1] < l.extent
}

// anchors returns the label positions for a feature. Anchors in the tile
// buffer belong to the neighbouring tile and are skipped.
func (l *Layout) anchors(g orb.Geometry) []orb.Point {
	var candidates []orb.Point

	switch {
	case l.layout.Placement == "line":
		for _, ls := range lineStrings(g) {
			candidates = append(candidates, lineAnchors(ls, l.layout.Spacing*l.pixelRatio)...)
		}
	default:
		switch g := g.(type) {
		case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
			centroid, _ := planar.CentroidArea(g)
			candidates = append(candidates, centroid)
		default:
			for _, ls := range lineStrings(g) {
				candidates = append(candidates, ls...)
			}
		}
	}

	out := candidates[:0]
	for _, p := range candidates {
		if l.inExtent(p) {
			out = append(out, p)
		}
	}
	return out
}

func lineStrings(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.Point:
		return []orb.LineString{{g}}
	case orb.MultiPoint:
		return []orb.LineString{orb.LineString(g)}
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
			out = append(out, lineStrings(p)...)
		}
		return out
	case orb.Collection:
		var out []orb.LineString
		for _, sub := range g {
			out = append(out, lineStrings(sub)...)
		}
		return out
	}
	return nil
}

// lineAnchors places anchors every spacing units along ls, starting half a
// spacing in. Lines shorter than one spacing get a single anchor at their
// midpoint.
func lineAnchors(ls orb.LineString, spacing float64) []orb.Point {
	if len(ls) < 2 {
		return nil
	}

	length := planar.Length(ls)
	if spacing <= 0 || length < spacing {
		return []orb.Point{interpolate(ls, length/2)}
	}

	var out []orb.Point
	for d := spacing / 2; d <= length; d += spacing {
		out = append(out, interpolate(ls, d))
	}
	return out
}

func interpolate(ls orb.LineString, distance float64) orb.Point {
	var travelled float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := math.Hypot(b[0]-a[0], b[1]-a[1])
		if seg > 0 && travelled+seg >= distance {
			t := (distance - travelled) / seg
			return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
		}
		travelled += seg
	}
	return ls[len(ls)-1]
}

// Place runs collision detection for every instance and returns a bucket with
// the labels that fit. Accepted boxes are inserted into ct.
func (l *Layout) Place(ct *CollisionTile) (*bucket.SymbolBucket, error) {
	b := bucket.NewSymbolBucket(ct.Config.FadeDuration)
	if err := l.placeInto(ct, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Layout) placeInto(ct *CollisionTile, b *bucket.SymbolBucket) error {
	cfg := l.layout

	for _, inst := range l.instances {
		textFits := !inst.hasText || cfg.TextAllowOverlap || ct.Fits(inst.Anchor, inst.textBox)
		iconFits := !inst.hasIcon || cfg.IconAllowOverlap || ct.Fits(inst.Anchor, inst.iconBox)

		iconWithoutText := cfg.TextOptional || !inst.hasText
		textWithoutIcon := cfg.IconOptional || !inst.hasIcon
		switch {
		case !iconWithoutText && !textWithoutIcon:
			textFits = textFits && iconFits
			iconFits = textFits
		case !textWithoutIcon:
			textFits = textFits && iconFits
		case !iconWithoutText:
			iconFits = iconFits && textFits
		}

		hit := featureindex.Hit{
			FeatureIndex: inst.FeatureIndex,
			SourceLayer:  l.sourceLayer,
			BucketName:   l.BucketName,
		}

		label := bucket.Label{
			FeatureIndex: inst.FeatureIndex,
			Text:         inst.Text,
			Icon:         inst.Icon,
			Anchor:       inst.Anchor,
		}
		var glyphs []bucket.GlyphQuad
		var icon *bucket.IconQuad

		if inst.hasText && textFits {
			ct.Insert(inst.Anchor, inst.textBox, hit, cfg.TextIgnorePlacement)
			label.TextPlaced = true
			glyphs = inst.glyphs
		}
		if inst.hasIcon && iconFits {
			ct.Insert(inst.Anchor, inst.iconBox, hit, cfg.IconIgnorePlacement)
			label.IconPlaced = true
			q := inst.iconQ
			icon = &q
		}

		if ct.Config.ShowCollisionBoxes {
			if inst.hasText {
				err := b.AddCollisionBox(bucket.CollisionBox{Anchor: inst.Anchor, Box: inst.textBox, Placed: label.TextPlaced})
				if err != nil {
					return fmt.Errorf("place %s: %w", l.BucketName, err)
				}
			}
			if inst.hasIcon {
				err := b.AddCollisionBox(bucket.CollisionBox{Anchor: inst.Anchor, Box: inst.iconBox, Placed: label.IconPlaced})
				if err != nil {
					return fmt.Errorf("place %s: %w", l.BucketName, err)
				}
			}
		}

		if label.TextPlaced || label.IconPlaced {
			if err := b.AddLabel(label, glyphs, icon); err != nil {
				return fmt.Errorf("place %s feature %d: %w", l.BucketName, inst.FeatureIndex, err)
			}
		}
	}
	return nil
}

// replaceTokens substitutes {key} with the feature's property value. Unknown
// keys become empty strings.
func replaceTokens(format string, f tiledata.Feature) string {
	if !strings.Contains(format, "{") {
		return format
	}

	var b strings.Builder
	for {
		open := strings.IndexByte(format, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(format[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(format[:open])
		if v, ok := f.Property(format[open+1 : open+end]); ok {
			b.WriteString(valueString(v))
		}
		format = format[open+end+1:]
	}
	b.WriteString(format)
	return b.String()
}

func valueString(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return ""
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return strconv.FormatBool(v.True())
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func transformText(text, transform string) string {
	switch transform {
	case "uppercase":
		return cases.Upper(language.Und).String(text)
	case "lowercase":
		return cases.Lower(language.Und).String(text)
	}
	return text
}

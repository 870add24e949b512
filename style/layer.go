// Package style holds the resolved style layers a tile worker lays out:
// their types, filters, the layout properties that decide how features are
// bucketed, and the grouping of layers that can share a bucket.
package style

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

var ErrUnknownLayerType = errors.New("unknown layer type")

type LayerType string

const (
	BackgroundLayer    LayerType = "background"
	FillLayer          LayerType = "fill"
	LineLayer          LayerType = "line"
	CircleLayer        LayerType = "circle"
	FillExtrusionLayer LayerType = "fill-extrusion"
	SymbolLayer        LayerType = "symbol"
)

func ParseLayerType(s string) (LayerType, error) {
	switch t := LayerType(s); t {
	case BackgroundLayer, FillLayer, LineLayer, CircleLayer, FillExtrusionLayer, SymbolLayer:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayerType, s)
}

// HasBucket reports whether layers of this type draw geometry from a source
// layer.
func (t LayerType) HasBucket() bool {
	return t != BackgroundLayer && t != ""
}

type Visibility string

const (
	Visible Visibility = "visible"
	None    Visibility = "none"
)

const DefaultMaxZoom = 24

// Layer is a style layer with its property values already resolved for the
// current zoom. Only Type, Source, SourceLayer, zoom range, visibility, filter
// and the layout block for the layer's type affect bucketing; Paint never
// does.
type Layer struct {
	ID          string
	Type        LayerType
	Source      string
	SourceLayer string
	MinZoom     float64
	MaxZoom     float64
	Visibility  Visibility
	Filter      Filter

	Line   LineLayout
	Symbol SymbolLayout

	Paint map[string]cty.Value
}

// NewLayer returns a visible layer with default layout properties.
func NewLayer(id string, typ LayerType, sourceLayer string) *Layer {
	return &Layer{
		ID:          id,
		Type:        typ,
		SourceLayer: sourceLayer,
		MaxZoom:     DefaultMaxZoom,
		Visibility:  Visible,
		Line:        DefaultLineLayout(),
		Symbol:      DefaultSymbolLayout(),
	}
}

func (l *Layer) IsSymbol() bool {
	return l.Type == SymbolLayer
}

// VisibleAt reports whether the layer participates in layout at zoom.
func (l *Layer) VisibleAt(zoom float64) bool {
	if l.Visibility == None {
		return false
	}
	if zoom < l.MinZoom {
		return false
	}
	return l.MaxZoom <= 0 || zoom < l.MaxZoom
}

// LayoutKey is the bucket relevant identity of the layer. Two layers with the
// same key produce identical buckets from the same tile data.
func (l *Layer) LayoutKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%g|%g|%s|%s", l.Type, l.Source, l.SourceLayer, l.MinZoom, l.MaxZoom, l.Visibility, l.Filter)

	switch l.Type {
	case LineLayer:
		fmt.Fprintf(&b, "|%v", l.Line)
	case SymbolLayer:
		fmt.Fprintf(&b, "|%v", l.Symbol)
	}
	return b.String()
}

// BucketEquivalent reports whether a and b differ only in properties that do
// not affect bucket contents.
func BucketEquivalent(a, b *Layer) bool {
	return a.LayoutKey() == b.LayoutKey()
}

type LineLayout struct {
	Cap        string
	Join       string
	MiterLimit float64
	RoundLimit float64
}

func DefaultLineLayout() LineLayout {
	return LineLayout{
		Cap:        "butt",
		Join:       "miter",
		MiterLimit: 2,
		RoundLimit: 1.05,
	}
}

type SymbolLayout struct {
	Placement  string
	Spacing    float64
	AvoidEdges bool

	IconImage           string
	IconSize            float64
	IconPadding         float64
	IconOffset          [2]float64
	IconAllowOverlap    bool
	IconIgnorePlacement bool
	IconOptional        bool

	TextField           string
	TextFont            []string
	TextSize            float64
	TextMaxWidth        float64
	TextLineHeight      float64
	TextLetterSpacing   float64
	TextJustify         string
	TextAnchor          string
	TextTransform       string
	TextOffset          [2]float64
	TextPadding         float64
	TextAllowOverlap    bool
	TextIgnorePlacement bool
	TextOptional        bool
}

func DefaultSymbolLayout() SymbolLayout {
	return SymbolLayout{
		Placement:      "point",
		Spacing:        250,
		IconSize:       1,
		IconPadding:    2,
		TextFont:       []string{"Open Sans Regular", "Arial Unicode MS Regular"},
		TextSize:       16,
		TextMaxWidth:   10,
		TextLineHeight: 1.2,
		TextJustify:    "center",
		TextAnchor:     "center",
		TextTransform:  "none",
		TextPadding:    2,
	}
}

// FontStack is the key glyph dependencies are requested under.
func (s SymbolLayout) FontStack() string {
	return strings.Join(s.TextFont, ",")
}

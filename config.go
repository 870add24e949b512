package geotile

import (
	"fmt"
	"math"
	"time"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

type Config struct {
	Concurrency int                   `hcl:"concurrency,optional"`
	IconAtlas   string                `hcl:"icon_atlas,optional"`
	Placement   *PlacementConfigBlock `hcl:"placement,block"`
	Outputs     []*OutputConfigBlock  `hcl:"output,block"`
	Layers      []*LayerConfigBlock   `hcl:"layer,block"`
	Maps        []*MapConfigBlock     `hcl:"map,block"`
}

type OutputConfigBlock struct {
	Name          string `hcl:"name,label"`
	Path          string `hcl:"path"`
	IncludeReport bool   `hcl:"include_report,optional"`
}

// PlacementConfigBlock describes the camera labels are placed for. Angles
// are in degrees.
type PlacementConfigBlock struct {
	Bearing                float64 `hcl:"bearing,optional"`
	Pitch                  float64 `hcl:"pitch,optional"`
	CameraToCenterDistance float64 `hcl:"camera_to_center_distance,optional"`
	CameraToTileDistance   float64 `hcl:"camera_to_tile_distance,optional"`
	FadeDuration           string  `hcl:"fade_duration,optional"`
	ShowCollisionBoxes     bool    `hcl:"show_collision_boxes,optional"`
}

type LayerConfigBlock struct {
	Name        string             `hcl:"name,label"`
	Type        string             `hcl:"type"`
	Source      string             `hcl:"source,optional"`
	SourceLayer string             `hcl:"source_layer,optional"`
	MinZoom     float64            `hcl:"min_zoom,optional"`
	MaxZoom     *float64           `hcl:"max_zoom,optional"`
	Visibility  string             `hcl:"visibility,optional"`
	Filter      cty.Value          `hcl:"filter,optional"`
	Paint       cty.Value          `hcl:"paint,optional"`
	Line        *LineConfigBlock   `hcl:"line,block"`
	Symbol      *SymbolConfigBlock `hcl:"symbol,block"`
}

type LineConfigBlock struct {
	Cap        string   `hcl:"cap,optional"`
	Join       string   `hcl:"join,optional"`
	MiterLimit *float64 `hcl:"miter_limit,optional"`
	RoundLimit *float64 `hcl:"round_limit,optional"`
}

type SymbolConfigBlock struct {
	Placement  string   `hcl:"placement,optional"`
	Spacing    *float64 `hcl:"spacing,optional"`
	AvoidEdges bool     `hcl:"avoid_edges,optional"`

	IconImage           string    `hcl:"icon_image,optional"`
	IconSize            *float64  `hcl:"icon_size,optional"`
	IconPadding         *float64  `hcl:"icon_padding,optional"`
	IconOffset          []float64 `hcl:"icon_offset,optional"`
	IconAllowOverlap    bool      `hcl:"icon_allow_overlap,optional"`
	IconIgnorePlacement bool      `hcl:"icon_ignore_placement,optional"`
	IconOptional        bool      `hcl:"icon_optional,optional"`

	TextField           string    `hcl:"text_field,optional"`
	TextFont            []string  `hcl:"text_font,optional"`
	TextSize            *float64  `hcl:"text_size,optional"`
	TextMaxWidth        *float64  `hcl:"text_max_width,optional"`
	TextLineHeight      *float64  `hcl:"text_line_height,optional"`
	TextLetterSpacing   float64   `hcl:"text_letter_spacing,optional"`
	TextJustify         string    `hcl:"text_justify,optional"`
	TextAnchor          string    `hcl:"text_anchor,optional"`
	TextTransform       string    `hcl:"text_transform,optional"`
	TextOffset          []float64 `hcl:"text_offset,optional"`
	TextPadding         *float64  `hcl:"text_padding,optional"`
	TextAllowOverlap    bool      `hcl:"text_allow_overlap,optional"`
	TextIgnorePlacement bool      `hcl:"text_ignore_placement,optional"`
	TextOptional        bool      `hcl:"text_optional,optional"`
}

// MapConfigBlock is one tileset to build. Path holds tiles laid out as
// <z>/<x>/<y>.mvt, .pbf or .geojson.
type MapConfigBlock struct {
	Name      string   `hcl:"name,label"`
	Output    string   `hcl:"output"`
	Path      string   `hcl:"path"`
	Assets    string   `hcl:"assets,optional"`
	Layers    []string `hcl:"layers"`
	Overscale int      `hcl:"overscale,optional"`
}

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"concat": stdlib.ConcatFunc,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseConfig decodes configuration source. The filename decides between
// native HCL and JSON syntax.
func ParseConfig(filename string, src []byte) (*Config, error) {
	var cfg Config
	err := hclsimple.Decode(filename, src, newHCLEvalContext(), &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PlacementConfig converts the placement block. A missing block places for
// a flat, north up camera.
func (c *Config) PlacementConfig() (symbol.PlacementConfig, error) {
	if c.Placement == nil {
		return symbol.PlacementConfig{}, nil
	}

	p := c.Placement
	cfg := symbol.PlacementConfig{
		Angle:                  p.Bearing * math.Pi / 180,
		Pitch:                  p.Pitch * math.Pi / 180,
		CameraToCenterDistance: p.CameraToCenterDistance,
		CameraToTileDistance:   p.CameraToTileDistance,
		ShowCollisionBoxes:     p.ShowCollisionBoxes,
	}
	if p.FadeDuration != "" {
		d, err := time.ParseDuration(p.FadeDuration)
		if err != nil {
			return cfg, fmt.Errorf("placement: fade_duration: %w", err)
		}
		cfg.FadeDuration = d
	}
	return cfg, nil
}

// StyleLayers resolves the named layers in order.
func (c *Config) StyleLayers(names []string) ([]*style.Layer, error) {
	blocks := make(map[string]*LayerConfigBlock, len(c.Layers))
	for _, b := range c.Layers {
		blocks[b.Name] = b
	}

	layers := make([]*style.Layer, 0, len(names))
	for _, name := range names {
		b, ok := blocks[name]
		if !ok {
			return nil, fmt.Errorf("layer %q is not defined", name)
		}
		l, err := b.StyleLayer()
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// StyleLayer converts the block into a style layer, applying defaults for
// everything left out.
func (b *LayerConfigBlock) StyleLayer() (*style.Layer, error) {
	typ, err := style.ParseLayerType(b.Type)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", b.Name, err)
	}

	l := style.NewLayer(b.Name, typ, b.SourceLayer)
	l.Source = b.Source
	l.MinZoom = b.MinZoom
	if b.MaxZoom != nil {
		l.MaxZoom = *b.MaxZoom
	}

	switch b.Visibility {
	case "", string(style.Visible):
	case string(style.None):
		l.Visibility = style.None
	default:
		return nil, fmt.Errorf("layer %s: unknown visibility %q", b.Name, b.Visibility)
	}

	if !b.Filter.IsNull() {
		l.Filter, err = style.ParseFilter(b.Filter)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", b.Name, err)
		}
	}

	if !b.Paint.IsNull() {
		if !b.Paint.CanIterateElements() || b.Paint.Type().IsListType() || b.Paint.Type().IsTupleType() {
			return nil, fmt.Errorf("layer %s: paint must be an object", b.Name)
		}
		l.Paint = make(map[string]cty.Value)
		for it := b.Paint.ElementIterator(); it.Next(); {
			k, v := it.Element()
			l.Paint[k.AsString()] = v
		}
	}

	if b.Line != nil {
		b.Line.apply(&l.Line)
	}
	if b.Symbol != nil {
		if err := b.Symbol.apply(&l.Symbol); err != nil {
			return nil, fmt.Errorf("layer %s: %w", b.Name, err)
		}
	}
	return l, nil
}

func (b *LineConfigBlock) apply(l *style.LineLayout) {
	setString(&l.Cap, b.Cap)
	setString(&l.Join, b.Join)
	setFloat(&l.MiterLimit, b.MiterLimit)
	setFloat(&l.RoundLimit, b.RoundLimit)
}

func (b *SymbolConfigBlock) apply(s *style.SymbolLayout) error {
	setString(&s.Placement, b.Placement)
	setFloat(&s.Spacing, b.Spacing)
	s.AvoidEdges = b.AvoidEdges

	s.IconImage = b.IconImage
	setFloat(&s.IconSize, b.IconSize)
	setFloat(&s.IconPadding, b.IconPadding)
	if err := setPair(&s.IconOffset, b.IconOffset, "icon_offset"); err != nil {
		return err
	}
	s.IconAllowOverlap = b.IconAllowOverlap
	s.IconIgnorePlacement = b.IconIgnorePlacement
	s.IconOptional = b.IconOptional

	s.TextField = b.TextField
	if len(b.TextFont) > 0 {
		s.TextFont = b.TextFont
	}
	setFloat(&s.TextSize, b.TextSize)
	setFloat(&s.TextMaxWidth, b.TextMaxWidth)
	setFloat(&s.TextLineHeight, b.TextLineHeight)
	s.TextLetterSpacing = b.TextLetterSpacing
	setString(&s.TextJustify, b.TextJustify)
	setString(&s.TextAnchor, b.TextAnchor)
	setString(&s.TextTransform, b.TextTransform)
	if err := setPair(&s.TextOffset, b.TextOffset, "text_offset"); err != nil {
		return err
	}
	setFloat(&s.TextPadding, b.TextPadding)
	s.TextAllowOverlap = b.TextAllowOverlap
	s.TextIgnorePlacement = b.TextIgnorePlacement
	s.TextOptional = b.TextOptional

	if s.Placement != "point" && s.Placement != "line" {
		return fmt.Errorf("unknown symbol placement %q", s.Placement)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setPair(dst *[2]float64, v []float64, name string) error {
	switch len(v) {
	case 0:
		return nil
	case 2:
		*dst = [2]float64{v[0], v[1]}
		return nil
	}
	return fmt.Errorf("%s needs two values, got %d", name, len(v))
}

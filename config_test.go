package geotile

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const testConfig = `
concurrency = 2
icon_atlas  = "pois"

placement {
  bearing       = 90
  fade_duration = "300ms"
}

output "site" {
  path           = "out"
  include_report = true
}

layer "water" {
  type         = "fill"
  source_layer = "water"
  filter       = ["==", "class", "lake"]
  paint        = { color = "#0000ff" }
}

layer "roads" {
  type         = "line"
  source_layer = "roads"
  visibility   = "none"

  line {
    cap  = "round"
    join = "round"
  }
}

layer "poi-label" {
  type         = "symbol"
  source_layer = "poi"
  min_zoom     = 10
  max_zoom     = 18

  symbol {
    text_field     = "{name}"
    text_font      = ["Noto Sans Regular"]
    text_transform = "uppercase"
    text_offset    = [0, 1]
    icon_image     = "{kind}-11"
  }
}

map "world" {
  output    = "site"
  path      = "tiles"
  assets    = "assets.zip"
  layers    = ["water", "roads", "poi-label"]
  overscale = 1
}
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "pois", cfg.IconAtlas)
	require.Len(t, cfg.Outputs, 1)
	assert.True(t, cfg.Outputs[0].IncludeReport)
	require.Len(t, cfg.Maps, 1)
	assert.Equal(t, 1, cfg.Maps[0].Overscale)
	assert.Equal(t, "assets.zip", cfg.Maps[0].Assets)

	placement, err := cfg.PlacementConfig()
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, placement.Angle, 1e-9)
	assert.Equal(t, 300*time.Millisecond, placement.FadeDuration)
}

func TestStyleLayers(t *testing.T) {
	cfg, err := ParseConfig("config.hcl", []byte(testConfig))
	require.NoError(t, err)

	layers, err := cfg.StyleLayers(cfg.Maps[0].Layers)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	water := layers[0]
	assert.Equal(t, style.FillLayer, water.Type)
	assert.Equal(t, style.Equals("class", cty.StringVal("lake")).String(), water.Filter.String())
	assert.Equal(t, "#0000ff", water.Paint["color"].AsString())

	roads := layers[1]
	assert.Equal(t, style.None, roads.Visibility)
	assert.Equal(t, "round", roads.Line.Cap)
	assert.Equal(t, 2.0, roads.Line.MiterLimit)

	label := layers[2]
	assert.True(t, label.IsSymbol())
	assert.Equal(t, 10.0, label.MinZoom)
	assert.Equal(t, 18.0, label.MaxZoom)
	assert.Equal(t, "{name}", label.Symbol.TextField)
	assert.Equal(t, "Noto Sans Regular", label.Symbol.FontStack())
	assert.Equal(t, [2]float64{0, 1}, label.Symbol.TextOffset)
	assert.Equal(t, 16.0, label.Symbol.TextSize)
	assert.Equal(t, "point", label.Symbol.Placement)
}

func TestStyleLayerErrors(t *testing.T) {
	cases := []struct {
		name  string
		block LayerConfigBlock
		err   error
	}{
		{
			name:  "unknown type",
			block: LayerConfigBlock{Name: "x", Type: "raster"},
			err:   style.ErrUnknownLayerType,
		},
		{
			name:  "bad filter",
			block: LayerConfigBlock{Name: "x", Type: "fill", Filter: cty.TupleVal([]cty.Value{cty.StringVal("~=")})},
			err:   style.ErrInvalidFilter,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.block.StyleLayer()
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := (&LayerConfigBlock{Name: "x", Type: "fill", Visibility: "hidden"}).StyleLayer()
	assert.Error(t, err)

	_, err = (&LayerConfigBlock{Name: "x", Type: "symbol", Symbol: &SymbolConfigBlock{TextOffset: []float64{1}}}).StyleLayer()
	assert.Error(t, err)

	cfg := &Config{}
	_, err = cfg.StyleLayers([]string{"missing"})
	assert.Error(t, err)
}

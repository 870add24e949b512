package geotile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedGlyphs has every glyph of every range, all the same size.
type fixedGlyphs struct {
	calls atomic.Int32
}

func (g *fixedGlyphs) Glyphs(_ string, r symbol.GlyphRange) (symbol.GlyphPositions, error) {
	g.calls.Add(1)
	positions := make(symbol.GlyphPositions)
	for id := r.Start; id <= r.End; id++ {
		positions[id] = symbol.GlyphPosition{Metrics: symbol.GlyphMetrics{Width: 8, Height: 10, Advance: 10}}
	}
	return positions, nil
}

func TestRenderTile(t *testing.T) {
	glyphs := &fixedGlyphs{}
	r := NewRenderer(labelLayers(), glyphs, nil)

	res, err := r.RenderTile(context.Background(), testTile(), testData(2, "Lake"), TileRenderOpts{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), glyphs.calls.Load())

	assert.Equal(t, uint64(1), res.Layout.CorrelationID)
	assert.Equal(t, uint64(1), res.Placement.CorrelationID)
	require.Contains(t, res.Layout.Buckets, "water")
	require.Contains(t, res.Placement.SymbolBuckets, "poi-label")
	assert.Len(t, res.Placement.SymbolBuckets["poi-label"].Labels, 1)

	hits := res.QueryRenderedFeatures(orb.Bound{Min: orb.Point{450, 1950}, Max: orb.Point{550, 2050}})
	require.Len(t, hits["poi-label"], 1)
	name, ok := hits["poi-label"][0].Feature.Property("name")
	require.True(t, ok)
	assert.Equal(t, "Lake", name.AsString())
	assert.NotContains(t, hits, "water")

	water := res.QueryRenderedFeatures(orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}}, "water-dark")
	assert.Len(t, water["water-dark"], 1)
	assert.NotContains(t, water, "water")

	summary := res.Summary()
	assert.Equal(t, "0/0/0=>0", summary.Tile)
	assert.Equal(t, 2, summary.Buckets["water"])
	assert.Equal(t, 1, summary.Labels["poi-label"])
}

func TestRenderTileWithoutSymbols(t *testing.T) {
	r := NewRenderer(fillLayers(), nil, nil)

	res, err := r.RenderTile(context.Background(), testTile(), testData(1), TileRenderOpts{})
	require.NoError(t, err)
	assert.Empty(t, res.Placement.SymbolBuckets)
	assert.Equal(t, 0, res.Placement.CollisionTile.Len())
}

func TestRenderTileReportsWorkerErrors(t *testing.T) {
	r := NewRenderer(fillLayers(), nil, nil)

	_, err := r.RenderTile(context.Background(), testTile(), panickingData{Data: testData(1)}, TileRenderOpts{})
	var werr *WorkerError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, testTile(), werr.Tile)
	assert.ErrorIs(t, err, ErrPanic)
}

func TestRenderTileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRenderer(fillLayers(), nil, nil)
	_, err := r.RenderTile(ctx, testTile(), testData(1), TileRenderOpts{})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeTile(t *testing.T, root, key string, contents []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, contents, 0o644))
}

func TestRenderTiles(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	lake := geojson.NewFeature(orb.Polygon{{{-120, 10}, {-60, 10}, {-60, 50}, {-120, 50}, {-120, 10}}})
	lake.Properties["layer"] = "water"
	fc := geojson.NewFeatureCollection().Append(lake)
	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	writeTile(t, src, "1/0/0.geojson", raw)

	water := geojson.NewFeatureCollection().Append(geojson.NewFeature(square(100, 100)))
	encoded, err := mvt.MarshalGzipped(mvt.Layers{{Name: "water", Version: 2, Extent: 4096, Features: water.Features}})
	require.NoError(t, err)
	writeTile(t, src, "1/1/0.mvt", encoded)

	writeTile(t, src, "1/1/1.mvt", []byte{0x1f, 0x8b, 0x00, 0x01})
	writeTile(t, src, "notes/readme.txt", []byte("ignored"))

	r := NewRenderer(fillLayers(), nil, nil)
	result, err := r.RenderTiles(context.Background(), src, dst, TileRenderOpts{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, uint32(2), result.RenderedTiles)
	assert.Equal(t, uint32(1), result.FailedTiles)
	require.Len(t, result.Summaries, 2)
	assert.Equal(t, "1/0/0=>1", result.Summaries[0].Tile)
	assert.Equal(t, 1, result.Summaries[0].Buckets["water"])
	assert.Contains(t, result.TileTimestamps, "1/0/0")
	assert.NotContains(t, result.TileTimestamps, "1/1/1")

	var summary TileSummary
	data, err := os.ReadFile(filepath.Join(dst, "1", "1", "0.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "1/1/0=>1", summary.Tile)

	again, err := r.RenderTiles(context.Background(), src, dst, TileRenderOpts{TileTimestamps: result.TileTimestamps})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), again.RenderedTiles)
	assert.Equal(t, result.TileTimestamps["1/0/0"], again.TileTimestamps["1/0/0"])
	assert.Equal(t, result.Summaries, again.Summaries)

	// an unchanged tile whose summary is gone is rendered again
	require.NoError(t, os.Remove(filepath.Join(dst, "1", "1", "0.json")))
	again, err = r.RenderTiles(context.Background(), src, dst, TileRenderOpts{TileTimestamps: result.TileTimestamps})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), again.RenderedTiles)
	assert.Equal(t, result.Summaries, again.Summaries)
	assert.FileExists(t, filepath.Join(dst, "1", "1", "0.json"))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(src, "1", "0", "0.geojson"), later, later))
	again, err = r.RenderTiles(context.Background(), src, dst, TileRenderOpts{TileTimestamps: result.TileTimestamps})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), again.RenderedTiles)
}

func TestRenderTilesOverscale(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	water := geojson.NewFeatureCollection().Append(geojson.NewFeature(square(100, 100)))
	encoded, err := mvt.Marshal(mvt.Layers{{Name: "water", Version: 2, Extent: 4096, Features: water.Features}})
	require.NoError(t, err)
	writeTile(t, src, "2/1/1.pbf", encoded)

	// only visible once overscaled past zoom 3
	layer := style.NewLayer("water", style.FillLayer, "water")
	layer.MinZoom = 3

	r := NewRenderer([]*style.Layer{layer}, nil, nil)
	result, err := r.RenderTiles(context.Background(), src, dst, TileRenderOpts{Overscale: 1})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "2/1/1=>3", result.Summaries[0].Tile)
	assert.Equal(t, 1, result.Summaries[0].Buckets["water"])
}

func TestRenderTilesRejectsNegativeOverscale(t *testing.T) {
	r := NewRenderer(fillLayers(), nil, nil)
	_, err := r.RenderTiles(context.Background(), t.TempDir(), t.TempDir(), TileRenderOpts{Overscale: -1})
	assert.ErrorContains(t, err, "overscale must be between 0 and 24")
}

func TestRenderTilesOverscalePastMaxZoomFails(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	water := geojson.NewFeatureCollection().Append(geojson.NewFeature(square(100, 100)))
	encoded, err := mvt.Marshal(mvt.Layers{{Name: "water", Version: 2, Extent: 4096, Features: water.Features}})
	require.NoError(t, err)
	writeTile(t, src, "20/1/1.pbf", encoded)
	writeTile(t, src, "2/1/1.pbf", encoded)

	r := NewRenderer(fillLayers(), nil, nil)
	result, err := r.RenderTiles(context.Background(), src, dst, TileRenderOpts{Overscale: 8})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), result.RenderedTiles)
	assert.Equal(t, uint32(1), result.FailedTiles)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "2/1/1=>10", result.Summaries[0].Tile)
}

func TestOverscaledTileID(t *testing.T) {
	id, err := OverscaledTileID(maptile.New(1, 1, 2), 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), id.OverscaledZ)
	assert.Equal(t, 8.0, id.Overscaling())

	id, err = OverscaledTileID(maptile.New(1, 1, 20), 4)
	require.NoError(t, err)
	assert.Equal(t, uint8(MaxZoom), id.OverscaledZ)

	_, err = OverscaledTileID(maptile.New(1, 1, 2), -1)
	assert.ErrorContains(t, err, "must not be negative")

	_, err = OverscaledTileID(maptile.New(1, 1, 20), 5)
	assert.ErrorContains(t, err, "exceeds zoom 24")

	_, err = OverscaledTileID(maptile.New(0, 0, 0), 300)
	assert.Error(t, err)
}

func TestDecodeTileGeoJSONLayers(t *testing.T) {
	road := geojson.NewFeature(orb.LineString{{-10, 10}, {10, 10}})
	road.Properties["layer"] = "roads"
	park := geojson.NewFeature(orb.Point{5, 5})
	raw, err := json.Marshal(geojson.NewFeatureCollection().Append(road).Append(park))
	require.NoError(t, err)

	data, err := DecodeTile("0/0/0.geojson", maptile.New(0, 0, 0), raw)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"roads", "default"}, data.LayerNames())
}

package geotile

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/b1naryth1ef/geotile/featureindex"
	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/b1naryth1ef/geotile/tiledata"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// Renderer lays out tiles with one Worker per tile and serves the glyphs and
// icons the workers ask for.
type Renderer struct {
	layers []*style.Layer
	glyphs GlyphSource
	icons  IconSource
}

// NewRenderer returns a renderer for layers. Nil sources answer every
// request with nothing.
func NewRenderer(layers []*style.Layer, glyphs GlyphSource, icons IconSource) *Renderer {
	if glyphs == nil {
		glyphs = emptySource{}
	}
	if icons == nil {
		icons = emptySource{}
	}
	return &Renderer{
		layers: layers,
		glyphs: glyphs,
		icons:  icons,
	}
}

// TileResult is the final layout and placement of one tile.
type TileResult struct {
	ID        tiledata.TileID
	Layout    LayoutResult
	Placement PlacementResult
}

// QueryRenderedFeatures returns the features and placed labels inside box,
// given in tile coordinates, keyed by style layer id.
func (t *TileResult) QueryRenderedFeatures(box orb.Bound, layerIDs ...string) map[string][]featureindex.Result {
	opts := featureindex.QueryOptions{
		Box:      box,
		LayerIDs: layerIDs,
		Data:     t.Layout.Data,
	}
	if t.Placement.CollisionTile != nil {
		opts.Symbols = t.Placement.CollisionTile
	}
	return t.Layout.FeatureIndex.Query(opts)
}

func (t *TileResult) Summary() TileSummary {
	s := TileSummary{
		Tile:          t.ID.String(),
		CorrelationID: t.Layout.CorrelationID,
		Features:      t.Layout.FeatureIndex.Len(),
		Buckets:       make(map[string]int, len(t.Layout.Buckets)),
		Labels:        make(map[string]int, len(t.Placement.SymbolBuckets)),
	}
	for id, b := range t.Layout.Buckets {
		s.Buckets[id] = len(b.FeatureIndexes())
	}
	for id, b := range t.Placement.SymbolBuckets {
		s.Labels[id] = len(b.Labels)
	}
	if t.Placement.CollisionTile != nil {
		s.CollisionBoxes = t.Placement.CollisionTile.Len()
	}
	return s
}

// tileHost is the parent of a single worker. It keeps the results of the
// generation it asked for and drops everything else.
type tileHost struct {
	renderer *Renderer
	worker   *Worker
	cid      uint64

	mu        sync.Mutex
	layout    *LayoutResult
	placement *PlacementResult
	err       error
	finished  bool
	done      chan struct{}
}

func (h *tileHost) OnLayout(res LayoutResult) {
	if res.CorrelationID != h.cid {
		return
	}
	h.mu.Lock()
	h.layout = &res
	h.placement = nil
	h.mu.Unlock()
}

func (h *tileHost) OnPlacement(res PlacementResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if res.CorrelationID != h.cid || h.layout == nil {
		return
	}
	h.placement = &res
	h.finish(nil)
}

func (h *tileHost) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finish(err)
}

func (h *tileHost) finish(err error) {
	if h.finished {
		return
	}
	h.finished = true
	h.err = err
	close(h.done)
}

func (h *tileHost) GetGlyphs(deps symbol.GlyphDependencies) {
	go h.loadGlyphs(deps)
}

func (h *tileHost) GetIcons(deps symbol.IconDependencies) {
	go h.loadIcons(deps)
}

// loadGlyphs answers a glyph request. A range that fails to load is still
// reported as loaded so its glyphs render as gaps instead of stalling
// placement.
func (h *tileHost) loadGlyphs(deps symbol.GlyphDependencies) {
	positions := make(symbol.GlyphPositionMap, len(deps))
	loaded := make(symbol.GlyphRangeSet)

	for font, ids := range deps {
		fontPositions := make(symbol.GlyphPositions)
		for _, r := range ids.Ranges() {
			p, err := h.renderer.glyphs.Glyphs(font, r)
			if err != nil {
				Logger().Warn("failed to load glyph range", "tile", h.worker.ID().String(), "font", font, "range", r.String(), "error", err)
			}
			for id, pos := range p {
				fontPositions[id] = pos
			}
			loaded[r] = struct{}{}
		}
		positions[font] = fontPositions
	}

	h.worker.OnGlyphsAvailable(positions, loaded)
}

func (h *tileHost) loadIcons(deps symbol.IconDependencies) {
	icons := make(symbol.IconAtlasMap, len(deps))
	for atlas := range deps {
		positions, err := h.renderer.icons.Icons(atlas)
		if err != nil {
			Logger().Warn("failed to load icon atlas", "tile", h.worker.ID().String(), "atlas", atlas, "error", err)
			positions = symbol.IconPositions{}
		}
		icons[atlas] = positions
	}

	h.worker.OnIconsAvailable(icons)
}

// RenderTile lays out data as tile id and waits for the placed result.
func (r *Renderer) RenderTile(ctx context.Context, id tiledata.TileID, data tiledata.Data, opts TileRenderOpts) (*TileResult, error) {
	host := &tileHost{
		renderer: r,
		cid:      1,
		done:     make(chan struct{}),
	}

	var workerOpts []WorkerOption
	if opts.Metrics != nil {
		workerOpts = append(workerOpts, WithMetrics(opts.Metrics))
	}
	if opts.IconAtlas != "" {
		workerOpts = append(workerOpts, WithIconAtlas(opts.IconAtlas))
	}

	w := NewWorker(ctx, id, host, workerOpts...)
	host.worker = w
	defer w.Close()

	w.SetLayers(r.layers, host.cid)
	w.SetPlacementConfig(opts.Placement, host.cid)
	w.SetData(data, host.cid)

	select {
	case <-host.done:
	case <-w.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrWorkerClosed
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if host.err != nil {
		return nil, host.err
	}
	return &TileResult{
		ID:        id,
		Layout:    *host.layout,
		Placement: *host.placement,
	}, nil
}

// MaxZoom is the highest zoom level a tile may be rendered at.
const MaxZoom = 24

// OverscaledTileID returns the id tile is rendered as when overscaled by the
// given number of zoom levels.
func OverscaledTileID(tile maptile.Tile, overscale int) (tiledata.TileID, error) {
	if overscale < 0 {
		return tiledata.TileID{}, fmt.Errorf("overscale must not be negative, got %d", overscale)
	}
	if int(tile.Z)+overscale > MaxZoom {
		return tiledata.TileID{}, fmt.Errorf("tile %d/%d/%d overscaled by %d exceeds zoom %d", tile.Z, tile.X, tile.Y, overscale, MaxZoom)
	}
	id := tiledata.NewTileID(tile)
	id.OverscaledZ += uint8(overscale)
	return id, nil
}

type tileFile struct {
	path    string
	key     string
	tile    maptile.Tile
	modTime int64
}

// findTiles lists the tiles under src laid out as <z>/<x>/<y>.<ext>.
func findTiles(src string) ([]tileFile, error) {
	var tiles []tileFile
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch filepath.Ext(path) {
		case ".mvt", ".pbf", ".geojson":
		default:
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		parts[2] = strings.TrimSuffix(parts[2], filepath.Ext(parts[2]))

		var zxy [3]uint64
		for i, p := range parts {
			zxy[i], err = strconv.ParseUint(p, 10, 32)
			if err != nil {
				return nil
			}
		}
		if zxy[0] > MaxZoom {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		tiles = append(tiles, tileFile{
			path:    path,
			key:     strings.Join(parts, "/"),
			tile:    maptile.New(uint32(zxy[1]), uint32(zxy[2]), maptile.Zoom(zxy[0])),
			modTime: info.ModTime().Unix(),
		})
		return nil
	})
	return tiles, err
}

// DecodeTile decodes a tile file. Vector tiles may be gzipped. A GeoJSON
// tile is a WGS84 feature collection whose features name their source layer
// in the "layer" property.
func DecodeTile(path string, tile maptile.Tile, raw []byte) (tiledata.Data, error) {
	if filepath.Ext(path) == ".geojson" {
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, err
		}

		collections := make(map[string]*geojson.FeatureCollection)
		for _, f := range fc.Features {
			name := f.Properties.MustString("layer", "default")
			c, ok := collections[name]
			if !ok {
				c = geojson.NewFeatureCollection()
				collections[name] = c
			}
			c.Append(f)
		}
		return tiledata.FromGeoJSON(tile, collections), nil
	}

	if len(raw) > 1 && raw[0] == 0x1f && raw[1] == 0x8b {
		return tiledata.FromMVTGzipped(raw)
	}
	return tiledata.FromMVT(raw)
}

func (tf tileFile) summaryPath(dst string) string {
	return filepath.Join(dst, filepath.FromSlash(tf.key)+".json")
}

// readSummary loads the summary a previous build wrote for tf.
func (tf tileFile) readSummary(dst string) (*TileSummary, error) {
	data, err := os.ReadFile(tf.summaryPath(dst))
	if err != nil {
		return nil, err
	}
	var summary TileSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *Renderer) renderTileFile(ctx context.Context, tf tileFile, dst string, opts TileRenderOpts) (*TileSummary, error) {
	id, err := OverscaledTileID(tf.tile, opts.Overscale)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(tf.path)
	if err != nil {
		return nil, err
	}

	data, err := DecodeTile(tf.path, tf.tile, raw)
	if err != nil {
		return nil, err
	}

	res, err := r.RenderTile(ctx, id, data, opts)
	if err != nil {
		return nil, err
	}
	summary := res.Summary()

	out := tf.summaryPath(dst)
	if err := os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RenderTiles renders every tile under src whose source changed since the
// previous build and writes a JSON summary per tile under dst. Unchanged
// tiles contribute the summary written by the previous build. Tiles that
// fail are logged and skipped.
func (r *Renderer) RenderTiles(ctx context.Context, src, dst string, opts TileRenderOpts) (*TileRenderResult, error) {
	if opts.Overscale < 0 || opts.Overscale > MaxZoom {
		return nil, fmt.Errorf("overscale must be between 0 and %d, got %d", MaxZoom, opts.Overscale)
	}

	tiles, err := findTiles(src)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles in %s: %w", src, err)
	}

	var renderedTiles, failedTiles atomic.Uint32

	result := TileRenderResult{
		TileTimestamps: make(map[string]int64),
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	guard := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for _, tf := range tiles {
		if ctx.Err() != nil {
			break
		}

		if previous, ok := opts.TileTimestamps[tf.key]; ok && tf.modTime <= previous {
			summary, err := tf.readSummary(dst)
			if err == nil {
				result.Lock()
				result.TileTimestamps[tf.key] = previous
				result.Summaries = append(result.Summaries, *summary)
				result.Unlock()
				continue
			}
			Logger().Debug("rendering unchanged tile without a summary", "tile", tf.key, "error", err)
		}

		guard <- struct{}{}
		wg.Add(1)
		go func(tf tileFile) {
			defer wg.Done()
			defer func() {
				<-guard
			}()

			summary, err := r.renderTileFile(ctx, tf, dst, opts)
			if err != nil {
				failedTiles.Add(1)
				Logger().Warn("failed to render tile", "tile", tf.key, "path", tf.path, "error", err)
				return
			}
			renderedTiles.Add(1)

			result.Lock()
			result.TileTimestamps[tf.key] = tf.modTime
			result.Summaries = append(result.Summaries, *summary)
			result.Unlock()
		}(tf)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(result.Summaries, func(i, j int) bool {
		return result.Summaries[i].Tile < result.Summaries[j].Tile
	})
	result.RenderedTiles = renderedTiles.Load()
	result.FailedTiles = failedTiles.Load()

	return &result, nil
}

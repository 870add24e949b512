// Package build renders every map of a configuration into its output and
// writes the build report.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/b1naryth1ef/geotile"
	"github.com/b1naryth1ef/geotile/symbol"
	"github.com/b1naryth1ef/geotile/style"
	"github.com/b1naryth1ef/geotile/web"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

type BuildOpts struct {
	// ForceClean renders every tile, ignoring the timestamps of the previous
	// build.
	ForceClean bool
	Metrics    *geotile.Metrics
}

func ensureDirectory(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModePerm)
	}
	return err
}

func writeDirectory(path string, src fs.FS) error {
	return fs.WalkDir(src, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		target := filepath.Join(path, filepath.FromSlash(name))
		if entry.IsDir() {
			return ensureDirectory(target)
		}

		contents, err := fs.ReadFile(src, name)
		if err != nil {
			return err
		}
		return os.WriteFile(target, contents, 0o644)
	})
}

func writeReport(path string, data web.FrontendData) error {
	tmpl, err := web.IndexTemplate()
	if err != nil {
		return err
	}

	dataSerialized, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fd, err := os.Create(filepath.Join(path, "index.html"))
	if err != nil {
		return err
	}
	defer fd.Close()

	err = tmpl.Execute(fd, string(dataSerialized))
	if err != nil {
		return err
	}

	scripts, err := web.Scripts()
	if err != nil {
		return err
	}

	jsPath := filepath.Join(path, "static", "js")
	err = ensureDirectory(jsPath)
	if err != nil {
		return err
	}
	return writeDirectory(jsPath, scripts)
}

func loadBuildMeta(path string) (geotile.RenderMeta, error) {
	var meta geotile.RenderMeta

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}

	err = json.Unmarshal(data, &meta)
	return meta, err
}

// configHash identifies everything besides the source tiles that changes
// what a map renders to.
func configHash(layers []*style.Layer, mapCfg *geotile.MapConfigBlock, opts geotile.TileRenderOpts) string {
	h := xxhash.New()
	for _, l := range layers {
		fmt.Fprintf(h, "layer %s %s\n", l.ID, l.LayoutKey())
	}
	fmt.Fprintf(h, "placement %+v\n", opts.Placement)
	fmt.Fprintf(h, "icons %s\n", opts.IconAtlas)
	fmt.Fprintf(h, "assets %s\n", mapCfg.Assets)
	fmt.Fprintf(h, "overscale %d\n", opts.Overscale)
	return fmt.Sprintf("%016x", h.Sum64())
}

func buildMap(ctx context.Context, config *geotile.Config, opts BuildOpts, mapCfg *geotile.MapConfigBlock, placement symbol.PlacementConfig, outputPath string) (*web.MapData, error) {
	tilePath := filepath.Join(outputPath, "tiles", mapCfg.Name)
	err := ensureDirectory(tilePath)
	if err != nil {
		return nil, err
	}

	layers, err := config.StyleLayers(mapCfg.Layers)
	if err != nil {
		return nil, err
	}

	var (
		glyphs geotile.GlyphSource
		icons  geotile.IconSource
	)
	if mapCfg.Overscale < 0 || mapCfg.Overscale > geotile.MaxZoom {
		return nil, fmt.Errorf("overscale must be between 0 and %d, got %d", geotile.MaxZoom, mapCfg.Overscale)
	}

	if mapCfg.Assets != "" {
		assetLoader, err := geotile.NewAssetLoader(mapCfg.Assets)
		if err != nil {
			return nil, err
		}
		defer assetLoader.Close()
		glyphs, icons = assetLoader, assetLoader
	}

	renderOpts := geotile.TileRenderOpts{
		Concurrency: config.Concurrency,
		Overscale:   mapCfg.Overscale,
		Placement:   placement,
		IconAtlas:   config.IconAtlas,
		Metrics:     opts.Metrics,
	}

	hash := configHash(layers, mapCfg, renderOpts)
	buildMetaPath := filepath.Join(tilePath, "build.json")
	if !opts.ForceClean {
		buildMeta, err := loadBuildMeta(buildMetaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", buildMetaPath, err)
		}
		if buildMeta.ConfigHash == hash {
			renderOpts.TileTimestamps = buildMeta.TileTimestamps
		} else if len(buildMeta.TileTimestamps) > 0 {
			geotile.Logger().Info("configuration changed, rendering every tile", "map", mapCfg.Name)
		}
	}

	renderer := geotile.NewRenderer(layers, glyphs, icons)

	start := time.Now()
	result, err := renderer.RenderTiles(ctx, mapCfg.Path, tilePath, renderOpts)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(geotile.RenderMeta{
		ConfigHash:     hash,
		TileTimestamps: result.TileTimestamps,
	})
	if err != nil {
		return nil, err
	}
	err = os.WriteFile(buildMetaPath, data, 0o644)
	if err != nil {
		return nil, err
	}

	geotile.Logger().Info("finished rendering map",
		"map", mapCfg.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"tiles", result.RenderedTiles,
		"failed", result.FailedTiles,
	)

	colors, err := web.LayerColors(len(layers))
	if err != nil {
		return nil, err
	}

	mapData := web.MapData{
		Name:          mapCfg.Name,
		RenderedTiles: result.RenderedTiles,
		FailedTiles:   result.FailedTiles,
		Layers:        make([]web.LayerData, 0, len(layers)),
		Tiles:         make([]web.TileData, 0, len(result.Summaries)),
	}
	for i, layer := range layers {
		mapData.Layers = append(mapData.Layers, web.LayerData{
			Name:        layer.ID,
			Type:        string(layer.Type),
			SourceLayer: layer.SourceLayer,
			Color:       colors[i],
		})
	}
	for _, s := range result.Summaries {
		mapData.Tiles = append(mapData.Tiles, web.TileData{
			Tile:           s.Tile,
			Features:       s.Features,
			Buckets:        s.Buckets,
			Labels:         s.Labels,
			CollisionBoxes: s.CollisionBoxes,
		})
	}

	return &mapData, nil
}

// Build renders every configured map, concurrently, and writes a report to
// each output that asks for one.
func Build(ctx context.Context, config *geotile.Config, opts BuildOpts) error {
	outputs := map[string]string{}
	for _, output := range config.Outputs {
		err := ensureDirectory(filepath.Join(output.Path, "tiles"))
		if err != nil {
			return err
		}
		outputs[output.Name] = output.Path
	}

	placement, err := config.PlacementConfig()
	if err != nil {
		return err
	}

	for _, mapCfg := range config.Maps {
		if _, ok := outputs[mapCfg.Output]; !ok {
			return fmt.Errorf("map %s: output %q is not defined", mapCfg.Name, mapCfg.Output)
		}
	}

	maps := make([]web.MapData, len(config.Maps))
	g, gctx := errgroup.WithContext(ctx)
	for i, mapCfg := range config.Maps {
		i, mapCfg := i, mapCfg
		g.Go(func() error {
			mapData, err := buildMap(gctx, config, opts, mapCfg, placement, outputs[mapCfg.Output])
			if err != nil {
				return fmt.Errorf("map %s: %w", mapCfg.Name, err)
			}
			maps[i] = *mapData
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, output := range config.Outputs {
		if !output.IncludeReport {
			continue
		}

		data := web.FrontendData{Maps: []web.MapData{}}
		for i, mapCfg := range config.Maps {
			if mapCfg.Output == output.Name {
				data.Maps = append(data.Maps, maps[i])
			}
		}

		err := writeReport(output.Path, data)
		if err != nil {
			return err
		}
	}

	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/b1naryth1ef/geotile"
	"github.com/b1naryth1ef/geotile/build"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

func main() {
	_ = godotenv.Load(".env")
	geotile.SetLogger(setupLogger())

	app := &cli.App{
		Name:        "geotile",
		Description: "vector tile layout and label placement",
		Commands: []*cli.Command{
			{
				Name:   "build",
				Action: commandBuild,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "config",
						Usage: "path to the configuration file",
						Value: "config.hcl",
					},
					&cli.BoolFlag{
						Name:  "clean",
						Usage: "force a clean build ignoring tile modification times",
						Value: false,
					},
					&cli.PathFlag{
						Name:  "metrics",
						Usage: "write worker metrics in the prometheus text format to this path",
					},
				},
			},
			{
				Name:   "query",
				Usage:  "lay out a single tile and print the features rendered inside a box",
				Action: commandQuery,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "config",
						Usage: "path to the configuration file",
						Value: "config.hcl",
					},
					&cli.StringFlag{
						Name:     "map",
						Usage:    "name of the map the tile belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "tile",
						Usage:    "tile as z/x/y",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "box",
						Usage: "query box in tile coordinates as minx,miny,maxx,maxy",
						Value: "0,0,4096,4096",
					},
					&cli.StringSliceFlag{
						Name:  "layer",
						Usage: "only return features of this style layer",
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// setupLogger builds the logger from LOG_LEVEL (debug, info, warn, error)
// and LOG_FORMAT (text, json).
func setupLogger() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	return slog.New(h)
}

func commandBuild(ctx *cli.Context) error {
	config, err := geotile.LoadConfig(ctx.Path("config"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := geotile.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	err = build.Build(ctx.Context, config, build.BuildOpts{
		ForceClean: ctx.Bool("clean"),
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	if path := ctx.Path("metrics"); path != "" {
		return writeMetrics(reg, path)
	}
	return nil
}

func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	enc := expfmt.NewEncoder(fd, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

type queryHit struct {
	SourceLayer  string                             `json:"sourceLayer"`
	FeatureIndex int                                `json:"featureIndex"`
	Bucket       string                             `json:"bucket"`
	Properties   map[string]ctyjson.SimpleJSONValue `json:"properties"`
}

func commandQuery(ctx *cli.Context) error {
	config, err := geotile.LoadConfig(ctx.Path("config"))
	if err != nil {
		return err
	}

	var mapCfg *geotile.MapConfigBlock
	for _, m := range config.Maps {
		if m.Name == ctx.String("map") {
			mapCfg = m
		}
	}
	if mapCfg == nil {
		return fmt.Errorf("map %q is not defined", ctx.String("map"))
	}

	tile, err := parseTile(ctx.String("tile"))
	if err != nil {
		return err
	}
	box, err := parseBox(ctx.String("box"))
	if err != nil {
		return err
	}

	path, raw, err := readTile(mapCfg.Path, ctx.String("tile"))
	if err != nil {
		return err
	}
	data, err := geotile.DecodeTile(path, tile, raw)
	if err != nil {
		return err
	}

	layers, err := config.StyleLayers(mapCfg.Layers)
	if err != nil {
		return err
	}
	placement, err := config.PlacementConfig()
	if err != nil {
		return err
	}

	var (
		glyphs geotile.GlyphSource
		icons  geotile.IconSource
	)
	if mapCfg.Assets != "" {
		assetLoader, err := geotile.NewAssetLoader(mapCfg.Assets)
		if err != nil {
			return err
		}
		defer assetLoader.Close()
		glyphs, icons = assetLoader, assetLoader
	}

	id, err := geotile.OverscaledTileID(tile, mapCfg.Overscale)
	if err != nil {
		return err
	}

	renderer := geotile.NewRenderer(layers, glyphs, icons)
	result, err := renderer.RenderTile(ctx.Context, id, data, geotile.TileRenderOpts{
		Placement: placement,
		IconAtlas: config.IconAtlas,
	})
	if err != nil {
		return err
	}

	out := make(map[string][]queryHit)
	for layerID, hits := range result.QueryRenderedFeatures(box, ctx.StringSlice("layer")...) {
		for _, hit := range hits {
			props := make(map[string]ctyjson.SimpleJSONValue)
			for k, v := range hit.Feature.Properties() {
				props[k] = ctyjson.SimpleJSONValue{Value: v}
			}
			out[layerID] = append(out[layerID], queryHit{
				SourceLayer:  hit.SourceLayer,
				FeatureIndex: hit.FeatureIndex,
				Bucket:       hit.BucketName,
				Properties:   props,
			})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseTile(s string) (maptile.Tile, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return maptile.Tile{}, fmt.Errorf("tile %q is not z/x/y", s)
	}

	var zxy [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return maptile.Tile{}, fmt.Errorf("tile %q: %w", s, err)
		}
		zxy[i] = uint32(v)
	}
	return maptile.New(zxy[1], zxy[2], maptile.Zoom(zxy[0])), nil
}

func parseBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("box %q is not minx,miny,maxx,maxy", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func readTile(root, key string) (string, []byte, error) {
	for _, ext := range []string{".mvt", ".pbf", ".geojson"} {
		path := filepath.Join(root, filepath.FromSlash(key)+ext)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		return path, raw, err
	}
	return "", nil, fmt.Errorf("tile %s not found in %s", key, root)
}

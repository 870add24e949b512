// Package web holds the build report: the data describing every built map
// and the static page that displays it.
package web

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/gamut"
)

type FrontendData struct {
	Maps []MapData `json:"maps"`
}

type MapData struct {
	Name          string      `json:"name"`
	RenderedTiles uint32      `json:"renderedTiles"`
	FailedTiles   uint32      `json:"failedTiles"`
	Layers        []LayerData `json:"layers"`
	Tiles         []TileData  `json:"tiles"`
}

type LayerData struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	SourceLayer string `json:"sourceLayer"`
	Color       string `json:"color"`
}

type TileData struct {
	Tile           string         `json:"tile"`
	Features       int            `json:"features"`
	Buckets        map[string]int `json:"buckets"`
	Labels         map[string]int `json:"labels"`
	CollisionBoxes int            `json:"collisionBoxes"`
}

// LayerColors returns n distinct pastel colours as hex strings, used to tell
// layers apart in the report.
func LayerColors(n int) ([]string, error) {
	if n == 0 {
		return nil, nil
	}

	colors, err := gamut.Generate(n, gamut.PastelGenerator{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate layer palette: %w", err)
	}

	hex := make([]string, 0, n)
	for _, c := range colors {
		cf, ok := colorful.MakeColor(c)
		if !ok {
			return nil, fmt.Errorf("generated colour %v is transparent", c)
		}
		hex = append(hex, cf.Hex())
	}
	return hex, nil
}

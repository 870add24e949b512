package geotile

import (
	"sync"

	"github.com/b1naryth1ef/geotile/symbol"
)

// RenderMeta is persisted next to the rendered tiles so later builds only
// render tiles whose source changed. ConfigHash identifies the layers and
// placement the tiles were rendered with.
type RenderMeta struct {
	ConfigHash     string           `json:"configHash"`
	TileTimestamps map[string]int64 `json:"tileTimestamps"`
}

type TileRenderOpts struct {
	Concurrency int
	// Overscale renders every tile this many zoom levels above its source.
	Overscale int
	// TileTimestamps holds the source modification time, in unix seconds, of
	// every tile rendered by a previous build.
	TileTimestamps map[string]int64
	Placement      symbol.PlacementConfig
	IconAtlas      string
	Metrics        *Metrics
}

type TileRenderResult struct {
	sync.Mutex

	RenderedTiles  uint32
	FailedTiles    uint32
	TileTimestamps map[string]int64
	Summaries      []TileSummary
}

// TileSummary describes what a rendered tile contains.
type TileSummary struct {
	Tile           string         `json:"tile"`
	CorrelationID  uint64         `json:"cid"`
	Features       int            `json:"features"`
	Buckets        map[string]int `json:"buckets"`
	Labels         map[string]int `json:"labels"`
	CollisionBoxes int            `json:"collisionBoxes"`
}

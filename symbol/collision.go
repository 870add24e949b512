package symbol

import (
	"math"
	"time"

	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/featureindex"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// PlacementConfig is the camera state labels are placed for. Angles are in
// radians.
type PlacementConfig struct {
	Angle                  float64
	Pitch                  float64
	CameraToCenterDistance float64
	CameraToTileDistance   float64
	FadeDuration           time.Duration
	ShowCollisionBoxes     bool
}

// CollisionTile holds the label boxes placed so far in one placement pass.
// Anchors are stored in a rotated space where the map bearing is undone so
// text stays upright on screen. Box heights are stretched by the pitch.
type CollisionTile struct {
	Config PlacementConfig

	tree     rtree.RTreeG[featureindex.Hit]
	ignored  rtree.RTreeG[featureindex.Hit]
	sin, cos float64
	yStretch float64
	placed   int
}

func NewCollisionTile(config PlacementConfig) *CollisionTile {
	ct := &CollisionTile{
		Config:   config,
		sin:      math.Sin(-config.Angle),
		cos:      math.Cos(-config.Angle),
		yStretch: 1,
	}

	if config.CameraToCenterDistance > 0 && config.CameraToTileDistance > 0 {
		ct.yStretch = math.Max(1, config.CameraToTileDistance/(config.CameraToCenterDistance*math.Cos(config.Pitch)))
	}
	return ct
}

// YStretch is the vertical scale applied to boxes for the current pitch.
func (ct *CollisionTile) YStretch() float64 { return ct.yStretch }

func (ct *CollisionTile) project(p orb.Point) orb.Point {
	return orb.Point{
		p[0]*ct.cos - p[1]*ct.sin,
		p[0]*ct.sin + p[1]*ct.cos,
	}
}

func (ct *CollisionTile) boxBound(anchor orb.Point, box bucket.Box) orb.Bound {
	p := ct.project(anchor)
	return orb.Bound{
		Min: orb.Point{p[0] + box.X1, p[1] + box.Y1*ct.yStretch},
		Max: orb.Point{p[0] + box.X2, p[1] + box.Y2*ct.yStretch},
	}
}

// Fits reports whether box at anchor overlaps no previously placed box.
func (ct *CollisionTile) Fits(anchor orb.Point, box bucket.Box) bool {
	b := ct.boxBound(anchor, box)
	fits := true
	ct.tree.Search(b.Min, b.Max, func(_, _ [2]float64, _ featureindex.Hit) bool {
		fits = false
		return false
	})
	return fits
}

// Insert records a placed box. Boxes inserted with ignorePlacement do not
// block later labels but are still found by QuerySymbols.
func (ct *CollisionTile) Insert(anchor orb.Point, box bucket.Box, hit featureindex.Hit, ignorePlacement bool) {
	b := ct.boxBound(anchor, box)
	if ignorePlacement {
		ct.ignored.Insert(b.Min, b.Max, hit)
	} else {
		ct.tree.Insert(b.Min, b.Max, hit)
	}
	ct.placed++
}

// Len is the number of boxes placed in this tile.
func (ct *CollisionTile) Len() int { return ct.placed }

// QuerySymbols returns the labels whose boxes intersect box, given in tile
// coordinates.
func (ct *CollisionTile) QuerySymbols(box orb.Bound) []featureindex.Hit {
	q := orb.Bound{Min: ct.project(box.Min), Max: ct.project(box.Min)}
	for _, corner := range []orb.Point{box.Max, {box.Min[0], box.Max[1]}, {box.Max[0], box.Min[1]}} {
		q = q.Extend(ct.project(corner))
	}

	var hits []featureindex.Hit
	collect := func(_, _ [2]float64, hit featureindex.Hit) bool {
		hits = append(hits, hit)
		return true
	}
	ct.tree.Search(q.Min, q.Max, collect)
	ct.ignored.Search(q.Min, q.Max, collect)
	return hits
}

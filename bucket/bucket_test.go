package bucket

import (
	"math"
	"testing"

	"github.com/b1naryth1ef/geotile/style"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func TestNewBucketForLayerTypes(t *testing.T) {
	tests := []struct {
		typ  style.LayerType
		kind Kind
	}{
		{style.FillLayer, Fill},
		{style.FillExtrusionLayer, FillExtrusion},
		{style.LineLayer, Line},
		{style.CircleLayer, Circle},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			b, err := New(style.NewLayer("l", tt.typ, "src"), Params{})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, b.Kind())
			assert.False(t, b.HasData())
		})
	}

	_, err := New(style.NewLayer("bg", style.BackgroundLayer, ""), Params{})
	assert.ErrorIs(t, err, ErrNoBucket)

	_, err = New(style.NewLayer("sym", style.SymbolLayer, "poi"), Params{})
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestFillBucketClipsAndTracksFeatures(t *testing.T) {
	b, err := New(style.NewLayer("fill", style.FillLayer, "water"), Params{Extent: 4096})
	require.NoError(t, err)

	require.NoError(t, b.AddFeature(0, nil, square(10, 10, 100)))
	// entirely outside the buffered tile
	require.NoError(t, b.AddFeature(1, nil, square(9000, 9000, 100)))
	// straddles the edge and gets clipped to the buffer
	require.NoError(t, b.AddFeature(2, nil, square(4000, 4000, 1000)))
	// a line is not a fill
	require.NoError(t, b.AddFeature(3, nil, orb.LineString{{0, 0}, {10, 10}}))

	fill := b.(*FillBucket)
	assert.True(t, fill.HasData())
	assert.Equal(t, []int{0, 2}, fill.FeatureIndexes())
	require.Len(t, fill.Polygons, 2)

	bound := fill.Polygons[1].Bound()
	assert.LessOrEqual(t, bound.Max[0], float64(4096+DefaultBuffer))
}

func TestLineBucketOutlinesPolygons(t *testing.T) {
	b, err := New(style.NewLayer("line", style.LineLayer, "roads"), Params{})
	require.NoError(t, err)

	require.NoError(t, b.AddFeature(4, nil, orb.MultiLineString{{{0, 0}, {100, 0}}, {{5, 5}}}))
	require.NoError(t, b.AddFeature(5, nil, square(0, 0, 10)))

	line := b.(*LineBucket)
	assert.Equal(t, []int{4, 5}, line.FeatureIndexes())
	assert.Len(t, line.Lines, 2)
	assert.Equal(t, "butt", line.Layout.Cap)
}

func TestCircleBucketSkipsBufferPoints(t *testing.T) {
	b, err := New(style.NewLayer("circle", style.CircleLayer, "poi"), Params{Extent: 512})
	require.NoError(t, err)

	require.NoError(t, b.AddFeature(0, nil, orb.Point{-1, 10}))
	assert.False(t, b.HasData())

	require.NoError(t, b.AddFeature(1, nil, orb.MultiPoint{{1, 1}, {511, 511}, {512, 3}}))
	circle := b.(*CircleBucket)
	assert.Len(t, circle.Points, 2)
	assert.Equal(t, 2, circle.VertexCount())
	assert.Equal(t, []int{1}, circle.FeatureIndexes())
}

func TestInvalidGeometry(t *testing.T) {
	b, err := New(style.NewLayer("line", style.LineLayer, "roads"), Params{})
	require.NoError(t, err)

	assert.ErrorIs(t, b.AddFeature(0, nil, nil), ErrInvalidGeometry)
	assert.ErrorIs(t, b.AddFeature(0, nil, orb.LineString{{0, 0}, {math.NaN(), 1}}), ErrInvalidGeometry)
}

func TestSealedBucketRejectsWrites(t *testing.T) {
	b, err := New(style.NewLayer("fill", style.FillLayer, "water"), Params{})
	require.NoError(t, err)
	require.NoError(t, b.AddFeature(0, nil, square(0, 0, 10)))

	b.Seal()
	assert.True(t, b.Sealed())
	assert.ErrorIs(t, b.AddFeature(1, nil, square(0, 0, 10)), ErrSealed)
	assert.Equal(t, []int{0}, b.FeatureIndexes())

	sb := NewSymbolBucket(0)
	require.NoError(t, sb.AddLabel(Label{FeatureIndex: 3, Text: "a"}, []GlyphQuad{{Glyph: 'a'}}, nil))
	sb.Seal()
	assert.ErrorIs(t, sb.AddLabel(Label{FeatureIndex: 4}, nil, nil), ErrSealed)
	assert.ErrorIs(t, sb.AddCollisionBox(CollisionBox{}), ErrSealed)
	assert.True(t, sb.HasData())
	assert.Equal(t, []int{3}, sb.FeatureIndexes())
}

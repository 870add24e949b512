package symbol

import (
	"fmt"
	"sort"

	"github.com/b1naryth1ef/geotile/bucket"
)

// GlyphID is a Unicode code point in a font stack.
type GlyphID = rune

// GlyphRange is an inclusive block of 256 code points. Glyph metrics are
// loaded a whole range at a time.
type GlyphRange struct {
	Start, End GlyphID
}

func RangeOf(id GlyphID) GlyphRange {
	start := id &^ 0xff
	return GlyphRange{Start: start, End: start + 0xff}
}

func (r GlyphRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

type GlyphRangeSet map[GlyphRange]struct{}

func NewGlyphRangeSet(ranges ...GlyphRange) GlyphRangeSet {
	s := make(GlyphRangeSet, len(ranges))
	for _, r := range ranges {
		s[r] = struct{}{}
	}
	return s
}

func (s GlyphRangeSet) Has(r GlyphRange) bool {
	_, ok := s[r]
	return ok
}

type GlyphMetrics struct {
	Width   uint32
	Height  uint32
	Left    int32
	Top     int32
	Advance uint32
}

type GlyphPosition struct {
	Rect    bucket.AtlasRect
	Metrics GlyphMetrics
}

type GlyphPositions map[GlyphID]GlyphPosition

// GlyphPositionMap holds glyph positions keyed by font stack.
type GlyphPositionMap map[string]GlyphPositions

// Merge copies every position in other into m.
func (m GlyphPositionMap) Merge(other GlyphPositionMap) {
	for font, positions := range other {
		dst, ok := m[font]
		if !ok {
			dst = make(GlyphPositions, len(positions))
			m[font] = dst
		}
		for id, pos := range positions {
			dst[id] = pos
		}
	}
}

type GlyphIDs map[GlyphID]struct{}

// Sorted returns the ids in ascending order.
func (s GlyphIDs) Sorted() []GlyphID {
	out := make([]GlyphID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ranges returns the glyph ranges the ids fall in, ascending.
func (s GlyphIDs) Ranges() []GlyphRange {
	seen := make(map[GlyphRange]bool)
	var out []GlyphRange
	for _, id := range s.Sorted() {
		r := RangeOf(id)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// GlyphDependencies maps a font stack to the glyphs requested from it.
type GlyphDependencies map[string]GlyphIDs

func (d GlyphDependencies) Add(font string, id GlyphID) {
	ids, ok := d[font]
	if !ok {
		ids = make(GlyphIDs)
		d[font] = ids
	}
	ids[id] = struct{}{}
}

func (d GlyphDependencies) Merge(other GlyphDependencies) {
	for font, ids := range other {
		for id := range ids {
			d.Add(font, id)
		}
	}
}

// Without returns a copy of d minus the glyphs already present in resolved.
// Fonts left with no glyphs are omitted.
func (d GlyphDependencies) Without(resolved GlyphPositionMap) GlyphDependencies {
	out := make(GlyphDependencies)
	for font, ids := range d {
		for id := range ids {
			if _, ok := resolved[font][id]; ok {
				continue
			}
			out.Add(font, id)
		}
	}
	return out
}

// Empty reports whether no font has an outstanding glyph.
func (d GlyphDependencies) Empty() bool {
	for _, ids := range d {
		if len(ids) > 0 {
			return false
		}
	}
	return true
}

func (d GlyphDependencies) Clone() GlyphDependencies {
	out := make(GlyphDependencies, len(d))
	for font, ids := range d {
		if len(ids) == 0 {
			continue
		}
		c := make(GlyphIDs, len(ids))
		for id := range ids {
			c[id] = struct{}{}
		}
		out[font] = c
	}
	return out
}

type IconPosition struct {
	Rect       bucket.AtlasRect
	Width      float64
	Height     float64
	PixelRatio float64
	SDF        bool
}

type IconPositions map[string]IconPosition

// IconAtlasMap holds icon positions keyed by atlas.
type IconAtlasMap map[string]IconPositions

type IconNames map[string]struct{}

func (s IconNames) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IconDependencies maps an atlas to the icons requested from it.
type IconDependencies map[string]IconNames

func (d IconDependencies) Add(atlas, name string) {
	names, ok := d[atlas]
	if !ok {
		names = make(IconNames)
		d[atlas] = names
	}
	names[name] = struct{}{}
}

func (d IconDependencies) Merge(other IconDependencies) {
	for atlas, names := range other {
		for name := range names {
			d.Add(atlas, name)
		}
	}
}

// Without returns a copy of d minus the icons already present in resolved.
// Atlases left with no icons are omitted.
func (d IconDependencies) Without(resolved IconAtlasMap) IconDependencies {
	out := make(IconDependencies)
	for atlas, names := range d {
		for name := range names {
			if _, ok := resolved[atlas][name]; ok {
				continue
			}
			out.Add(atlas, name)
		}
	}
	return out
}

func (d IconDependencies) Empty() bool {
	for _, names := range d {
		if len(names) > 0 {
			return false
		}
	}
	return true
}

func (d IconDependencies) Clone() IconDependencies {
	out := make(IconDependencies, len(d))
	for atlas, names := range d {
		if len(names) == 0 {
			continue
		}
		c := make(IconNames, len(names))
		for name := range names {
			c[name] = struct{}{}
		}
		out[atlas] = c
	}
	return out
}

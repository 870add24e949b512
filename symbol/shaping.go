package symbol

import (
	"unicode"

	"github.com/b1naryth1ef/geotile/style"
)

// Glyph metrics are expressed for a 24px em.
const oneEm = 24.0

type positionedGlyph struct {
	id  GlyphID
	x   float64
	y   float64
	pos GlyphPosition
}

// shaping is a block of text laid out around the origin, in pixels at a
// 24px font size.
type shaping struct {
	glyphs                   []positionedGlyph
	top, bottom, left, right float64
}

func alignment(anchor string) (horizontal, vertical float64) {
	horizontal, vertical = 0.5, 0.5
	switch anchor {
	case "left", "top-left", "bottom-left":
		horizontal = 0
	case "right", "top-right", "bottom-right":
		horizontal = 1
	}
	switch anchor {
	case "top", "top-left", "top-right":
		vertical = 0
	case "bottom", "bottom-left", "bottom-right":
		vertical = 1
	}
	return horizontal, vertical
}

func justification(justify string) float64 {
	switch justify {
	case "left":
		return 0
	case "right":
		return 1
	}
	return 0.5
}

// shapeText positions text using the glyph metrics available for its font.
// Glyphs without metrics are skipped and leave no advance. The second value
// is false when nothing could be positioned.
func shapeText(text []rune, positions GlyphPositions, layout style.SymbolLayout) (shaping, bool) {
	spacing := layout.TextLetterSpacing * oneEm
	lineHeight := layout.TextLineHeight * oneEm

	var maxWidth float64
	if layout.Placement != "line" {
		maxWidth = layout.TextMaxWidth * oneEm
	}

	advance := func(r rune) float64 {
		pos, ok := positions[r]
		if !ok {
			return 0
		}
		return float64(pos.Metrics.Advance) + spacing
	}

	lines := breakLines(text, maxWidth, advance)

	var s shaping
	var blockWidth float64
	lineWidths := make([]float64, len(lines))
	lineStarts := make([]int, len(lines))
	for i, line := range lines {
		lineStarts[i] = len(s.glyphs)
		var x float64
		for _, r := range line {
			pos, ok := positions[r]
			if !ok {
				continue
			}
			s.glyphs = append(s.glyphs, positionedGlyph{id: r, x: x, y: float64(i) * lineHeight, pos: pos})
			x += float64(pos.Metrics.Advance) + spacing
		}
		if x > 0 {
			x -= spacing
		}
		lineWidths[i] = x
		if x > blockWidth {
			blockWidth = x
		}
	}
	if len(s.glyphs) == 0 {
		return shaping{}, false
	}

	justify := justification(layout.TextJustify)
	for i := range lines {
		end := len(s.glyphs)
		if i+1 < len(lines) {
			end = lineStarts[i+1]
		}
		shift := (blockWidth - lineWidths[i]) * justify
		for g := lineStarts[i]; g < end; g++ {
			s.glyphs[g].x += shift
		}
	}

	horizontal, vertical := alignment(layout.TextAnchor)
	height := float64(len(lines)) * lineHeight
	dx := -blockWidth*horizontal + layout.TextOffset[0]*oneEm
	dy := -height*vertical + layout.TextOffset[1]*oneEm
	for i := range s.glyphs {
		s.glyphs[i].x += dx
		s.glyphs[i].y += dy
	}

	s.left, s.right = dx, dx+blockWidth
	s.top, s.bottom = dy, dy+height
	return s, true
}

// breakLines splits text at explicit newlines and, when maxWidth is set, at
// the last whitespace before a line grows past it.
func breakLines(text []rune, maxWidth float64, advance func(rune) float64) [][]rune {
	var lines [][]rune
	var line []rune
	var width float64
	lastSpace := -1

	for _, r := range text {
		if r == '\n' {
			lines = append(lines, trimSpace(line))
			line, width, lastSpace = nil, 0, -1
			continue
		}

		adv := advance(r)
		if maxWidth > 0 && width+adv > maxWidth && lastSpace >= 0 {
			lines = append(lines, trimSpace(line[:lastSpace]))
			line = append([]rune(nil), line[lastSpace+1:]...)
			width = 0
			for _, rr := range line {
				width += advance(rr)
			}
			lastSpace = -1
		}

		if unicode.IsSpace(r) {
			lastSpace = len(line)
		}
		line = append(line, r)
		width += adv
	}
	return append(lines, trimSpace(line))
}

func trimSpace(line []rune) []rune {
	start, end := 0, len(line)
	for start < end && unicode.IsSpace(line[start]) {
		start++
	}
	for end > start && unicode.IsSpace(line[end-1]) {
		end--
	}
	return line[start:end]
}

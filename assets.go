package geotile

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/b1naryth1ef/geotile/bucket"
	"github.com/b1naryth1ef/geotile/symbol"
)

// AssetLoader serves glyphs and icons from a zip bundle laid out as
//
//	fonts/<font>/<start>-<end>.json   glyph metrics of one range
//	<atlas>.json                      sprite index of one icon atlas
type AssetLoader struct {
	Files map[string]*zip.File

	reader *zip.ReadCloser

	mu     sync.Mutex
	glyphs map[string]symbol.GlyphPositions
}

type glyphFile struct {
	Glyphs []struct {
		ID      rune   `json:"id"`
		Width   uint32 `json:"width"`
		Height  uint32 `json:"height"`
		Left    int32  `json:"left"`
		Top     int32  `json:"top"`
		Advance uint32 `json:"advance"`
		X       uint16 `json:"x"`
		Y       uint16 `json:"y"`
	} `json:"glyphs"`
}

type spriteEntry struct {
	X          uint16  `json:"x"`
	Y          uint16  `json:"y"`
	Width      uint16  `json:"width"`
	Height     uint16  `json:"height"`
	PixelRatio float64 `json:"pixelRatio"`
	SDF        bool    `json:"sdf"`
}

func NewAssetLoader(path string) (*AssetLoader, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		files[f.Name] = f
	}

	return &AssetLoader{
		Files:  files,
		reader: r,
		glyphs: make(map[string]symbol.GlyphPositions),
	}, nil
}

func (a *AssetLoader) LoadRaw(name string) ([]byte, error) {
	file, ok := a.Files[name]
	if !ok {
		return nil, fmt.Errorf("file %s does not exist", name)
	}

	fd, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	return io.ReadAll(fd)
}

// Glyphs loads range r for every font of the comma separated stack. The
// first font that has a glyph wins.
func (a *AssetLoader) Glyphs(fontStack string, r symbol.GlyphRange) (symbol.GlyphPositions, error) {
	positions := make(symbol.GlyphPositions)
	for _, font := range strings.Split(fontStack, ",") {
		font = strings.TrimSpace(font)
		if font == "" {
			continue
		}

		fontPositions, err := a.fontRange(font, r)
		if err != nil {
			return nil, err
		}
		for id, pos := range fontPositions {
			if _, ok := positions[id]; !ok {
				positions[id] = pos
			}
		}
	}
	return positions, nil
}

func (a *AssetLoader) fontRange(font string, r symbol.GlyphRange) (symbol.GlyphPositions, error) {
	name := fmt.Sprintf("fonts/%s/%s.json", font, r)

	a.mu.Lock()
	cached, ok := a.glyphs[name]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	positions := make(symbol.GlyphPositions)
	if _, exists := a.Files[name]; exists {
		data, err := a.LoadRaw(name)
		if err != nil {
			return nil, err
		}

		var gf glyphFile
		if err := json.Unmarshal(data, &gf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for _, g := range gf.Glyphs {
			positions[g.ID] = symbol.GlyphPosition{
				Rect: bucket.AtlasRect{X: g.X, Y: g.Y, W: uint16(g.Width), H: uint16(g.Height)},
				Metrics: symbol.GlyphMetrics{
					Width:   g.Width,
					Height:  g.Height,
					Left:    g.Left,
					Top:     g.Top,
					Advance: g.Advance,
				},
			}
		}
	}

	a.mu.Lock()
	a.glyphs[name] = positions
	a.mu.Unlock()
	return positions, nil
}

// Icons loads the sprite index of atlas.
func (a *AssetLoader) Icons(atlas string) (symbol.IconPositions, error) {
	data, err := a.LoadRaw(atlas + ".json")
	if err != nil {
		return nil, err
	}

	var entries map[string]spriteEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse sprite %s: %w", atlas, err)
	}

	icons := make(symbol.IconPositions, len(entries))
	for name, e := range entries {
		ratio := e.PixelRatio
		if ratio == 0 {
			ratio = 1
		}
		icons[name] = symbol.IconPosition{
			Rect:       bucket.AtlasRect{X: e.X, Y: e.Y, W: e.Width, H: e.Height},
			Width:      float64(e.Width) / ratio,
			Height:     float64(e.Height) / ratio,
			PixelRatio: ratio,
			SDF:        e.SDF,
		}
	}
	return icons, nil
}

func (a *AssetLoader) Close() {
	a.reader.Close()
}

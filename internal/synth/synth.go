package synth

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	cfg "github.com/1F47E/go-padreel/pkg/config"
)

// Rand is the randomness the synthesizer needs. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Uint32() uint32
	IntN(n int) int
}

// Theme switches frames from full noise to a palette mosaic and sets the caption.
// The zero Theme means noise and the generated caption.
type Theme struct {
	Palette []color.RGBA
	Caption string
}

func (t Theme) HasPalette() bool {
	return len(t.Palette) > 0
}

// ParsePalette parses "#rrggbb" values (comma separated or repeated).
func ParsePalette(values ...string) ([]color.RGBA, error) {
	var palette []color.RGBA
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !strings.HasPrefix(s, "#") {
				s = "#" + s
			}
			c, err := colorful.Hex(s)
			if err != nil {
				return nil, fmt.Errorf("palette color %q: %w", s, err)
			}
			r, g, b := c.RGB255()
			palette = append(palette, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return palette, nil
}

// Synthesizer draws one frame per call. Not safe for concurrent use of the same surface.
type Synthesizer struct {
	mu   sync.Mutex
	rand Rand
	text *overlay
}

func New(r Rand) *Synthesizer {
	return &Synthesizer{rand: r, text: newOverlay()}
}

// NewSeeded returns a synthesizer with deterministic output.
func NewSeeded(seed uint64) *Synthesizer {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewRandom seeds from the runtime's random source.
func NewRandom() *Synthesizer {
	return New(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// BlockSize is the mosaic tile side for a frame width.
func BlockSize(width int) int {
	return max(cfg.MinBlockSize, width/cfg.BlocksPerRow)
}

// Caption is the first overlay line for a frame.
func Caption(theme Theme, width, height int) string {
	if theme.Caption != "" {
		return theme.Caption
	}
	return fmt.Sprintf("TEST VIDEO %dx%d", width, height)
}

// Timestamp is the second overlay line, second precision.
func Timestamp(ts time.Time) string {
	return ts.UTC().Format("15:04:05")
}

// RenderFrame fills the width x height area of surface and draws the caption and
// timestamp over it. Every pixel in the area is written.
func (s *Synthesizer) RenderFrame(surface *image.RGBA, width, height int, theme Theme, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	area := image.Rect(0, 0, width, height).Add(surface.Rect.Min).Intersect(surface.Rect)
	if area.Empty() {
		return
	}

	if theme.HasPalette() {
		s.fillMosaic(surface, area, theme.Palette)
	} else {
		s.fillNoise(surface, area)
	}

	cx := area.Min.X + area.Dx()/2
	cy := area.Min.Y + area.Dy()/2
	glyph := max(cfg.MinGlyphHeightPx, width/cfg.GlyphWidthRatio)
	s.text.draw(surface, Caption(theme, width, height), image.Pt(cx, cy+cfg.CaptionOffsetY), glyph)
	s.text.draw(surface, Timestamp(ts), image.Pt(cx, cy+cfg.TimestampOffsetY), glyph)
}

// every channel random, alpha forced opaque; the least compressible frame possible
func (s *Synthesizer) fillNoise(img *image.RGBA, area image.Rectangle) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		row := img.Pix[img.PixOffset(area.Min.X, y):img.PixOffset(area.Max.X, y)]
		for i := 0; i+4 <= len(row); i += 4 {
			// little endian: byte 3 is alpha
			binary.LittleEndian.PutUint32(row[i:], s.rand.Uint32()|0xFF000000)
		}
	}
}

// coarse blocks of palette colors; highly compressible
func (s *Synthesizer) fillMosaic(img *image.RGBA, area image.Rectangle, palette []color.RGBA) {
	block := BlockSize(area.Dx())
	for y := area.Min.Y; y < area.Max.Y; y += block {
		for x := area.Min.X; x < area.Max.X; x += block {
			c := palette[s.rand.IntN(len(palette))]
			c.A = 255
			r := image.Rect(x, y, x+block, y+block).Intersect(area)
			draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
}

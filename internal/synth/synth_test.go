package synth

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 3, 1, 12, 34, 56, 0, time.UTC)

// zeroed surface: alpha 0 everywhere until something writes a pixel
func blank(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func assertFullyWritten(t *testing.T, img *image.RGBA) {
	t.Helper()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if a := img.RGBAAt(x, y).A; a != 255 {
				t.Fatalf("pixel (%d,%d) not written, alpha=%d", x, y, a)
			}
		}
	}
}

func TestRenderFrameWritesEveryPixel(t *testing.T) {
	palette := []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 128}}
	testCases := []struct {
		name  string
		w, h  int
		theme Theme
	}{
		{"noise", 320, 240, Theme{}},
		{"noise odd size", 97, 33, Theme{}},
		{"mosaic", 320, 240, Theme{Palette: palette}},
		{"mosaic partial blocks", 333, 127, Theme{Palette: palette, Caption: "HELLO"}},
		{"tiny frame", 8, 8, Theme{Palette: palette}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := blank(tc.w, tc.h)
			NewSeeded(1).RenderFrame(img, tc.w, tc.h, tc.theme, ts)
			assertFullyWritten(t, img)
		})
	}
}

func TestMosaicUsesPaletteBlocks(t *testing.T) {
	palette := []color.RGBA{{R: 10, G: 20, B: 30, A: 255}, {R: 200, G: 100, B: 50, A: 255}}
	const w, h = 800, 600
	img := blank(w, h)
	NewSeeded(3).RenderFrame(img, w, h, Theme{Palette: palette}, ts)

	block := BlockSize(w)
	require.Equal(t, 40, block)

	// corner block is far from the centered overlay
	first := img.RGBAAt(0, 0)
	assert.Contains(t, palette, first)
	for y := 0; y < block; y++ {
		for x := 0; x < block; x++ {
			require.Equal(t, first, img.RGBAAt(x, y), "block must be uniform at (%d,%d)", x, y)
		}
	}
}

func TestBlockSize(t *testing.T) {
	assert.Equal(t, 20, BlockSize(100))
	assert.Equal(t, 20, BlockSize(400))
	assert.Equal(t, 64, BlockSize(1280))
	assert.Equal(t, 96, BlockSize(1920))
}

func TestNoiseIsSeeded(t *testing.T) {
	a, b := blank(64, 48), blank(64, 48)
	NewSeeded(42).RenderFrame(a, 64, 48, Theme{}, ts)
	NewSeeded(42).RenderFrame(b, 64, 48, Theme{}, ts)
	assert.Equal(t, a.Pix, b.Pix)

	c := blank(64, 48)
	NewSeeded(43).RenderFrame(c, 64, 48, Theme{}, ts)
	assert.NotEqual(t, a.Pix, c.Pix)
}

func TestOverlayDrawsWhiteText(t *testing.T) {
	const w, h = 640, 360
	img := blank(w, h)
	palette := []color.RGBA{{R: 0, G: 0, B: 128, A: 255}}
	NewSeeded(5).RenderFrame(img, w, h, Theme{Palette: palette}, ts)

	white := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == fillColor {
				white++
			}
		}
	}
	assert.Positive(t, white, "caption fill must be visible on a single-color frame")
}

func TestCaptionAndTimestamp(t *testing.T) {
	assert.Equal(t, "TEST VIDEO 1280x720", Caption(Theme{}, 1280, 720))
	assert.Equal(t, "custom", Caption(Theme{Caption: "custom"}, 1280, 720))
	assert.Equal(t, "12:34:56", Timestamp(ts))
	assert.Equal(t, "12:34:56", Timestamp(ts.Add(999*time.Millisecond)))
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette("#ff0000, 00ff00", "#0000FF")
	require.NoError(t, err)
	assert.Equal(t, []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}, p)

	empty, err := ParsePalette("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParsePalette("#zzzzzz")
	assert.Error(t, err)
}

package synth

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	maxCachedMasks = 64
	strokeRadius   = 2
	shadowOffset   = 3
)

var (
	shadowColor = color.RGBA{A: 160}
	strokeColor = color.RGBA{A: 255}
	fillColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

type maskKey struct {
	text string
	size int
}

// overlay renders text with the 7x13 bitmap face scaled up to the glyph size.
// Scaled masks are cached: the caption repeats every frame, the timestamp every second.
type overlay struct {
	face  *basicfont.Face
	cache map[maskKey]*image.Alpha
}

func newOverlay() *overlay {
	return &overlay{
		face:  basicfont.Face7x13,
		cache: make(map[maskKey]*image.Alpha),
	}
}

func (o *overlay) mask(text string, size int) *image.Alpha {
	key := maskKey{text, size}
	if m, ok := o.cache[key]; ok {
		return m
	}

	w := font.MeasureString(o.face, text).Ceil()
	h := o.face.Height
	if w == 0 {
		return nil
	}
	src := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  src,
		Src:  image.Opaque,
		Face: o.face,
		Dot:  fixed.P(0, o.face.Ascent),
	}
	d.DrawString(text)

	scaled := image.NewAlpha(image.Rect(0, 0, w*size/h, size))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	if len(o.cache) >= maxCachedMasks {
		clear(o.cache)
	}
	o.cache[key] = scaled
	return scaled
}

// draw centers text on center: shadow, black stroke, white fill.
func (o *overlay) draw(dst *image.RGBA, text string, center image.Point, size int) {
	m := o.mask(text, size)
	if m == nil {
		return
	}
	b := m.Bounds()
	r := b.Add(center.Sub(image.Pt(b.Dx()/2, b.Dy()/2)))

	paint := func(c color.Color, off image.Point) {
		draw.DrawMask(dst, r.Add(off), image.NewUniform(c), image.Point{}, m, image.Point{}, draw.Over)
	}

	paint(shadowColor, image.Pt(shadowOffset, shadowOffset))
	for dy := -strokeRadius; dy <= strokeRadius; dy++ {
		for dx := -strokeRadius; dx <= strokeRadius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			paint(strokeColor, image.Pt(dx, dy))
		}
	}
	paint(fillColor, image.Point{})
}

package compose

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// block is a stack of zh lines followed by en lines
type block struct {
	zh, en  []textLine
	spacing int // Between lines of the same language
	gap     int // Between the zh and en stacks
}

func (b block) height() int {
	h := blockHeight(b.zh, b.spacing) + blockHeight(b.en, b.spacing)
	if len(b.zh) > 0 && len(b.en) > 0 {
		h += b.gap
	}
	return h
}

// draw paints the block vertically centered on centerY. x is the left edge,
// center or right edge depending on a.
func (b block) draw(dst draw.Image, x, centerY int, a align, st textStyle) {
	y := centerY - b.height()/2
	place := func(lines []textLine) {
		for _, l := range lines {
			lx := x
			switch a {
			case alignCenter:
				lx = x - l.width()/2
			case alignRight:
				lx = x - l.width()
			}
			drawLine(dst, l, image.Pt(lx, y), st)
			y += l.height() + b.spacing
		}
	}
	place(b.zh)
	if len(b.zh) > 0 && len(b.en) > 0 {
		y += b.gap - b.spacing
	}
	place(b.en)
}

// titleBlock builds the wrapped title at the given base sizes (for a 1920
// wide frame), scaled by the style's per-language ratios
func (f *frame) titleBlock(zhBase, enBase, spacing, gap float64) (block, error) {
	zhFace, err := f.zh.face(f.cfg.unit(zhBase * f.params.ZhFontSizeRatio))
	if err != nil {
		return block{}, err
	}
	var enFace font.Face
	if f.en != nil {
		if enFace, err = f.en.face(f.cfg.unit(enBase * f.params.EnFontSizeRatio)); err != nil {
			return block{}, err
		}
	}
	zh, en := titleLines(f.title, zhFace, enFace)
	return block{
		zh:      zh,
		en:      en,
		spacing: int(f.cfg.unit(spacing)),
		gap:     int(f.cfg.unit(gap)),
	}, nil
}

// fit crops and scales img to exactly w×h
func fit(img image.Image, w, h int) *image.NRGBA {
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}

// blendedBackground is the blurred frame-filling source mixed toward c
func (f *frame) blendedBackground(src image.Image, c color.NRGBA) *image.NRGBA {
	bg := softBlur(fit(src, f.cfg.Width, f.cfg.Height), f.cfg.unit(f.params.BlurRadius))
	return mixColor(bg, c, f.params.ColorMixRatio)
}

// posterTiles fits every image to w×h with rounded corners over a shared
// drop shadow
func posterTiles(images []image.Image, w, h, radius, offset int, blur float64, alpha uint8) []shadowed {
	mask := roundedMask(w, h, radius)
	shadow, tileAt := shadowLayer(w, h, radius, image.Pt(offset, offset), blur, alpha)

	tiles := make([]shadowed, len(images))
	for i, img := range images {
		tiles[i] = withShadow(applyMask(fit(img, w, h), mask), shadow, tileAt)
	}
	return tiles
}

// titleStyle is white text with a soft shadow tinted by the cover color
func titleStyle(c color.NRGBA) textStyle {
	sh := darken(c, 0.3)
	sh.A = 150
	return textStyle{fill: color.White, shadow: sh}
}

// source returns the single image a single-family style renders
func (f *frame) source() image.Image {
	return f.images[0]
}


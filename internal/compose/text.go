package compose

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/fonts"
)

// typeface is a parsed font that can produce faces at any size
type typeface struct {
	font *opentype.Font
}

func loadTypeface(res domain.FontResource) (*typeface, error) {
	data, err := fonts.ReadFont(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFontParse, err)
	}
	return parseTypeface(data)
}

func parseTypeface(data []byte) (*typeface, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFontParse, err)
	}
	return &typeface{font: f}, nil
}

func (t *typeface) face(px float64) (font.Face, error) {
	if px < 1 {
		px = 1
	}
	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFontParse, err)
	}
	return face, nil
}

// Wrap widths are in terminal cells, so one CJK character counts as two
const (
	zhWrapCells = 24
	enWrapCells = 40
)

// wrapZh wraps at word boundaries and breaks runs longer than the limit
func wrapZh(s string) []string {
	return splitLines(ansi.Wrap(strings.TrimSpace(s), zhWrapCells, ""))
}

// wrapEn wraps at word boundaries and never breaks a word
func wrapEn(s string) []string {
	return splitLines(ansi.Wordwrap(strings.TrimSpace(s), enWrapCells, ""))
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// textLine is one measured line of title text
type textLine struct {
	text   string
	face   font.Face
	bounds fixed.Rectangle26_6
}

func measure(face font.Face, text string) textLine {
	b, _ := font.BoundString(face, text)
	return textLine{text: text, face: face, bounds: b}
}

func (l textLine) width() int  { return (l.bounds.Max.X - l.bounds.Min.X).Ceil() }
func (l textLine) height() int { return (l.bounds.Max.Y - l.bounds.Min.Y).Ceil() }

// textStyle describes how a line is painted
type textStyle struct {
	fill   color.Color
	stroke color.Color
	width  float64 // Outline width in pixels; 0 draws no outline
	shadow color.Color
}

// blockHeight is the height of lines stacked with spacing between them
func blockHeight(lines []textLine, spacing int) int {
	if len(lines) == 0 {
		return 0
	}
	h := 0
	for _, l := range lines {
		h += l.height() + spacing
	}
	return h - spacing
}

// drawLine paints l so that its ink box's top-left corner lands on at
func drawLine(dst draw.Image, l textLine, at image.Point, st textStyle) {
	pad := int(math.Ceil(st.width)) + 2
	w, h := l.width()+2*pad, l.height()+2*pad
	if w <= 2*pad || h <= 2*pad {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: l.face,
		Dot:  fixed.Point26_6{X: fixed.I(pad) - l.bounds.Min.X, Y: fixed.I(pad) - l.bounds.Min.Y},
	}
	d.DrawString(l.text)

	r := image.Rect(at.X-pad, at.Y-pad, at.X-pad+w, at.Y-pad+h)
	if st.shadow != nil {
		off := image.Pt(pad/3+2, pad/3+2)
		draw.DrawMask(dst, r.Add(off), image.NewUniform(st.shadow), image.Point{}, mask, image.Point{}, draw.Over)
	}
	if st.width > 0 && st.stroke != nil {
		outline := dilate(mask, st.width)
		draw.DrawMask(dst, r, image.NewUniform(st.stroke), image.Point{}, outline, image.Point{}, draw.Over)
	}
	draw.DrawMask(dst, r, image.NewUniform(st.fill), image.Point{}, mask, image.Point{}, draw.Over)
}

// dilate grows the ink of mask by radius pixels using a two-pass chamfer
// distance transform, antialiasing the outer edge
func dilate(mask *image.Alpha, radius float64) *image.Alpha {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	const inf = math.MaxFloat32
	diag := float32(math.Sqrt2)

	dist := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] >= 128 {
				dist[y*w+x] = 0
			} else {
				dist[y*w+x] = inf
			}
		}
	}

	relax := func(i, x, y int, dx, dy int, cost float32) {
		nx, ny := x+dx, y+dy
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			return
		}
		if d := dist[ny*w+nx] + cost; d < dist[i] {
			dist[i] = d
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			relax(i, x, y, -1, 0, 1)
			relax(i, x, y, -1, -1, diag)
			relax(i, x, y, 0, -1, 1)
			relax(i, x, y, 1, -1, diag)
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			relax(i, x, y, 1, 0, 1)
			relax(i, x, y, 1, 1, diag)
			relax(i, x, y, 0, 1, 1)
			relax(i, x, y, -1, 1, diag)
		}
	}

	out := image.NewAlpha(image.Rect(0, 0, w, h))
	edge := float32(radius) + 0.5
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := edge - dist[y*w+x]
			if a > 1 {
				a = 1
			} else if a < 0 {
				a = 0
			}
			v := uint8(a * 255)
			if m := mask.Pix[y*mask.Stride+x]; m > v {
				v = m
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// titleLines measures the wrapped zh and en blocks of a title
func titleLines(title domain.Title, zh, en font.Face) ([]textLine, []textLine) {
	var zhLines, enLines []textLine
	for _, s := range wrapZh(title.Zh) {
		zhLines = append(zhLines, measure(zh, s))
	}
	if en != nil {
		for _, s := range wrapEn(title.En) {
			enLines = append(enLines, measure(en, s))
		}
	}
	return zhLines, enLines
}

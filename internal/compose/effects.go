package compose

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// softBlur approximates a large Gaussian blur by blurring a downscaled copy
func softBlur(img image.Image, sigma float64) *image.NRGBA {
	if sigma <= 0 {
		return imaging.Clone(img)
	}
	if sigma <= 8 {
		return imaging.Blur(img, sigma)
	}
	b := img.Bounds()
	factor := sigma / 4
	w := max(1, int(float64(b.Dx())/factor))
	h := max(1, int(float64(b.Dy())/factor))
	small := imaging.Resize(img, w, h, imaging.Box)
	small = imaging.Blur(small, 4)
	return imaging.Resize(small, b.Dx(), b.Dy(), imaging.Linear)
}

// dominantColor returns the average of the most populated color bucket,
// ignoring near-black and near-white pixels when anything else is present
func dominantColor(img image.Image) color.NRGBA {
	small := imaging.Resize(img, 64, 64, imaging.Box)

	type bucket struct {
		n       int
		r, g, b int
	}
	buckets := make(map[uint16]*bucket)
	var fallback bucket
	for i := 0; i+3 < len(small.Pix); i += 4 {
		r, g, b := int(small.Pix[i]), int(small.Pix[i+1]), int(small.Pix[i+2])
		fallback.n++
		fallback.r += r
		fallback.g += g
		fallback.b += b

		lum := (r*299 + g*587 + b*114) / 1000
		if lum < 24 || lum > 232 {
			continue
		}
		key := uint16(r>>4)<<8 | uint16(g>>4)<<4 | uint16(b>>4)
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.n++
		bk.r += r
		bk.g += g
		bk.b += b
	}

	best := &fallback
	var bestKey uint16
	found := false
	for k, bk := range buckets {
		// Ties resolve to the lowest key for determinism
		if !found || bk.n > best.n || (bk.n == best.n && k < bestKey) {
			best, bestKey, found = bk, k, true
		}
	}
	if best.n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{
		R: uint8(best.r / best.n),
		G: uint8(best.g / best.n),
		B: uint8(best.b / best.n),
		A: 255,
	}
}

// mixColor blends every pixel of img toward c by ratio (0 keeps img)
func mixColor(img *image.NRGBA, c color.NRGBA, ratio float64) *image.NRGBA {
	keep := 1 - ratio
	cr, cg, cb := float64(c.R)*ratio, float64(c.G)*ratio, float64(c.B)*ratio
	return imaging.AdjustFunc(img, func(p color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: uint8(float64(p.R)*keep + cr + 0.5),
			G: uint8(float64(p.G)*keep + cg + 0.5),
			B: uint8(float64(p.B)*keep + cb + 0.5),
			A: p.A,
		}
	})
}

// darken scales a color's channels by f
func darken(c color.NRGBA, f float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: c.A,
	}
}

// grain adds per-channel Gaussian noise with standard deviation intensity*255
func grain(img *image.NRGBA, intensity float64, seed uint64) {
	if intensity <= 0 {
		return
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	sd := 255 * intensity
	for i := 0; i+3 < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i+c]) + rng.NormFloat64()*sd
			img.Pix[i+c] = uint8(math.Max(0, math.Min(255, math.Round(v))))
		}
	}
}

// roundedMask returns an alpha mask of a w×h rectangle with rounded corners
func roundedMask(w, h, radius int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	r := float64(radius)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Pix[y*m.Stride+x] = cornerCoverage(x, y, w, h, r)
		}
	}
	return m
}

func cornerCoverage(x, y, w, h int, r float64) uint8 {
	if r <= 0 {
		return 255
	}
	px, py := float64(x)+0.5, float64(y)+0.5
	var cx, cy float64
	switch {
	case px < r && py < r:
		cx, cy = r, r
	case px > float64(w)-r && py < r:
		cx, cy = float64(w)-r, r
	case px < r && py > float64(h)-r:
		cx, cy = r, float64(h)-r
	case px > float64(w)-r && py > float64(h)-r:
		cx, cy = float64(w)-r, float64(h)-r
	default:
		return 255
	}
	d := math.Hypot(px-cx, py-cy)
	a := r + 0.5 - d
	if a >= 1 {
		return 255
	}
	if a <= 0 {
		return 0
	}
	return uint8(a * 255)
}

// applyMask returns img with its alpha multiplied by mask
func applyMask(img *image.NRGBA, mask *image.Alpha) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*out.Stride + x*4 + 3
			m := mask.AlphaAt(x, y).A
			out.Pix[i] = uint8(uint16(out.Pix[i]) * uint16(m) / 255)
		}
	}
	return out
}

// shadowed is a tile image placed over a soft drop shadow
type shadowed struct {
	img    *image.NRGBA
	offset image.Point // Position of the tile inside img
}

// shadowLayer renders the blurred shadow of a w×h rounded rectangle.
// The returned image is larger than the tile by the blur margin and offset.
func shadowLayer(w, h, radius int, offset image.Point, blur float64, alpha uint8) (*image.NRGBA, image.Point) {
	pad := int(math.Ceil(blur))
	lw := w + abs(offset.X) + 2*pad
	lh := h + abs(offset.Y) + 2*pad
	layer := image.NewNRGBA(image.Rect(0, 0, lw, lh))

	shape := roundedMask(w, h, radius)
	at := image.Pt(pad+max(0, offset.X), pad+max(0, offset.Y))
	draw.DrawMask(layer, image.Rect(at.X, at.Y, at.X+w, at.Y+h),
		image.NewUniform(color.NRGBA{A: alpha}), image.Point{}, shape, image.Point{}, draw.Src)

	tileAt := image.Pt(pad+max(0, -offset.X), pad+max(0, -offset.Y))
	return softBlur(layer, blur), tileAt
}

// withShadow composites a rounded tile over a precomputed shadow layer
func withShadow(tile *image.NRGBA, shadow *image.NRGBA, tileAt image.Point) shadowed {
	out := imaging.Clone(shadow)
	b := tile.Bounds()
	draw.Draw(out, image.Rect(tileAt.X, tileAt.Y, tileAt.X+b.Dx(), tileAt.Y+b.Dy()), tile, b.Min, draw.Over)
	return shadowed{img: out, offset: tileAt}
}

// fadeRight returns a copy of img whose alpha ramps to zero across the
// rightmost span pixels
func fadeRight(img *image.NRGBA, span int) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	start := b.Dx() - span
	for x := max(0, start); x < b.Dx(); x++ {
		f := 1 - float64(x-start)/float64(span)
		for y := 0; y < b.Dy(); y++ {
			i := y*out.Stride + x*4 + 3
			out.Pix[i] = uint8(float64(out.Pix[i]) * f)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package compose

import (
	"image"
	"image/draw"
)

// renderSingle1 places the poster as a rounded card on the right and the
// title on the left, over the blended backdrop
func renderSingle1(f *frame) (*image.NRGBA, error) {
	src := f.source()
	c := dominantColor(src)
	canvas := f.blendedBackground(src, c)
	W, H := f.cfg.Width, f.cfg.Height

	cardH := int(float64(H) * 0.78)
	cardW := cardH * 2 / 3
	tiles := posterTiles([]image.Image{src}, cardW, cardH,
		int(f.cfg.unit(24)), int(f.cfg.unit(12)), f.cfg.unit(18), 160)
	card := tiles[0]

	cx := int(float64(W) * 0.72)
	at := image.Pt(cx-cardW/2-card.offset.X, (H-cardH)/2-card.offset.Y)
	draw.Draw(canvas, card.img.Bounds().Add(at), card.img, image.Point{}, draw.Over)

	b, err := f.titleBlock(163, 50, 24, 36)
	if err != nil {
		return nil, err
	}
	b.draw(canvas, int(f.cfg.unit(140)), H/2, alignLeft, titleStyle(c))
	return canvas, nil
}

// renderSingle2 shows the poster full height on the left, fading into the
// backdrop, with the title right-aligned
func renderSingle2(f *frame) (*image.NRGBA, error) {
	src := f.source()
	c := dominantColor(src)
	canvas := f.blendedBackground(src, c)
	W, H := f.cfg.Width, f.cfg.Height

	heroW := int(float64(W) * 0.62)
	hero := fadeRight(fit(src, heroW, H), int(float64(W)*0.2))
	draw.Draw(canvas, hero.Bounds(), hero, image.Point{}, draw.Over)

	b, err := f.titleBlock(150, 46, 22, 32)
	if err != nil {
		return nil, err
	}
	b.draw(canvas, W-int(f.cfg.unit(120)), H/2, alignRight, titleStyle(c))
	return canvas, nil
}

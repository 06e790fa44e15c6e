package compose

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// cell is one slot of the poster wall
type cell struct {
	at    image.Point // Top-left of the cell on the wall canvas
	image int         // Index into the source images
}

// layoutGrid covers the square wall canvas with cells, one spare row and
// column included so the rotated crop never shows an edge. Images are
// cycled in order across the cells.
func layoutGrid(g Grid, n int) (cells []cell, rows, cols int) {
	stepX, stepY := g.CellWidth+g.MarginX, g.CellHeight+g.MarginY
	cols = ceilDiv(g.CanvasSize, stepX) + 1
	rows = ceilDiv(g.CanvasSize, stepY) + 1

	startX := floorDiv(g.CanvasSize-cols*stepX, 2)
	startY := floorDiv(g.CanvasSize-rows*stepY, 2)

	cells = make([]cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, cell{
				at:    image.Pt(startX+c*stepX, startY+r*stepY),
				image: len(cells) % n,
			})
		}
	}
	return cells, rows, cols
}

// renderMulti2 is the rotated full-frame poster wall with a centered,
// heavily outlined title
func renderMulti2(f *frame) (*image.NRGBA, error) {
	g := f.cfg.Grid
	W, H := f.cfg.Width, f.cfg.Height

	tiles := posterTiles(f.images, g.CellWidth, g.CellHeight, g.CornerRadius, g.ShadowOffset, g.ShadowBlur, g.ShadowAlpha)
	cells, _, _ := layoutGrid(g, len(tiles))

	wall := image.NewRGBA(image.Rect(0, 0, g.CanvasSize, g.CanvasSize))
	for _, c := range cells {
		piece := tiles[c.image].img
		draw.Draw(wall, piece.Bounds().Add(c.at), piece, image.Point{}, draw.Over)
	}

	rotated := imaging.Rotate(wall, g.Rotation, color.Transparent)
	crop := imaging.CropCenter(rotated, W, H)

	canvas := softBlur(fit(f.images[0], W, H), f.cfg.BackgroundBlur)
	draw.Draw(canvas, canvas.Bounds(), crop, crop.Bounds().Min, draw.Over)
	grain(canvas, f.cfg.Grain, f.cfg.Seed)

	b, err := f.titleBlock(140, 60, 20, 20)
	if err != nil {
		return nil, err
	}
	b.draw(canvas, W/2, H/2, alignCenter, textStyle{
		fill:   color.White,
		stroke: color.Black,
		width:  f.cfg.unit(15),
	})
	return canvas, nil
}

// renderMulti1 stacks three staggered, tilted poster columns on the right
// with the title on the left. With Blur set, the backdrop is the blurred
// lead image mixed toward its dominant color; otherwise a flat tint.
func renderMulti1(f *frame) (*image.NRGBA, error) {
	W, H := f.cfg.Width, f.cfg.Height
	lead := f.images[0]
	c := dominantColor(lead)

	var canvas *image.NRGBA
	if f.params.Blur {
		canvas = f.blendedBackground(lead, c)
	} else {
		canvas = imaging.New(W, H, darken(c, 0.6))
	}

	const cols, rows = 3, 3
	cw, ch := int(f.cfg.unit(410)), int(f.cfg.unit(610))
	gap := int(f.cfg.unit(35))
	tiles := posterTiles(f.images, cw, ch, int(f.cfg.unit(22)), int(f.cfg.unit(10)), f.cfg.unit(14), 150)

	blockW := cols*(cw+gap) + gap
	blockH := rows*(ch+gap) + ch/2 + gap
	wall := image.NewRGBA(image.Rect(0, 0, blockW, blockH))
	for col := 0; col < cols; col++ {
		stagger := (col % 2) * ch / 2
		for row := 0; row < rows; row++ {
			t := tiles[(col*rows+row)%len(tiles)]
			at := image.Pt(gap+col*(cw+gap)-t.offset.X, gap+stagger+row*(ch+gap)-t.offset.Y)
			draw.Draw(wall, t.img.Bounds().Add(at), t.img, image.Point{}, draw.Over)
		}
	}

	rotated := imaging.Rotate(wall, 15, color.Transparent)
	rb := rotated.Bounds()
	center := image.Pt(int(float64(W)*0.7), H/2)
	draw.Draw(canvas, rb.Add(center.Sub(image.Pt(rb.Dx()/2, rb.Dy()/2))), rotated, image.Point{}, draw.Over)

	b, err := f.titleBlock(163, 50, 24, 36)
	if err != nil {
		return nil, err
	}
	b.draw(canvas, int(f.cfg.unit(110)), H/2, alignLeft, titleStyle(c))
	return canvas, nil
}

func ceilDiv(a, b int) int {
	return int(math.Ceil(float64(a) / float64(b)))
}

func floorDiv(a, b int) int {
	return int(math.Floor(float64(a) / float64(b)))
}

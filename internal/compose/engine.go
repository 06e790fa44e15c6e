// Package compose turns source images, a title and resolved fonts into an
// encoded cover. Rendering is deterministic for identical inputs.
package compose

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/mmcdole/covergen/internal/domain"
)

// Grid holds the geometry of the tiled poster wall
type Grid struct {
	CanvasSize   int     // Side of the square canvas the wall is laid out on
	CellWidth    int     // Poster width
	CellHeight   int     // Poster height
	MarginX      int     // Horizontal gap between posters
	MarginY      int     // Vertical gap between posters
	Rotation     float64 // Degrees, counter-clockwise
	CornerRadius int
	ShadowOffset int
	ShadowBlur   float64
	ShadowAlpha  uint8
}

// Config holds the fixed rendering parameters of an Engine
type Config struct {
	Width          int     // Output frame width
	Height         int     // Output frame height
	Quality        int     // JPEG quality
	Grid           Grid    // multi_2 wall geometry
	BackgroundBlur float64 // Blur of the multi_2 backdrop
	Grain          float64 // Noise intensity, as a fraction of full scale
	Seed           uint64  // Noise seed
}

// DefaultConfig renders 1920×1080 covers
func DefaultConfig() Config {
	return Config{
		Width:   1920,
		Height:  1080,
		Quality: 85,
		Grid: Grid{
			CanvasSize:   3200,
			CellWidth:    420,
			CellHeight:   630,
			MarginX:      40,
			MarginY:      40,
			Rotation:     -20,
			CornerRadius: 25,
			ShadowOffset: 8,
			ShadowBlur:   12,
			ShadowAlpha:  140,
		},
		BackgroundBlur: 80,
		Grain:          0.04,
		Seed:           1,
	}
}

// Scaled returns the config with every length multiplied by f
func (c Config) Scaled(f float64) Config {
	px := func(v int) int { return max(1, int(float64(v)*f+0.5)) }
	c.Width, c.Height = px(c.Width), px(c.Height)
	g := &c.Grid
	g.CanvasSize = px(g.CanvasSize)
	g.CellWidth, g.CellHeight = px(g.CellWidth), px(g.CellHeight)
	g.MarginX, g.MarginY = px(g.MarginX), px(g.MarginY)
	g.CornerRadius = px(g.CornerRadius)
	g.ShadowOffset = px(g.ShadowOffset)
	g.ShadowBlur *= f
	c.BackgroundBlur *= f
	return c
}

// unit converts a length designed for a 1920 wide frame to this frame
func (c Config) unit(v float64) float64 {
	return v * float64(c.Width) / 1920
}

// Request is everything one cover is rendered from
type Request struct {
	Images [][]byte // Encoded source images, in selection order
	Title  domain.Title
	Fonts  domain.FontPair
	Style  domain.Style
	Params domain.StyleParams
}

// frame is the decoded input handed to a style renderer
type frame struct {
	cfg    Config
	images []image.Image
	title  domain.Title
	zh     *typeface
	en     *typeface // nil when there is no English title
	params domain.StyleParams
}

type renderer func(f *frame) (*image.NRGBA, error)

// renderers maps each style to its compositing function
var renderers = map[domain.Style]renderer{
	domain.StyleSingle1: renderSingle1,
	domain.StyleSingle2: renderSingle2,
	domain.StyleMulti1:  renderMulti1,
	domain.StyleMulti2:  renderMulti2,
}

// Engine is the CompositingEngine
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultConfig().Quality
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Compose renders req into an encoded cover
func (e *Engine) Compose(req Request) (domain.CoverArtifact, error) {
	render, ok := renderers[req.Style]
	if !ok {
		return domain.CoverArtifact{}, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, req.Style)
	}

	images := e.decodeAll(req.Images, req.Style.Family())
	if len(images) == 0 {
		return domain.CoverArtifact{}, domain.ErrNoImages
	}

	zh, err := loadTypeface(req.Fonts.Zh)
	if err != nil {
		return domain.CoverArtifact{}, fmt.Errorf("zh font: %w", err)
	}
	var en *typeface
	if req.Title.En != "" {
		if en, err = loadTypeface(req.Fonts.En); err != nil {
			return domain.CoverArtifact{}, fmt.Errorf("en font: %w", err)
		}
	}

	f := &frame{
		cfg:    e.cfg,
		images: images,
		title:  req.Title,
		zh:     zh,
		en:     en,
		params: req.Params.Normalize(),
	}
	img, err := render(f)
	if err != nil {
		return domain.CoverArtifact{}, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.cfg.Quality)); err != nil {
		return domain.CoverArtifact{}, fmt.Errorf("encode cover: %w", err)
	}
	return domain.CoverArtifact{Data: buf.Bytes(), Format: domain.FormatJPEG}, nil
}

// decodeAll decodes the images a style family lays out, skipping unreadable ones
func (e *Engine) decodeAll(data [][]byte, family domain.StyleFamily) []image.Image {
	limit := 1
	if family == domain.FamilyMulti {
		limit = domain.MaxGridImages
	}

	var out []image.Image
	for i, d := range data {
		if len(out) == limit {
			break
		}
		img, err := imaging.Decode(bytes.NewReader(d), imaging.AutoOrientation(true))
		if err != nil {
			e.logger.Warn("skipping undecodable source image", "index", i, "error", err)
			continue
		}
		out = append(out, img)
	}
	return out
}

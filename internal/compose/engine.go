package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"regexp"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var ErrEmptyText = errors.New("page text is empty after normalization")

// outlineRadius is the offset of the shadow pass drawn around each glyph
// run to keep text legible over arbitrary illustration backgrounds.
const outlineRadius = 8

var outlineOffsets = [8][2]int{
	{-outlineRadius, 0}, {outlineRadius, 0},
	{0, -outlineRadius}, {0, outlineRadius},
	{-6, -6}, {-6, 6}, {6, -6}, {6, 6},
}

// Engine renders page text onto illustrations.
type Engine struct {
	font       *opentype.Font
	foreground color.Color
	outline    color.Color
}

// NewEngine loads the compositing font. An empty fontPath falls back to the
// embedded Go Regular face.
func NewEngine(fontPath string) (*Engine, error) {
	ttf := goregular.TTF
	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", fontPath, err)
		}
		ttf = data
	}

	fnt, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return &Engine{
		font:       fnt,
		foreground: color.White,
		outline:    color.Black,
	}, nil
}

// Render draws text over the illustration and returns a new image of the
// same dimensions. The input image is not modified.
func (e *Engine) Render(illustration image.Image, text, position, sizeClass string) (image.Image, error) {
	text = NormalizeText(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	bounds := illustration.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	area := AreaFor(position, width, height)
	fontSize := FontSizeFor(area, sizeClass)

	face, err := opentype.NewFace(e.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	budget := area.Width - ResponsivePadding(area.Width)
	lines := Wrap(text, face, budget)
	if len(lines) == 0 {
		return nil, ErrEmptyText
	}

	metrics := face.Metrics()
	ascent := float64(metrics.Ascent) / 64
	glyphHeight := float64(metrics.Ascent+metrics.Descent) / 64
	lineHeight := 1.2 * glyphHeight

	totalHeight := float64(len(lines)) * lineHeight
	startY := area.Y + (area.Height-totalHeight)/2

	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, illustration, bounds.Min, draw.Src)

	for i, line := range lines {
		lineWidth := measure(face, line)
		x := area.X + (area.Width-lineWidth)/2
		baseline := startY + float64(i)*lineHeight + ascent

		e.drawLine(out, face, line, x, baseline)
	}

	return out, nil
}

func (e *Engine) drawLine(dst draw.Image, face font.Face, line string, x, baseline float64) {
	// Shadow pass first so the foreground run lands on top.
	for _, offset := range outlineOffsets {
		drawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(e.outline),
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.Int26_6((x + float64(offset[0])) * 64),
				Y: fixed.Int26_6((baseline + float64(offset[1])) * 64),
			},
		}
		drawer.DrawString(line)
	}

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(e.foreground),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(baseline * 64),
		},
	}
	drawer.DrawString(line)
}

var (
	markupPattern     = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeText strips markup and collapses whitespace.
func NormalizeText(s string) string {
	s = markupPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ") // non-breaking spaces from CMS text
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

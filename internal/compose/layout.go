package compose

import (
	"math"

	"ms-bookworks/internal/models"
)

// TextArea is the region of the illustration reserved for text, in pixels.
type TextArea struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func leftAnchored(pos string) bool {
	return pos == models.PositionTopLeft || pos == models.PositionCenterLeft || pos == models.PositionBottomLeft
}

func rightAnchored(pos string) bool {
	return pos == models.PositionTopRight || pos == models.PositionCenterRight || pos == models.PositionBottomRight
}

func topAnchored(pos string) bool {
	return pos == models.PositionTopLeft || pos == models.PositionTopRight || pos == models.PositionTopCenter
}

func bottomAnchored(pos string) bool {
	return pos == models.PositionBottomLeft || pos == models.PositionBottomRight || pos == models.PositionBottomCenter
}

// AreaFor computes the text area for a position preset on an image of the
// given pixel dimensions. Pure and deterministic: the same inputs always
// yield the same area.
func AreaFor(pos string, width, height int) TextArea {
	w := float64(width)
	h := float64(height)
	padding := math.Max(30, 0.03*math.Min(w, h))

	var areaWidth float64
	if leftAnchored(pos) || rightAnchored(pos) {
		areaWidth = w/2 - 2*padding
	} else {
		areaWidth = w - 2*padding
	}

	var areaHeight float64
	if topAnchored(pos) || bottomAnchored(pos) {
		areaHeight = h/2.5 - padding
	} else {
		areaHeight = h/1.8 - padding
	}

	// Tiny images can push the formulas negative; an empty area is still a
	// valid area.
	areaWidth = math.Max(0, areaWidth)
	areaHeight = math.Max(0, areaHeight)

	var x float64
	switch {
	case rightAnchored(pos):
		x = w/2 + padding
	default:
		x = padding
	}

	var y float64
	switch {
	case topAnchored(pos):
		y = padding
	case bottomAnchored(pos):
		y = h - areaHeight - padding
	default:
		y = (h - areaHeight) / 2
	}

	return TextArea{X: x, Y: y, Width: areaWidth, Height: areaHeight}
}

// FontSizeFor derives the pixel font size for an area and size class.
func FontSizeFor(area TextArea, sizeClass string) float64 {
	base := math.Min(area.Width/18, area.Height/10)
	if base < 22 {
		base = 22
	}

	switch sizeClass {
	case models.FontSizeSmall:
		return base * 0.75
	case models.FontSizeLarge:
		return base * 1.35
	default:
		return base
	}
}

// ResponsivePadding is the inner horizontal margin subtracted from the area
// width before wrapping.
func ResponsivePadding(areaWidth float64) float64 {
	return math.Max(20, 0.05*areaWidth)
}

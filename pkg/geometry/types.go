// Package geometry provides the integer rectangle type shared by the ROI,
// OCR and report packages.
package geometry

import (
	"fmt"
	"image"
)

// Rect represents a rectangle with integer pixel coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// XYWH builds a Rect from origin and size.
func XYWH(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// FromImageRect converts an image.Rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// ImageRect converts to an image.Rectangle.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns Width*Height, or 0 for an empty rectangle.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Clamp clips the rectangle to an image of the given size.
//
// A negative origin is moved to 0. If the origin lies at or beyond the image
// bounds, or either dimension collapses to <= 0, the zero Rect is returned.
func (r Rect) Clamp(size image.Point) Rect {
	x := max(0, r.X)
	y := max(0, r.Y)
	if x >= size.X || y >= size.Y {
		return Rect{}
	}

	w := min(r.Width, size.X-x)
	h := min(r.Height, size.Y-y)
	if w <= 0 || h <= 0 {
		return Rect{}
	}
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// Expand grows the rectangle by pad pixels on every side.
func (r Rect) Expand(pad int) Rect {
	return Rect{X: r.X - pad, Y: r.Y - pad, Width: r.Width + 2*pad, Height: r.Height + 2*pad}
}

// String renders the rectangle as "x,y,w,h".
func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

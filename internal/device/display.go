// Package device defines the target device capabilities consumed by the control engine.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplaySize describes a display as width x height at a density.
type DisplaySize struct {
	Width   int
	Height  int
	Density int
}

// ParseDisplaySize parses values such as "1080x2400/420".
func ParseDisplaySize(value string) (DisplaySize, error) {
	value = strings.TrimSpace(value)
	dims, density, ok := strings.Cut(value, "/")
	if !ok {
		return DisplaySize{}, fmt.Errorf("display size %q: missing density", value)
	}
	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return DisplaySize{}, fmt.Errorf("display size %q: missing 'x'", value)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return DisplaySize{}, fmt.Errorf("display size %q: width: %w", value, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return DisplaySize{}, fmt.Errorf("display size %q: height: %w", value, err)
	}
	dpi, err := strconv.Atoi(density)
	if err != nil {
		return DisplaySize{}, fmt.Errorf("display size %q: density: %w", value, err)
	}
	if width <= 0 || height <= 0 || dpi <= 0 {
		return DisplaySize{}, fmt.Errorf("display size %q: values must be positive", value)
	}
	return DisplaySize{Width: width, Height: height, Density: dpi}, nil
}

// Size returns the pixel size of the display.
func (d DisplaySize) Size() Size {
	return Size{Width: d.Width, Height: d.Height}
}

// String formats the display size in the parseable form.
func (d DisplaySize) String() string {
	return fmt.Sprintf("%dx%d/%d", d.Width, d.Height, d.Density)
}

// MapPosition scales a client position into device pixels.
// It fails when the client size does not match the current screen size or the point is outside it.
func MapPosition(pos Position, screen Size, physical Size) (Point, bool) {
	if pos.ScreenSize != screen || screen.Width <= 0 || screen.Height <= 0 {
		return Point{}, false
	}
	x, y := pos.Point.X, pos.Point.Y
	if x < 0 || y < 0 || x >= screen.Width || y >= screen.Height {
		return Point{}, false
	}
	return Point{
		X: x * physical.Width / screen.Width,
		Y: y * physical.Height / screen.Height,
	}, true
}

package scene

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a 6-hex-digit RGB string such as "#3b82f6".
type Color string

// Normalize returns the lower-case "#rrggbb" form, or an error when the
// value is not six hex digits (the leading '#' is optional).
func (c Color) Normalize() (Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(string(c)), "#")
	if len(s) != 6 {
		return "", fmt.Errorf("color %q: want 6 hex digits", string(c))
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", fmt.Errorf("color %q: %w", string(c), err)
	}
	return Color("#" + strings.ToLower(s)), nil
}

// Valid reports whether c parses.
func (c Color) Valid() bool {
	_, err := c.Normalize()
	return err == nil
}

// RGBA parses the color; invalid values yield opaque black.
func (c Color) RGBA() color.RGBA {
	n, err := c.Normalize()
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	v, _ := strconv.ParseUint(string(n[1:]), 16, 32)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

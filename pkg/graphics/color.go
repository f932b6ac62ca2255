// Package graphics holds the small value types shared by the overlay engine:
// packed colors and pixel-space geometry.
package graphics

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// maxByte is the maximum value of a byte, used for color normalization.
const maxByte = 255.0

// Color is stored as ARGB (0xAARRGGBB).
type Color uint32

// RGBA constructs a Color from red, green, blue bytes and alpha (0-1).
func RGBA(r, g, b uint8, a float64) Color {
	return Color(uint32(alpha01ToByte(a))<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGBA8 constructs a Color from red, green, blue, alpha bytes (all 0-255).
func RGBA8(r, g, b, a uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB constructs an opaque Color from red, green, blue bytes.
func RGB(r, g, b uint8) Color {
	return RGBA8(r, g, b, 0xFF)
}

// FromRGB24 converts a packed 0xRRGGBB value, as found in comment files,
// into an opaque Color.
func FromRGB24(v uint32) Color {
	return Color(0xFF000000 | v&0x00FFFFFF)
}

// RGBAF returns normalized color components (0.0 to 1.0).
func (c Color) RGBAF() (r, g, b, a float64) {
	return float64(uint8(c>>16)) / maxByte,
		float64(uint8(c>>8)) / maxByte,
		float64(uint8(c)) / maxByte,
		float64(uint8(c>>24)) / maxByte
}

// Alpha returns the alpha component as a value from 0.0 (transparent) to 1.0 (opaque).
func (c Color) Alpha() float64 {
	return float64(uint8(c>>24)) / maxByte
}

// WithAlpha returns a copy of the color with the given alpha (0-1).
func (c Color) WithAlpha(a float64) Color {
	return Color(uint32(alpha01ToByte(a))<<24 | uint32(c)&0x00FFFFFF)
}

// NRGBA converts the color to the standard library representation.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: uint8(c >> 24)}
}

// Hex formats the color as #rrggbb, or #aarrggbb when not opaque.
func (c Color) Hex() string {
	if uint8(c>>24) == 0xFF {
		return fmt.Sprintf("#%06x", uint32(c)&0x00FFFFFF)
	}
	return fmt.Sprintf("#%08x", uint32(c))
}

// ParseColor parses #rgb, #rrggbb and #aarrggbb notations.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return 0, fmt.Errorf("color %q: missing '#' prefix", s)
	}
	alpha := uint8(0xFF)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[1:3], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = "#" + s[3:]
	}
	if len(s) != 4 && len(s) != 7 {
		return 0, fmt.Errorf("color %q: want #rgb, #rrggbb or #aarrggbb", s)
	}
	parsed, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := parsed.RGB255()
	return RGBA8(r, g, b, alpha), nil
}

// alpha01ToByte converts a 0-1 alpha to 0-255 with proper rounding.
func alpha01ToByte(a float64) uint8 {
	return uint8(math.Round(clamp01(a) * 255))
}

// clamp01 clamps a value to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Common colors.
const (
	ColorTransparent = Color(0x00000000)
	ColorBlack       = Color(0xFF000000)
	ColorWhite       = Color(0xFFFFFFFF)
	ColorRed         = Color(0xFFFF0000)
	ColorGreen       = Color(0xFF00FF00)
	ColorBlue        = Color(0xFF0000FF)
)

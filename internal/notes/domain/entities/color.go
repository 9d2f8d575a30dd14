package entities

import (
	"errors"
	"fmt"
)

// Color is a named note color from the closed palette.
type Color string

// Палитра цветов заметок.
const (
	ColorWhite        Color = "white"
	ColorGray         Color = "gray"
	ColorBlack        Color = "black"
	ColorPastelPink   Color = "pastel-pink"
	ColorPastelRed    Color = "pastel-red"
	ColorPastelOrange Color = "pastel-orange"
	ColorPastelYellow Color = "pastel-yellow"
	ColorPastelGreen  Color = "pastel-green"
	ColorPastelBlue   Color = "pastel-blue"
	ColorPastelPurple Color = "pastel-purple"
)

// DefaultColor is used when no color is given.
const DefaultColor = ColorWhite

// ErrInvalidColor is returned for a color outside the palette.
var ErrInvalidColor = errors.New("invalid color tag")

var palette = []Color{
	ColorWhite,
	ColorGray,
	ColorBlack,
	ColorPastelPink,
	ColorPastelRed,
	ColorPastelOrange,
	ColorPastelYellow,
	ColorPastelGreen,
	ColorPastelBlue,
	ColorPastelPurple,
}

// Palette returns the palette in display order.
func Palette() []Color {
	out := make([]Color, len(palette))
	copy(out, palette)
	return out
}

// PaletteNames returns the palette as plain strings.
func PaletteNames() []string {
	out := make([]string, len(palette))
	for i, c := range palette {
		out[i] = string(c)
	}
	return out
}

// Valid reports whether c belongs to the palette.
func (c Color) Valid() bool {
	for _, p := range palette {
		if p == c {
			return true
		}
	}
	return false
}

// ParseColor converts s into a palette color. An empty string yields DefaultColor.
func ParseColor(s string) (Color, error) {
	if s == "" {
		return DefaultColor, nil
	}
	c := Color(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

package parts

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Palette maps every label, Background included, to a fixed RGBA color. It is
// built once at construction and never mutated afterwards.
type Palette struct {
	colors [NumParts + 1]color.NRGBA
}

// NewPalette builds the default palette: hues spread evenly around the color
// wheel with alternating value so neighboring part ids stay distinguishable,
// and transparent black for Background.
func NewPalette() *Palette {
	var p Palette
	for i := 0; i < NumParts; i++ {
		v := 1.0
		if i%2 == 1 {
			v = 0.65
		}
		cc := colorful.Hsv(float64(i)*360.0/float64(NumParts), 0.9, v)
		r, g, b := cc.RGB255()
		p.colors[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	p.colors[NumParts] = color.NRGBA{}
	return &p
}

// NewPaletteFromColors builds a palette from caller-supplied colors, one per
// body part; Background stays transparent.
func NewPaletteFromColors(colors []color.NRGBA) (*Palette, error) {
	if len(colors) != NumParts {
		return nil, errors.Errorf("palette needs exactly %d colors, got %d", NumParts, len(colors))
	}
	var p Palette
	copy(p.colors[:], colors)
	return &p, nil
}

// Color returns the color for the given label; out-of-range labels map to the
// Background entry.
func (p *Palette) Color(l Label) color.NRGBA {
	if !l.Valid() {
		return p.colors[NumParts]
	}
	return p.colors[l]
}
